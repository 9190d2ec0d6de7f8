// Package exprjit compiles expressions of floating point micro-operations into
// amd64 machine code for the SSE, AVX and FMA3 instruction set tiers.
//
// An expression is built with package express, either in code or from its text
// listing, and compiled into a CompiledCell holding the machine code and the
// constant pool it addresses:
//
//	expr, _ := express.Parse(express.Float32, "r0 = mov [si]\nr0 = relu r0\n[di] = mov r0")
//	c, _ := exprjit.NewCompiler(exprjit.NewConfig())
//	cell, _ := c.Compile(ctx, expr)
package exprjit

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/asm"
	"github.com/exprjit/exprjit/internal/asm/amd64"
	"github.com/exprjit/exprjit/internal/compilationcache"
	"github.com/exprjit/exprjit/internal/generator"
	"github.com/exprjit/exprjit/internal/logging"
	"github.com/exprjit/exprjit/internal/platform"
	"github.com/exprjit/exprjit/internal/regindex"
)

// CompiledCell is the result of compiling one expression.
type CompiledCell struct {
	// Variant is the name of the generator variant, e.g. "VectorFltAVX".
	Variant string
	// Lanes is the number of elements each register operand holds.
	Lanes int
	// Code is the machine code. It has no prologue, epilogue or return.
	Code []byte
	// ConstPool must be addressed by the constant base register when Code runs.
	// It is nil when Code uses no constants.
	ConstPool []byte
	// Listing is the emitted instructions in Go assembler syntax.
	Listing []string
	// Registers are the physical registers of the logical register slots,
	// including a trailing scratch register if one was needed.
	Registers []string
}

// Disassemble returns the listing of Code decoded from its bytes. VEX-encoded
// instructions are rendered with their Listing entry.
func (c *CompiledCell) Disassemble() string {
	return amd64.DisassembleListing(c.Code, c.Listing)
}

// Compiler compiles expressions with a fixed Config. It holds no mutable state
// and is safe for concurrent use.
type Compiler struct {
	features     platform.CpuFeatureFlags
	variant      generator.Variant
	hasVariant   bool
	packing      express.Packing
	reserved     []asm.Register
	constantBase asm.Register
	logger       *logging.Logger
	cache        *cache
	// cacheKeyPrefix digests the settings above which change the code.
	cacheKeyPrefix string
}

// NewCompiler returns a Compiler for the config, or an error if a value of the
// config is invalid.
func NewCompiler(config *Config) (*Compiler, error) {
	if config == nil {
		config = NewConfig()
	}
	features, err := config.cpuFeatureFlags()
	if err != nil {
		return nil, err
	}
	c := &Compiler{features: features, packing: config.packing, logger: logging.Discard()}

	if config.variant != "" {
		v, ok := generator.VariantByName(config.variant)
		if !ok {
			return nil, fmt.Errorf("invalid variant: %s", config.variant)
		}
		if v.Packing() != config.packing {
			return nil, fmt.Errorf("variant %s does not produce %s code", v, config.packing)
		}
		c.variant, c.hasVariant = v, true
	}

	for _, name := range config.reserved {
		reg, ok := amd64.RegisterByName(name)
		if !ok || !(amd64.IsXMM(reg) || amd64.IsYMM(reg)) {
			return nil, fmt.Errorf("invalid vector register: %s", name)
		}
		c.reserved = append(c.reserved, reg)
	}

	if config.constantBase != "" {
		reg, ok := amd64.RegisterByName(config.constantBase)
		if !ok || !amd64.IsGeneralPurpose(reg) {
			return nil, fmt.Errorf("invalid constant base register: %s", config.constantBase)
		}
		c.constantBase = reg
	}

	if config.logHandler != nil {
		scopes, err := logging.ParseLogScopes(config.logScopes)
		if err != nil {
			return nil, err
		}
		c.logger = logging.NewLogger(config.logHandler, scopes)
	}

	if config.cache != nil {
		cc, ok := config.cache.(*cache)
		if !ok {
			return nil, fmt.Errorf("unsupported compilation cache: %T", config.cache)
		}
		c.cache = cc
		c.cacheKeyPrefix = strings.Join([]string{
			c.features.String(), config.variant, config.packing.String(),
			strings.Join(config.reserved, ","), config.constantBase,
		}, ";")
	}
	return c, nil
}

// CpuFeatures returns the CPU features code is generated for, e.g. "sse,sse2,avx".
func (c *Compiler) CpuFeatures() string {
	return c.features.String()
}

// Compile lowers expr into machine code. Nothing is produced unless every op
// of expr can be lowered.
func (c *Compiler) Compile(ctx context.Context, expr *express.Expression) (*CompiledCell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.cache == nil {
		return c.compile(expr)
	}

	key := compilationcache.NewKey(c.cacheKeyPrefix, expr.Type().String(), expr.String())
	cell, err := c.cache.get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read compilation cache: %w", err)
	} else if cell != nil {
		c.logger.Debug(logging.LogScopeSelection, "cached cell", "variant", cell.Variant)
		return cell, nil
	}
	if cell, err = c.compile(expr); err != nil {
		return nil, err
	}
	if err = c.cache.add(key, cell); err != nil {
		return nil, fmt.Errorf("failed to write compilation cache: %w", err)
	}
	return cell, nil
}

func (c *Compiler) compile(expr *express.Expression) (*CompiledCell, error) {
	g, err := c.generator(expr)
	if err != nil {
		return nil, err
	}

	a, err := amd64.NewAssembler()
	if err != nil {
		return nil, err
	}
	r := amd64.NewRecorder(a)
	index := &slotRecorder{inner: regindex.New(c.reserved...)}
	if err = g.Generate(expr, index, r); err != nil {
		return nil, err
	}
	code, err := r.Assemble()
	if err != nil {
		return nil, fmt.Errorf("failed to assemble %s code: %w", g.Name(), err)
	}

	cell := &CompiledCell{Variant: g.Name(), Lanes: g.Lanes(), Code: code}
	if pool := r.StaticConstPool(); !pool.Empty() {
		cell.ConstPool = pool.Bytes()
	}
	for _, e := range r.Emissions() {
		cell.Listing = append(cell.Listing, e.String())
	}
	for _, reg := range index.slots {
		if g.Variant() == generator.VectorFltAVX {
			reg = amd64.YMM(reg)
		}
		cell.Registers = append(cell.Registers, amd64.RegisterName(reg))
	}
	return cell, nil
}

// CompileAll compiles independent expressions concurrently. The cells are in the
// order of exprs. The first error cancels the remaining compilations.
func (c *Compiler) CompileAll(ctx context.Context, exprs []*express.Expression) ([]*CompiledCell, error) {
	cells := make([]*CompiledCell, len(exprs))
	eg, ctx := errgroup.WithContext(ctx)
	for i, expr := range exprs {
		i, expr := i, expr
		eg.Go(func() error {
			cell, err := c.Compile(ctx, expr)
			if err != nil {
				return fmt.Errorf("expression %d: %w", i, err)
			}
			cells[i] = cell
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return cells, nil
}

func (c *Compiler) generator(expr *express.Expression) (*generator.Generator, error) {
	opts := []generator.Option{generator.WithLogger(c.logger)}
	if c.constantBase != asm.NilRegister {
		opts = append(opts, generator.WithConstantBase(c.constantBase))
	}
	if !c.hasVariant {
		return generator.Select(c.features, expr.Type(), c.packing, expr, opts...)
	}
	g, err := generator.New(c.variant, expr.Type(), c.features, opts...)
	if err != nil {
		return nil, err
	}
	c.logger.Debug(logging.LogScopeSelection, "configured generator", "variant", g.Name())
	return g, nil
}

// slotRecorder remembers the physical registers of the reserved window.
type slotRecorder struct {
	inner *regindex.Index
	slots []asm.Register
}

func (s *slotRecorder) ReserveXMMRegisters(n int) error {
	if err := s.inner.ReserveXMMRegisters(n); err != nil {
		return err
	}
	s.slots = make([]asm.Register, n)
	for i := range s.slots {
		s.slots[i] = s.inner.XMM(i)
	}
	return nil
}

func (s *slotRecorder) XMM(i int) asm.Register {
	return s.inner.XMM(i)
}

func (s *slotRecorder) Release() {
	s.inner.Release()
}
