// Package generator lowers expressions into amd64 SSE and AVX machine code.
//
// A Generator is one variant bound to an element type and a set of CPU features.
// It advertises what it can lower through its Model, checks an expression
// against that model up front, reserves registers from a RegisterIndex and
// finally emits instructions through an amd64.Assembler.
package generator

import (
	"fmt"
	"log/slog"

	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/asm"
	"github.com/exprjit/exprjit/internal/asm/amd64"
	"github.com/exprjit/exprjit/internal/logging"
	"github.com/exprjit/exprjit/internal/platform"
)

// RegisterIndex maps the logical register slots of an expression onto physical
// XMM registers. The generator derives YMM registers from them for 256-bit code.
type RegisterIndex interface {
	// ReserveXMMRegisters reserves n registers for slots 0 to n-1.
	ReserveXMMRegisters(n int) error
	// XMM returns the physical register of slot i.
	XMM(i int) asm.Register
	// Release gives the reserved registers back.
	Release()
}

// Option configures a Generator.
type Option func(*Generator)

// WithConstantBase sets the general purpose register holding the address of the
// constant pool at run time. Without it, non-zero immediates cannot be lowered.
func WithConstantBase(reg asm.Register) Option {
	return func(g *Generator) {
		g.constantBase = reg
	}
}

// WithLogger sets the logger for selection, reservation and lowering events.
func WithLogger(l *logging.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// Generator lowers expressions of one element type with one variant.
// It is immutable after New and safe for concurrent use.
type Generator struct {
	variant      Variant
	typ          express.Type
	features     platform.CpuFeatureFlags
	model        Model
	constantBase asm.Register
	logger       *logging.Logger
}

// New returns the generator of variant v for expressions of typ. It fails with an
// *UnsupportedError if features lack what the variant requires.
func New(v Variant, typ express.Type, features platform.CpuFeatureFlags, opts ...Option) (*Generator, error) {
	if v >= variantEnd {
		return nil, fmt.Errorf("unknown variant %d", byte(v))
	}
	if req := v.Requires(); !features.Has(req) {
		return nil, &UnsupportedError{Variant: v, Index: -1, Feature: req}
	}
	g := &Generator{variant: v, typ: typ, features: features, model: newModel(v, features)}
	for _, opt := range opts {
		opt(g)
	}
	if g.constantBase != asm.NilRegister && !amd64.IsGeneralPurpose(g.constantBase) {
		return nil, fmt.Errorf("constant base %s is not a general purpose register", amd64.RegisterName(g.constantBase))
	}
	return g, nil
}

// Select returns the generator of the most capable variant of the packing which
// can lower expr. AVX variants are tried before SSE ones. If none can, the error
// of the most capable candidate is returned.
func Select(features platform.CpuFeatureFlags, typ express.Type, packing express.Packing, expr *express.Expression, opts ...Option) (*Generator, error) {
	// checkErr is the first rejection by a constructed generator, which tells
	// more than a missing CPU tier.
	var first, checkErr error
	for _, v := range Candidates(packing) {
		g, err := New(v, typ, features, opts...)
		if err == nil {
			if err = g.Check(expr); err == nil {
				g.logger.Debug(logging.LogScopeSelection, "selected generator", "variant", v.String(), "type", typ.String())
				return g, nil
			}
			g.logger.Debug(logging.LogScopeSelection, "rejected generator", "variant", v.String(), "reason", err.Error())
			if checkErr == nil {
				checkErr = err
			}
		}
		if first == nil {
			first = err
		}
	}
	if checkErr != nil {
		return nil, checkErr
	}
	return nil, first
}

// Name returns the name of the variant.
func (g *Generator) Name() string {
	return g.variant.String()
}

// Variant returns the variant.
func (g *Generator) Variant() Variant {
	return g.variant
}

// Type returns the element type.
func (g *Generator) Type() express.Type {
	return g.typ
}

// Features returns the CPU features the generator was built for.
func (g *Generator) Features() platform.CpuFeatureFlags {
	return g.features
}

// Model returns the operand shapes the generator lowers natively.
func (g *Generator) Model() Model {
	return g.model
}

// Supports returns true if g can lower ops of type t with some operand shape.
func (g *Generator) Supports(t express.OpType) bool {
	if !supports(g.variant, t) {
		return false
	}
	if f := requiredFeature(g.variant, t); f != 0 && !g.features.Has(f) {
		return false
	}
	return !t.IsFused() || g.model.Fused()
}

// Width returns the size in bytes of one operand: the element size for scalar
// variants and the vector width otherwise.
func (g *Generator) Width() int {
	if g.variant.Packing() == express.Scalar {
		return g.typ.Size()
	}
	return variants[g.variant].vectorBytes
}

// Lanes returns the number of elements processed per operand.
func (g *Generator) Lanes() int {
	return g.Width() / g.typ.Size()
}

// NumRegs returns the number of registers Reserve asks for: one per logical slot
// plus a scratch register if an in-place RELU needs one.
func (g *Generator) NumRegs(expr *express.Expression) int {
	n := expr.NumRegs()
	if needsScratch(expr) {
		n++
	}
	return n
}

// needsScratch returns true if a RELU's argument is its own result register.
func needsScratch(expr *express.Expression) bool {
	for _, op := range expr.Ops() {
		if op.Type == express.OpRelu && op.Args[0].SameRegister(op.Result) {
			return true
		}
	}
	return false
}

// Reserve reserves the registers expr needs.
func (g *Generator) Reserve(expr *express.Expression, index RegisterIndex) error {
	n := g.NumRegs(expr)
	if err := index.ReserveXMMRegisters(n); err != nil {
		return fmt.Errorf("%s: %w: %v", g.variant, ErrRegisterReservation, err)
	}
	g.logger.Debug(logging.LogScopeReservation, "reserved registers", "variant", g.variant.String(), "count", n)
	return nil
}

// Generate checks expr, reserves its registers and emits its instructions into a.
// Nothing is emitted unless every op can be lowered.
func (g *Generator) Generate(expr *express.Expression, index RegisterIndex, a amd64.Assembler) error {
	if err := g.Check(expr); err != nil {
		return err
	}
	if err := g.Reserve(expr, index); err != nil {
		return err
	}
	defer index.Release()

	l := &lowering{g: g, a: a, index: index, scratch: -1}
	if needsScratch(expr) {
		l.scratch = expr.NumRegs()
	}
	logLowering := g.logger.Enabled(logging.LogScopeLowering, slog.LevelDebug)
	for i, op := range expr.Ops() {
		l.lower(i, op)
		if logLowering {
			g.logger.Debug(logging.LogScopeLowering, "lowered op", "variant", g.variant.String(), "index", i, "op", op.String())
		}
	}
	return nil
}
