package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/exprjit/exprjit"
	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/logging"
)

// compileFlags are the flags shared by the commands which compile expressions.
type compileFlags struct {
	typ          string
	packing      string
	variant      string
	features     string
	reserved     []string
	constantBase string
	logLevel     string
	logScopes    logScopesFlag
	cacheDir     string
}

func (f *compileFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.typ, "type", "float32", "element type: float32 or float64")
	flags.StringVar(&f.packing, "packing", "vector", "scalar or vector")
	flags.StringVar(&f.variant, "variant", "", "force a generator variant instead of selecting one, e.g. VectorFltSSE")
	flags.StringVar(&f.features, "features", "",
		"comma-separated CPU features to generate code for, e.g. sse2,sse4.1,avx. Defaults to the host CPU")
	flags.StringSliceVar(&f.reserved, "reserve", nil, "vector registers to keep out of allocation, e.g. X0,X1")
	flags.StringVar(&f.constantBase, "constant-base", "R15", "general purpose register addressing the constant pool")
	flags.StringVar(&f.logLevel, "log-level", "debug", "level of logged events: debug, info, warn or error")
	flags.StringVar(&f.cacheDir, "cache-dir", "", "directory to keep compiled cells in across invocations")
	flags.Var(&f.logScopes, "log-scopes",
		"A comma-separated list of code generation scopes to log to stderr. "+
			"Supported values: selection,reservation,lowering,all")
}

func (f *compileFlags) elementType() (express.Type, error) {
	return express.ParseType(f.typ)
}

func (f *compileFlags) compiler(cmd *cobra.Command) (*exprjit.Compiler, error) {
	packing, err := express.ParsePacking(f.packing)
	if err != nil {
		return nil, err
	}
	config := exprjit.NewConfig().
		WithPacking(packing).
		WithVariant(f.variant).
		WithReservedRegisters(f.reserved...).
		WithConstantBase(f.constantBase)
	if f.features != "" {
		config = config.WithCpuFeatures(f.features)
	}
	if f.logScopes != 0 {
		level, err := logging.ParseLevel(f.logLevel)
		if err != nil {
			return nil, err
		}
		h := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
		config = config.WithLogger(h, f.logScopes.String())
	}
	if f.cacheDir != "" {
		// A directory cache holds no resources to close.
		cache, err := exprjit.NewCompilationCacheWithDir(f.cacheDir)
		if err != nil {
			return nil, err
		}
		config = config.WithCompilationCache(cache)
	}
	return exprjit.NewCompiler(config)
}

// logScopesFlag implements pflag.Value over logging.LogScopes.
type logScopesFlag logging.LogScopes

func (f *logScopesFlag) String() string {
	// LogScopes.String joins with '|', which ParseLogScopes does not read.
	return strings.ReplaceAll(logging.LogScopes(*f).String(), "|", ",")
}

func (f *logScopesFlag) Set(input string) error {
	scopes, err := logging.ParseLogScopes(input)
	if err != nil {
		return err
	}
	*f |= logScopesFlag(scopes)
	return nil
}

func (f *logScopesFlag) Type() string {
	return "scopes"
}

func printCell(cmd *cobra.Command, cell *exprjit.CompiledCell, listing, disasm bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "variant: %s (%d lanes)\n", cell.Variant, cell.Lanes)
	fmt.Fprint(out, "registers:")
	for i, reg := range cell.Registers {
		fmt.Fprintf(out, " r%d=%s", i, reg)
	}
	fmt.Fprintln(out)
	if listing {
		for _, line := range cell.Listing {
			fmt.Fprintln(out, "\t"+line)
		}
	}
	if disasm {
		fmt.Fprint(out, cell.Disassemble())
	}
	fmt.Fprintf(out, "code: %d bytes, constant pool: %d bytes\n", len(cell.Code), len(cell.ConstPool))
}
