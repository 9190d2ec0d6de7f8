package exprjit

import (
	"log/slog"

	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/features"
	"github.com/exprjit/exprjit/internal/platform"
)

// Config controls compilation, with the default implementation as NewConfig.
//
// Config is immutable: each WithXXX function returns a new instance including
// the corresponding change. Values are validated by NewCompiler.
type Config struct {
	cpuFeatures  string
	hasFeatures  bool
	variant      string
	packing      express.Packing
	reserved     []string
	constantBase string
	logHandler   slog.Handler
	logScopes    string
	cache        CompilationCache
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &Config{
	packing:      express.Vector,
	constantBase: "R15",
}

// NewConfig returns a Config for vector code on the host CPU, with the constant
// pool addressed through R15 and logging disabled.
func NewConfig() *Config {
	return defaultConfig.clone()
}

// clone ensures all fields are copied even if nil.
func (c *Config) clone() *Config {
	ret := *c
	ret.reserved = append([]string(nil), c.reserved...)
	return &ret
}

// WithCpuFeatures replaces the detected host CPU features with a comma separated
// list such as "sse2,sse4.1,avx,fma". This is how code for another machine, or
// for a lower tier, is produced.
//
// Note: the EXPRJITFEATURES environment variable only masks host features.
func (c *Config) WithCpuFeatures(list string) *Config {
	ret := c.clone()
	ret.cpuFeatures = list
	ret.hasFeatures = true
	return ret
}

// WithVariant forces a generator variant by name, e.g. "VectorFltSSE", instead of
// selecting the most capable one. An empty name restores selection.
func (c *Config) WithVariant(name string) *Config {
	ret := c.clone()
	ret.variant = name
	return ret
}

// WithPacking selects scalar or vector code. Defaults to vector.
func (c *Config) WithPacking(packing express.Packing) *Config {
	ret := c.clone()
	ret.packing = packing
	return ret
}

// WithReservedRegisters excludes vector registers, e.g. "X0", from allocation.
func (c *Config) WithReservedRegisters(names ...string) *Config {
	ret := c.clone()
	ret.reserved = append(ret.reserved, names...)
	return ret
}

// WithConstantBase sets the general purpose register which holds the address of
// the constant pool when the compiled code runs. Defaults to "R15". An empty
// name disables the pool, so only the zero constant can be used.
func (c *Config) WithConstantBase(name string) *Config {
	ret := c.clone()
	ret.constantBase = name
	return ret
}

// WithLogger enables structured logging of the given scopes, e.g.
// "selection,reservation" or "all", to h at the levels h enables.
func (c *Config) WithLogger(h slog.Handler, scopes string) *Config {
	ret := c.clone()
	ret.logHandler = h
	ret.logScopes = scopes
	return ret
}

// WithCompilationCache stores compiled cells in cache and reuses them when the
// same expression is compiled with an equal Config. See NewCompilationCache.
func (c *Config) WithCompilationCache(cache CompilationCache) *Config {
	ret := c.clone()
	ret.cache = cache
	return ret
}

// cpuFeatureFlags returns the configured features, or the host features masked
// by EXPRJITFEATURES.
func (c *Config) cpuFeatureFlags() (platform.CpuFeatureFlags, error) {
	if c.hasFeatures {
		return platform.ParseCpuFeatureFlags(c.cpuFeatures)
	}
	return features.Mask(platform.HostCpuFeatures()), nil
}
