package exprjit

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exprjit/exprjit/express"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name     string
		with     func(*Config) *Config
		expected *Config
	}{
		{
			name: "WithCpuFeatures",
			with: func(c *Config) *Config {
				return c.WithCpuFeatures("sse2,avx")
			},
			expected: &Config{cpuFeatures: "sse2,avx", hasFeatures: true, packing: express.Vector, constantBase: "R15"},
		},
		{
			name: "WithVariant",
			with: func(c *Config) *Config {
				return c.WithVariant("VectorFltSSE")
			},
			expected: &Config{variant: "VectorFltSSE", packing: express.Vector, constantBase: "R15"},
		},
		{
			name: "WithPacking",
			with: func(c *Config) *Config {
				return c.WithPacking(express.Scalar)
			},
			expected: &Config{packing: express.Scalar, constantBase: "R15"},
		},
		{
			name: "WithReservedRegisters",
			with: func(c *Config) *Config {
				return c.WithReservedRegisters("X0").WithReservedRegisters("X1", "Y2")
			},
			expected: &Config{reserved: []string{"X0", "X1", "Y2"}, packing: express.Vector, constantBase: "R15"},
		},
		{
			name: "WithConstantBase",
			with: func(c *Config) *Config {
				return c.WithConstantBase("")
			},
			expected: &Config{packing: express.Vector},
		},
		{
			name: "WithCompilationCache",
			with: func(c *Config) *Config {
				return c.WithCompilationCache(otherCache{})
			},
			expected: &Config{cache: otherCache{}, packing: express.Vector, constantBase: "R15"},
		},
	}
	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			input := NewConfig()
			rc := tc.with(input)
			require.Equal(t, tc.expected, rc)
			// The source wasn't modified
			require.Equal(t, NewConfig(), input)
		})
	}
}

func TestConfig_WithReservedRegisters_copies(t *testing.T) {
	c1 := NewConfig().WithReservedRegisters("X0")
	c2 := c1.WithReservedRegisters("X1")
	c3 := c1.WithReservedRegisters("X2")
	require.Equal(t, []string{"X0"}, c1.reserved)
	require.Equal(t, []string{"X0", "X1"}, c2.reserved)
	require.Equal(t, []string{"X0", "X2"}, c3.reserved)
}

func TestNewCompiler_errors(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		expErr string
	}{
		{name: "cpu feature", config: NewConfig().WithCpuFeatures("sse2,avx512"), expErr: "invalid cpu feature: avx512"},
		{name: "variant", config: NewConfig().WithVariant("VectorFltNEON"), expErr: "invalid variant: VectorFltNEON"},
		{
			name:   "variant packing",
			config: NewConfig().WithPacking(express.Scalar).WithVariant("VectorFltAVX"),
			expErr: "variant VectorFltAVX does not produce scalar code",
		},
		{name: "reserved", config: NewConfig().WithReservedRegisters("AX"), expErr: "invalid vector register: AX"},
		{name: "constant base", config: NewConfig().WithConstantBase("X3"), expErr: "invalid constant base register: X3"},
		{
			name:   "log scopes",
			config: NewConfig().WithLogger(slog.NewTextHandler(&bytes.Buffer{}, nil), "selection,codegen"),
			expErr: `not a log scope: "codegen"`,
		},
	}
	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCompiler(tc.config)
			require.EqualError(t, err, tc.expErr)
		})
	}
}
