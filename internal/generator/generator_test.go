package generator

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/asm"
	"github.com/exprjit/exprjit/internal/asm/amd64"
	"github.com/exprjit/exprjit/internal/asm/amd64/amd64test"
	"github.com/exprjit/exprjit/internal/logging"
	"github.com/exprjit/exprjit/internal/platform"
	"github.com/exprjit/exprjit/internal/regindex"
)

var (
	allFeatures = platform.NewCpuFeatureFlags(platform.AllCpuFeatures()...)
	sseFeatures = platform.NewCpuFeatureFlags(platform.CpuFeatureAmd64SSE, platform.CpuFeatureAmd64SSE2,
		platform.CpuFeatureAmd64SSE3, platform.CpuFeatureAmd64SSE4_1)
	avxFeatures = sseFeatures.With(platform.CpuFeatureAmd64AVX)
)

func parse(t *testing.T, typ express.Type, listing string) *express.Expression {
	expr, err := express.Parse(typ, listing)
	require.NoError(t, err)
	return expr
}

func newGenerator(t *testing.T, v Variant, typ express.Type, features platform.CpuFeatureFlags) *Generator {
	g, err := New(v, typ, features, WithConstantBase(amd64.RegR15))
	require.NoError(t, err)
	return g
}

func generate(t *testing.T, g *Generator, expr *express.Expression) *amd64.Recorder {
	r := amd64.NewRecorder(nil)
	require.NoError(t, g.Generate(expr, regindex.New(), r))
	return r
}

func listing(r *amd64.Recorder) []string {
	ret := make([]string, 0, r.Len())
	for _, e := range r.Emissions() {
		ret = append(ret, e.String())
	}
	return ret
}

func TestVariant(t *testing.T) {
	for _, v := range AllVariants() {
		actual, ok := VariantByName(v.String())
		require.True(t, ok)
		require.Equal(t, v, actual)
	}
	_, ok := VariantByName("VectorFltAVX512")
	require.False(t, ok)
	require.Equal(t, "<unknown variant 4>", variantEnd.String())

	require.Equal(t, []Variant{VectorFltAVX, VectorFltSSE}, Candidates(express.Vector))
	require.Equal(t, []Variant{ScalarFltAVX, ScalarFltSSE}, Candidates(express.Scalar))
	require.Equal(t, express.Vector, VectorFltSSE.Packing())
	require.Equal(t, platform.CpuFeatureAmd64AVX, ScalarFltAVX.Requires())
}

func TestNew(t *testing.T) {
	t.Run("missing feature", func(t *testing.T) {
		_, err := New(VectorFltAVX, express.Float32, sseFeatures)
		require.ErrorIs(t, err, ErrUnsupportedOperation)
		require.EqualError(t, err, "VectorFltAVX: unsupported operation: requires avx")
	})
	t.Run("constant base", func(t *testing.T) {
		_, err := New(VectorFltSSE, express.Float32, sseFeatures, WithConstantBase(amd64.RegX0))
		require.EqualError(t, err, "constant base X0 is not a general purpose register")
	})
	t.Run("width", func(t *testing.T) {
		for _, tc := range []struct {
			v            Variant
			typ          express.Type
			width, lanes int
		}{
			{v: ScalarFltSSE, typ: express.Float32, width: 4, lanes: 1},
			{v: ScalarFltAVX, typ: express.Float64, width: 8, lanes: 1},
			{v: VectorFltSSE, typ: express.Float32, width: 16, lanes: 4},
			{v: VectorFltSSE, typ: express.Float64, width: 16, lanes: 2},
			{v: VectorFltAVX, typ: express.Float32, width: 32, lanes: 8},
			{v: VectorFltAVX, typ: express.Float64, width: 32, lanes: 4},
		} {
			g := newGenerator(t, tc.v, tc.typ, allFeatures)
			require.Equal(t, tc.width, g.Width(), tc.v)
			require.Equal(t, tc.lanes, g.Lanes(), tc.v)
		}
	})
}

func TestModel(t *testing.T) {
	model := func(v Variant, features platform.CpuFeatureFlags) Model {
		return newGenerator(t, v, express.Float32, features).Model()
	}

	require.Equal(t, []string{
		"MovRegReg", "MovRegImm", "MovRegMem", "MovMemReg", "OpRegReg", "OpRegMem", "FuncRegReg", "FuncRegMem",
	}, model(ScalarFltSSE, allFeatures).Flags())
	require.Equal(t, []string{
		"MovRegReg", "MovRegImm", "MovRegMem", "MovMemReg", "OpRegReg", "OpRegImm", "OpRegMem",
		"FuncRegReg", "FuncRegImm", "FuncRegMem",
	}, model(VectorFltSSE, allFeatures).Flags())

	t.Run("monotonic", func(t *testing.T) {
		for _, tc := range []struct{ base, wide Variant }{
			{base: ScalarFltSSE, wide: ScalarFltAVX},
			{base: VectorFltSSE, wide: VectorFltAVX},
		} {
			baseline := model(tc.base, allFeatures)
			noFMA := model(tc.wide, avxFeatures)
			withFMA := model(tc.wide, allFeatures)
			require.True(t, noFMA.Covers(baseline), tc.wide)
			require.True(t, withFMA.Covers(noFMA), tc.wide)
			require.False(t, noFMA.Covers(withFMA), tc.wide)
			require.False(t, baseline.Covers(noFMA), tc.base)
			require.False(t, noFMA.Fused())
			require.True(t, withFMA.Fused())

			// Only the fused flags differ.
			noFMA.FmRegRegReg, noFMA.FmRegRegImm, noFMA.FmRegRegMem = withFMA.FmRegRegReg, withFMA.FmRegRegImm, withFMA.FmRegRegMem
			require.Equal(t, withFMA, noFMA)
		}
	})
}

func TestGenerator_Generate_scenario(t *testing.T) {
	t.Run("VectorFltAVX", func(t *testing.T) {
		g := newGenerator(t, VectorFltAVX, express.Float32, allFeatures)
		r := generate(t, g, parse(t, express.Float32, `
r0 = mov [si]
r1 = mov [di]
r2 = add r0, r1
r2 = relu r2
`))
		require.Equal(t, []string{
			"VMOVUPS (SI), Y0",
			"VMOVUPS (DI), Y1",
			"VADDPS Y1, Y0, Y2",
			"VXORPS Y3, Y3, Y3",
			"VMAXPS Y2, Y3, Y2",
		}, listing(r))

		m := amd64test.NewMachine[float32]()
		m.SetMemory(amd64.RegSI, 1, -2, 3, -4, 5, -6, 7, -8)
		m.SetMemory(amd64.RegDI, 1, 1, 1, 1, 1, 1, 1, 1)
		require.NoError(t, m.Run(r.Emissions()))
		require.Equal(t, []float32{2, 0, 4, 0, 6, 0, 8, 0}, m.Register(amd64.RegY2))
	})
	t.Run("VectorFltSSE", func(t *testing.T) {
		g := newGenerator(t, VectorFltSSE, express.Float32, sseFeatures)
		r := generate(t, g, parse(t, express.Float32, `
r2 = mov [si]
r1 = mov [di]
r2 = add r2, r1
r2 = relu r2
`))
		require.Equal(t, []string{
			"MOVUPS (SI), X2",
			"MOVUPS (DI), X1",
			"ADDPS X1, X2",
			"XORPS X3, X3",
			"MAXPS X3, X2",
		}, listing(r))

		m := amd64test.NewMachine[float32]()
		m.SetMemory(amd64.RegSI, 1, -2, 3, -4)
		m.SetMemory(amd64.RegDI, 1, 1, 1, 1)
		require.NoError(t, m.Run(r.Emissions()))
		require.Equal(t, []float32{2, 0, 4, 0}, m.Register(amd64.RegX2))
	})
	t.Run("three-address on VectorFltSSE", func(t *testing.T) {
		g := newGenerator(t, VectorFltSSE, express.Float32, sseFeatures)
		r := amd64.NewRecorder(nil)
		err := g.Generate(parse(t, express.Float32, "r0 = mov [si]\nr1 = mov [di]\nr2 = add r0, r1\nr2 = relu r2"), regindex.New(), r)
		require.ErrorIs(t, err, ErrIllegalOperandShape)
		require.EqualError(t, err, "VectorFltSSE: illegal operand shape: op 2 (r2 = add r0, r1): three-address register, register")
		require.Zero(t, r.Len())
	})
	t.Run("missing feature", func(t *testing.T) {
		g := newGenerator(t, VectorFltAVX, express.Float32, avxFeatures)
		r := amd64.NewRecorder(nil)
		index := regindex.New()
		err := g.Generate(parse(t, express.Float32, `
r0 = mov [si]
r1 = mov [di]
r2 = add r0, r1
r2 = shl r2, $1
r2 = relu r2
`), index, r)
		require.ErrorIs(t, err, ErrUnsupportedOperation)
		require.EqualError(t, err, "VectorFltAVX: unsupported operation: op 3 (shl) requires avx2")
		require.Zero(t, r.Len())
		require.Equal(t, 16, index.Free())
	})
}

func TestGenerator_Generate_registerReservation(t *testing.T) {
	g := newGenerator(t, VectorFltSSE, express.Float32, sseFeatures)
	index := regindex.New(amd64.RegX0, amd64.RegX1, amd64.RegX2, amd64.RegX3, amd64.RegX4, amd64.RegX5,
		amd64.RegX6, amd64.RegX7, amd64.RegX8, amd64.RegX9, amd64.RegX10, amd64.RegX11, amd64.RegX12, amd64.RegX13)
	r := amd64.NewRecorder(nil)

	err := g.Generate(parse(t, express.Float32, "r0 = mov [si]\nr1 = mov [di]\nr0 = add r0, r1\nr0 = relu r0"), index, r)
	require.ErrorIs(t, err, ErrRegisterReservation)
	require.Zero(t, r.Len())

	// Two registers fit: the scratch register is only needed for an in-place relu.
	require.NoError(t, g.Generate(parse(t, express.Float32, "r0 = mov [si]\nr1 = relu r0"), index, r))
	require.Equal(t, []string{"MOVUPS (SI), X14", "XORPS X15, X15", "MAXPS X14, X15"}, listing(r))
	require.Equal(t, 2, index.Free())
}

func TestGenerator_Generate_deterministic(t *testing.T) {
	for _, v := range AllVariants() {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			g := newGenerator(t, v, express.Float32, allFeatures)
			expr := parse(t, express.Float32, `
r0 = mov [si+16]
r1 = mov #1.5
r0 = mul r0, r1
r0 = add r0, [di+cx*4]
r0 = relu r0
[di] = mov r0
`)
			var prev []byte
			for i := 0; i < 3; i++ {
				a, err := amd64.NewAssembler()
				require.NoError(t, err)
				require.NoError(t, g.Generate(expr, regindex.New(), a))
				code, err := a.Assemble()
				require.NoError(t, err)
				require.NotEmpty(t, code)
				if prev != nil {
					require.Equal(t, prev, code)
				}
				prev = code
			}
		})
	}
}

func TestGenerator_Generate_compare(t *testing.T) {
	for _, tc := range []struct {
		op        string
		predicate asm.ConstantValue
	}{
		{op: "cmpeqoq", predicate: 0},
		{op: "cmpltoq", predicate: 17},
		{op: "cmpgtoq", predicate: 30},
		{op: "cmpngeuq", predicate: 25},
	} {
		tc := tc
		t.Run(tc.op, func(t *testing.T) {
			expr := parse(t, express.Float32, "r0 = "+tc.op+" r0, r1")
			for _, v := range []Variant{VectorFltSSE, VectorFltAVX} {
				r := generate(t, newGenerator(t, v, express.Float32, allFeatures), expr)
				require.Equal(t, 1, r.Len())
				ops := r.Emissions()[0].Operands
				imm := ops[0]
				if imm.Kind != amd64.OperandKindConst {
					imm = ops[len(ops)-1]
				}
				require.Equal(t, amd64.OperandKindConst, imm.Kind, v)
				require.Equal(t, tc.predicate, imm.Offset, v)
			}
		})
	}

	t.Run("legacy encoding", func(t *testing.T) {
		g := newGenerator(t, VectorFltSSE, express.Float32, allFeatures)
		r := generate(t, g, parse(t, express.Float32, "r0 = cmpeqoq r0, r1\nr0 = cmpltoq r0, [si]"))
		require.Equal(t, []string{"CMPPS X1, X0, $0", "VCMPPS $17, (SI), X0, X0"}, listing(r))

		// Predicates beyond the legacy encoding need AVX.
		g = newGenerator(t, VectorFltSSE, express.Float32, sseFeatures)
		err := g.Check(parse(t, express.Float32, "r0 = cmpgtoq r0, r1"))
		require.EqualError(t, err, "VectorFltSSE: unsupported operation: op 0 (cmpgtoq) requires avx")
		require.NoError(t, g.Check(parse(t, express.Float32, "r0 = cmpeqoq r0, r1")))
	})

	t.Run("evaluate", func(t *testing.T) {
		g := newGenerator(t, VectorFltAVX, express.Float32, allFeatures)
		r := generate(t, g, parse(t, express.Float32, "r2 = cmpltoq r0, r1"))
		require.Equal(t, []string{"VCMPPS $17, Y1, Y0, Y2"}, listing(r))

		m := amd64test.NewMachine[float32]()
		nan := float32(math.NaN())
		m.SetRegister(amd64.RegY0, 1, 2, 3, nan, 1, 2, 3, 4)
		m.SetRegister(amd64.RegY1, 2, 2, 2, 2, 2, 2, 2, 2)
		require.NoError(t, m.Run(r.Emissions()))
		var bits []uint32
		for _, v := range m.Register(amd64.RegY2) {
			bits = append(bits, math.Float32bits(v))
		}
		require.Equal(t, []uint32{math.MaxUint32, 0, 0, 0, math.MaxUint32, 0, 0, 0}, bits)
	})
}

func TestGenerator_Generate_move(t *testing.T) {
	for _, tc := range []struct {
		name     string
		v        Variant
		typ      express.Type
		expr     string
		expected []string
	}{
		{
			name: "zero",
			v:    VectorFltSSE, typ: express.Float32,
			expr:     "r0 = mov #0",
			expected: []string{"XORPS X0, X0"},
		},
		{
			name: "zero avx",
			v:    VectorFltAVX, typ: express.Float64,
			expr:     "r0 = mov #0",
			expected: []string{"VXORPD Y0, Y0, Y0"},
		},
		{
			name: "scalar load and store",
			v:    ScalarFltSSE, typ: express.Float32,
			expr:     "r0 = mov [si+8]\n[di-4] = mov r0",
			expected: []string{"MOVSS 8(SI), X0", "MOVSS X0, -4(DI)"},
		},
		{
			name: "scalar avx",
			v:    ScalarFltAVX, typ: express.Float64,
			expr:     "r1 = mov [si]\nr0 = mov r1\n[di+cx*8] = mov r0",
			expected: []string{"VMOVSD (SI), X1", "VMOVAPD X1, X0", "VMOVSD X0, (DI)(CX*8)"},
		},
		{
			name: "vector indexed",
			v:    VectorFltSSE, typ: express.Float64,
			expr:     "r0 = mov [si+cx*4+16]\n[di] = mov r0",
			expected: []string{"MOVUPD 16(SI)(CX*4), X0", "MOVUPD X0, (DI)"},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			r := generate(t, newGenerator(t, tc.v, tc.typ, allFeatures), parse(t, tc.typ, tc.expr))
			require.Equal(t, tc.expected, listing(r))
			require.True(t, r.StaticConstPool().Empty())
		})
	}

	t.Run("memory to memory", func(t *testing.T) {
		g := newGenerator(t, ScalarFltSSE, express.Float32, allFeatures)
		err := g.Check(parse(t, express.Float32, "[di] = mov [si]"))
		require.EqualError(t, err, "ScalarFltSSE: illegal operand shape: op 0 ([di] = mov [si]): mov memory <- memory")
	})
}

func TestGenerator_Generate_constant(t *testing.T) {
	t.Run("scalar", func(t *testing.T) {
		g := newGenerator(t, ScalarFltSSE, express.Float32, allFeatures)
		r := generate(t, g, parse(t, express.Float32, "r0 = mov #2.5\nr1 = mov #-1\nr2 = mov #2.5"))
		require.Equal(t, []string{"MOVSS (R15), X0", "MOVSS 4(R15), X1", "MOVSS (R15), X2"}, listing(r))
		require.Equal(t, 8, r.StaticConstPool().PoolSizeInBytes)
	})
	t.Run("vector", func(t *testing.T) {
		g := newGenerator(t, VectorFltAVX, express.Float32, allFeatures)
		r := generate(t, g, parse(t, express.Float32, "r1 = mul r0, #2\nr1 = add r1, #0"))
		require.Equal(t, []string{"VMULPS (R15), Y0, Y1", "VADDPS 32(R15), Y1, Y1"}, listing(r))

		pool := r.StaticConstPool()
		require.Equal(t, 64, pool.PoolSizeInBytes)
		m := amd64test.NewMachine[float32]()
		m.SetMemoryBytes(amd64.RegR15, pool.Bytes())
		m.SetRegister(amd64.RegY0, 1, 2, 3, 4, 5, 6, 7, 8)
		require.NoError(t, m.Run(r.Emissions()))
		require.Equal(t, []float32{2, 4, 6, 8, 10, 12, 14, 16}, m.Register(amd64.RegY1))
	})
	t.Run("no constant base", func(t *testing.T) {
		g, err := New(VectorFltSSE, express.Float32, allFeatures)
		require.NoError(t, err)
		// The zero register idiom needs no pool.
		require.NoError(t, g.Check(parse(t, express.Float32, "r0 = mov #0")))
		err = g.Check(parse(t, express.Float32, "r0 = mov #1"))
		require.ErrorIs(t, err, ErrIllegalOperandShape)
		require.EqualError(t, err, "VectorFltSSE: illegal operand shape: op 0 (r0 = mov #1): immediate without a constant base register")
	})
	t.Run("constant base addressed", func(t *testing.T) {
		g := newGenerator(t, VectorFltAVX, express.Float32, allFeatures)
		for _, tc := range []struct{ expr, op string }{
			{expr: "r0 = mov [r15]", op: "op 0 (r0 = mov [r15])"},
			{expr: "r0 = mov [si]\nr0 = add r0, [si+r15*4+8]", op: "op 1 (r0 = add r0, [si+r15*4+8])"},
			{expr: "r0 = mov [si]\n[r15+16] = mov r0", op: "op 1 ([r15+16] = mov r0)"},
		} {
			err := g.Check(parse(t, express.Float32, tc.expr))
			require.ErrorIs(t, err, ErrIllegalOperandShape)
			require.EqualError(t, err, "VectorFltAVX: illegal operand shape: "+tc.op+": memory operand addresses the constant base register")
		}

		// Any other base register is fine, and so is r15 without a constant base.
		g, err := New(VectorFltAVX, express.Float32, allFeatures, WithConstantBase(amd64.RegBX))
		require.NoError(t, err)
		require.NoError(t, g.Check(parse(t, express.Float32, "r0 = mov [r15]")))
		g, err = New(VectorFltAVX, express.Float32, allFeatures)
		require.NoError(t, err)
		require.NoError(t, g.Check(parse(t, express.Float32, "r0 = mov [r15]")))
	})
	t.Run("scalar operation", func(t *testing.T) {
		g := newGenerator(t, ScalarFltAVX, express.Float32, allFeatures)
		err := g.Check(parse(t, express.Float32, "r1 = add r0, #1"))
		require.EqualError(t, err, "ScalarFltAVX: illegal operand shape: op 0 (r1 = add r0, #1): three-address register, immediate")
	})
}

func TestGenerator_Generate_relu(t *testing.T) {
	nan := float32(math.NaN())
	negZero := float32(math.Copysign(0, -1))
	input := []float32{nan, negZero, -1, 2}

	for _, tc := range []struct {
		name     string
		v        Variant
		expr     string
		expected []string
		// keepsNaN is true if NaN and negative zero pass through unchanged.
		keepsNaN bool
	}{
		{
			name: "sse", v: VectorFltSSE, expr: "r1 = relu r0",
			expected: []string{"XORPS X1, X1", "MAXPS X0, X1"},
			keepsNaN: true,
		},
		{
			name: "sse in place", v: VectorFltSSE, expr: "r1 = relu r1",
			expected: []string{"XORPS X2, X2", "MAXPS X2, X1"},
		},
		{
			name: "avx", v: VectorFltAVX, expr: "r1 = relu r0",
			expected: []string{"VXORPS Y1, Y1, Y1", "VMAXPS Y0, Y1, Y1"},
			keepsNaN: true,
		},
		{
			name: "avx in place", v: VectorFltAVX, expr: "r1 = relu r1",
			expected: []string{"VXORPS Y2, Y2, Y2", "VMAXPS Y1, Y2, Y1"},
			keepsNaN: true,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			r := generate(t, newGenerator(t, tc.v, express.Float32, allFeatures), parse(t, express.Float32, tc.expr))
			require.Equal(t, tc.expected, listing(r))

			src := amd64.RegX0
			if strings.HasSuffix(tc.name, "in place") {
				src = amd64.RegX1
			}
			m := amd64test.NewMachine[float32]()
			m.SetRegister(src, input...)
			require.NoError(t, m.Run(r.Emissions()))
			actual := m.Register(amd64.RegX1)

			require.Equal(t, float32(0), actual[2])
			require.Equal(t, float32(2), actual[3])
			if tc.keepsNaN {
				require.True(t, math.IsNaN(float64(actual[0])))
				require.True(t, math.Signbit(float64(actual[1])))
			} else {
				require.Equal(t, float32(0), actual[0])
				require.False(t, math.Signbit(float64(actual[1])))
			}
		})
	}

	t.Run("memory", func(t *testing.T) {
		r := generate(t, newGenerator(t, ScalarFltAVX, express.Float64, allFeatures), parse(t, express.Float64, "r0 = relu [si]"))
		require.Equal(t, []string{"VXORPD X0, X0, X0", "VMAXSD (SI), X0, X0"}, listing(r))
	})
}

func TestGenerator_Generate_fused(t *testing.T) {
	for _, tc := range []struct {
		op       string
		inst     string
		expected float32
	}{
		// r0=2, r1=3, r2=5
		{op: "muladd132", inst: "VFMADD132PS", expected: 2*5 + 3},
		{op: "muladd213", inst: "VFMADD213PS", expected: 3*2 + 5},
		{op: "muladd231", inst: "VFMADD231PS", expected: 3*5 + 2},
		{op: "mulsub132", inst: "VFMSUB132PS", expected: 2*5 - 3},
		{op: "mulsub213", inst: "VFMSUB213PS", expected: 3*2 - 5},
		{op: "mulsub231", inst: "VFMSUB231PS", expected: 3*5 - 2},
	} {
		tc := tc
		t.Run(tc.op, func(t *testing.T) {
			g := newGenerator(t, VectorFltAVX, express.Float32, allFeatures)
			r := generate(t, g, parse(t, express.Float32, "r0 = "+tc.op+" r0, r1, r2"))
			require.Equal(t, []string{tc.inst + " Y2, Y1, Y0"}, listing(r))

			m := amd64test.NewMachine[float32]()
			m.SetRegister(amd64.RegY0, 2, 2, 2, 2, 2, 2, 2, 2)
			m.SetRegister(amd64.RegY1, 3, 3, 3, 3, 3, 3, 3, 3)
			m.SetRegister(amd64.RegY2, 5, 5, 5, 5, 5, 5, 5, 5)
			require.NoError(t, m.Run(r.Emissions()))
			for _, v := range m.Register(amd64.RegY0) {
				require.Equal(t, tc.expected, v)
			}
		})
	}

	t.Run("scalar memory", func(t *testing.T) {
		g := newGenerator(t, ScalarFltAVX, express.Float64, allFeatures)
		r := generate(t, g, parse(t, express.Float64, "r0 = muladd231 r0, r1, [si+8]"))
		require.Equal(t, []string{"VFMADD231SD 8(SI), X1, X0"}, listing(r))
	})

	t.Run("unsupported", func(t *testing.T) {
		expr := parse(t, express.Float32, "r0 = muladd231 r0, r1, r2")
		for _, tc := range []struct {
			v        Variant
			features platform.CpuFeatureFlags
			expErr   string
		}{
			{v: ScalarFltAVX, features: avxFeatures, expErr: "ScalarFltAVX: unsupported operation: op 0 (muladd231) requires fma"},
			{v: VectorFltAVX, features: avxFeatures, expErr: "VectorFltAVX: unsupported operation: op 0 (muladd231) requires fma"},
			{v: ScalarFltSSE, features: allFeatures, expErr: "ScalarFltSSE: unsupported operation: op 0 (muladd231)"},
			{v: VectorFltSSE, features: allFeatures, expErr: "VectorFltSSE: unsupported operation: op 0 (muladd231)"},
		} {
			g := newGenerator(t, tc.v, express.Float32, tc.features)
			r := amd64.NewRecorder(nil)
			err := g.Generate(expr, regindex.New(), r)
			require.ErrorIs(t, err, ErrUnsupportedOperation)
			require.EqualError(t, err, tc.expErr)
			require.Zero(t, r.Len())

			// Lowering without the check is a bug, never a silent decomposition.
			l := &lowering{g: g, a: r, index: regindex.New(), scratch: -1}
			require.PanicsWithError(t, tc.expErr, func() { l.lower(0, expr.Op(0)) })
		}
	})

	t.Run("result must be first argument", func(t *testing.T) {
		g := newGenerator(t, VectorFltAVX, express.Float32, allFeatures)
		err := g.Check(parse(t, express.Float32, "r3 = muladd231 r0, r1, r2"))
		require.EqualError(t, err, "VectorFltAVX: illegal operand shape: op 0 (r3 = muladd231 r0, r1, r2): fused result is not its first argument")
	})
}

func TestGenerator_Generate_vectorOps(t *testing.T) {
	for _, tc := range []struct {
		name     string
		v        Variant
		typ      express.Type
		expr     string
		expected []string
	}{
		{name: "shl sse", v: VectorFltSSE, typ: express.Float32, expr: "r1 = shl r0, $23", expected: []string{"MOVAPS X0, X1", "PSLLL $23, X1"}},
		{name: "shr sse in place", v: VectorFltSSE, typ: express.Float64, expr: "r0 = shr r0, $52", expected: []string{"PSRLQ $52, X0"}},
		{name: "shl sse memory", v: VectorFltSSE, typ: express.Float32, expr: "r0 = shl [si], $1", expected: []string{"MOVUPS (SI), X0", "PSLLL $1, X0"}},
		{name: "shl avx", v: VectorFltAVX, typ: express.Float32, expr: "r1 = shl r0, $23", expected: []string{"VPSLLD $23, Y0, Y1"}},
		{name: "shr avx memory", v: VectorFltAVX, typ: express.Float64, expr: "r0 = shr [si], $3", expected: []string{"VMOVUPD (SI), Y0", "VPSRLQ $3, Y0, Y0"}},
		{name: "floor sse", v: VectorFltSSE, typ: express.Float32, expr: "r1 = floor r0", expected: []string{"ROUNDPS $1, X0, X1"}},
		{name: "floor avx memory", v: VectorFltAVX, typ: express.Float64, expr: "r0 = floor [si]", expected: []string{"VROUNDPD $1, (SI), Y0"}},
		{name: "cvt sse", v: VectorFltSSE, typ: express.Float32, expr: "r1 = cvtfltint r0\nr2 = cvtintflt r1", expected: []string{"CVTTPS2PL X0, X1", "CVTPL2PS X1, X2"}},
		{name: "cvt avx double", v: VectorFltAVX, typ: express.Float64, expr: "r1 = cvtfltint r0\nr2 = cvtintflt r1", expected: []string{"VCVTTPD2DQY Y0, X1", "VCVTDQ2PD X1, Y2"}},
		{name: "subint sse", v: VectorFltSSE, typ: express.Float64, expr: "r0 = subint r0, r1", expected: []string{"PSUBQ X1, X0"}},
		{name: "subint avx", v: VectorFltAVX, typ: express.Float32, expr: "r2 = subint r0, [si]", expected: []string{"VPSUBD (SI), Y0, Y2"}},
		{name: "bitwise sse", v: VectorFltSSE, typ: express.Float32, expr: "r0 = and r0, r1\nr0 = or r0, r2\nr0 = andnot r0, r1", expected: []string{"ANDPS X1, X0", "ORPS X2, X0", "ANDNPS X1, X0"}},
		{name: "min max avx", v: VectorFltAVX, typ: express.Float64, expr: "r2 = min r0, r1\nr2 = max r2, [si]", expected: []string{"VMINPD Y1, Y0, Y2", "VMAXPD (SI), Y2, Y2"}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			r := generate(t, newGenerator(t, tc.v, tc.typ, allFeatures), parse(t, tc.typ, tc.expr))
			require.Equal(t, tc.expected, listing(r))
		})
	}

	t.Run("evaluate", func(t *testing.T) {
		g := newGenerator(t, VectorFltSSE, express.Float32, allFeatures)
		r := generate(t, g, parse(t, express.Float32, `
r1 = floor r0
r2 = cvtfltint r1
r2 = cvtintflt r2
`))
		m := amd64test.NewMachine[float32]()
		m.SetRegister(amd64.RegX0, 1.5, -1.5, 2, -0.25)
		require.NoError(t, m.Run(r.Emissions()))
		require.Equal(t, []float32{1, -2, 2, -1}, m.Register(amd64.RegX1))
		require.Equal(t, []float32{1, -2, 2, -1}, m.Register(amd64.RegX2))
	})

	t.Run("not on scalar", func(t *testing.T) {
		g := newGenerator(t, ScalarFltSSE, express.Float32, allFeatures)
		err := g.Check(parse(t, express.Float32, "r0 = floor r0"))
		require.EqualError(t, err, "ScalarFltSSE: unsupported operation: op 0 (floor)")
	})

	t.Run("floor needs sse4.1", func(t *testing.T) {
		g := newGenerator(t, VectorFltSSE, express.Float32, platform.NewCpuFeatureFlags(platform.CpuFeatureAmd64SSE2))
		err := g.Check(parse(t, express.Float32, "r0 = floor r0"))
		require.EqualError(t, err, "VectorFltSSE: unsupported operation: op 0 (floor) requires sse4.1")
	})
}

func TestGenerator_Check(t *testing.T) {
	g := newGenerator(t, ScalarFltAVX, express.Float32, allFeatures)

	err := g.Check(parse(t, express.Float64, "r0 = add r0, r1"))
	require.ErrorIs(t, err, ErrUnsupportedOperation)
	require.EqualError(t, err, "ScalarFltAVX: unsupported operation: float64 expression on a float32 generator")

	invalid := express.New(express.Float32)
	invalid.Emit(express.OpAdd, express.Reg(0), express.Reg(0))
	require.ErrorIs(t, g.Check(invalid), express.ErrInvalidOp)

	err = g.Check(parse(t, express.Float32, "[di] = add r0, r1"))
	require.EqualError(t, err, "ScalarFltAVX: illegal operand shape: op 0 ([di] = add r0, r1): memory result")

	err = g.Check(parse(t, express.Float32, "r0 = add [si], r1"))
	require.EqualError(t, err, "ScalarFltAVX: illegal operand shape: op 0 (r0 = add [si], r1): first argument is not a register")

	require.NoError(t, g.Check(parse(t, express.Float32, "r2 = add r0, [si]\nr2 = sub r2, r1")))
}

func TestSelect(t *testing.T) {
	sse := "r2 = mov [si]\nr1 = mov [di]\nr2 = add r2, r1\nr2 = relu r2"
	threeAddress := "r0 = mov [si]\nr1 = mov [di]\nr2 = add r0, r1\nr2 = relu r2"

	for _, tc := range []struct {
		name     string
		features platform.CpuFeatureFlags
		packing  express.Packing
		expr     string
		expected Variant
		expErr   string
	}{
		{name: "avx vector", features: allFeatures, packing: express.Vector, expr: sse, expected: VectorFltAVX},
		{name: "avx scalar", features: allFeatures, packing: express.Scalar, expr: threeAddress, expected: ScalarFltAVX},
		{name: "sse vector", features: sseFeatures, packing: express.Vector, expr: sse, expected: VectorFltSSE},
		{name: "sse scalar", features: sseFeatures, packing: express.Scalar, expr: sse, expected: ScalarFltSSE},
		{
			name: "falls back to sse", features: avxFeatures, packing: express.Vector,
			expr: sse + "\nr2 = shl r2, $1", expected: VectorFltSSE,
		},
		{
			name: "none", features: sseFeatures, packing: express.Vector, expr: threeAddress,
			expErr: "VectorFltSSE: illegal operand shape: op 2 (r2 = add r0, r1): three-address register, register",
		},
		{
			name: "no tier", features: platform.NewCpuFeatureFlags(platform.CpuFeatureAmd64SSE), packing: express.Vector, expr: sse,
			expErr: "VectorFltAVX: unsupported operation: requires avx",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			g, err := Select(tc.features, express.Float32, tc.packing, parse(t, express.Float32, tc.expr), WithConstantBase(amd64.RegR15))
			if tc.expErr != "" {
				require.EqualError(t, err, tc.expErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, g.Variant())
			require.Equal(t, tc.expected.String(), g.Name())
		})
	}
}

func TestGenerator_logging(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := logging.NewLogger(h, logging.LogScopeSelection|logging.LogScopeReservation)

	expr := parse(t, express.Float32, "r0 = mov [si]\nr0 = relu r0")
	g, err := Select(allFeatures, express.Float32, express.Vector, expr, WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, g.Generate(expr, regindex.New(), amd64.NewRecorder(nil)))

	out := buf.String()
	require.Contains(t, out, `msg="selected generator" variant=VectorFltAVX type=float32 scope=selection`)
	require.Contains(t, out, `msg="reserved registers" variant=VectorFltAVX count=2 scope=reservation`)
	require.NotContains(t, out, "lowered op")

	buf.Reset()
	g, err = New(VectorFltAVX, express.Float32, allFeatures, WithLogger(logging.NewLogger(h, logging.LogScopeLowering)))
	require.NoError(t, err)
	require.NoError(t, g.Generate(expr, regindex.New(), amd64.NewRecorder(nil)))
	out = buf.String()
	require.Contains(t, out, `msg="lowered op" variant=VectorFltAVX index=0 op="r0 = mov [si]" scope=lowering`)
	require.Contains(t, out, `msg="lowered op" variant=VectorFltAVX index=1 op="r0 = relu r0" scope=lowering`)
	require.NotContains(t, out, "selected generator")
}

func TestGenerator_Supports(t *testing.T) {
	count := func(g *Generator) (n int) {
		for _, op := range express.AllOpTypes() {
			if g.Supports(op) {
				n++
			}
		}
		return
	}
	require.Equal(t, 8, count(newGenerator(t, ScalarFltSSE, express.Float32, allFeatures)))
	require.Equal(t, 8, count(newGenerator(t, ScalarFltAVX, express.Float32, avxFeatures)))
	require.Equal(t, 14, count(newGenerator(t, ScalarFltAVX, express.Float32, allFeatures)))
	require.Equal(t, 21, count(newGenerator(t, VectorFltSSE, express.Float32, allFeatures)))
	require.Equal(t, 27, count(newGenerator(t, VectorFltAVX, express.Float32, allFeatures)))

	g := newGenerator(t, VectorFltSSE, express.Float32, platform.NewCpuFeatureFlags(platform.CpuFeatureAmd64SSE2))
	require.False(t, g.Supports(express.OpFloor))
	require.False(t, g.Supports(express.OpCmpLtOQ))
	require.True(t, g.Supports(express.OpCmpEqOQ))
}
