package generator

import (
	"fmt"

	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/platform"
)

// Variant is one of the code generation strategies. The set is closed.
type Variant byte

const (
	// ScalarFltSSE lowers scalar code with legacy SSE instructions on XMM registers.
	ScalarFltSSE Variant = iota
	// ScalarFltAVX lowers scalar code with VEX-encoded instructions on XMM registers,
	// and fused multiply operations when FMA3 is present.
	ScalarFltAVX
	// VectorFltSSE lowers 128-bit vector code with legacy SSE instructions on XMM registers.
	VectorFltSSE
	// VectorFltAVX lowers 256-bit vector code with VEX-encoded instructions on YMM registers,
	// and fused multiply operations when FMA3 is present.
	VectorFltAVX

	variantEnd
)

type variantInfo struct {
	name     string
	packing  express.Packing
	vex      bool
	requires platform.CpuFeature
	// vectorBytes is the width of one operand in bytes for vector packing.
	vectorBytes int
}

var variants = [...]variantInfo{
	ScalarFltSSE: {name: "ScalarFltSSE", packing: express.Scalar, requires: platform.CpuFeatureAmd64SSE2, vectorBytes: 16},
	ScalarFltAVX: {name: "ScalarFltAVX", packing: express.Scalar, vex: true, requires: platform.CpuFeatureAmd64AVX, vectorBytes: 16},
	VectorFltSSE: {name: "VectorFltSSE", packing: express.Vector, requires: platform.CpuFeatureAmd64SSE2, vectorBytes: 16},
	VectorFltAVX: {name: "VectorFltAVX", packing: express.Vector, vex: true, requires: platform.CpuFeatureAmd64AVX, vectorBytes: 32},
}

// String returns the name of the variant, e.g. "VectorFltAVX".
func (v Variant) String() string {
	if v < variantEnd {
		return variants[v].name
	}
	return fmt.Sprintf("<unknown variant %d>", byte(v))
}

// Packing returns the packing the variant commits to.
func (v Variant) Packing() express.Packing {
	return variants[v].packing
}

// Requires returns the CPU feature without which the variant cannot be constructed.
func (v Variant) Requires() platform.CpuFeature {
	return variants[v].requires
}

// VEX returns true if the variant emits VEX-encoded three-address instructions.
func (v Variant) VEX() bool {
	return variants[v].vex
}

// AllVariants returns every variant in declaration order.
func AllVariants() []Variant {
	return []Variant{ScalarFltSSE, ScalarFltAVX, VectorFltSSE, VectorFltAVX}
}

// VariantByName returns the variant named name, as returned by Variant.String.
func VariantByName(name string) (Variant, bool) {
	for _, v := range AllVariants() {
		if v.String() == name {
			return v, true
		}
	}
	return 0, false
}

// Candidates returns the variants of the packing in preference order.
func Candidates(packing express.Packing) []Variant {
	if packing == express.Vector {
		return []Variant{VectorFltAVX, VectorFltSSE}
	}
	return []Variant{ScalarFltAVX, ScalarFltSSE}
}

// newModel returns the model of the variant on a CPU with the features.
func newModel(v Variant, features platform.CpuFeatureFlags) (m Model) {
	m.MovRegReg = true
	m.MovRegImm = true
	m.MovRegMem = true
	m.MovMemReg = true
	m.OpRegReg = true
	m.OpRegMem = true
	m.FuncRegReg = true
	m.FuncRegMem = true
	switch v {
	case ScalarFltSSE:
	case ScalarFltAVX:
		m.OpRegRegReg = true
		m.OpRegRegMem = true
		if features.Has(platform.CpuFeatureAmd64FMA3) {
			m.FmRegRegReg = true
			m.FmRegRegMem = true
		}
	case VectorFltSSE:
		m.OpRegImm = true
		m.FuncRegImm = true
	case VectorFltAVX:
		m.OpRegImm = true
		m.FuncRegImm = true
		m.OpRegRegReg = true
		m.OpRegRegImm = true
		m.OpRegRegMem = true
		if features.Has(platform.CpuFeatureAmd64FMA3) {
			m.FmRegRegReg = true
			m.FmRegRegImm = true
			m.FmRegRegMem = true
		}
	default:
		panic(fmt.Sprintf("BUG: unknown variant %d", v))
	}
	return
}

// supports returns true if the variant has a lowering for the op type at all,
// regardless of CPU features.
func supports(v Variant, t express.OpType) bool {
	switch t {
	case express.OpMov, express.OpAdd, express.OpSub, express.OpMul, express.OpDiv,
		express.OpMin, express.OpMax, express.OpRelu:
		return true
	case express.OpMulAdd132, express.OpMulAdd213, express.OpMulAdd231,
		express.OpMulSub132, express.OpMulSub213, express.OpMulSub231:
		return v == ScalarFltAVX || v == VectorFltAVX
	case express.OpAnd, express.OpOr, express.OpAndNot, express.OpShl, express.OpShr,
		express.OpFloor, express.OpCvtFltInt, express.OpCvtIntFlt, express.OpSubInt,
		express.OpCmpEqOQ, express.OpCmpLtOQ, express.OpCmpGtOQ, express.OpCmpNgeUQ:
		return v.Packing() == express.Vector
	}
	return false
}

// requiredFeature returns the CPU feature the op needs on the variant beyond
// the one the variant itself requires, or zero.
func requiredFeature(v Variant, t express.OpType) platform.CpuFeature {
	switch {
	case t.IsFused():
		return platform.CpuFeatureAmd64FMA3
	case v == VectorFltSSE && t == express.OpFloor:
		return platform.CpuFeatureAmd64SSE4_1
	case v == VectorFltSSE && t.IsCompare() && predicates[t] > legacyPredicateMax:
		return platform.CpuFeatureAmd64AVX
	case v == VectorFltAVX && (t.IsShift() || t == express.OpSubInt):
		return platform.CpuFeatureAmd64AVX2
	}
	return 0
}
