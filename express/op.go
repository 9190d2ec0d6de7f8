package express

import "fmt"

// OpType is the kind of a micro-operation.
type OpType byte

const (
	// OpMov copies Args[0] into Result.
	OpMov OpType = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMin
	OpMax
	// OpRelu computes max(0, Args[0]).
	OpRelu
	// OpMulAdd132 computes a0 = a0*a2 + a1.
	OpMulAdd132
	// OpMulAdd213 computes a0 = a1*a0 + a2.
	OpMulAdd213
	// OpMulAdd231 computes a0 = a1*a2 + a0.
	OpMulAdd231
	// OpMulSub132 computes a0 = a0*a2 - a1.
	OpMulSub132
	// OpMulSub213 computes a0 = a1*a0 - a2.
	OpMulSub213
	// OpMulSub231 computes a0 = a1*a2 - a0.
	OpMulSub231
	OpAnd
	OpOr
	// OpAndNot computes ^Args[0] & Args[1].
	OpAndNot
	// OpShl shifts each lane of Args[0] left by the count in Args[1].
	OpShl
	// OpShr shifts each lane of Args[0] right by the count in Args[1], filling with zeros.
	OpShr
	// OpFloor rounds each lane toward negative infinity.
	OpFloor
	// OpCvtFltInt converts each lane to a signed integer of the lane width, truncating.
	OpCvtFltInt
	// OpCvtIntFlt converts each signed integer lane to a float.
	OpCvtIntFlt
	// OpSubInt subtracts integer lanes.
	OpSubInt
	// OpCmpEqOQ compares for equal, ordered and non-signaling.
	OpCmpEqOQ
	// OpCmpLtOQ compares for less-than, ordered and non-signaling.
	OpCmpLtOQ
	// OpCmpGtOQ compares for greater-than, ordered and non-signaling.
	OpCmpGtOQ
	// OpCmpNgeUQ compares for not-greater-or-equal, unordered and non-signaling.
	OpCmpNgeUQ

	// opTypeEnd is always placed at the bottom of this iota definition to be used in the test.
	opTypeEnd
)

var opTypeNames = [...]string{
	OpMov:       "mov",
	OpAdd:       "add",
	OpSub:       "sub",
	OpMul:       "mul",
	OpDiv:       "div",
	OpMin:       "min",
	OpMax:       "max",
	OpRelu:      "relu",
	OpMulAdd132: "muladd132",
	OpMulAdd213: "muladd213",
	OpMulAdd231: "muladd231",
	OpMulSub132: "mulsub132",
	OpMulSub213: "mulsub213",
	OpMulSub231: "mulsub231",
	OpAnd:       "and",
	OpOr:        "or",
	OpAndNot:    "andnot",
	OpShl:       "shl",
	OpShr:       "shr",
	OpFloor:     "floor",
	OpCvtFltInt: "cvtfltint",
	OpCvtIntFlt: "cvtintflt",
	OpSubInt:    "subint",
	OpCmpEqOQ:   "cmpeqoq",
	OpCmpLtOQ:   "cmpltoq",
	OpCmpGtOQ:   "cmpgtoq",
	OpCmpNgeUQ:  "cmpngeuq",
}

// String returns the mnemonic of the type used in listings, e.g. "muladd231".
func (t OpType) String() string {
	if t < opTypeEnd {
		return opTypeNames[t]
	}
	return fmt.Sprintf("<unknown op %d>", byte(t))
}

// OpTypeByName returns the type of the mnemonic as returned by OpType.String.
func OpTypeByName(name string) (OpType, bool) {
	for t := OpType(0); t < opTypeEnd; t++ {
		if opTypeNames[t] == name {
			return t, true
		}
	}
	return 0, false
}

// AllOpTypes returns every type in declaration order.
func AllOpTypes() []OpType {
	ret := make([]OpType, 0, opTypeEnd)
	for t := OpType(0); t < opTypeEnd; t++ {
		ret = append(ret, t)
	}
	return ret
}

// Arity returns the number of Args an op of this type has.
func (t OpType) Arity() int {
	switch {
	case t.IsUnary():
		return 1
	case t.IsFused():
		return 3
	default:
		return 2
	}
}

// IsUnary returns true for the types with a single argument.
func (t OpType) IsUnary() bool {
	switch t {
	case OpMov, OpRelu, OpFloor, OpCvtFltInt, OpCvtIntFlt:
		return true
	}
	return false
}

// IsFused returns true for the fused multiply-add and multiply-subtract types.
func (t OpType) IsFused() bool {
	return OpMulAdd132 <= t && t <= OpMulSub231
}

// IsCompare returns true for the comparisons.
func (t OpType) IsCompare() bool {
	return OpCmpEqOQ <= t && t <= OpCmpNgeUQ
}

// IsShift returns true for the shifts by an immediate count.
func (t OpType) IsShift() bool {
	return t == OpShl || t == OpShr
}

// Op is a micro-operation.
type Op struct {
	Type   OpType
	Result Operand
	// Args are the inputs in role order. Args[0] is the primary source.
	Args []Operand
}

// Clone returns a copy of op which shares no memory with it.
func (op Op) Clone() Op {
	op.Args = append([]Operand(nil), op.Args...)
	return op
}

// String renders op in the listing format, e.g. "r2 = add r0, r1".
func (op Op) String() string {
	s := op.Result.String() + " = " + op.Type.String()
	for i, a := range op.Args {
		if i == 0 {
			s += " "
		} else {
			s += ", "
		}
		s += a.String()
	}
	return s
}
