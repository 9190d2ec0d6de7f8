package express

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the kind of an Operand.
type Kind byte

const (
	// KindNone is the zero Operand, which is invalid wherever an operand is required.
	KindNone Kind = iota
	// KindRegister is a logical register slot.
	KindRegister
	// KindMemory is a memory location.
	KindMemory
	// KindImmediate is a compile-time constant.
	KindImmediate
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRegister:
		return "register"
	case KindMemory:
		return "memory"
	case KindImmediate:
		return "immediate"
	}
	return fmt.Sprintf("<unknown kind %d>", byte(k))
}

// GPRegister is a physical general purpose register used to address memory.
type GPRegister byte

const (
	// GPNone means no register.
	GPNone GPRegister = iota
	GPAX
	GPCX
	GPDX
	GPBX
	GPSP
	GPBP
	GPSI
	GPDI
	GPR8
	GPR9
	GPR10
	GPR11
	GPR12
	GPR13
	GPR14
	GPR15
)

var gpRegisterNames = [...]string{
	GPNone: "", GPAX: "ax", GPCX: "cx", GPDX: "dx", GPBX: "bx", GPSP: "sp", GPBP: "bp", GPSI: "si", GPDI: "di",
	GPR8: "r8", GPR9: "r9", GPR10: "r10", GPR11: "r11", GPR12: "r12", GPR13: "r13", GPR14: "r14", GPR15: "r15",
}

// String returns the lowercase name, e.g. "si".
func (r GPRegister) String() string {
	if int(r) < len(gpRegisterNames) {
		return gpRegisterNames[r]
	}
	return fmt.Sprintf("<unknown gp %d>", byte(r))
}

// GPRegisterByName returns the register named name, as returned by GPRegister.String.
func GPRegisterByName(name string) (GPRegister, bool) {
	for r := GPAX; int(r) < len(gpRegisterNames); r++ {
		if gpRegisterNames[r] == name {
			return r, true
		}
	}
	return GPNone, false
}

// Address is the memory location Base + Index*Scale + Disp.
type Address struct {
	Base GPRegister
	// Index is GPNone when there is no index.
	Index GPRegister
	// Scale is one of 1, 2, 4, 8 when Index is present.
	Scale uint8
	Disp  int32
}

// String renders the address as in "[si+cx*4+16]".
func (a Address) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(a.Base.String())
	if a.Index != GPNone {
		sb.WriteString(fmt.Sprintf("+%s*%d", a.Index, a.Scale))
	}
	switch {
	case a.Disp > 0:
		sb.WriteString(fmt.Sprintf("+%d", a.Disp))
	case a.Disp < 0:
		sb.WriteString(fmt.Sprintf("%d", a.Disp))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Operand is a register, memory or immediate operand. The zero value is KindNone.
type Operand struct {
	Kind Kind
	// Reg is the logical register slot of KindRegister.
	Reg int
	// Addr is the location of KindMemory.
	Addr Address
	// Imm is the value of KindImmediate.
	Imm float64
	// Count marks a KindImmediate as an integer bit count rather than a float constant.
	Count bool
}

// Reg returns the operand of logical register slot i.
func Reg(i int) Operand {
	return Operand{Kind: KindRegister, Reg: i}
}

// Mem returns the memory operand at a.
func Mem(a Address) Operand {
	return Operand{Kind: KindMemory, Addr: a}
}

// Imm returns a float constant operand.
func Imm(v float64) Operand {
	return Operand{Kind: KindImmediate, Imm: v}
}

// Count returns an integer count operand for shifts.
func Count(n int) Operand {
	return Operand{Kind: KindImmediate, Imm: float64(n), Count: true}
}

// IsRegister returns true for KindRegister.
func (o Operand) IsRegister() bool { return o.Kind == KindRegister }

// IsMemory returns true for KindMemory.
func (o Operand) IsMemory() bool { return o.Kind == KindMemory }

// IsImmediate returns true for KindImmediate.
func (o Operand) IsImmediate() bool { return o.Kind == KindImmediate }

// IsZero returns true for an immediate whose bits are all zero. Negative zero is not.
func (o Operand) IsZero() bool {
	return o.Kind == KindImmediate && math.Float64bits(o.Imm) == 0
}

// SameRegister returns true if both are the same logical register.
func (o Operand) SameRegister(other Operand) bool {
	return o.Kind == KindRegister && other.Kind == KindRegister && o.Reg == other.Reg
}

// String renders the operand in the listing format: "r3", "[si+16]", "#1.5" or "$23".
func (o Operand) String() string {
	switch o.Kind {
	case KindRegister:
		return "r" + strconv.Itoa(o.Reg)
	case KindMemory:
		return o.Addr.String()
	case KindImmediate:
		if o.Count {
			return "$" + strconv.FormatInt(int64(o.Imm), 10)
		}
		return "#" + strconv.FormatFloat(o.Imm, 'g', -1, 64)
	}
	return "_"
}

// Type is the element type of an expression.
type Type byte

const (
	Float32 Type = iota
	Float64
)

// String implements fmt.Stringer.
func (t Type) String() string {
	if t == Float64 {
		return "float64"
	}
	return "float32"
}

// Size returns the size of an element in bytes.
func (t Type) Size() int {
	if t == Float64 {
		return 8
	}
	return 4
}

// ParseType parses "float32" or "float64" (also "f32" and "f64").
func ParseType(s string) (Type, error) {
	switch s {
	case "float32", "f32":
		return Float32, nil
	case "float64", "f64":
		return Float64, nil
	}
	return 0, fmt.Errorf("unknown element type %q", s)
}

// Packing is the number of elements an instruction processes per register.
type Packing byte

const (
	// Scalar processes one element per register.
	Scalar Packing = iota
	// Vector processes the full width of the register.
	Vector
)

// String implements fmt.Stringer.
func (p Packing) String() string {
	if p == Vector {
		return "vector"
	}
	return "scalar"
}

// ParsePacking parses "scalar" or "vector".
func ParsePacking(s string) (Packing, error) {
	switch s {
	case "scalar":
		return Scalar, nil
	case "vector":
		return Vector, nil
	}
	return 0, fmt.Errorf("unknown packing %q", s)
}
