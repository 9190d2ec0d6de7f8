// Package amd64test evaluates the instruction streams recorded by package amd64
// so tests can check generated code without executing it.
package amd64test

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"github.com/exprjit/exprjit/internal/asm"
	"github.com/exprjit/exprjit/internal/asm/amd64"
)

// Machine evaluates a recorded instruction stream lane by lane, viewing every
// vector register as lanes of T. It covers the floating point, bitwise and
// lane integer instructions of package amd64.
type Machine[T constraints.Float] struct {
	// vec holds the 32 bytes of each Y register, whose lower half is the X register.
	vec [16][]T
	mem map[asm.Register][]byte
}

// NewMachine returns a Machine with all registers and memory zeroed.
func NewMachine[T constraints.Float]() *Machine[T] {
	m := &Machine[T]{mem: map[asm.Register][]byte{}}
	lanes := 32 / laneSize[T]()
	for i := range m.vec {
		m.vec[i] = make([]T, lanes)
	}
	return m
}

// SetRegister assigns the lower lanes of the X or Y register.
func (m *Machine[T]) SetRegister(reg asm.Register, lanes ...T) {
	copy(m.vec[vectorIndex(reg)], lanes)
}

// Register returns the lanes of the X or Y register.
func (m *Machine[T]) Register(reg asm.Register) []T {
	ret := make([]T, registerBytes(reg)/laneSize[T]())
	copy(ret, m.vec[vectorIndex(reg)])
	return ret
}

// SetMemory assigns the memory addressed by the general purpose register base.
func (m *Machine[T]) SetMemory(base asm.Register, lanes ...T) {
	b := make([]byte, len(lanes)*laneSize[T]())
	for i, v := range lanes {
		putLane(b[i*laneSize[T]():], v)
	}
	m.mem[base] = b
}

// SetMemoryBytes assigns the raw memory addressed by the general purpose register base,
// for example the contents of a constant pool.
func (m *Machine[T]) SetMemoryBytes(base asm.Register, b []byte) {
	m.mem[base] = append([]byte(nil), b...)
}

// Memory returns the memory addressed by base as lanes.
func (m *Machine[T]) Memory(base asm.Register) []T {
	b := m.mem[base]
	ret := make([]T, len(b)/laneSize[T]())
	for i := range ret {
		ret[i] = getLane[T](b[i*laneSize[T]():])
	}
	return ret
}

// Run evaluates the emissions in order.
func (m *Machine[T]) Run(emissions []amd64.Emission) error {
	for _, e := range emissions {
		if err := m.step(e); err != nil {
			return fmt.Errorf("%s: %w", e, err)
		}
	}
	return nil
}

type evalKind byte

const (
	evalNop evalKind = iota
	evalMove
	evalAdd
	evalSub
	evalMul
	evalDiv
	evalMin
	evalMax
	evalAnd
	evalAndNot
	evalOr
	evalXor
	evalFMAdd132
	evalFMAdd213
	evalFMAdd231
	evalFMSub132
	evalFMSub213
	evalFMSub231
	evalRound
	evalCmp
	evalCvtFltInt
	evalCvtIntFlt
	evalShl
	evalShr
	evalSubInt
)

type evalInfo struct {
	kind   evalKind
	scalar bool
}

func (i evalInfo) unary() bool {
	switch i.kind {
	case evalMove, evalRound, evalCvtFltInt, evalCvtIntFlt, evalShl, evalShr:
		return true
	}
	return false
}

var evalTable = map[asm.Instruction]evalInfo{
	amd64.NOP: {kind: evalNop}, amd64.VZEROUPPER: {kind: evalNop},

	amd64.MOVAPS: {kind: evalMove}, amd64.MOVAPD: {kind: evalMove}, amd64.MOVUPS: {kind: evalMove}, amd64.MOVUPD: {kind: evalMove},
	amd64.VMOVAPS: {kind: evalMove}, amd64.VMOVAPD: {kind: evalMove}, amd64.VMOVUPS: {kind: evalMove}, amd64.VMOVUPD: {kind: evalMove},
	amd64.MOVSS: {kind: evalMove, scalar: true}, amd64.MOVSD: {kind: evalMove, scalar: true},
	amd64.VMOVSS: {kind: evalMove, scalar: true}, amd64.VMOVSD: {kind: evalMove, scalar: true},

	amd64.ADDPS: {kind: evalAdd}, amd64.ADDPD: {kind: evalAdd}, amd64.ADDSS: {kind: evalAdd, scalar: true}, amd64.ADDSD: {kind: evalAdd, scalar: true},
	amd64.VADDPS: {kind: evalAdd}, amd64.VADDPD: {kind: evalAdd}, amd64.VADDSS: {kind: evalAdd, scalar: true}, amd64.VADDSD: {kind: evalAdd, scalar: true},
	amd64.SUBPS: {kind: evalSub}, amd64.SUBPD: {kind: evalSub}, amd64.SUBSS: {kind: evalSub, scalar: true}, amd64.SUBSD: {kind: evalSub, scalar: true},
	amd64.VSUBPS: {kind: evalSub}, amd64.VSUBPD: {kind: evalSub}, amd64.VSUBSS: {kind: evalSub, scalar: true}, amd64.VSUBSD: {kind: evalSub, scalar: true},
	amd64.MULPS: {kind: evalMul}, amd64.MULPD: {kind: evalMul}, amd64.MULSS: {kind: evalMul, scalar: true}, amd64.MULSD: {kind: evalMul, scalar: true},
	amd64.VMULPS: {kind: evalMul}, amd64.VMULPD: {kind: evalMul}, amd64.VMULSS: {kind: evalMul, scalar: true}, amd64.VMULSD: {kind: evalMul, scalar: true},
	amd64.DIVPS: {kind: evalDiv}, amd64.DIVPD: {kind: evalDiv}, amd64.DIVSS: {kind: evalDiv, scalar: true}, amd64.DIVSD: {kind: evalDiv, scalar: true},
	amd64.VDIVPS: {kind: evalDiv}, amd64.VDIVPD: {kind: evalDiv}, amd64.VDIVSS: {kind: evalDiv, scalar: true}, amd64.VDIVSD: {kind: evalDiv, scalar: true},
	amd64.MINPS: {kind: evalMin}, amd64.MINPD: {kind: evalMin}, amd64.MINSS: {kind: evalMin, scalar: true}, amd64.MINSD: {kind: evalMin, scalar: true},
	amd64.VMINPS: {kind: evalMin}, amd64.VMINPD: {kind: evalMin}, amd64.VMINSS: {kind: evalMin, scalar: true}, amd64.VMINSD: {kind: evalMin, scalar: true},
	amd64.MAXPS: {kind: evalMax}, amd64.MAXPD: {kind: evalMax}, amd64.MAXSS: {kind: evalMax, scalar: true}, amd64.MAXSD: {kind: evalMax, scalar: true},
	amd64.VMAXPS: {kind: evalMax}, amd64.VMAXPD: {kind: evalMax}, amd64.VMAXSS: {kind: evalMax, scalar: true}, amd64.VMAXSD: {kind: evalMax, scalar: true},

	amd64.ANDPS: {kind: evalAnd}, amd64.ANDPD: {kind: evalAnd}, amd64.VANDPS: {kind: evalAnd}, amd64.VANDPD: {kind: evalAnd},
	amd64.ANDNPS: {kind: evalAndNot}, amd64.ANDNPD: {kind: evalAndNot}, amd64.VANDNPS: {kind: evalAndNot}, amd64.VANDNPD: {kind: evalAndNot},
	amd64.ORPS: {kind: evalOr}, amd64.ORPD: {kind: evalOr}, amd64.VORPS: {kind: evalOr}, amd64.VORPD: {kind: evalOr},
	amd64.XORPS: {kind: evalXor}, amd64.XORPD: {kind: evalXor}, amd64.VXORPS: {kind: evalXor}, amd64.VXORPD: {kind: evalXor},

	amd64.VFMADD132PS: {kind: evalFMAdd132}, amd64.VFMADD132PD: {kind: evalFMAdd132},
	amd64.VFMADD132SS: {kind: evalFMAdd132, scalar: true}, amd64.VFMADD132SD: {kind: evalFMAdd132, scalar: true},
	amd64.VFMADD213PS: {kind: evalFMAdd213}, amd64.VFMADD213PD: {kind: evalFMAdd213},
	amd64.VFMADD213SS: {kind: evalFMAdd213, scalar: true}, amd64.VFMADD213SD: {kind: evalFMAdd213, scalar: true},
	amd64.VFMADD231PS: {kind: evalFMAdd231}, amd64.VFMADD231PD: {kind: evalFMAdd231},
	amd64.VFMADD231SS: {kind: evalFMAdd231, scalar: true}, amd64.VFMADD231SD: {kind: evalFMAdd231, scalar: true},
	amd64.VFMSUB132PS: {kind: evalFMSub132}, amd64.VFMSUB132PD: {kind: evalFMSub132},
	amd64.VFMSUB132SS: {kind: evalFMSub132, scalar: true}, amd64.VFMSUB132SD: {kind: evalFMSub132, scalar: true},
	amd64.VFMSUB213PS: {kind: evalFMSub213}, amd64.VFMSUB213PD: {kind: evalFMSub213},
	amd64.VFMSUB213SS: {kind: evalFMSub213, scalar: true}, amd64.VFMSUB213SD: {kind: evalFMSub213, scalar: true},
	amd64.VFMSUB231PS: {kind: evalFMSub231}, amd64.VFMSUB231PD: {kind: evalFMSub231},
	amd64.VFMSUB231SS: {kind: evalFMSub231, scalar: true}, amd64.VFMSUB231SD: {kind: evalFMSub231, scalar: true},

	amd64.ROUNDPS: {kind: evalRound}, amd64.ROUNDPD: {kind: evalRound}, amd64.VROUNDPS: {kind: evalRound}, amd64.VROUNDPD: {kind: evalRound},
	amd64.CMPPS: {kind: evalCmp}, amd64.CMPPD: {kind: evalCmp}, amd64.VCMPPS: {kind: evalCmp}, amd64.VCMPPD: {kind: evalCmp},
	amd64.CVTTPS2PL: {kind: evalCvtFltInt}, amd64.VCVTTPS2DQ: {kind: evalCvtFltInt},
	amd64.CVTPL2PS: {kind: evalCvtIntFlt}, amd64.VCVTDQ2PS: {kind: evalCvtIntFlt},
	amd64.PSLLL: {kind: evalShl}, amd64.PSLLQ: {kind: evalShl}, amd64.VPSLLD: {kind: evalShl}, amd64.VPSLLQ: {kind: evalShl},
	amd64.PSRLL: {kind: evalShr}, amd64.PSRLQ: {kind: evalShr}, amd64.VPSRLD: {kind: evalShr}, amd64.VPSRLQ: {kind: evalShr},
	amd64.PSUBL: {kind: evalSubInt}, amd64.PSUBQ: {kind: evalSubInt}, amd64.VPSUBD: {kind: evalSubInt}, amd64.VPSUBQ: {kind: evalSubInt},
}

func (m *Machine[T]) step(e amd64.Emission) error {
	info, ok := evalTable[e.Instruction]
	if !ok {
		return fmt.Errorf("instruction %s cannot be evaluated", amd64.InstructionName(e.Instruction))
	}
	if info.kind == evalNop {
		return nil
	}

	ops := e.Operands
	var imm asm.ConstantValue
	if n := len(ops); n > 0 && ops[0].Kind == amd64.OperandKindConst {
		imm, ops = ops[0].Offset, ops[1:]
	} else if n > 0 && ops[n-1].Kind == amd64.OperandKindConst {
		// Legacy compares carry the predicate last.
		imm, ops = ops[n-1].Offset, ops[:n-1]
	}
	if len(ops) == 0 {
		return fmt.Errorf("missing operands")
	}

	// a and b are the first and second sources in Intel operand order.
	dst := ops[len(ops)-1]
	var a, b amd64.Operand
	switch {
	case len(ops) == 1:
		a = dst
	case len(ops) == 2 && info.unary():
		a = ops[0]
	case len(ops) == 2:
		a, b = dst, ops[0]
	case len(ops) == 3:
		a, b = ops[1], ops[0]
	default:
		return fmt.Errorf("unexpected number of operands %d", len(e.Operands))
	}

	width := 0
	for _, o := range ops {
		if o.Kind == amd64.OperandKindRegister {
			width = registerBytes(o.Reg)
			break
		}
	}
	if width == 0 {
		return fmt.Errorf("no register operand")
	}
	n := width / laneSize[T]()
	if info.scalar {
		n = 1
	}

	av, err := m.read(a, n)
	if err != nil {
		return err
	}
	var bv, cv []T
	if b.Kind != 0 {
		if bv, err = m.read(b, n); err != nil {
			return err
		}
	}
	if dst.Kind == amd64.OperandKindRegister {
		cv = m.vec[vectorIndex(dst.Reg)][:n]
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		var bl, cl T
		if bv != nil {
			bl = bv[i]
		}
		if cv != nil {
			cl = cv[i]
		}
		if result[i], err = evalLane(info.kind, av[i], bl, cl, imm); err != nil {
			return err
		}
	}

	if dst.Kind == amd64.OperandKindMemory {
		return m.write(dst, result)
	}
	lanes := m.vec[vectorIndex(dst.Reg)]
	if info.kind == evalMove && info.scalar && a.Kind == amd64.OperandKindMemory {
		// Scalar loads zero the rest of the register.
		for i := range lanes[:width/laneSize[T]()] {
			lanes[i] = 0
		}
	}
	copy(lanes, result)
	return nil
}

func evalLane[T constraints.Float](kind evalKind, a, b, c T, imm asm.ConstantValue) (T, error) {
	switch kind {
	case evalMove:
		return a, nil
	case evalAdd:
		return a + b, nil
	case evalSub:
		return a - b, nil
	case evalMul:
		return a * b, nil
	case evalDiv:
		return a / b, nil
	case evalMin:
		// The second source is returned unless the first is strictly smaller.
		if a < b {
			return a, nil
		}
		return b, nil
	case evalMax:
		// The second source is returned unless the first is strictly greater.
		if a > b {
			return a, nil
		}
		return b, nil
	case evalAnd:
		return fromBits[T](toBits(a) & toBits(b)), nil
	case evalAndNot:
		return fromBits[T](^toBits(a) & toBits(b)), nil
	case evalOr:
		return fromBits[T](toBits(a) | toBits(b)), nil
	case evalXor:
		return fromBits[T](toBits(a) ^ toBits(b)), nil
	case evalFMAdd132:
		return c*b + a, nil
	case evalFMAdd213:
		return a*c + b, nil
	case evalFMAdd231:
		return a*b + c, nil
	case evalFMSub132:
		return c*b - a, nil
	case evalFMSub213:
		return a*c - b, nil
	case evalFMSub231:
		return a*b - c, nil
	case evalRound:
		switch imm & 0x3 {
		case asm.ConstantValue(amd64.RoundModeNearest):
			return T(math.RoundToEven(float64(a))), nil
		case asm.ConstantValue(amd64.RoundModeDown):
			return T(math.Floor(float64(a))), nil
		case asm.ConstantValue(amd64.RoundModeUp):
			return T(math.Ceil(float64(a))), nil
		default:
			return T(math.Trunc(float64(a))), nil
		}
	case evalCmp:
		var ok bool
		switch amd64.Predicate(imm) {
		case amd64.PredicateEqualOrderedQuiet:
			ok = a == b
		case amd64.PredicateLessThanOrderedQuiet:
			ok = a < b
		case amd64.PredicateGreaterThanOrderedQuiet:
			ok = a > b
		case amd64.PredicateNotGreaterEqualUnorderedQuiet:
			ok = !(a >= b)
		default:
			return 0, fmt.Errorf("predicate %d cannot be evaluated", imm)
		}
		if ok {
			return fromBits[T](math.MaxUint64), nil
		}
		return 0, nil
	case evalCvtFltInt:
		if laneSize[T]() != 4 {
			return 0, fmt.Errorf("conversion of 64-bit lanes cannot be evaluated")
		}
		f := math.Trunc(float64(a))
		i := int32(math.MinInt32)
		if f >= math.MinInt32 && f <= math.MaxInt32 {
			i = int32(f)
		}
		return fromBits[T](uint64(uint32(i))), nil
	case evalCvtIntFlt:
		if laneSize[T]() != 4 {
			return 0, fmt.Errorf("conversion of 64-bit lanes cannot be evaluated")
		}
		return T(int32(uint32(toBits(a)))), nil
	case evalShl:
		if imm >= asm.ConstantValue(laneSize[T]()*8) {
			return 0, nil
		}
		return fromBits[T](toBits(a) << uint(imm)), nil
	case evalShr:
		if imm >= asm.ConstantValue(laneSize[T]()*8) {
			return 0, nil
		}
		return fromBits[T](toBits(a) >> uint(imm)), nil
	case evalSubInt:
		return fromBits[T](toBits(a) - toBits(b)), nil
	}
	return 0, fmt.Errorf("unknown evaluation kind %d", kind)
}

func (m *Machine[T]) read(o amd64.Operand, n int) ([]T, error) {
	switch o.Kind {
	case amd64.OperandKindRegister:
		ret := make([]T, n)
		copy(ret, m.vec[vectorIndex(o.Reg)])
		return ret, nil
	case amd64.OperandKindMemory:
		if o.Index != asm.NilRegister {
			return nil, fmt.Errorf("indexed memory cannot be evaluated")
		}
		b := m.mem[o.Reg]
		size := laneSize[T]()
		if o.Offset < 0 || int(o.Offset)+n*size > len(b) {
			return nil, fmt.Errorf("memory %s out of range", o)
		}
		ret := make([]T, n)
		for i := range ret {
			ret[i] = getLane[T](b[int(o.Offset)+i*size:])
		}
		return ret, nil
	}
	return nil, fmt.Errorf("operand %s cannot be read", o)
}

func (m *Machine[T]) write(o amd64.Operand, lanes []T) error {
	if o.Index != asm.NilRegister {
		return fmt.Errorf("indexed memory cannot be evaluated")
	}
	size := laneSize[T]()
	end := int(o.Offset) + len(lanes)*size
	if o.Offset < 0 {
		return fmt.Errorf("memory %s out of range", o)
	}
	b := m.mem[o.Reg]
	if len(b) < end {
		b = append(b, make([]byte, end-len(b))...)
	}
	for i, v := range lanes {
		putLane(b[int(o.Offset)+i*size:], v)
	}
	m.mem[o.Reg] = b
	return nil
}

func vectorIndex(reg asm.Register) int {
	switch {
	case amd64.IsXMM(reg):
		return int(reg - amd64.RegX0)
	case amd64.IsYMM(reg):
		return int(reg - amd64.RegY0)
	}
	panic("BUG: " + amd64.RegisterName(reg) + " is not a vector register")
}

func registerBytes(reg asm.Register) int {
	if amd64.IsYMM(reg) {
		return 32
	}
	return 16
}

func laneSize[T constraints.Float]() int {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return 4
	}
	return 8
}

func toBits[T constraints.Float](v T) uint64 {
	switch x := any(v).(type) {
	case float32:
		return uint64(math.Float32bits(x))
	case float64:
		return math.Float64bits(x)
	}
	panic("BUG: unsupported lane type")
}

func fromBits[T constraints.Float](bits uint64) T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(math.Float32frombits(uint32(bits))).(T)
	case float64:
		return any(math.Float64frombits(bits)).(T)
	}
	panic("BUG: unsupported lane type")
}

func getLane[T constraints.Float](b []byte) T {
	if laneSize[T]() == 4 {
		return fromBits[T](uint64(binary.LittleEndian.Uint32(b)))
	}
	return fromBits[T](binary.LittleEndian.Uint64(b))
}

func putLane[T constraints.Float](b []byte, v T) {
	if laneSize[T]() == 4 {
		binary.LittleEndian.PutUint32(b, uint32(toBits(v)))
		return
	}
	binary.LittleEndian.PutUint64(b, toBits(v))
}
