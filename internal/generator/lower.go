package generator

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/asm"
	"github.com/exprjit/exprjit/internal/asm/amd64"
)

// lowering holds the state of one Generate call.
type lowering struct {
	g     *Generator
	a     amd64.Assembler
	index RegisterIndex
	// scratch is the slot of the scratch register, or -1.
	scratch int
}

// source is a resolved argument: a register, or a memory location which may
// be a constant pool entry.
type source struct {
	reg   asm.Register
	mem   bool
	base  asm.Register
	disp  asm.ConstantValue
	idx   asm.Register
	scale int16
}

func (l *lowering) slot(i int) asm.Register {
	reg := l.index.XMM(i)
	if l.g.variant == VectorFltAVX {
		reg = amd64.YMM(reg)
	}
	return reg
}

func (l *lowering) reg(o express.Operand) asm.Register {
	if !o.IsRegister() {
		panic(fmt.Sprintf("BUG: %s is not a register", o))
	}
	return l.slot(o.Reg)
}

func (l *lowering) source(o express.Operand) source {
	switch o.Kind {
	case express.KindRegister:
		return source{reg: l.reg(o)}
	case express.KindMemory:
		return l.address(o.Addr)
	case express.KindImmediate:
		return l.constant(o.Imm)
	}
	panic(fmt.Sprintf("BUG: unresolved operand %s", o))
}

func (l *lowering) address(a express.Address) source {
	s := source{mem: true, base: gpRegisters[a.Base], disp: asm.ConstantValue(a.Disp)}
	if a.Index != express.GPNone {
		s.idx = gpRegisters[a.Index]
		s.scale = int16(a.Scale)
	}
	return s
}

// constant adds v broadcast to the operand width into the constant pool, and
// returns its location relative to the constant base register.
func (l *lowering) constant(v float64) source {
	if l.g.constantBase == asm.NilRegister {
		panic("BUG: constant without a constant base register")
	}
	size, width := l.g.typ.Size(), l.g.Width()
	raw := make([]byte, width)
	for off := 0; off < width; off += size {
		if l.g.typ == express.Float64 {
			binary.LittleEndian.PutUint64(raw[off:], math.Float64bits(v))
		} else {
			binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(float32(v)))
		}
	}
	c := l.a.StaticConstPool().AddConst(asm.NewStaticConst(raw), width)
	return source{mem: true, base: l.g.constantBase, disp: asm.ConstantValue(c.OffsetInPool)}
}

func (l *lowering) set() *instructionSet {
	return instructionSets[l.g.variant]
}

func (l *lowering) inst(i insts) asm.Instruction {
	inst := i[l.g.typ]
	if inst == amd64.NONE {
		panic(fmt.Sprintf("BUG: no %s instruction on %s", l.g.typ, l.g.variant))
	}
	return inst
}

// op2 emits the two-address form `dst = dst OP s`, or a move when inst is one.
func (l *lowering) op2(inst asm.Instruction, s source, dst asm.Register) {
	if s.mem {
		l.a.CompileMemoryWithIndexToRegister(inst, s.base, s.disp, s.idx, s.scale, dst)
	} else {
		l.a.CompileRegisterToRegister(inst, s.reg, dst)
	}
}

func (l *lowering) op2Arg(inst asm.Instruction, s source, dst asm.Register, arg byte) {
	if s.mem {
		l.a.CompileMemoryWithIndexAndArgToRegister(inst, s.base, s.disp, s.idx, s.scale, dst, arg)
	} else {
		l.a.CompileRegisterToRegisterWithArg(inst, s.reg, dst, arg)
	}
}

// op3 emits the three-address form `dst = src1 OP s`.
func (l *lowering) op3(inst asm.Instruction, src1 asm.Register, s source, dst asm.Register) {
	if s.mem {
		l.a.CompileRegisterAndMemoryWithIndexToRegister(inst, src1, s.base, s.disp, s.idx, s.scale, dst)
	} else {
		l.a.CompileTwoRegistersToRegister(inst, src1, s.reg, dst)
	}
}

func (l *lowering) op3Arg(inst asm.Instruction, src1 asm.Register, s source, dst asm.Register, arg byte) {
	if s.mem {
		l.a.CompileRegisterAndMemoryWithIndexToRegisterWithArg(inst, src1, s.base, s.disp, s.idx, s.scale, dst, arg)
	} else {
		l.a.CompileTwoRegistersToRegisterWithArg(inst, src1, s.reg, dst, arg)
	}
}

// clear zeroes dst with the xor idiom.
func (l *lowering) clear(dst asm.Register) {
	zero := l.inst(l.set().zero)
	if l.g.variant.VEX() {
		l.a.CompileTwoRegistersToRegister(zero, dst, dst, dst)
	} else {
		l.a.CompileRegisterToRegister(zero, dst, dst)
	}
}

// lower emits op. Check must have accepted it; anything else is a bug.
func (l *lowering) lower(i int, op express.Op) {
	g := l.g
	if !supports(g.variant, op.Type) {
		panic(&UnsupportedError{Variant: g.variant, Index: i, Op: op.Type})
	}
	if f := requiredFeature(g.variant, op.Type); f != 0 && !g.features.Has(f) {
		panic(&UnsupportedError{Variant: g.variant, Index: i, Op: op.Type, Feature: f})
	}
	if op.Type.IsFused() && !g.model.Fused() {
		panic(&UnsupportedError{Variant: g.variant, Index: i, Op: op.Type, Feature: requiredFeature(g.variant, op.Type)})
	}

	switch {
	case op.Type == express.OpMov:
		l.lowerMove(op)
	case op.Type == express.OpRelu:
		l.lowerRelu(op)
	case op.Type.IsFused():
		l.op3(l.inst(l.set().fused[op.Type]), l.reg(op.Args[1]), l.source(op.Args[2]), l.reg(op.Result))
	case op.Type.IsShift():
		l.lowerShift(op)
	case op.Type.IsCompare():
		l.lowerCompare(op)
	case op.Type == express.OpFloor:
		l.op2Arg(l.inst(l.set().round), l.source(op.Args[0]), l.reg(op.Result), amd64.RoundModeDown)
	case op.Type == express.OpCvtFltInt, op.Type == express.OpCvtIntFlt:
		l.lowerConvert(op)
	case op.Type == express.OpSubInt:
		l.lowerBinary(l.inst(l.set().subInt), op)
	default:
		inst, ok := l.set().binary[op.Type]
		if !ok {
			panic(fmt.Sprintf("BUG: no lowering for %s on %s", op.Type, g.variant))
		}
		l.lowerBinary(l.inst(inst), op)
	}
}

func (l *lowering) lowerMove(op express.Op) {
	set := l.set()
	dst, src := op.Result, op.Args[0]
	switch {
	case dst.IsMemory():
		s := l.address(dst.Addr)
		l.a.CompileRegisterToMemoryWithIndex(l.inst(set.store), l.reg(src), s.base, s.disp, s.idx, s.scale)
	case src.IsRegister():
		l.op2(l.inst(set.move), l.source(src), l.reg(dst))
	case src.IsZero():
		l.clear(l.reg(dst))
	default:
		l.op2(l.inst(set.load), l.source(src), l.reg(dst))
	}
}

func (l *lowering) lowerBinary(inst asm.Instruction, op express.Op) {
	dst := l.reg(op.Result)
	s := l.source(op.Args[1])
	if l.g.variant.VEX() {
		l.op3(inst, l.reg(op.Args[0]), s, dst)
	} else {
		l.op2(inst, s, dst)
	}
}

// lowerRelu computes max(x, 0) with the maximum instruction. When the argument
// is the result itself, the zero goes into the scratch register.
func (l *lowering) lowerRelu(op express.Op) {
	maxInst := l.inst(l.set().binary[express.OpMax])
	dst := l.reg(op.Result)
	arg := op.Args[0]
	if arg.SameRegister(op.Result) {
		if l.scratch < 0 {
			panic("BUG: in-place relu without a scratch register")
		}
		zero := l.slot(l.scratch)
		l.clear(zero)
		if l.g.variant.VEX() {
			l.a.CompileTwoRegistersToRegister(maxInst, zero, dst, dst)
		} else {
			l.a.CompileRegisterToRegister(maxInst, zero, dst)
		}
		return
	}
	l.clear(dst)
	if l.g.variant.VEX() {
		l.op3(maxInst, dst, l.source(arg), dst)
	} else {
		l.op2(maxInst, l.source(arg), dst)
	}
}

// lowerShift moves the source into the result unless it is already there, and
// shifts the result in place.
func (l *lowering) lowerShift(op express.Op) {
	set := l.set()
	inst := set.shl
	if op.Type == express.OpShr {
		inst = set.shr
	}
	dst := l.reg(op.Result)
	count := byte(op.Args[1].Imm)
	src := op.Args[0]
	if l.g.variant.VEX() {
		from := dst
		if src.IsRegister() {
			from = l.reg(src)
		} else {
			l.op2(l.inst(set.load), l.source(src), dst)
		}
		l.a.CompileRegisterToRegisterWithArg(l.inst(inst), from, dst, count)
		return
	}
	switch {
	case src.SameRegister(op.Result):
	case src.IsRegister():
		l.op2(l.inst(set.move), l.source(src), dst)
	default:
		l.op2(l.inst(set.load), l.source(src), dst)
	}
	l.a.CompileConstToRegister(l.inst(inst), asm.ConstantValue(count), dst)
}

func (l *lowering) lowerCompare(op express.Op) {
	pred := predicates[op.Type]
	dst := l.reg(op.Result)
	s := l.source(op.Args[1])
	switch {
	case l.g.variant.VEX():
		l.op3Arg(l.inst(l.set().cmp), l.reg(op.Args[0]), s, dst, pred)
	case pred <= legacyPredicateMax:
		l.op2Arg(l.inst(l.set().cmp), s, dst, pred)
	default:
		// The legacy encoding only has predicates 0-7; the others need VEX.
		l.op3Arg(l.inst(vectorAVX.cmp), dst, s, dst, pred)
	}
}

// lowerConvert converts between float and 32-bit integer lanes. On 256-bit
// float64 code the integer side has four lanes and lives in the XMM half.
func (l *lowering) lowerConvert(op express.Op) {
	set := l.set()
	wide := l.g.variant == VectorFltAVX && l.g.typ == express.Float64
	dst := l.reg(op.Result)
	s := l.source(op.Args[0])
	if op.Type == express.OpCvtFltInt {
		if wide {
			dst = amd64.XMM(dst)
		}
		l.op2(l.inst(set.cvtFltInt), s, dst)
		return
	}
	if wide && !s.mem {
		s.reg = amd64.XMM(s.reg)
	}
	l.op2(l.inst(set.cvtIntFlt), s, dst)
}
