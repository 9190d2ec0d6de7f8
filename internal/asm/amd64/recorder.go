package amd64

import (
	"fmt"
	"strings"

	"github.com/exprjit/exprjit/internal/asm"
)

// OperandKind is the kind of a recorded Operand.
type OperandKind byte

const (
	OperandKindRegister OperandKind = iota + 1
	OperandKindMemory
	OperandKindConst
)

// Operand is an operand of a recorded instruction.
type Operand struct {
	Kind OperandKind
	// Reg is the register, or the base register of a memory operand.
	Reg asm.Register
	// Offset is the displacement of a memory operand or the value of a constant.
	Offset asm.ConstantValue
	Index  asm.Register
	Scale  int16
}

func regOperand(r asm.Register) Operand {
	return Operand{Kind: OperandKindRegister, Reg: r}
}

func memOperand(base asm.Register, offset asm.ConstantValue, index asm.Register, scale int16) Operand {
	return Operand{Kind: OperandKindMemory, Reg: base, Offset: offset, Index: index, Scale: scale}
}

func constOperand(v asm.ConstantValue) Operand {
	return Operand{Kind: OperandKindConst, Offset: v}
}

// String implements fmt.Stringer in Go assembler syntax: "X0", "16(SI)(CX*4)" or "$23".
func (o Operand) String() string {
	switch o.Kind {
	case OperandKindRegister:
		return RegisterName(o.Reg)
	case OperandKindConst:
		return fmt.Sprintf("$%d", o.Offset)
	case OperandKindMemory:
		var sb strings.Builder
		if o.Offset != 0 {
			sb.WriteString(fmt.Sprintf("%d", o.Offset))
		}
		sb.WriteString("(" + RegisterName(o.Reg) + ")")
		if o.Index != asm.NilRegister {
			sb.WriteString(fmt.Sprintf("(%s*%d)", RegisterName(o.Index), o.Scale))
		}
		return sb.String()
	}
	return "?"
}

// Emission is one instruction recorded by Recorder.
type Emission struct {
	Instruction asm.Instruction
	// Operands are in Go assembler order: sources first, destination last.
	Operands []Operand
}

// String implements fmt.Stringer, e.g. "ADDPS X1, X0".
func (e Emission) String() string {
	if len(e.Operands) == 0 {
		return InstructionName(e.Instruction)
	}
	operands := make([]string, len(e.Operands))
	for i, o := range e.Operands {
		operands[i] = o.String()
	}
	return InstructionName(e.Instruction) + " " + strings.Join(operands, ", ")
}

// Recorder is an Assembler which records every instruction it is given.
// When it wraps another Assembler, each call is forwarded after being recorded.
type Recorder struct {
	inner     Assembler
	pool      *asm.StaticConstPool
	emissions []Emission
}

var _ Assembler = (*Recorder)(nil)

// NewRecorder returns a Recorder forwarding to inner, which may be nil.
func NewRecorder(inner Assembler) *Recorder {
	r := &Recorder{inner: inner}
	if inner == nil {
		r.pool = asm.NewStaticConstPool()
	}
	return r
}

// Emissions returns the recorded instructions in emission order.
func (r *Recorder) Emissions() []Emission {
	return r.emissions
}

// Listing returns the recorded instructions, one per line.
func (r *Recorder) Listing() string {
	var sb strings.Builder
	for _, e := range r.emissions {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Len returns the number of recorded instructions.
func (r *Recorder) Len() int {
	return len(r.emissions)
}

func (r *Recorder) record(inst asm.Instruction, operands ...Operand) {
	r.emissions = append(r.emissions, Emission{Instruction: inst, Operands: operands})
}

// Assemble implements the same method as documented on asm.AssemblerBase.
// Without an inner assembler there is no machine code and the result is empty.
func (r *Recorder) Assemble() ([]byte, error) {
	if r.inner == nil {
		return []byte{}, nil
	}
	return r.inner.Assemble()
}

// StaticConstPool implements the same method as documented on asm.AssemblerBase.
func (r *Recorder) StaticConstPool() *asm.StaticConstPool {
	if r.inner == nil {
		return r.pool
	}
	return r.inner.StaticConstPool()
}

// CompileStandAlone implements the same method as documented on asm.AssemblerBase.
func (r *Recorder) CompileStandAlone(inst asm.Instruction) asm.Node {
	r.record(inst)
	if r.inner == nil {
		return &recordedNode{r: r, index: len(r.emissions) - 1}
	}
	return r.inner.CompileStandAlone(inst)
}

// CompileRegisterToRegister implements the same method as documented on asm.AssemblerBase.
func (r *Recorder) CompileRegisterToRegister(inst asm.Instruction, from, to asm.Register) {
	r.record(inst, regOperand(from), regOperand(to))
	if r.inner != nil {
		r.inner.CompileRegisterToRegister(inst, from, to)
	}
}

// CompileMemoryToRegister implements the same method as documented on asm.AssemblerBase.
func (r *Recorder) CompileMemoryToRegister(inst asm.Instruction, srcBaseReg asm.Register, srcOffset asm.ConstantValue, dst asm.Register) {
	r.record(inst, memOperand(srcBaseReg, srcOffset, asm.NilRegister, 0), regOperand(dst))
	if r.inner != nil {
		r.inner.CompileMemoryToRegister(inst, srcBaseReg, srcOffset, dst)
	}
}

// CompileRegisterToMemory implements the same method as documented on asm.AssemblerBase.
func (r *Recorder) CompileRegisterToMemory(inst asm.Instruction, src, dstBaseReg asm.Register, dstOffset asm.ConstantValue) {
	r.record(inst, regOperand(src), memOperand(dstBaseReg, dstOffset, asm.NilRegister, 0))
	if r.inner != nil {
		r.inner.CompileRegisterToMemory(inst, src, dstBaseReg, dstOffset)
	}
}

// CompileConstToRegister implements the same method as documented on asm.AssemblerBase.
func (r *Recorder) CompileConstToRegister(inst asm.Instruction, value asm.ConstantValue, dst asm.Register) asm.Node {
	r.record(inst, constOperand(value), regOperand(dst))
	if r.inner == nil {
		return &recordedNode{r: r, index: len(r.emissions) - 1}
	}
	return r.inner.CompileConstToRegister(inst, value, dst)
}

// CompileMemoryWithIndexToRegister implements the same method as documented on Assembler.
func (r *Recorder) CompileMemoryWithIndexToRegister(inst asm.Instruction, srcBaseReg asm.Register, srcOffset asm.ConstantValue, srcIndex asm.Register, srcScale int16, dst asm.Register) {
	r.record(inst, memOperand(srcBaseReg, srcOffset, srcIndex, srcScale), regOperand(dst))
	if r.inner != nil {
		r.inner.CompileMemoryWithIndexToRegister(inst, srcBaseReg, srcOffset, srcIndex, srcScale, dst)
	}
}

// CompileRegisterToMemoryWithIndex implements the same method as documented on Assembler.
func (r *Recorder) CompileRegisterToMemoryWithIndex(inst asm.Instruction, src, dstBaseReg asm.Register, dstOffset asm.ConstantValue, dstIndex asm.Register, dstScale int16) {
	r.record(inst, regOperand(src), memOperand(dstBaseReg, dstOffset, dstIndex, dstScale))
	if r.inner != nil {
		r.inner.CompileRegisterToMemoryWithIndex(inst, src, dstBaseReg, dstOffset, dstIndex, dstScale)
	}
}

// CompileRegisterToRegisterWithArg implements the same method as documented on Assembler.
func (r *Recorder) CompileRegisterToRegisterWithArg(inst asm.Instruction, from, to asm.Register, arg byte) {
	r.recordWithArg(inst, regOperand(from), regOperand(to), arg)
	if r.inner != nil {
		r.inner.CompileRegisterToRegisterWithArg(inst, from, to, arg)
	}
}

// CompileMemoryWithIndexAndArgToRegister implements the same method as documented on Assembler.
func (r *Recorder) CompileMemoryWithIndexAndArgToRegister(inst asm.Instruction, srcBaseReg asm.Register, srcOffset asm.ConstantValue, srcIndex asm.Register, srcScale int16, dst asm.Register, arg byte) {
	r.recordWithArg(inst, memOperand(srcBaseReg, srcOffset, srcIndex, srcScale), regOperand(dst), arg)
	if r.inner != nil {
		r.inner.CompileMemoryWithIndexAndArgToRegister(inst, srcBaseReg, srcOffset, srcIndex, srcScale, dst, arg)
	}
}

// recordWithArg follows the operand order of the Go assembler, which places the
// predicate of the legacy compares last and every other immediate first.
func (r *Recorder) recordWithArg(inst asm.Instruction, src, dst Operand, arg byte) {
	switch inst {
	case CMPPS, CMPPD:
		r.record(inst, src, dst, constOperand(asm.ConstantValue(arg)))
	default:
		r.record(inst, constOperand(asm.ConstantValue(arg)), src, dst)
	}
}

// CompileTwoRegistersToRegister implements the same method as documented on Assembler.
func (r *Recorder) CompileTwoRegistersToRegister(inst asm.Instruction, src1, src2, dst asm.Register) {
	r.record(inst, regOperand(src2), regOperand(src1), regOperand(dst))
	if r.inner != nil {
		r.inner.CompileTwoRegistersToRegister(inst, src1, src2, dst)
	}
}

// CompileRegisterAndMemoryWithIndexToRegister implements the same method as documented on Assembler.
func (r *Recorder) CompileRegisterAndMemoryWithIndexToRegister(inst asm.Instruction, src1, src2BaseReg asm.Register, src2Offset asm.ConstantValue, src2Index asm.Register, src2Scale int16, dst asm.Register) {
	r.record(inst, memOperand(src2BaseReg, src2Offset, src2Index, src2Scale), regOperand(src1), regOperand(dst))
	if r.inner != nil {
		r.inner.CompileRegisterAndMemoryWithIndexToRegister(inst, src1, src2BaseReg, src2Offset, src2Index, src2Scale, dst)
	}
}

// CompileTwoRegistersToRegisterWithArg implements the same method as documented on Assembler.
func (r *Recorder) CompileTwoRegistersToRegisterWithArg(inst asm.Instruction, src1, src2, dst asm.Register, arg byte) {
	r.record(inst, constOperand(asm.ConstantValue(arg)), regOperand(src2), regOperand(src1), regOperand(dst))
	if r.inner != nil {
		r.inner.CompileTwoRegistersToRegisterWithArg(inst, src1, src2, dst, arg)
	}
}

// CompileRegisterAndMemoryWithIndexToRegisterWithArg implements the same method as documented on Assembler.
func (r *Recorder) CompileRegisterAndMemoryWithIndexToRegisterWithArg(inst asm.Instruction, src1, src2BaseReg asm.Register, src2Offset asm.ConstantValue, src2Index asm.Register, src2Scale int16, dst asm.Register, arg byte) {
	r.record(inst, constOperand(asm.ConstantValue(arg)), memOperand(src2BaseReg, src2Offset, src2Index, src2Scale), regOperand(src1), regOperand(dst))
	if r.inner != nil {
		r.inner.CompileRegisterAndMemoryWithIndexToRegisterWithArg(inst, src1, src2BaseReg, src2Offset, src2Index, src2Scale, dst, arg)
	}
}

// recordedNode is the asm.Node returned by a Recorder without an inner assembler.
type recordedNode struct {
	r     *Recorder
	index int
}

// String implements fmt.Stringer.
func (n *recordedNode) String() string {
	return n.r.emissions[n.index].String()
}

// AssignSourceConstant implements asm.Node.AssignSourceConstant.
func (n *recordedNode) AssignSourceConstant(value asm.ConstantValue) {
	e := &n.r.emissions[n.index]
	if len(e.Operands) > 0 {
		e.Operands[0] = constOperand(value)
	}
}

// OffsetInBinary implements asm.Node.OffsetInBinary.
// Recorded instructions have no binary, so this is always -1.
func (n *recordedNode) OffsetInBinary() int64 {
	return -1
}
