package amd64

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/exprjit/exprjit/internal/asm"
	"github.com/exprjit/exprjit/internal/asm/golang_asm"
)

// NewAssembler returns an implementation of Assembler backed by golang-asm.
func NewAssembler() (Assembler, error) {
	g, err := golang_asm.NewGolangAsmBaseAssembler("amd64")
	if err != nil {
		return nil, err
	}
	return &assemblerGoAsmImpl{g}, nil
}

// assemblerGoAsmImpl implements Assembler for golang-asm library.
type assemblerGoAsmImpl struct {
	*golang_asm.GolangAsmBaseAssembler
}

// CompileStandAlone implements the same method as documented on asm.AssemblerBase.
func (a *assemblerGoAsmImpl) CompileStandAlone(inst asm.Instruction) asm.Node {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction(inst)
	a.AddInstruction(p)
	return golang_asm.NewGolangAsmNode(p)
}

// CompileRegisterToRegister implements the same method as documented on asm.AssemblerBase.
func (a *assemblerGoAsmImpl) CompileRegisterToRegister(inst asm.Instruction, from, to asm.Register) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction(inst)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = castAsGolangAsmRegister[to]
	p.From.Type = obj.TYPE_REG
	p.From.Reg = castAsGolangAsmRegister[from]
	a.AddInstruction(p)
}

// CompileMemoryToRegister implements the same method as documented on asm.AssemblerBase.
func (a *assemblerGoAsmImpl) CompileMemoryToRegister(
	inst asm.Instruction,
	sourceBaseReg asm.Register,
	sourceOffsetConst asm.ConstantValue,
	destinationReg asm.Register,
) {
	a.CompileMemoryWithIndexToRegister(inst, sourceBaseReg, sourceOffsetConst, asm.NilRegister, 0, destinationReg)
}

// CompileMemoryWithIndexToRegister implements the same method as documented on Assembler.
func (a *assemblerGoAsmImpl) CompileMemoryWithIndexToRegister(
	inst asm.Instruction,
	sourceBaseReg asm.Register,
	sourceOffsetConst asm.ConstantValue,
	sourceIndexReg asm.Register,
	sourceScale int16,
	destinationReg asm.Register,
) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction(inst)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = castAsGolangAsmRegister[destinationReg]
	p.From = memoryAddr(sourceBaseReg, sourceOffsetConst, sourceIndexReg, sourceScale)
	a.AddInstruction(p)
}

// CompileRegisterToMemory implements the same method as documented on asm.AssemblerBase.
func (a *assemblerGoAsmImpl) CompileRegisterToMemory(
	inst asm.Instruction,
	sourceRegister, destinationBaseRegister asm.Register,
	destinationOffsetConst asm.ConstantValue,
) {
	a.CompileRegisterToMemoryWithIndex(inst, sourceRegister, destinationBaseRegister, destinationOffsetConst, asm.NilRegister, 0)
}

// CompileRegisterToMemoryWithIndex implements the same method as documented on Assembler.
func (a *assemblerGoAsmImpl) CompileRegisterToMemoryWithIndex(
	inst asm.Instruction,
	srcReg, dstBaseReg asm.Register,
	dstOffsetConst asm.ConstantValue,
	dstIndexReg asm.Register,
	dstScale int16,
) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction(inst)
	p.From.Type = obj.TYPE_REG
	p.From.Reg = castAsGolangAsmRegister[srcReg]
	p.To = memoryAddr(dstBaseReg, dstOffsetConst, dstIndexReg, dstScale)
	a.AddInstruction(p)
}

// CompileConstToRegister implements the same method as documented on asm.AssemblerBase.
func (a *assemblerGoAsmImpl) CompileConstToRegister(
	inst asm.Instruction,
	constValue asm.ConstantValue,
	destinationRegister asm.Register,
) asm.Node {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction(inst)
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = constValue
	p.To.Type = obj.TYPE_REG
	p.To.Reg = castAsGolangAsmRegister[destinationRegister]
	a.AddInstruction(p)
	return golang_asm.NewGolangAsmNode(p)
}

// CompileRegisterToRegisterWithArg implements the same method as documented on Assembler.
func (a *assemblerGoAsmImpl) CompileRegisterToRegisterWithArg(
	inst asm.Instruction,
	from, to asm.Register,
	arg byte,
) {
	a.compileWithArg(inst, obj.Addr{Type: obj.TYPE_REG, Reg: castAsGolangAsmRegister[from]}, to, arg)
}

// CompileMemoryWithIndexAndArgToRegister implements the same method as documented on Assembler.
func (a *assemblerGoAsmImpl) CompileMemoryWithIndexAndArgToRegister(
	inst asm.Instruction,
	sourceBaseReg asm.Register,
	sourceOffsetConst asm.ConstantValue,
	sourceIndexReg asm.Register,
	sourceScale int16,
	destinationReg asm.Register,
	arg byte,
) {
	a.compileWithArg(inst, memoryAddr(sourceBaseReg, sourceOffsetConst, sourceIndexReg, sourceScale), destinationReg, arg)
}

func (a *assemblerGoAsmImpl) compileWithArg(inst asm.Instruction, src obj.Addr, dst asm.Register, arg byte) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction(inst)
	dstAddr := obj.Addr{Type: obj.TYPE_REG, Reg: castAsGolangAsmRegister[dst]}
	switch inst {
	case CMPPS, CMPPD:
		// Go assembler takes the predicate of legacy compares as the last operand:
		// "CMPPS src, dst, $imm".
		p.From = src
		p.RestArgs = append(p.RestArgs, dstAddr)
		p.To.Type = obj.TYPE_CONST
		p.To.Offset = int64(arg)
	default:
		// "ROUNDPS $imm, src, dst".
		p.From.Type = obj.TYPE_CONST
		p.From.Offset = int64(arg)
		p.RestArgs = append(p.RestArgs, src)
		p.To = dstAddr
	}
	a.AddInstruction(p)
}

// CompileTwoRegistersToRegister implements the same method as documented on Assembler.
func (a *assemblerGoAsmImpl) CompileTwoRegistersToRegister(inst asm.Instruction, src1, src2, dst asm.Register) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction(inst)
	p.From.Type = obj.TYPE_REG
	p.From.Reg = castAsGolangAsmRegister[src2]
	p.RestArgs = append(p.RestArgs, obj.Addr{Type: obj.TYPE_REG, Reg: castAsGolangAsmRegister[src1]})
	p.To.Type = obj.TYPE_REG
	p.To.Reg = castAsGolangAsmRegister[dst]
	a.AddInstruction(p)
}

// CompileRegisterAndMemoryWithIndexToRegister implements the same method as documented on Assembler.
func (a *assemblerGoAsmImpl) CompileRegisterAndMemoryWithIndexToRegister(
	inst asm.Instruction,
	src1, src2BaseReg asm.Register,
	src2OffsetConst asm.ConstantValue,
	src2IndexReg asm.Register,
	src2Scale int16,
	dst asm.Register,
) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction(inst)
	p.From = memoryAddr(src2BaseReg, src2OffsetConst, src2IndexReg, src2Scale)
	p.RestArgs = append(p.RestArgs, obj.Addr{Type: obj.TYPE_REG, Reg: castAsGolangAsmRegister[src1]})
	p.To.Type = obj.TYPE_REG
	p.To.Reg = castAsGolangAsmRegister[dst]
	a.AddInstruction(p)
}

// CompileTwoRegistersToRegisterWithArg implements the same method as documented on Assembler.
func (a *assemblerGoAsmImpl) CompileTwoRegistersToRegisterWithArg(inst asm.Instruction, src1, src2, dst asm.Register, arg byte) {
	a.compileThreeOperandsWithArg(inst, src1, obj.Addr{Type: obj.TYPE_REG, Reg: castAsGolangAsmRegister[src2]}, dst, arg)
}

// CompileRegisterAndMemoryWithIndexToRegisterWithArg implements the same method as documented on Assembler.
func (a *assemblerGoAsmImpl) CompileRegisterAndMemoryWithIndexToRegisterWithArg(
	inst asm.Instruction,
	src1, src2BaseReg asm.Register,
	src2OffsetConst asm.ConstantValue,
	src2IndexReg asm.Register,
	src2Scale int16,
	dst asm.Register,
	arg byte,
) {
	a.compileThreeOperandsWithArg(inst, src1, memoryAddr(src2BaseReg, src2OffsetConst, src2IndexReg, src2Scale), dst, arg)
}

// compileThreeOperandsWithArg emits "VCMPPS $imm, src2, src1, dst".
func (a *assemblerGoAsmImpl) compileThreeOperandsWithArg(inst asm.Instruction, src1 asm.Register, src2 obj.Addr, dst asm.Register, arg byte) {
	p := a.NewProg()
	p.As = castAsGolangAsmInstruction(inst)
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = int64(arg)
	p.RestArgs = append(p.RestArgs, src2, obj.Addr{Type: obj.TYPE_REG, Reg: castAsGolangAsmRegister[src1]})
	p.To.Type = obj.TYPE_REG
	p.To.Reg = castAsGolangAsmRegister[dst]
	a.AddInstruction(p)
}

func memoryAddr(baseReg asm.Register, offset asm.ConstantValue, indexReg asm.Register, scale int16) obj.Addr {
	addr := obj.Addr{
		Type:   obj.TYPE_MEM,
		Reg:    castAsGolangAsmRegister[baseReg],
		Offset: offset,
	}
	if indexReg != asm.NilRegister {
		addr.Index = castAsGolangAsmRegister[indexReg]
		addr.Scale = scale
	}
	return addr
}

func castAsGolangAsmInstruction(inst asm.Instruction) obj.As {
	as, ok := golangAsmInstructions[inst]
	if !ok {
		panic(fmt.Sprintf("BUG: unsupported instruction %s for golang-asm", InstructionName(inst)))
	}
	return as
}

// castAsGolangAsmRegister maps the registers to golang-asm specific register values.
var castAsGolangAsmRegister = [...]int16{
	asm.NilRegister: x86.REG_NONE,
	RegAX:   x86.REG_AX,
	RegCX:   x86.REG_CX,
	RegDX:   x86.REG_DX,
	RegBX:   x86.REG_BX,
	RegSP:   x86.REG_SP,
	RegBP:   x86.REG_BP,
	RegSI:   x86.REG_SI,
	RegDI:   x86.REG_DI,
	RegR8:   x86.REG_R8,
	RegR9:   x86.REG_R9,
	RegR10:  x86.REG_R10,
	RegR11:  x86.REG_R11,
	RegR12:  x86.REG_R12,
	RegR13:  x86.REG_R13,
	RegR14:  x86.REG_R14,
	RegR15:  x86.REG_R15,
	RegX0:   x86.REG_X0,
	RegX1:   x86.REG_X1,
	RegX2:   x86.REG_X2,
	RegX3:   x86.REG_X3,
	RegX4:   x86.REG_X4,
	RegX5:   x86.REG_X5,
	RegX6:   x86.REG_X6,
	RegX7:   x86.REG_X7,
	RegX8:   x86.REG_X8,
	RegX9:   x86.REG_X9,
	RegX10:  x86.REG_X10,
	RegX11:  x86.REG_X11,
	RegX12:  x86.REG_X12,
	RegX13:  x86.REG_X13,
	RegX14:  x86.REG_X14,
	RegX15:  x86.REG_X15,
	RegY0:   x86.REG_Y0,
	RegY1:   x86.REG_Y1,
	RegY2:   x86.REG_Y2,
	RegY3:   x86.REG_Y3,
	RegY4:   x86.REG_Y4,
	RegY5:   x86.REG_Y5,
	RegY6:   x86.REG_Y6,
	RegY7:   x86.REG_Y7,
	RegY8:   x86.REG_Y8,
	RegY9:   x86.REG_Y9,
	RegY10:  x86.REG_Y10,
	RegY11:  x86.REG_Y11,
	RegY12:  x86.REG_Y12,
	RegY13:  x86.REG_Y13,
	RegY14:  x86.REG_Y14,
	RegY15:  x86.REG_Y15,
}

// golangAsmInstructions maps the instructions to golang-asm specific instruction values.
var golangAsmInstructions = map[asm.Instruction]obj.As{
	NOP:         obj.ANOP,
	ADDPD:       x86.AADDPD,
	ADDPS:       x86.AADDPS,
	ADDSD:       x86.AADDSD,
	ADDSS:       x86.AADDSS,
	ANDNPD:      x86.AANDNPD,
	ANDNPS:      x86.AANDNPS,
	ANDPD:       x86.AANDPD,
	ANDPS:       x86.AANDPS,
	CMPPD:       x86.ACMPPD,
	CMPPS:       x86.ACMPPS,
	CVTPL2PD:    x86.ACVTPL2PD,
	CVTPL2PS:    x86.ACVTPL2PS,
	CVTTPD2PL:   x86.ACVTTPD2PL,
	CVTTPS2PL:   x86.ACVTTPS2PL,
	DIVPD:       x86.ADIVPD,
	DIVPS:       x86.ADIVPS,
	DIVSD:       x86.ADIVSD,
	DIVSS:       x86.ADIVSS,
	MAXPD:       x86.AMAXPD,
	MAXPS:       x86.AMAXPS,
	MAXSD:       x86.AMAXSD,
	MAXSS:       x86.AMAXSS,
	MINPD:       x86.AMINPD,
	MINPS:       x86.AMINPS,
	MINSD:       x86.AMINSD,
	MINSS:       x86.AMINSS,
	MOVAPD:      x86.AMOVAPD,
	MOVAPS:      x86.AMOVAPS,
	MOVSD:       x86.AMOVSD,
	MOVSS:       x86.AMOVSS,
	MOVUPD:      x86.AMOVUPD,
	MOVUPS:      x86.AMOVUPS,
	MULPD:       x86.AMULPD,
	MULPS:       x86.AMULPS,
	MULSD:       x86.AMULSD,
	MULSS:       x86.AMULSS,
	ORPD:        x86.AORPD,
	ORPS:        x86.AORPS,
	PSLLL:       x86.APSLLL,
	PSLLQ:       x86.APSLLQ,
	PSRLL:       x86.APSRLL,
	PSRLQ:       x86.APSRLQ,
	PSUBL:       x86.APSUBL,
	PSUBQ:       x86.APSUBQ,
	ROUNDPD:     x86.AROUNDPD,
	ROUNDPS:     x86.AROUNDPS,
	SUBPD:       x86.ASUBPD,
	SUBPS:       x86.ASUBPS,
	SUBSD:       x86.ASUBSD,
	SUBSS:       x86.ASUBSS,
	XORPD:       x86.AXORPD,
	XORPS:       x86.AXORPS,
	VADDPD:      x86.AVADDPD,
	VADDPS:      x86.AVADDPS,
	VADDSD:      x86.AVADDSD,
	VADDSS:      x86.AVADDSS,
	VANDNPD:     x86.AVANDNPD,
	VANDNPS:     x86.AVANDNPS,
	VANDPD:      x86.AVANDPD,
	VANDPS:      x86.AVANDPS,
	VCMPPD:      x86.AVCMPPD,
	VCMPPS:      x86.AVCMPPS,
	VCVTDQ2PD:   x86.AVCVTDQ2PD,
	VCVTDQ2PS:   x86.AVCVTDQ2PS,
	VCVTTPD2DQX: x86.AVCVTTPD2DQX,
	VCVTTPD2DQY: x86.AVCVTTPD2DQY,
	VCVTTPS2DQ:  x86.AVCVTTPS2DQ,
	VDIVPD:      x86.AVDIVPD,
	VDIVPS:      x86.AVDIVPS,
	VDIVSD:      x86.AVDIVSD,
	VDIVSS:      x86.AVDIVSS,
	VMAXPD:      x86.AVMAXPD,
	VMAXPS:      x86.AVMAXPS,
	VMAXSD:      x86.AVMAXSD,
	VMAXSS:      x86.AVMAXSS,
	VMINPD:      x86.AVMINPD,
	VMINPS:      x86.AVMINPS,
	VMINSD:      x86.AVMINSD,
	VMINSS:      x86.AVMINSS,
	VMOVAPD:     x86.AVMOVAPD,
	VMOVAPS:     x86.AVMOVAPS,
	VMOVSD:      x86.AVMOVSD,
	VMOVSS:      x86.AVMOVSS,
	VMOVUPD:     x86.AVMOVUPD,
	VMOVUPS:     x86.AVMOVUPS,
	VMULPD:      x86.AVMULPD,
	VMULPS:      x86.AVMULPS,
	VMULSD:      x86.AVMULSD,
	VMULSS:      x86.AVMULSS,
	VORPD:       x86.AVORPD,
	VORPS:       x86.AVORPS,
	VPSLLD:      x86.AVPSLLD,
	VPSLLQ:      x86.AVPSLLQ,
	VPSRLD:      x86.AVPSRLD,
	VPSRLQ:      x86.AVPSRLQ,
	VPSUBD:      x86.AVPSUBD,
	VPSUBQ:      x86.AVPSUBQ,
	VROUNDPD:    x86.AVROUNDPD,
	VROUNDPS:    x86.AVROUNDPS,
	VSUBPD:      x86.AVSUBPD,
	VSUBPS:      x86.AVSUBPS,
	VSUBSD:      x86.AVSUBSD,
	VSUBSS:      x86.AVSUBSS,
	VXORPD:      x86.AVXORPD,
	VXORPS:      x86.AVXORPS,
	VZEROUPPER:  x86.AVZEROUPPER,
	VFMADD132PD: x86.AVFMADD132PD,
	VFMADD132PS: x86.AVFMADD132PS,
	VFMADD132SD: x86.AVFMADD132SD,
	VFMADD132SS: x86.AVFMADD132SS,
	VFMADD213PD: x86.AVFMADD213PD,
	VFMADD213PS: x86.AVFMADD213PS,
	VFMADD213SD: x86.AVFMADD213SD,
	VFMADD213SS: x86.AVFMADD213SS,
	VFMADD231PD: x86.AVFMADD231PD,
	VFMADD231PS: x86.AVFMADD231PS,
	VFMADD231SD: x86.AVFMADD231SD,
	VFMADD231SS: x86.AVFMADD231SS,
	VFMSUB132PD: x86.AVFMSUB132PD,
	VFMSUB132PS: x86.AVFMSUB132PS,
	VFMSUB132SD: x86.AVFMSUB132SD,
	VFMSUB132SS: x86.AVFMSUB132SS,
	VFMSUB213PD: x86.AVFMSUB213PD,
	VFMSUB213PS: x86.AVFMSUB213PS,
	VFMSUB213SD: x86.AVFMSUB213SD,
	VFMSUB213SS: x86.AVFMSUB213SS,
	VFMSUB231PD: x86.AVFMSUB231PD,
	VFMSUB231PS: x86.AVFMSUB231PS,
	VFMSUB231SD: x86.AVFMSUB231SD,
	VFMSUB231SS: x86.AVFMSUB231SS,
}

