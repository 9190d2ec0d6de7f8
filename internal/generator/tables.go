package generator

import (
	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/asm"
	"github.com/exprjit/exprjit/internal/asm/amd64"
)

// insts holds the float32 and float64 form of an instruction, indexed by express.Type.
type insts [2]asm.Instruction

// instructionSet is the instruction selection of one variant.
type instructionSet struct {
	// move copies a whole register, load and store move one operand to and from memory.
	move, load, store insts
	zero              insts
	binary            map[express.OpType]insts
	fused             map[express.OpType]insts
	cmp               insts
	round             insts
	cvtFltInt         insts
	cvtIntFlt         insts
	subInt            insts
	shl, shr          insts
}

var scalarSSE = &instructionSet{
	move:  insts{amd64.MOVAPS, amd64.MOVAPD},
	load:  insts{amd64.MOVSS, amd64.MOVSD},
	store: insts{amd64.MOVSS, amd64.MOVSD},
	zero:  insts{amd64.XORPS, amd64.XORPD},
	binary: map[express.OpType]insts{
		express.OpAdd: {amd64.ADDSS, amd64.ADDSD},
		express.OpSub: {amd64.SUBSS, amd64.SUBSD},
		express.OpMul: {amd64.MULSS, amd64.MULSD},
		express.OpDiv: {amd64.DIVSS, amd64.DIVSD},
		express.OpMin: {amd64.MINSS, amd64.MINSD},
		express.OpMax: {amd64.MAXSS, amd64.MAXSD},
	},
}

var scalarAVX = &instructionSet{
	move:  insts{amd64.VMOVAPS, amd64.VMOVAPD},
	load:  insts{amd64.VMOVSS, amd64.VMOVSD},
	store: insts{amd64.VMOVSS, amd64.VMOVSD},
	zero:  insts{amd64.VXORPS, amd64.VXORPD},
	binary: map[express.OpType]insts{
		express.OpAdd: {amd64.VADDSS, amd64.VADDSD},
		express.OpSub: {amd64.VSUBSS, amd64.VSUBSD},
		express.OpMul: {amd64.VMULSS, amd64.VMULSD},
		express.OpDiv: {amd64.VDIVSS, amd64.VDIVSD},
		express.OpMin: {amd64.VMINSS, amd64.VMINSD},
		express.OpMax: {amd64.VMAXSS, amd64.VMAXSD},
	},
	fused: map[express.OpType]insts{
		express.OpMulAdd132: {amd64.VFMADD132SS, amd64.VFMADD132SD},
		express.OpMulAdd213: {amd64.VFMADD213SS, amd64.VFMADD213SD},
		express.OpMulAdd231: {amd64.VFMADD231SS, amd64.VFMADD231SD},
		express.OpMulSub132: {amd64.VFMSUB132SS, amd64.VFMSUB132SD},
		express.OpMulSub213: {amd64.VFMSUB213SS, amd64.VFMSUB213SD},
		express.OpMulSub231: {amd64.VFMSUB231SS, amd64.VFMSUB231SD},
	},
}

var vectorSSE = &instructionSet{
	move:  insts{amd64.MOVAPS, amd64.MOVAPD},
	load:  insts{amd64.MOVUPS, amd64.MOVUPD},
	store: insts{amd64.MOVUPS, amd64.MOVUPD},
	zero:  insts{amd64.XORPS, amd64.XORPD},
	binary: map[express.OpType]insts{
		express.OpAdd:    {amd64.ADDPS, amd64.ADDPD},
		express.OpSub:    {amd64.SUBPS, amd64.SUBPD},
		express.OpMul:    {amd64.MULPS, amd64.MULPD},
		express.OpDiv:    {amd64.DIVPS, amd64.DIVPD},
		express.OpMin:    {amd64.MINPS, amd64.MINPD},
		express.OpMax:    {amd64.MAXPS, amd64.MAXPD},
		express.OpAnd:    {amd64.ANDPS, amd64.ANDPD},
		express.OpOr:     {amd64.ORPS, amd64.ORPD},
		express.OpAndNot: {amd64.ANDNPS, amd64.ANDNPD},
	},
	cmp:       insts{amd64.CMPPS, amd64.CMPPD},
	round:     insts{amd64.ROUNDPS, amd64.ROUNDPD},
	cvtFltInt: insts{amd64.CVTTPS2PL, amd64.CVTTPD2PL},
	cvtIntFlt: insts{amd64.CVTPL2PS, amd64.CVTPL2PD},
	subInt:    insts{amd64.PSUBL, amd64.PSUBQ},
	shl:       insts{amd64.PSLLL, amd64.PSLLQ},
	shr:       insts{amd64.PSRLL, amd64.PSRLQ},
}

var vectorAVX = &instructionSet{
	move:  insts{amd64.VMOVAPS, amd64.VMOVAPD},
	load:  insts{amd64.VMOVUPS, amd64.VMOVUPD},
	store: insts{amd64.VMOVUPS, amd64.VMOVUPD},
	zero:  insts{amd64.VXORPS, amd64.VXORPD},
	binary: map[express.OpType]insts{
		express.OpAdd:    {amd64.VADDPS, amd64.VADDPD},
		express.OpSub:    {amd64.VSUBPS, amd64.VSUBPD},
		express.OpMul:    {amd64.VMULPS, amd64.VMULPD},
		express.OpDiv:    {amd64.VDIVPS, amd64.VDIVPD},
		express.OpMin:    {amd64.VMINPS, amd64.VMINPD},
		express.OpMax:    {amd64.VMAXPS, amd64.VMAXPD},
		express.OpAnd:    {amd64.VANDPS, amd64.VANDPD},
		express.OpOr:     {amd64.VORPS, amd64.VORPD},
		express.OpAndNot: {amd64.VANDNPS, amd64.VANDNPD},
	},
	fused: map[express.OpType]insts{
		express.OpMulAdd132: {amd64.VFMADD132PS, amd64.VFMADD132PD},
		express.OpMulAdd213: {amd64.VFMADD213PS, amd64.VFMADD213PD},
		express.OpMulAdd231: {amd64.VFMADD231PS, amd64.VFMADD231PD},
		express.OpMulSub132: {amd64.VFMSUB132PS, amd64.VFMSUB132PD},
		express.OpMulSub213: {amd64.VFMSUB213PS, amd64.VFMSUB213PD},
		express.OpMulSub231: {amd64.VFMSUB231PS, amd64.VFMSUB231PD},
	},
	cmp:       insts{amd64.VCMPPS, amd64.VCMPPD},
	round:     insts{amd64.VROUNDPS, amd64.VROUNDPD},
	cvtFltInt: insts{amd64.VCVTTPS2DQ, amd64.VCVTTPD2DQY},
	cvtIntFlt: insts{amd64.VCVTDQ2PS, amd64.VCVTDQ2PD},
	subInt:    insts{amd64.VPSUBD, amd64.VPSUBQ},
	shl:       insts{amd64.VPSLLD, amd64.VPSLLQ},
	shr:       insts{amd64.VPSRLD, amd64.VPSRLQ},
}

var instructionSets = [...]*instructionSet{
	ScalarFltSSE: scalarSSE,
	ScalarFltAVX: scalarAVX,
	VectorFltSSE: vectorSSE,
	VectorFltAVX: vectorAVX,
}

// legacyPredicateMax is the largest predicate the non-VEX CMPPS/CMPPD encode.
const legacyPredicateMax = amd64.LegacyPredicateMax

var predicates = map[express.OpType]amd64.Predicate{
	express.OpCmpEqOQ:  amd64.PredicateEqualOrderedQuiet,
	express.OpCmpLtOQ:  amd64.PredicateLessThanOrderedQuiet,
	express.OpCmpGtOQ:  amd64.PredicateGreaterThanOrderedQuiet,
	express.OpCmpNgeUQ: amd64.PredicateNotGreaterEqualUnorderedQuiet,
}

var gpRegisters = [...]asm.Register{
	express.GPNone: asm.NilRegister,
	express.GPAX:   amd64.RegAX,
	express.GPCX:   amd64.RegCX,
	express.GPDX:   amd64.RegDX,
	express.GPBX:   amd64.RegBX,
	express.GPSP:   amd64.RegSP,
	express.GPBP:   amd64.RegBP,
	express.GPSI:   amd64.RegSI,
	express.GPDI:   amd64.RegDI,
	express.GPR8:   amd64.RegR8,
	express.GPR9:   amd64.RegR9,
	express.GPR10:  amd64.RegR10,
	express.GPR11:  amd64.RegR11,
	express.GPR12:  amd64.RegR12,
	express.GPR13:  amd64.RegR13,
	express.GPR14:  amd64.RegR14,
	express.GPR15:  amd64.RegR15,
}
