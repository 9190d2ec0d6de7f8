package amd64

import (
	"strings"

	"github.com/exprjit/exprjit/internal/asm"
)

// AMD64-specific instructions.
// https://www.felixcloutier.com/x86/index.html
//
// Note: here we do not define all of amd64 instructions, and we only define the ones used by the
// expression generators: SSE/SSE2/SSE4.1 floating point, AVX/AVX2 and FMA3.
// Note: naming convention is exactly the same as Go assembler: https://go.dev/doc/asm
const (
	NONE asm.Instruction = iota
	NOP
	// SSE, SSE2 and SSE4.1.
	ADDPD
	ADDPS
	ADDSD
	ADDSS
	ANDNPD
	ANDNPS
	ANDPD
	ANDPS
	CMPPD
	CMPPS
	CVTPL2PD
	CVTPL2PS
	CVTTPD2PL
	CVTTPS2PL
	DIVPD
	DIVPS
	DIVSD
	DIVSS
	MAXPD
	MAXPS
	MAXSD
	MAXSS
	MINPD
	MINPS
	MINSD
	MINSS
	MOVAPD
	MOVAPS
	MOVSD
	MOVSS
	MOVUPD
	MOVUPS
	MULPD
	MULPS
	MULSD
	MULSS
	ORPD
	ORPS
	PSLLL
	PSLLQ
	PSRLL
	PSRLQ
	PSUBL
	PSUBQ
	ROUNDPD
	ROUNDPS
	SUBPD
	SUBPS
	SUBSD
	SUBSS
	XORPD
	XORPS
	// AVX and AVX2.
	VADDPD
	VADDPS
	VADDSD
	VADDSS
	VANDNPD
	VANDNPS
	VANDPD
	VANDPS
	VCMPPD
	VCMPPS
	VCVTDQ2PD
	VCVTDQ2PS
	VCVTTPD2DQX
	VCVTTPD2DQY
	VCVTTPS2DQ
	VDIVPD
	VDIVPS
	VDIVSD
	VDIVSS
	VMAXPD
	VMAXPS
	VMAXSD
	VMAXSS
	VMINPD
	VMINPS
	VMINSD
	VMINSS
	VMOVAPD
	VMOVAPS
	VMOVSD
	VMOVSS
	VMOVUPD
	VMOVUPS
	VMULPD
	VMULPS
	VMULSD
	VMULSS
	VORPD
	VORPS
	VPSLLD
	VPSLLQ
	VPSRLD
	VPSRLQ
	VPSUBD
	VPSUBQ
	VROUNDPD
	VROUNDPS
	VSUBPD
	VSUBPS
	VSUBSD
	VSUBSS
	VXORPD
	VXORPS
	VZEROUPPER
	// FMA3.
	VFMADD132PD
	VFMADD132PS
	VFMADD132SD
	VFMADD132SS
	VFMADD213PD
	VFMADD213PS
	VFMADD213SD
	VFMADD213SS
	VFMADD231PD
	VFMADD231PS
	VFMADD231SD
	VFMADD231SS
	VFMSUB132PD
	VFMSUB132PS
	VFMSUB132SD
	VFMSUB132SS
	VFMSUB213PD
	VFMSUB213PS
	VFMSUB213SD
	VFMSUB213SS
	VFMSUB231PD
	VFMSUB231PS
	VFMSUB231SD
	VFMSUB231SS

	// instructionEnd is always placed at the bottom of this iota definition to be used in the test.
	instructionEnd
)

// InstructionName returns the name for an instruction
func InstructionName(instruction asm.Instruction) string {
	switch instruction {
	case NOP:
		return "NOP"
	case ADDPD:
		return "ADDPD"
	case ADDPS:
		return "ADDPS"
	case ADDSD:
		return "ADDSD"
	case ADDSS:
		return "ADDSS"
	case ANDNPD:
		return "ANDNPD"
	case ANDNPS:
		return "ANDNPS"
	case ANDPD:
		return "ANDPD"
	case ANDPS:
		return "ANDPS"
	case CMPPD:
		return "CMPPD"
	case CMPPS:
		return "CMPPS"
	case CVTPL2PD:
		return "CVTPL2PD"
	case CVTPL2PS:
		return "CVTPL2PS"
	case CVTTPD2PL:
		return "CVTTPD2PL"
	case CVTTPS2PL:
		return "CVTTPS2PL"
	case DIVPD:
		return "DIVPD"
	case DIVPS:
		return "DIVPS"
	case DIVSD:
		return "DIVSD"
	case DIVSS:
		return "DIVSS"
	case MAXPD:
		return "MAXPD"
	case MAXPS:
		return "MAXPS"
	case MAXSD:
		return "MAXSD"
	case MAXSS:
		return "MAXSS"
	case MINPD:
		return "MINPD"
	case MINPS:
		return "MINPS"
	case MINSD:
		return "MINSD"
	case MINSS:
		return "MINSS"
	case MOVAPD:
		return "MOVAPD"
	case MOVAPS:
		return "MOVAPS"
	case MOVSD:
		return "MOVSD"
	case MOVSS:
		return "MOVSS"
	case MOVUPD:
		return "MOVUPD"
	case MOVUPS:
		return "MOVUPS"
	case MULPD:
		return "MULPD"
	case MULPS:
		return "MULPS"
	case MULSD:
		return "MULSD"
	case MULSS:
		return "MULSS"
	case ORPD:
		return "ORPD"
	case ORPS:
		return "ORPS"
	case PSLLL:
		return "PSLLL"
	case PSLLQ:
		return "PSLLQ"
	case PSRLL:
		return "PSRLL"
	case PSRLQ:
		return "PSRLQ"
	case PSUBL:
		return "PSUBL"
	case PSUBQ:
		return "PSUBQ"
	case ROUNDPD:
		return "ROUNDPD"
	case ROUNDPS:
		return "ROUNDPS"
	case SUBPD:
		return "SUBPD"
	case SUBPS:
		return "SUBPS"
	case SUBSD:
		return "SUBSD"
	case SUBSS:
		return "SUBSS"
	case XORPD:
		return "XORPD"
	case XORPS:
		return "XORPS"
	case VADDPD:
		return "VADDPD"
	case VADDPS:
		return "VADDPS"
	case VADDSD:
		return "VADDSD"
	case VADDSS:
		return "VADDSS"
	case VANDNPD:
		return "VANDNPD"
	case VANDNPS:
		return "VANDNPS"
	case VANDPD:
		return "VANDPD"
	case VANDPS:
		return "VANDPS"
	case VCMPPD:
		return "VCMPPD"
	case VCMPPS:
		return "VCMPPS"
	case VCVTDQ2PD:
		return "VCVTDQ2PD"
	case VCVTDQ2PS:
		return "VCVTDQ2PS"
	case VCVTTPD2DQX:
		return "VCVTTPD2DQX"
	case VCVTTPD2DQY:
		return "VCVTTPD2DQY"
	case VCVTTPS2DQ:
		return "VCVTTPS2DQ"
	case VDIVPD:
		return "VDIVPD"
	case VDIVPS:
		return "VDIVPS"
	case VDIVSD:
		return "VDIVSD"
	case VDIVSS:
		return "VDIVSS"
	case VMAXPD:
		return "VMAXPD"
	case VMAXPS:
		return "VMAXPS"
	case VMAXSD:
		return "VMAXSD"
	case VMAXSS:
		return "VMAXSS"
	case VMINPD:
		return "VMINPD"
	case VMINPS:
		return "VMINPS"
	case VMINSD:
		return "VMINSD"
	case VMINSS:
		return "VMINSS"
	case VMOVAPD:
		return "VMOVAPD"
	case VMOVAPS:
		return "VMOVAPS"
	case VMOVSD:
		return "VMOVSD"
	case VMOVSS:
		return "VMOVSS"
	case VMOVUPD:
		return "VMOVUPD"
	case VMOVUPS:
		return "VMOVUPS"
	case VMULPD:
		return "VMULPD"
	case VMULPS:
		return "VMULPS"
	case VMULSD:
		return "VMULSD"
	case VMULSS:
		return "VMULSS"
	case VORPD:
		return "VORPD"
	case VORPS:
		return "VORPS"
	case VPSLLD:
		return "VPSLLD"
	case VPSLLQ:
		return "VPSLLQ"
	case VPSRLD:
		return "VPSRLD"
	case VPSRLQ:
		return "VPSRLQ"
	case VPSUBD:
		return "VPSUBD"
	case VPSUBQ:
		return "VPSUBQ"
	case VROUNDPD:
		return "VROUNDPD"
	case VROUNDPS:
		return "VROUNDPS"
	case VSUBPD:
		return "VSUBPD"
	case VSUBPS:
		return "VSUBPS"
	case VSUBSD:
		return "VSUBSD"
	case VSUBSS:
		return "VSUBSS"
	case VXORPD:
		return "VXORPD"
	case VXORPS:
		return "VXORPS"
	case VZEROUPPER:
		return "VZEROUPPER"
	case VFMADD132PD:
		return "VFMADD132PD"
	case VFMADD132PS:
		return "VFMADD132PS"
	case VFMADD132SD:
		return "VFMADD132SD"
	case VFMADD132SS:
		return "VFMADD132SS"
	case VFMADD213PD:
		return "VFMADD213PD"
	case VFMADD213PS:
		return "VFMADD213PS"
	case VFMADD213SD:
		return "VFMADD213SD"
	case VFMADD213SS:
		return "VFMADD213SS"
	case VFMADD231PD:
		return "VFMADD231PD"
	case VFMADD231PS:
		return "VFMADD231PS"
	case VFMADD231SD:
		return "VFMADD231SD"
	case VFMADD231SS:
		return "VFMADD231SS"
	case VFMSUB132PD:
		return "VFMSUB132PD"
	case VFMSUB132PS:
		return "VFMSUB132PS"
	case VFMSUB132SD:
		return "VFMSUB132SD"
	case VFMSUB132SS:
		return "VFMSUB132SS"
	case VFMSUB213PD:
		return "VFMSUB213PD"
	case VFMSUB213PS:
		return "VFMSUB213PS"
	case VFMSUB213SD:
		return "VFMSUB213SD"
	case VFMSUB213SS:
		return "VFMSUB213SS"
	case VFMSUB231PD:
		return "VFMSUB231PD"
	case VFMSUB231PS:
		return "VFMSUB231PS"
	case VFMSUB231SD:
		return "VFMSUB231SD"
	case VFMSUB231SS:
		return "VFMSUB231SS"
	}
	return "Unknown"
}

// AMD64-specific registers.
// https://www.lri.fr/~filliatr/ens/compil/x86-64.pdf
// https://cs.brown.edu/courses/cs033/docs/guides/x64_cheatsheet.pdf
//
// General purpose registers are only used as base and index registers of memory operands.
// Note: naming convention is exactly the same as Go assembler: https://go.dev/doc/asm
const (
	RegAX asm.Register = asm.NilRegister + 1 + iota
	RegCX
	RegDX
	RegBX
	RegSP
	RegBP
	RegSI
	RegDI
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15
	RegX0
	RegX1
	RegX2
	RegX3
	RegX4
	RegX5
	RegX6
	RegX7
	RegX8
	RegX9
	RegX10
	RegX11
	RegX12
	RegX13
	RegX14
	RegX15
	RegY0
	RegY1
	RegY2
	RegY3
	RegY4
	RegY5
	RegY6
	RegY7
	RegY8
	RegY9
	RegY10
	RegY11
	RegY12
	RegY13
	RegY14
	RegY15
)

// RegisterName returns the name for a register
func RegisterName(reg asm.Register) string {
	switch reg {
	case RegAX:
		return "AX"
	case RegCX:
		return "CX"
	case RegDX:
		return "DX"
	case RegBX:
		return "BX"
	case RegSP:
		return "SP"
	case RegBP:
		return "BP"
	case RegSI:
		return "SI"
	case RegDI:
		return "DI"
	case RegR8:
		return "R8"
	case RegR9:
		return "R9"
	case RegR10:
		return "R10"
	case RegR11:
		return "R11"
	case RegR12:
		return "R12"
	case RegR13:
		return "R13"
	case RegR14:
		return "R14"
	case RegR15:
		return "R15"
	case RegX0:
		return "X0"
	case RegX1:
		return "X1"
	case RegX2:
		return "X2"
	case RegX3:
		return "X3"
	case RegX4:
		return "X4"
	case RegX5:
		return "X5"
	case RegX6:
		return "X6"
	case RegX7:
		return "X7"
	case RegX8:
		return "X8"
	case RegX9:
		return "X9"
	case RegX10:
		return "X10"
	case RegX11:
		return "X11"
	case RegX12:
		return "X12"
	case RegX13:
		return "X13"
	case RegX14:
		return "X14"
	case RegX15:
		return "X15"
	case RegY0:
		return "Y0"
	case RegY1:
		return "Y1"
	case RegY2:
		return "Y2"
	case RegY3:
		return "Y3"
	case RegY4:
		return "Y4"
	case RegY5:
		return "Y5"
	case RegY6:
		return "Y6"
	case RegY7:
		return "Y7"
	case RegY8:
		return "Y8"
	case RegY9:
		return "Y9"
	case RegY10:
		return "Y10"
	case RegY11:
		return "Y11"
	case RegY12:
		return "Y12"
	case RegY13:
		return "Y13"
	case RegY14:
		return "Y14"
	case RegY15:
		return "Y15"
	default:
		return "nil"
	}
}

// RegisterByName returns the register named name, as returned by RegisterName.
// The match ignores case.
func RegisterByName(name string) (asm.Register, bool) {
	name = strings.ToUpper(name)
	for reg := RegAX; reg <= RegY15; reg++ {
		if RegisterName(reg) == name {
			return reg, true
		}
	}
	return asm.NilRegister, false
}

// IsGeneralPurpose returns true if the register is a 64-bit general purpose register.
func IsGeneralPurpose(reg asm.Register) bool {
	return RegAX <= reg && reg <= RegR15
}

// IsXMM returns true if the register is a 128-bit vector register.
func IsXMM(reg asm.Register) bool {
	return RegX0 <= reg && reg <= RegX15
}

// IsYMM returns true if the register is a 256-bit vector register.
func IsYMM(reg asm.Register) bool {
	return RegY0 <= reg && reg <= RegY15
}

// YMM returns the 256-bit register whose lower half is the given XMM register.
func YMM(xmm asm.Register) asm.Register {
	if !IsXMM(xmm) {
		panic("BUG: " + RegisterName(xmm) + " is not an XMM register")
	}
	return RegY0 + (xmm - RegX0)
}

// XMM returns the 128-bit lower half of the given YMM register.
func XMM(ymm asm.Register) asm.Register {
	if !IsYMM(ymm) {
		panic("BUG: " + RegisterName(ymm) + " is not a YMM register")
	}
	return RegX0 + (ymm - RegY0)
}
