package amd64

import (
	"github.com/exprjit/exprjit/internal/asm"
)

// Assembler is the interface used by the amd64 expression generators.
//
// Operands are listed in Go assembler order: sources first, destination last.
// Memory operands are `baseReg + offsetConst + indexReg*scale`, where indexReg
// may be asm.NilRegister (and scale zero) when there is no index.
type Assembler interface {
	asm.AssemblerBase
	// CompileMemoryWithIndexToRegister adds an instruction where source operand is the memory address
	// specified as `srcBaseReg + srcOffsetConst + srcIndex*srcScale` and destination is the register `dstReg`.
	// Note: sourceScale must be one of 1, 2, 4, 8.
	CompileMemoryWithIndexToRegister(instruction asm.Instruction, srcBaseReg asm.Register, srcOffsetConst asm.ConstantValue, srcIndex asm.Register, srcScale int16, dstReg asm.Register)
	// CompileRegisterToMemoryWithIndex adds an instruction where source operand is the register `srcReg`,
	// and the destination is the memory address specified as `dstBaseReg + dstOffsetConst + dstIndex*dstScale`
	// Note: dstScale must be one of 1, 2, 4, 8.
	CompileRegisterToMemoryWithIndex(instruction asm.Instruction, srcReg asm.Register, dstBaseReg asm.Register, dstOffsetConst asm.ConstantValue, dstIndex asm.Register, dstScale int16)
	// CompileRegisterToRegisterWithArg adds an instruction where source and destination
	// are `from` and `to` registers and the instruction's immediate argument is `arg`.
	// For example, ROUNDPS's rounding mode or CMPPS's predicate.
	CompileRegisterToRegisterWithArg(instruction asm.Instruction, from, to asm.Register, arg byte)
	// CompileMemoryWithIndexAndArgToRegister is the same as CompileRegisterToRegisterWithArg except
	// that the source operand is a memory address.
	CompileMemoryWithIndexAndArgToRegister(instruction asm.Instruction, srcBaseReg asm.Register, srcOffsetConst asm.ConstantValue, srcIndex asm.Register, srcScale int16, dstReg asm.Register, arg byte)
	// CompileTwoRegistersToRegister adds a VEX-encoded three operand instruction computing
	// `dst = src1 OP src2`. For FMA3 instructions src1 and src2 are the second and third
	// operands in Intel order (e.g. VFMADD231PS dst, src1, src2).
	CompileTwoRegistersToRegister(instruction asm.Instruction, src1, src2, dst asm.Register)
	// CompileRegisterAndMemoryWithIndexToRegister is the same as CompileTwoRegistersToRegister except
	// that src2 is the memory address `src2BaseReg + src2OffsetConst + src2Index*src2Scale`.
	CompileRegisterAndMemoryWithIndexToRegister(instruction asm.Instruction, src1, src2BaseReg asm.Register, src2OffsetConst asm.ConstantValue, src2Index asm.Register, src2Scale int16, dst asm.Register)
	// CompileTwoRegistersToRegisterWithArg is CompileTwoRegistersToRegister with an immediate argument,
	// for example VCMPPS's predicate.
	CompileTwoRegistersToRegisterWithArg(instruction asm.Instruction, src1, src2, dst asm.Register, arg byte)
	// CompileRegisterAndMemoryWithIndexToRegisterWithArg is CompileRegisterAndMemoryWithIndexToRegister
	// with an immediate argument.
	CompileRegisterAndMemoryWithIndexToRegisterWithArg(instruction asm.Instruction, src1, src2BaseReg asm.Register, src2OffsetConst asm.ConstantValue, src2Index asm.Register, src2Scale int16, dst asm.Register, arg byte)
}

// Mode represents a Mode for specific instruction.
// For example, ROUND** instructions' behavior can be modified "Mode" constant.
// See https://www.felixcloutier.com/x86/roundps for ROUNDPS as an example.
type Mode = byte

const (
	// RoundModeNearest rounds to the nearest (even) integer.
	RoundModeNearest Mode = 0x0
	// RoundModeDown rounds toward negative infinity.
	RoundModeDown Mode = 0x1
	// RoundModeUp rounds toward positive infinity.
	RoundModeUp Mode = 0x2
	// RoundModeTruncate rounds toward zero.
	RoundModeTruncate Mode = 0x3
)

// Predicate is the immediate selecting the comparison of CMPPS/CMPPD and their VEX forms.
// See https://www.felixcloutier.com/x86/cmpps
type Predicate = byte

const (
	// PredicateEqualOrderedQuiet is EQ_OQ.
	PredicateEqualOrderedQuiet Predicate = 0
	// PredicateLessThanOrderedQuiet is LT_OQ.
	PredicateLessThanOrderedQuiet Predicate = 17
	// PredicateNotGreaterEqualUnorderedQuiet is NGE_UQ.
	PredicateNotGreaterEqualUnorderedQuiet Predicate = 25
	// PredicateGreaterThanOrderedQuiet is GT_OQ.
	PredicateGreaterThanOrderedQuiet Predicate = 30

	// LegacyPredicateMax is the largest predicate which legacy (non-VEX) encoding honors.
	LegacyPredicateMax Predicate = 7
)
