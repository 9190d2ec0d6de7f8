package generator

import (
	"fmt"

	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/asm"
)

// Check returns an error if any op of expr cannot be lowered by g. Generate calls
// it before emitting anything, so a failing expression leaves the assembler untouched.
func (g *Generator) Check(expr *express.Expression) error {
	if expr.Type() != g.typ {
		return fmt.Errorf("%s: %w: %s expression on a %s generator", g.variant, ErrUnsupportedOperation, expr.Type(), g.typ)
	}
	if err := expr.Validate(); err != nil {
		return err
	}
	for i, op := range expr.Ops() {
		if err := g.checkOp(i, op); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) checkOp(i int, op express.Op) error {
	if !supports(g.variant, op.Type) {
		return &UnsupportedError{Variant: g.variant, Index: i, Op: op.Type}
	}
	if f := requiredFeature(g.variant, op.Type); f != 0 && !g.features.Has(f) {
		return &UnsupportedError{Variant: g.variant, Index: i, Op: op.Type, Feature: f}
	}
	if shape := g.illegalShape(op); shape != "" {
		return &ShapeError{Variant: g.variant, Index: i, Op: op, Shape: shape}
	}
	if g.constantBase != asm.NilRegister {
		if g.addressesConstantBase(op.Result) {
			return &ShapeError{Variant: g.variant, Index: i, Op: op, Shape: "memory operand addresses the constant base register"}
		}
		for _, a := range op.Args {
			if g.addressesConstantBase(a) {
				return &ShapeError{Variant: g.variant, Index: i, Op: op, Shape: "memory operand addresses the constant base register"}
			}
		}
	}
	if g.constantBase == 0 {
		for _, a := range op.Args {
			if a.IsImmediate() && !a.Count && !(op.Type == express.OpMov && a.IsZero()) {
				return &ShapeError{Variant: g.variant, Index: i, Op: op, Shape: "immediate without a constant base register"}
			}
		}
	}
	return nil
}

func (g *Generator) addressesConstantBase(o express.Operand) bool {
	return o.IsMemory() && (gpRegisters[o.Addr.Base] == g.constantBase || gpRegisters[o.Addr.Index] == g.constantBase)
}

// illegalShape returns a description of the operand shape of op if the model
// does not contain it, or "" if it does.
func (g *Generator) illegalShape(op express.Op) string {
	m := &g.model
	res := op.Result
	if op.Type == express.OpMov {
		src := op.Args[0]
		switch {
		case res.IsRegister() && src.IsRegister() && m.MovRegReg,
			res.IsRegister() && src.IsImmediate() && m.MovRegImm,
			res.IsRegister() && src.IsMemory() && m.MovRegMem,
			res.IsMemory() && src.IsRegister() && m.MovMemReg:
			return ""
		}
		return "mov " + res.Kind.String() + " <- " + src.Kind.String()
	}
	if !res.IsRegister() {
		return "memory result"
	}

	switch {
	case op.Type.IsFused():
		if !op.Args[0].SameRegister(res) {
			return "fused result is not its first argument"
		}
		if !op.Args[1].IsRegister() {
			return "fused second argument is not a register"
		}
		return kindShape(op.Args[2], m.FmRegRegReg, m.FmRegRegMem, m.FmRegRegImm, "fused register, register, ")
	case op.Type.IsShift():
		// Shifts move their source into the result first.
		return kindShape(op.Args[0], m.FuncRegReg, m.FuncRegMem, false, "shift of ")
	case op.Type == express.OpRelu:
		// RELU is a maximum against zero and takes the binary forms.
		a := op.Args[0]
		if a.SameRegister(res) {
			return ""
		}
		if g.variant.VEX() {
			return kindShape(a, m.OpRegRegReg, m.OpRegRegMem, m.OpRegRegImm, "relu of ")
		}
		return kindShape(a, m.OpRegReg, m.OpRegMem, m.OpRegImm, "relu of ")
	case op.Type.IsUnary():
		return kindShape(op.Args[0], m.FuncRegReg, m.FuncRegMem, m.FuncRegImm, "function of ")
	}

	// Binary operation.
	a, b := op.Args[0], op.Args[1]
	if !a.IsRegister() {
		return "first argument is not a register"
	}
	if a.SameRegister(res) {
		return kindShape(b, m.OpRegReg, m.OpRegMem, m.OpRegImm, "two-address register, ")
	}
	return kindShape(b, m.OpRegRegReg, m.OpRegRegMem, m.OpRegRegImm, "three-address register, ")
}

func kindShape(o express.Operand, reg, mem, imm bool, prefix string) string {
	switch {
	case o.IsRegister() && reg, o.IsMemory() && mem, o.IsImmediate() && imm:
		return ""
	}
	return prefix + o.Kind.String()
}
