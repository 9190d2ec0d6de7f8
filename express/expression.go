// Package express holds the micro-operations the code generators lower, and
// the append-only Expression they are collected in.
package express

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidOp is wrapped by the errors of Expression.Validate.
	ErrInvalidOp = errors.New("invalid op")
	// ErrSyntax is wrapped by the errors of Parse.
	ErrSyntax = errors.New("syntax error")
)

// Expression is an append-only sequence of micro-operations of one element type.
// Ops are copied on the way in and out, so an added op never changes.
type Expression struct {
	typ Type
	ops []Op
}

// New returns an empty expression of the element type.
func New(typ Type) *Expression {
	return &Expression{typ: typ}
}

// Type returns the element type.
func (e *Expression) Type() Type {
	return e.typ
}

// Add appends a copy of op and returns its index.
func (e *Expression) Add(op Op) int {
	e.ops = append(e.ops, op.Clone())
	return len(e.ops) - 1
}

// Emit appends an op built from the arguments and returns its index.
func (e *Expression) Emit(typ OpType, result Operand, args ...Operand) int {
	return e.Add(Op{Type: typ, Result: result, Args: args})
}

// Len returns the number of ops.
func (e *Expression) Len() int {
	return len(e.ops)
}

// Op returns a copy of the i-th op.
func (e *Expression) Op(i int) Op {
	return e.ops[i].Clone()
}

// Ops returns a copy of all ops in order.
func (e *Expression) Ops() []Op {
	ret := make([]Op, len(e.ops))
	for i, op := range e.ops {
		ret[i] = op.Clone()
	}
	return ret
}

// NumRegs returns the number of logical register slots the ops touch, which is
// the highest slot index plus one.
func (e *Expression) NumRegs() int {
	n := 0
	visit := func(o Operand) {
		if o.Kind == KindRegister && o.Reg+1 > n {
			n = o.Reg + 1
		}
	}
	for _, op := range e.ops {
		visit(op.Result)
		for _, a := range op.Args {
			visit(a)
		}
	}
	return n
}

// Uses returns true if any op is of one of the given types.
func (e *Expression) Uses(types ...OpType) bool {
	for _, op := range e.ops {
		for _, t := range types {
			if op.Type == t {
				return true
			}
		}
	}
	return false
}

// Validate checks the structural invariants of every op: a known type, the arity
// of the type, a register or memory result, resolved arguments, valid addresses,
// and integral shift counts.
func (e *Expression) Validate() error {
	for i, op := range e.ops {
		if err := validateOp(op); err != nil {
			return fmt.Errorf("%w: op %d (%s): %v", ErrInvalidOp, i, op, err)
		}
	}
	return nil
}

func validateOp(op Op) error {
	if op.Type >= opTypeEnd {
		return fmt.Errorf("unknown type %d", byte(op.Type))
	}
	if op.Result.Kind != KindRegister && op.Result.Kind != KindMemory {
		return fmt.Errorf("result must be a register or memory but was %s", op.Result.Kind)
	}
	if len(op.Args) != op.Type.Arity() {
		return fmt.Errorf("%s takes %d arguments but has %d", op.Type, op.Type.Arity(), len(op.Args))
	}
	if err := validateOperand(op.Result); err != nil {
		return fmt.Errorf("result: %v", err)
	}
	for i, a := range op.Args {
		if a.Kind == KindNone {
			return fmt.Errorf("argument %d is unresolved", i)
		}
		if err := validateOperand(a); err != nil {
			return fmt.Errorf("argument %d: %v", i, err)
		}
	}
	if op.Type.IsShift() {
		c := op.Args[1]
		if !c.IsImmediate() || !c.Count {
			return fmt.Errorf("shift count must be an integer immediate but was %s", c)
		}
		if c.Imm < 0 || c.Imm > 63 || c.Imm != math.Trunc(c.Imm) {
			return fmt.Errorf("shift count %v out of range", c.Imm)
		}
	} else {
		for i, a := range op.Args {
			if a.IsImmediate() && a.Count {
				return fmt.Errorf("argument %d: count %s only applies to shifts", i, a)
			}
		}
	}
	return nil
}

func validateOperand(o Operand) error {
	switch o.Kind {
	case KindRegister:
		if o.Reg < 0 {
			return fmt.Errorf("negative register index %d", o.Reg)
		}
	case KindMemory:
		a := o.Addr
		if a.Base == GPNone || a.Base > GPR15 {
			return fmt.Errorf("invalid base register in %s", a)
		}
		if a.Index > GPR15 || a.Index == GPSP {
			return fmt.Errorf("invalid index register in %s", a)
		}
		if a.Index != GPNone {
			switch a.Scale {
			case 1, 2, 4, 8:
			default:
				return fmt.Errorf("invalid scale %d in %s", a.Scale, a)
			}
		} else if a.Scale != 0 {
			return fmt.Errorf("scale without index in %s", a)
		}
	}
	return nil
}

// String renders the expression as a listing, one op per line.
func (e *Expression) String() string {
	var sb strings.Builder
	for _, op := range e.ops {
		sb.WriteString(op.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
