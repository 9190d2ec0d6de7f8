package generator

import (
	"errors"
	"fmt"

	"github.com/exprjit/exprjit/express"
	"github.com/exprjit/exprjit/internal/platform"
)

var (
	// ErrUnsupportedOperation is returned when a variant has no lowering for an op,
	// or lacks a CPU feature it needs.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrIllegalOperandShape is returned when an op's operand kinds are not in the
	// variant's model.
	ErrIllegalOperandShape = errors.New("illegal operand shape")
	// ErrRegisterReservation is returned when the register index cannot satisfy
	// a reservation.
	ErrRegisterReservation = errors.New("register reservation failed")
)

// UnsupportedError describes why a variant cannot lower an expression.
type UnsupportedError struct {
	Variant Variant
	// Index is the position of the op in the expression, or -1 if the variant
	// itself cannot be constructed.
	Index int
	Op    express.OpType
	// Feature is the missing CPU feature, or zero if the variant has no lowering
	// for Op at all.
	Feature platform.CpuFeature
}

// Error implements error.
func (e *UnsupportedError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("%s: %s: requires %s", e.Variant, ErrUnsupportedOperation, e.Feature)
	case e.Feature == 0:
		return fmt.Sprintf("%s: %s: op %d (%s)", e.Variant, ErrUnsupportedOperation, e.Index, e.Op)
	default:
		return fmt.Sprintf("%s: %s: op %d (%s) requires %s", e.Variant, ErrUnsupportedOperation, e.Index, e.Op, e.Feature)
	}
}

// Unwrap returns ErrUnsupportedOperation.
func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupportedOperation
}

// ShapeError describes an op whose operand shape is not in the variant's model.
type ShapeError struct {
	Variant Variant
	Index   int
	Op      express.Op
	Shape   string
}

// Error implements error.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: op %d (%s): %s", e.Variant, ErrIllegalOperandShape, e.Index, e.Op, e.Shape)
}

// Unwrap returns ErrIllegalOperandShape.
func (e *ShapeError) Unwrap() error {
	return ErrIllegalOperandShape
}
