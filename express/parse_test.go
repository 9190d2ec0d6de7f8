package express

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	const listing = `
# load two vectors, add and clamp
r0 = mov [si]
r1 = mov [si+16]
r2 = add r0, r1
r2 = relu r2
r3 = mov #0
r4 = mov #-2.5
r5 = shl r2, $23
r6 = max r6, [si+cx*4-8]
r7 = MulAdd231 r7, r0, [bx+r8]
[di] = mov r2
`
	e, err := Parse(Float32, listing)
	require.NoError(t, err)
	require.Equal(t, 10, e.Len())
	require.Equal(t, 8, e.NumRegs())

	require.Equal(t, Op{Type: OpMov, Result: Reg(0), Args: []Operand{Mem(Address{Base: GPSI})}}, e.Op(0))
	require.Equal(t, Op{Type: OpMov, Result: Reg(1), Args: []Operand{Mem(Address{Base: GPSI, Disp: 16})}}, e.Op(1))
	require.Equal(t, Op{Type: OpAdd, Result: Reg(2), Args: []Operand{Reg(0), Reg(1)}}, e.Op(2))
	require.True(t, e.Op(4).Args[0].IsZero())
	require.Equal(t, -2.5, e.Op(5).Args[0].Imm)
	require.Equal(t, Count(23), e.Op(6).Args[1])
	require.Equal(t, Address{Base: GPSI, Index: GPCX, Scale: 4, Disp: -8}, e.Op(7).Args[1].Addr)
	require.Equal(t, OpMulAdd231, e.Op(8).Type)
	require.Equal(t, Address{Base: GPBX, Index: GPR8, Scale: 1}, e.Op(8).Args[2].Addr)
	require.Equal(t, Mem(Address{Base: GPDI}), e.Op(9).Result)

	// The listing of a parsed expression parses back to the same expression.
	again, err := Parse(Float32, e.String())
	require.NoError(t, err)
	require.Equal(t, e.Ops(), again.Ops())
}

func TestParse_errors(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		expErr  string
		syntax  bool
	}{
		{name: "missing equals", listing: "r0 mov r1", expErr: `line 1: syntax error: missing '=' in "r0 mov r1"`, syntax: true},
		{name: "unknown op", listing: "r0 = fma r1", expErr: `line 1: syntax error: unknown op "fma"`, syntax: true},
		{name: "bad register", listing: "\n\nr0x = mov r1", expErr: `line 3: syntax error: invalid register "r0x"`, syntax: true},
		{name: "bad constant", listing: "r0 = mov #one", expErr: `line 1: syntax error: invalid constant "#one"`, syntax: true},
		{name: "bad count", listing: "r0 = shl r0, $x", expErr: `line 1: syntax error: invalid count "$x"`, syntax: true},
		{name: "bad base", listing: "r0 = mov [xx+1]", expErr: `line 1: syntax error: invalid base register "xx"`, syntax: true},
		{name: "bad operand", listing: "r0 = mov x", expErr: `line 1: syntax error: invalid operand "x"`, syntax: true},
		{name: "missing operand", listing: "r0 = add r0,", expErr: `line 1: syntax error: missing operand`, syntax: true},
		{name: "invalid op", listing: "r0 = add r0", expErr: "invalid op: op 0 (r0 = add r0): add takes 2 arguments but has 1"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(Float64, tc.listing)
			require.EqualError(t, err, tc.expErr)
			require.Equal(t, tc.syntax, errors.Is(err, ErrSyntax))
		})
	}
}
