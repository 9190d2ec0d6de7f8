package regindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exprjit/exprjit/internal/asm/amd64"
)

func TestIndex_ReserveXMMRegisters(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		x := New()
		require.Equal(t, 16, x.Free())
		require.NoError(t, x.ReserveXMMRegisters(16))
		require.Equal(t, amd64.RegX0, x.XMM(0))
		require.Equal(t, amd64.RegX15, x.XMM(15))
	})
	t.Run("skips reserved", func(t *testing.T) {
		x := New(amd64.RegX0, amd64.RegY2)
		require.Equal(t, 14, x.Free())
		require.NoError(t, x.ReserveXMMRegisters(3))
		require.Equal(t, amd64.RegX1, x.XMM(0))
		require.Equal(t, amd64.RegX3, x.XMM(1))
		require.Equal(t, amd64.RegX4, x.XMM(2))
		require.Equal(t, "window=[X1,X3,X4], free=14", x.String())
	})
	t.Run("zero", func(t *testing.T) {
		x := New()
		require.NoError(t, x.ReserveXMMRegisters(0))
		require.Panics(t, func() { x.XMM(0) })
	})
	t.Run("not enough", func(t *testing.T) {
		x := New(amd64.RegX15)
		err := x.ReserveXMMRegisters(16)
		require.EqualError(t, err, "16 XMM registers requested but only 15 are free")
	})
	t.Run("negative", func(t *testing.T) {
		require.Error(t, New().ReserveXMMRegisters(-1))
	})
	t.Run("twice", func(t *testing.T) {
		x := New()
		require.NoError(t, x.ReserveXMMRegisters(2))
		require.EqualError(t, x.ReserveXMMRegisters(2), "a window of 2 registers is already reserved")
		x.Release()
		require.NoError(t, x.ReserveXMMRegisters(2))
	})
}

func TestIndex_XMM_outOfWindow(t *testing.T) {
	x := New()
	require.NoError(t, x.ReserveXMMRegisters(2))
	require.Panics(t, func() { x.XMM(2) })
	require.Panics(t, func() { x.XMM(-1) })
	x.Release()
	require.Panics(t, func() { x.XMM(0) })
}
