// Package regindex is the default register index: it maps the logical
// register slots of one expression onto physical XMM registers. It never
// spills; a request which does not fit into the free registers fails.
package regindex

import (
	"fmt"
	"strings"

	"github.com/exprjit/exprjit/internal/asm"
	"github.com/exprjit/exprjit/internal/asm/amd64"
)

// xmmRegisters are the candidates in allocation order.
var xmmRegisters = []asm.Register{
	amd64.RegX0, amd64.RegX1, amd64.RegX2, amd64.RegX3, amd64.RegX4, amd64.RegX5, amd64.RegX6, amd64.RegX7,
	amd64.RegX8, amd64.RegX9, amd64.RegX10, amd64.RegX11, amd64.RegX12, amd64.RegX13, amd64.RegX14, amd64.RegX15,
}

// Index holds at most one window of XMM registers at a time.
type Index struct {
	// usedRegisters are the registers the caller keeps for itself.
	usedRegisters map[asm.Register]struct{}
	// window holds the physical register of each logical slot while reserved.
	window []asm.Register
}

// New returns an Index over X0-X15 minus the given registers. Y registers are
// accepted and reserve their X half.
func New(reserved ...asm.Register) *Index {
	x := &Index{usedRegisters: map[asm.Register]struct{}{}}
	x.markRegisterUsed(reserved...)
	return x
}

func (x *Index) markRegisterUsed(regs ...asm.Register) {
	for _, reg := range regs {
		if amd64.IsYMM(reg) {
			reg = amd64.XMM(reg)
		}
		x.usedRegisters[reg] = struct{}{}
	}
}

// String implements fmt.Stringer.
func (x *Index) String() string {
	var window []string
	for _, r := range x.window {
		window = append(window, amd64.RegisterName(r))
	}
	return fmt.Sprintf("window=[%s], free=%d", strings.Join(window, ","), x.Free())
}

// Free returns the number of registers a window can use.
func (x *Index) Free() int {
	return len(xmmRegisters) - len(x.usedRegisters)
}

// takeFreeRegisters returns the first num registers which are not used.
func (x *Index) takeFreeRegisters(num int) (regs []asm.Register, found bool) {
	regs = make([]asm.Register, 0, num)
	for _, candidate := range xmmRegisters {
		if _, ok := x.usedRegisters[candidate]; ok {
			continue
		}
		if len(regs) == num {
			break
		}
		regs = append(regs, candidate)
	}
	found = len(regs) == num
	return
}

// ReserveXMMRegisters reserves a window of n registers for the logical slots 0 to n-1.
func (x *Index) ReserveXMMRegisters(n int) error {
	if n < 0 {
		return fmt.Errorf("invalid number of registers: %d", n)
	}
	if x.window != nil {
		return fmt.Errorf("a window of %d registers is already reserved", len(x.window))
	}
	regs, found := x.takeFreeRegisters(n)
	if !found {
		return fmt.Errorf("%d XMM registers requested but only %d are free", n, x.Free())
	}
	x.window = regs
	return nil
}

// XMM returns the physical register of the logical slot i in the current window.
func (x *Index) XMM(i int) asm.Register {
	if i < 0 || i >= len(x.window) {
		panic(fmt.Sprintf("BUG: register slot %d is out of the reserved window of %d", i, len(x.window)))
	}
	return x.window[i]
}

// Release gives the current window back.
func (x *Index) Release() {
	x.window = nil
}
