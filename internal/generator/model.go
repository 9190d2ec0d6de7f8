package generator

// Model is the set of operand shapes a generator variant lowers natively.
// Each flag is an independent fact; none is derived from another.
//
// "Op" flags are binary operations, "Func" flags unary functions and "Fm" flags
// fused multiply operations. "RegReg" is the two-address form where the result
// is also the first argument, "RegRegReg" the three-address form.
type Model struct {
	MovRegReg   bool
	MovRegImm   bool
	MovRegMem   bool
	MovMemReg   bool
	OpRegReg    bool
	OpRegImm    bool
	OpRegMem    bool
	OpRegRegReg bool
	OpRegRegImm bool
	OpRegRegMem bool
	FuncRegReg  bool
	FuncRegImm  bool
	FuncRegMem  bool
	FmRegRegReg bool
	FmRegRegImm bool
	FmRegRegMem bool
}

type modelFlag struct {
	name string
	get  func(m *Model) *bool
}

var modelFlags = [...]modelFlag{
	{"MovRegReg", func(m *Model) *bool { return &m.MovRegReg }},
	{"MovRegImm", func(m *Model) *bool { return &m.MovRegImm }},
	{"MovRegMem", func(m *Model) *bool { return &m.MovRegMem }},
	{"MovMemReg", func(m *Model) *bool { return &m.MovMemReg }},
	{"OpRegReg", func(m *Model) *bool { return &m.OpRegReg }},
	{"OpRegImm", func(m *Model) *bool { return &m.OpRegImm }},
	{"OpRegMem", func(m *Model) *bool { return &m.OpRegMem }},
	{"OpRegRegReg", func(m *Model) *bool { return &m.OpRegRegReg }},
	{"OpRegRegImm", func(m *Model) *bool { return &m.OpRegRegImm }},
	{"OpRegRegMem", func(m *Model) *bool { return &m.OpRegRegMem }},
	{"FuncRegReg", func(m *Model) *bool { return &m.FuncRegReg }},
	{"FuncRegImm", func(m *Model) *bool { return &m.FuncRegImm }},
	{"FuncRegMem", func(m *Model) *bool { return &m.FuncRegMem }},
	{"FmRegRegReg", func(m *Model) *bool { return &m.FmRegRegReg }},
	{"FmRegRegImm", func(m *Model) *bool { return &m.FmRegRegImm }},
	{"FmRegRegMem", func(m *Model) *bool { return &m.FmRegRegMem }},
}

// Flags returns the names of the set flags in declaration order.
func (m Model) Flags() []string {
	var ret []string
	for _, f := range modelFlags {
		if *f.get(&m) {
			ret = append(ret, f.name)
		}
	}
	return ret
}

// Covers returns true if every flag set in other is also set in m.
func (m Model) Covers(other Model) bool {
	for _, f := range modelFlags {
		if *f.get(&other) && !*f.get(&m) {
			return false
		}
	}
	return true
}

// Fused returns true if any fused multiply form is supported.
func (m Model) Fused() bool {
	return m.FmRegRegReg || m.FmRegRegImm || m.FmRegRegMem
}
