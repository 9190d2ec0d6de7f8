package amd64

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Disassemble renders the machine code as one instruction per line in the form
// "0x0000: 0f 58 c1          ADDPS X0, X1". x86asm does not decode VEX-encoded
// instructions: their bytes are rendered with the text "(vex)". Bytes which
// cannot be decoded at all are rendered as "db" lines.
func Disassemble(code []byte) string {
	return DisassembleListing(code, nil)
}

// DisassembleListing is Disassemble, but when listing holds one entry per
// instruction in code, VEX-encoded instructions are rendered with their listing
// entry instead of "(vex)".
func DisassembleListing(code []byte, listing []string) string {
	insts := decode(code)
	if len(insts) != len(listing) {
		listing = nil
	}

	var sb strings.Builder
	for i, d := range insts {
		raw := code[d.offset : d.offset+d.length]
		switch {
		case d.length == 1 && d.text == "":
			sb.WriteString(fmt.Sprintf("0x%04x: db 0x%02x\n", d.offset, raw[0]))
			continue
		case d.text == "" && listing != nil:
			d.text = listing[i]
		case d.text == "":
			d.text = "(vex)"
		}
		sb.WriteString(fmt.Sprintf("0x%04x: %-16s %s\n", d.offset, hexBytes(raw), d.text))
	}
	return sb.String()
}

type decoded struct {
	offset, length int
	// text is empty for VEX-encoded instructions and undecodable bytes.
	text string
}

func decode(code []byte) []decoded {
	var ret []decoded
	for offset := 0; offset < len(code); {
		if n := vexLength(code[offset:]); n > 0 {
			ret = append(ret, decoded{offset: offset, length: n})
			offset += n
			continue
		}
		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil || inst.Len == 0 || inst.Op == 0 || isVEXLead(code[offset]) {
			ret = append(ret, decoded{offset: offset, length: 1})
			offset++
			continue
		}
		ret = append(ret, decoded{offset: offset, length: inst.Len, text: x86asm.GoSyntax(inst, uint64(offset), nil)})
		offset += inst.Len
	}
	return ret
}

func hexBytes(b []byte) string {
	ret := make([]string, len(b))
	for i, v := range b {
		ret[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(ret, " ")
}

func isVEXLead(b byte) bool {
	return b == 0xc4 || b == 0xc5
}

// vexLength returns the length of the VEX-encoded instruction at the start of
// code, or zero if code does not start with a complete one.
func vexLength(code []byte) int {
	if len(code) == 0 || !isVEXLead(code[0]) {
		return 0
	}

	var opcodeMap byte = 1
	n := 2
	if code[0] == 0xc4 {
		if len(code) < 2 {
			return 0
		}
		opcodeMap = code[1] & 0x1f
		n = 3
	}
	if opcodeMap < 1 || opcodeMap > 3 || len(code) < n+2 {
		return 0
	}
	opcode, modrm := code[n], code[n+1]
	n += 2

	mod, rm := modrm>>6, modrm&7
	if mod != 3 {
		if rm == 4 {
			if len(code) < n+1 {
				return 0
			}
			sib := code[n]
			n++
			if mod == 0 && sib&7 == 5 {
				n += 4
			}
		} else if mod == 0 && rm == 5 {
			n += 4
		}
		switch mod {
		case 1:
			n++
		case 2:
			n += 4
		}
	}

	if opcodeMap == 3 || (opcodeMap == 1 && vexMap1HasImm8(opcode)) {
		n++
	}
	if n > len(code) {
		return 0
	}
	return n
}

func vexMap1HasImm8(opcode byte) bool {
	switch opcode {
	case 0x70, 0x71, 0x72, 0x73, 0xc2, 0xc4, 0xc5, 0xc6:
		return true
	}
	return false
}
