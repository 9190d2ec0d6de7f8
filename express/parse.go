package express

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a listing as rendered by Expression.String:
//
//	# load two vectors and add them
//	r0 = mov [si]
//	r1 = mov [si+16]
//	r0 = add r0, r1
//	[di] = mov r0
//
// Registers are "r<slot>", memory is "[base+index*scale+disp]", float constants
// are "#<value>" and shift counts are "$<count>". Lines starting with "#" are
// comments. The parsed expression is validated.
func Parse(typ Type, listing string) (*Expression, error) {
	e := New(typ)
	s := bufio.NewScanner(strings.NewReader(listing))
	for line := 1; s.Scan(); line++ {
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		op, err := ParseOp(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		e.Add(op)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// ParseOp reads one op such as "r2 = add r0, r1". It does not validate the op.
func ParseOp(text string) (Op, error) {
	lhs, rhs, ok := strings.Cut(text, "=")
	if !ok {
		return Op{}, fmt.Errorf("%w: missing '=' in %q", ErrSyntax, text)
	}
	result, err := parseOperand(strings.TrimSpace(lhs))
	if err != nil {
		return Op{}, err
	}

	rhs = strings.TrimSpace(rhs)
	mnemonic, rest, _ := strings.Cut(rhs, " ")
	typ, ok := OpTypeByName(strings.ToLower(mnemonic))
	if !ok {
		return Op{}, fmt.Errorf("%w: unknown op %q", ErrSyntax, mnemonic)
	}

	op := Op{Type: typ, Result: result}
	if rest = strings.TrimSpace(rest); rest != "" {
		for _, field := range strings.Split(rest, ",") {
			a, err := parseOperand(strings.TrimSpace(field))
			if err != nil {
				return Op{}, err
			}
			op.Args = append(op.Args, a)
		}
	}
	return op, nil
}

func parseOperand(s string) (Operand, error) {
	switch {
	case s == "":
		return Operand{}, fmt.Errorf("%w: missing operand", ErrSyntax)
	case s[0] == 'r' && len(s) > 1 && s[1] >= '0' && s[1] <= '9':
		i, err := strconv.Atoi(s[1:])
		if err != nil {
			return Operand{}, fmt.Errorf("%w: invalid register %q", ErrSyntax, s)
		}
		return Reg(i), nil
	case s[0] == '#':
		v, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return Operand{}, fmt.Errorf("%w: invalid constant %q", ErrSyntax, s)
		}
		return Imm(v), nil
	case s[0] == '$':
		n, err := strconv.Atoi(s[1:])
		if err != nil {
			return Operand{}, fmt.Errorf("%w: invalid count %q", ErrSyntax, s)
		}
		return Count(n), nil
	case s[0] == '[' && s[len(s)-1] == ']':
		a, err := parseAddress(s[1 : len(s)-1])
		if err != nil {
			return Operand{}, err
		}
		return Mem(a), nil
	}
	return Operand{}, fmt.Errorf("%w: invalid operand %q", ErrSyntax, s)
}

// parseAddress reads "base", "base+disp", "base-disp", "base+index*scale" and
// "base+index*scale+disp".
func parseAddress(s string) (Address, error) {
	var a Address
	// Split into signed terms.
	var terms []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] == '+' || s[i] == '-' {
			terms = append(terms, s[start:i])
			start = i
		}
	}
	terms = append(terms, s[start:])

	for i, term := range terms {
		term = strings.TrimSpace(term)
		neg := strings.HasPrefix(term, "-")
		term = strings.TrimSpace(strings.TrimLeft(term, "+-"))
		switch {
		case i == 0:
			if neg {
				return a, fmt.Errorf("%w: address [%s] must start with a base register", ErrSyntax, s)
			}
			base, ok := GPRegisterByName(term)
			if !ok {
				return a, fmt.Errorf("%w: invalid base register %q", ErrSyntax, term)
			}
			a.Base = base
		case strings.Contains(term, "*"):
			if neg || a.Index != GPNone {
				return a, fmt.Errorf("%w: invalid index in [%s]", ErrSyntax, s)
			}
			name, scale, _ := strings.Cut(term, "*")
			index, ok := GPRegisterByName(strings.TrimSpace(name))
			if !ok {
				return a, fmt.Errorf("%w: invalid index register %q", ErrSyntax, name)
			}
			v, err := strconv.ParseUint(strings.TrimSpace(scale), 10, 8)
			if err != nil {
				return a, fmt.Errorf("%w: invalid scale %q", ErrSyntax, scale)
			}
			a.Index, a.Scale = index, uint8(v)
		default:
			if index, ok := GPRegisterByName(term); ok && !neg && a.Index == GPNone {
				a.Index, a.Scale = index, 1
				continue
			}
			v, err := strconv.ParseInt(term, 0, 32)
			if err != nil {
				return a, fmt.Errorf("%w: invalid displacement %q", ErrSyntax, term)
			}
			if neg {
				v = -v
			}
			a.Disp += int32(v)
		}
	}
	return a, nil
}
