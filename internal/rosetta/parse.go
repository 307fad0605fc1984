package rosetta

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/scrawl/internal/isa"
)

// statement is one parsed line: [target =] callee[(args)].
type statement struct {
	line   int
	target *lexeme
	callee lexeme
	args   []argument
}

type argument struct {
	name  string // empty for positional
	value value
}

// value is a single token or a bracketed list.
type value struct {
	tok    lexeme
	list   []lexeme
	isList bool
}

func (v value) col() int { return v.tok.col }

func parseStatement(lineNo int, toks []lexeme) (*statement, error) {
	st := &statement{line: lineNo}
	i := 0
	if len(toks) >= 2 && toks[1].is("=") {
		if toks[0].kind != tokIdent {
			return nil, &syntaxError{col: toks[0].col, msg: fmt.Sprintf("cannot assign to %s %s", toks[0].kind, toks[0].text)}
		}
		st.target = &toks[0]
		i = 2
	}
	if i >= len(toks) {
		return nil, &syntaxError{col: toks[len(toks)-1].col, msg: "missing operation after '='"}
	}
	if toks[i].kind != tokIdent {
		return nil, &syntaxError{col: toks[i].col, msg: fmt.Sprintf("expected operation name, got %s %s", toks[i].kind, toks[i].text)}
	}
	st.callee = toks[i]
	i++
	if i == len(toks) {
		return st, nil
	}
	if !toks[i].is("(") {
		return nil, &syntaxError{col: toks[i].col, msg: fmt.Sprintf("expected '(' after %s", st.callee.text)}
	}
	i++

	for {
		if i >= len(toks) {
			return nil, &syntaxError{col: toks[len(toks)-1].col, msg: "missing ')'"}
		}
		if toks[i].is(")") && len(st.args) == 0 {
			i++
			break
		}
		var arg argument
		if toks[i].kind == tokIdent && i+1 < len(toks) && toks[i+1].is("=") {
			arg.name = toks[i].text
			i += 2
		}
		v, next, err := parseValue(toks, i)
		if err != nil {
			return nil, err
		}
		arg.value = v
		st.args = append(st.args, arg)
		i = next

		if i >= len(toks) {
			return nil, &syntaxError{col: toks[len(toks)-1].col, msg: "missing ')'"}
		}
		if toks[i].is(")") {
			i++
			break
		}
		if !toks[i].is(",") {
			return nil, &syntaxError{col: toks[i].col, msg: fmt.Sprintf("expected ',' or ')', got %s", toks[i].text)}
		}
		i++
	}
	if i != len(toks) {
		return nil, &syntaxError{col: toks[i].col, msg: fmt.Sprintf("unexpected %s after ')'", toks[i].text)}
	}
	return st, nil
}

func parseValue(toks []lexeme, i int) (value, int, error) {
	if i >= len(toks) {
		return value{}, i, &syntaxError{col: toks[len(toks)-1].col, msg: "missing value"}
	}
	t := toks[i]
	switch {
	case t.is("["):
		v := value{tok: t, isList: true}
		i++
		for {
			if i >= len(toks) {
				return value{}, i, &syntaxError{col: t.col, msg: "missing ']'"}
			}
			if toks[i].is("]") && len(v.list) == 0 {
				return v, i + 1, nil
			}
			if toks[i].kind == tokPunct {
				return value{}, i, &syntaxError{col: toks[i].col, msg: fmt.Sprintf("unexpected %s in list", toks[i].text)}
			}
			v.list = append(v.list, toks[i])
			i++
			if i >= len(toks) {
				return value{}, i, &syntaxError{col: t.col, msg: "missing ']'"}
			}
			if toks[i].is("]") {
				return v, i + 1, nil
			}
			if !toks[i].is(",") {
				return value{}, i, &syntaxError{col: toks[i].col, msg: fmt.Sprintf("expected ',' or ']', got %s", toks[i].text)}
			}
			i++
		}
	case t.kind == tokPunct:
		return value{}, i, &syntaxError{col: t.col, msg: fmt.Sprintf("unexpected %s", t.text)}
	default:
		return value{tok: t}, i + 1, nil
	}
}

// operand converts a parsed value for slot. Names resolve to registers
// first, then to the slot's enum values.
func operand(slot isa.Slot, v value) (isa.Operand, error) {
	if v.isList {
		agents := make(isa.Agents, 0, len(v.list))
		for _, t := range v.list {
			if t.kind != tokNumber {
				return nil, fmt.Errorf("agent list holds %s %s, want integers", t.kind, t.text)
			}
			n, err := strconv.ParseInt(t.text, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("agent id %s: %w", t.text, err)
			}
			agents = append(agents, isa.AgentID(n))
		}
		return agents, nil
	}

	t := v.tok
	switch t.kind {
	case tokNumber:
		return parseNumber(t.text)
	case tokString:
		s, err := strconv.Unquote(t.text)
		if err != nil {
			return nil, fmt.Errorf("string %s: %w", t.text, err)
		}
		return isa.Bytes(s), nil
	case tokHex:
		b, err := hex.DecodeString(t.text[2 : len(t.text)-1])
		if err != nil {
			return nil, fmt.Errorf("byte string %s: %w", t.text, err)
		}
		return isa.Bytes(b), nil
	case tokIdent:
		if r, ok := isa.ParseReg(t.text); ok {
			return r, nil
		}
		if slot.Kind == isa.SlotEnum {
			if n, ok := slot.EnumValue(t.text); ok {
				return isa.Int(n), nil
			}
			return nil, fmt.Errorf("%s: %q is not one of %s", slot.Name, t.text, strings.Join(slot.Enum, ", "))
		}
		return nil, fmt.Errorf("unknown name %q", t.text)
	}
	return nil, fmt.Errorf("unexpected %s %s", t.kind, t.text)
}

func parseNumber(s string) (isa.Operand, error) {
	n, err := strconv.ParseInt(s, 0, 64)
	if err == nil {
		return isa.Int(n), nil
	}
	lower := strings.ToLower(strings.TrimLeft(s, "+-"))
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0b") || strings.HasPrefix(lower, "0o") ||
		!strings.ContainsAny(lower, ".e") {
		return nil, fmt.Errorf("integer %s: %w", s, err)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("number %s: %w", s, err)
	}
	return isa.Float(f), nil
}
