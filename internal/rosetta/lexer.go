package rosetta

import (
	"fmt"
	"strings"
)

type lexKind int

const (
	tokIdent lexKind = iota + 1
	tokNumber
	tokString
	tokHex // x"..." byte string
	tokPunct
)

func (k lexKind) String() string {
	switch k {
	case tokIdent:
		return "name"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokHex:
		return "byte string"
	case tokPunct:
		return "punctuation"
	default:
		return "token"
	}
}

type lexeme struct {
	kind lexKind
	text string // raw source text, quotes included for strings
	col  int    // 1-based
}

func (t lexeme) is(punct string) bool { return t.kind == tokPunct && t.text == punct }

// stripComment removes a trailing '#' comment, leaving '#' inside quotes.
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '.'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// lex splits one comment-free line into tokens.
func lex(line string) ([]lexeme, error) {
	var toks []lexeme
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case (c == 'x' || c == 'X') && i+1 < len(line) && line[i+1] == '"':
			end, err := scanString(line, i+1)
			if err != nil {
				return nil, err
			}
			toks = append(toks, lexeme{kind: tokHex, text: line[i:end], col: i + 1})
			i = end
		case isIdentStart(c):
			j := i + 1
			for j < len(line) && isIdentPart(line[j]) {
				j++
			}
			toks = append(toks, lexeme{kind: tokIdent, text: line[i:j], col: i + 1})
			i = j
		case isDigit(c) || ((c == '-' || c == '+') && i+1 < len(line) && (isDigit(line[i+1]) || line[i+1] == '.')) ||
			(c == '.' && i+1 < len(line) && isDigit(line[i+1])):
			j := i + 1
			for j < len(line) {
				d := line[j]
				if isDigit(d) || isIdentStart(d) || d == '.' {
					j++
					continue
				}
				// exponent sign: 1e-9
				if (d == '-' || d == '+') && (line[j-1] == 'e' || line[j-1] == 'E') && !strings.Contains(strings.ToLower(line[i:j]), "0x") {
					j++
					continue
				}
				break
			}
			toks = append(toks, lexeme{kind: tokNumber, text: line[i:j], col: i + 1})
			i = j
		case c == '"':
			end, err := scanString(line, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, lexeme{kind: tokString, text: line[i:end], col: i + 1})
			i = end
		case strings.IndexByte("=(),[]", c) >= 0:
			toks = append(toks, lexeme{kind: tokPunct, text: string(c), col: i + 1})
			i++
		default:
			return nil, &syntaxError{col: i + 1, msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return toks, nil
}

// scanString returns the offset just past the closing quote of the string
// starting at line[start].
func scanString(line string, start int) (int, error) {
	for j := start + 1; j < len(line); j++ {
		switch line[j] {
		case '\\':
			j++
		case '"':
			return j + 1, nil
		}
	}
	return 0, &syntaxError{col: start + 1, msg: "unterminated string"}
}

type syntaxError struct {
	col int
	msg string
}

func (e *syntaxError) Error() string { return e.msg }
