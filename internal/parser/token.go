// Package parser tokenizes and parses the operator expression grammar
// into an AST. The grammar is small: Op(arg, arg, ...) or a bare atom,
// which is sugar for P(atom). Operator arity is enforced here at parse
// time, so no later stage ever sees an arity-violating tree.
package parser

import "fmt"

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokLParen
	tokRParen
	tokComma
	tokEOF
)

func (k tokenKind) String() string {
	switch k {
	case tokIdent:
		return "identifier"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokEOF:
		return "end of input"
	}
	return "unknown"
}

// token carries its source position for diagnostics. Line and column
// are 1-based.
type token struct {
	Kind   tokenKind
	Text   string
	Line   int
	Column int
}

// ParseError reports a tokenize or parse failure with its source
// position.
type ParseError struct {
	Msg    string
	Line   int
	Column int
}

func (e *ParseError) Error() string {
	return e.Msg
}

// errorf builds a positioned ParseError.
func errorf(line, col int, format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Line: line, Column: col}
}

// isIdentByte reports whether c may appear in an identifier. The
// grammar allows letters, digits, underscore, plus the superposition
// sign suffixes and the '$' variable sigil used in rewrite patterns.
func isIdentByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '+', c == '-', c == '$':
		return true
	}
	return false
}

// tokenize scans the input into tokens with line/column tracking.
func tokenize(input string) ([]token, error) {
	var toks []token
	line, col := 1, 1

	for i := 0; i < len(input); {
		c := input[i]
		switch {
		case c == '\n':
			line++
			col = 1
			i++
		case c == ' ' || c == '\t' || c == '\r':
			col++
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", line, col})
			col++
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", line, col})
			col++
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", line, col})
			col++
			i++
		case isIdentByte(c):
			start, startCol := i, col
			for i < len(input) && isIdentByte(input[i]) {
				i++
				col++
			}
			toks = append(toks, token{tokIdent, input[start:i], line, startCol})
		default:
			return nil, errorf(line, col, "unexpected character %q", string(c))
		}
	}

	toks = append(toks, token{tokEOF, "", line, col})
	return toks, nil
}
