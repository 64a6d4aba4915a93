package parser

import (
	"strings"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// Expr is the AST node interface. Concrete types: Atom, OpExpr.
type Expr interface {
	exprNode()

	// String renders the expression back to grammar text.
	String() string
}

// Atom is a bare identifier: a DOF reference, an atom argument, or a
// pattern variable in rewrite expressions. Variable-ness is decided by
// the rewrite engine, not here.
type Atom struct {
	Name   string
	Line   int
	Column int
}

func (Atom) exprNode() {}

func (a Atom) String() string { return a.Name }

// OpExpr is an operator application with its ordered arguments.
type OpExpr struct {
	Op     ir.Operator
	Args   []Expr
	Line   int
	Column int
}

func (OpExpr) exprNode() {}

func (o OpExpr) String() string {
	parts := make([]string, len(o.Args))
	for i, a := range o.Args {
		parts[i] = a.String()
	}
	return string(o.Op) + "(" + strings.Join(parts, ", ") + ")"
}

// Parse parses one expression. A bare atom at the top level stays an
// Atom; the translator applies the P-sugar so the AST round-trips the
// source text.
func Parse(input string) (Expr, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != tokEOF {
		return nil, errorf(tok.Line, tok.Column, "unexpected %s after expression", tok.Kind)
	}
	return expr, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.Kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.next()
	if tok.Kind != kind {
		return token{}, errorf(tok.Line, tok.Column, "expected %s, got %s", kind, tok.Kind)
	}
	return tok, nil
}

func (p *parser) parseExpr() (Expr, error) {
	tok, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}

	op := ir.Operator(tok.Text)
	if op.Valid() && p.peek().Kind == tokLParen {
		return p.parseOpExpr(tok, op)
	}
	if p.peek().Kind == tokLParen {
		return nil, errorf(tok.Line, tok.Column, "unknown operator %q", tok.Text)
	}
	return Atom{Name: tok.Text, Line: tok.Line, Column: tok.Column}, nil
}

func (p *parser) parseOpExpr(tok token, op ir.Operator) (Expr, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}

	var args []Expr
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		sep := p.next()
		if sep.Kind == tokComma {
			continue
		}
		if sep.Kind == tokRParen {
			break
		}
		return nil, errorf(sep.Line, sep.Column, "expected ',' or ')', got %s", sep.Kind)
	}

	if err := checkArity(tok, op, len(args)); err != nil {
		return nil, err
	}
	return OpExpr{Op: op, Args: args, Line: tok.Line, Column: tok.Column}, nil
}

// checkArity enforces the operator arity table. Messages name the
// operator, the expected count, and the actual count, in a fixed shape
// diagnostics consumers can rely on.
func checkArity(tok token, op ir.Operator, got int) *ParseError {
	arity := ir.OperatorArity[op]
	switch {
	case arity.Max >= 0 && arity.Min == arity.Max && got != arity.Min:
		return errorf(tok.Line, tok.Column, "%s expects %d argument%s, got %d",
			op, arity.Min, plural(arity.Min), got)
	case got < arity.Min:
		return errorf(tok.Line, tok.Column, "%s expects at least %d argument%s, got %d",
			op, arity.Min, plural(arity.Min), got)
	case arity.Max >= 0 && got > arity.Max:
		return errorf(tok.Line, tok.Column, "%s expects at most %d argument%s, got %d",
			op, arity.Max, plural(arity.Max), got)
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
