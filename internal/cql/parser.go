package cql

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse reads a CQL text predicate into an expression tree. It covers the
// comparison subset used for server-side filtering: comparisons, AND/OR/NOT,
// IN, BETWEEN, LIKE and IS [NOT] NULL. Returns *ParseError on bad input.
func Parse(text string) (Expr, error) {
	p := &parser{src: text}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errf("unexpected trailing input %q", p.src[p.pos:])
	}
	return expr, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errf(format string, args ...any) *ParseError {
	return &ParseError{Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

// keyword consumes kw case-insensitively if it is next, bounded by a
// non-identifier rune.
func (p *parser) keyword(kw string) bool {
	p.skipSpace()
	end := p.pos + len(kw)
	if end > len(p.src) {
		return false
	}
	if !strings.EqualFold(p.src[p.pos:end], kw) {
		return false
	}
	if end < len(p.src) && isIdentRune(rune(p.src[end])) {
		return false
	}
	p.pos = end
	return true
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{left}
	for p.keyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, right)
	}
	if len(exprs) == 1 {
		return left, nil
	}
	return Or{Exprs: exprs}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{left}
	for p.keyword("AND") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, right)
	}
	if len(exprs) == 1 {
		return left, nil
	}
	return And{Exprs: exprs}, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.keyword("NOT") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return nil, p.errf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (Expr, error) {
	prop, err := p.parseIdent()
	if err != nil {
		return nil, err
	}

	switch {
	case p.keyword("IS"):
		neg := p.keyword("NOT")
		if !p.keyword("NULL") {
			return nil, p.errf("expected NULL after IS")
		}
		var e Expr = IsNull{Property: prop}
		if neg {
			e = Not{Expr: e}
		}
		return e, nil

	case p.keyword("NOT"):
		inner, err := p.parsePropPredicate(prop)
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	}

	return p.parsePropPredicate(prop)
}

// parsePropPredicate handles the keyword-introduced predicates that follow a
// property name. Returns (nil, nil) when none of them is next.
func (p *parser) parsePropPredicate(prop string) (Expr, error) {
	switch {
	case p.keyword("IN"):
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '(' {
			return nil, p.errf("expected ( after IN")
		}
		p.pos++
		var vals []Literal
		for {
			lit, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			vals = append(vals, lit)
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == ',' {
				p.pos++
				continue
			}
			break
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return nil, p.errf("missing ) in IN list")
		}
		p.pos++
		return In{Property: prop, Values: vals}, nil

	case p.keyword("BETWEEN"):
		low, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if !p.keyword("AND") {
			return nil, p.errf("expected AND in BETWEEN")
		}
		high, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return Between{Property: prop, Low: low, High: high}, nil

	case p.keyword("LIKE"), p.keyword("ILIKE"):
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if lit.IsNum {
			return nil, p.errf("LIKE pattern must be a string")
		}
		return Like{Property: prop, Pattern: lit.Text}, nil
	}

	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return Comparison{Property: prop, Op: op, Value: lit}, nil
}

func (p *parser) parseIdent() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isIdentRune(rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errf("expected property name")
	}
	return p.src[start:p.pos], nil
}

func (p *parser) parseCompareOp() (CompareOp, error) {
	p.skipSpace()
	rest := p.src[p.pos:]
	for _, op := range []CompareOp{OpLe, OpGe, OpNe, OpEq, OpLt, OpGt} {
		if strings.HasPrefix(rest, string(op)) {
			p.pos += len(op)
			return op, nil
		}
	}
	if strings.HasPrefix(rest, "!=") {
		p.pos += 2
		return OpNe, nil
	}
	return "", p.errf("expected comparison operator")
}

func (p *parser) parseLiteral() (Literal, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return Literal{}, p.errf("expected literal")
	}
	if p.src[p.pos] == '\'' {
		p.pos++
		var b strings.Builder
		for p.pos < len(p.src) {
			c := p.src[p.pos]
			if c == '\'' {
				// doubled quote escapes a quote
				if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\'' {
					b.WriteByte('\'')
					p.pos += 2
					continue
				}
				p.pos++
				return Literal{Text: b.String()}, nil
			}
			b.WriteByte(c)
			p.pos++
		}
		return Literal{}, p.errf("unterminated string literal")
	}

	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if c == '-' || c == '+' || c == '.' || unicode.IsDigit(c) || unicode.IsLetter(c) || c == '_' {
			p.pos++
			continue
		}
		break
	}
	tok := p.src[start:p.pos]
	if tok == "" {
		return Literal{}, p.errf("expected literal")
	}
	if n, err := strconv.ParseFloat(tok, 64); err == nil {
		return Literal{Number: n, IsNum: true}, nil
	}
	switch strings.ToUpper(tok) {
	case "TRUE":
		return Literal{Text: "true"}, nil
	case "FALSE":
		return Literal{Text: "false"}, nil
	}
	// bare word, treated as a string constant
	return Literal{Text: tok}, nil
}
