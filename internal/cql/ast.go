// Package cql models CQL text predicates and parses them into an
// expression tree that providers can evaluate or translate.
package cql

import "fmt"

type Expr interface {
	expr()
}

type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Comparison is a binary property test, e.g. elevation >= 100.
type Comparison struct {
	Property string
	Op       CompareOp
	Value    Literal
}

// And joins sub-expressions conjunctively.
type And struct {
	Exprs []Expr
}

// Or joins sub-expressions disjunctively.
type Or struct {
	Exprs []Expr
}

type Not struct {
	Expr Expr
}

// In tests membership, e.g. type IN ('city', 'town').
type In struct {
	Property string
	Values   []Literal
}

// Between is an inclusive range test.
type Between struct {
	Property string
	Low      Literal
	High     Literal
}

// Like is a pattern match with % and _ wildcards.
type Like struct {
	Property string
	Pattern  string
}

// IsNull tests for property absence.
type IsNull struct {
	Property string
}

func (Comparison) expr() {}
func (And) expr()        {}
func (Or) expr()         {}
func (Not) expr()        {}
func (In) expr()         {}
func (Between) expr()    {}
func (Like) expr()       {}
func (IsNull) expr()     {}

// Literal is a string or numeric constant from the filter text.
type Literal struct {
	Text   string
	Number float64
	IsNum  bool
}

func (l Literal) String() string {
	if l.IsNum {
		return fmt.Sprintf("%g", l.Number)
	}
	return l.Text
}

// ParseError reports an invalid filter string.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cql parse error at %d: %s", e.Pos, e.Msg)
}
