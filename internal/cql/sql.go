package cql

import (
	"fmt"
	"strings"
)

// SQLBuilder accumulates a parameterized WHERE fragment for a parsed
// expression. Placeholders are pgx-style ($1, $2, ...), offset by the number
// of arguments already queued by the caller.
type SQLBuilder struct {
	Args []any
}

// Fragment renders e against the given set of legal column names. Properties
// outside the set are rejected so filter text can never name arbitrary
// columns.
func (b *SQLBuilder) Fragment(e Expr, columns map[string]bool) (string, error) {
	switch n := e.(type) {
	case And:
		return b.joined(n.Exprs, " AND ", columns)
	case Or:
		return b.joined(n.Exprs, " OR ", columns)
	case Not:
		inner, err := b.Fragment(n.Expr, columns)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case Comparison:
		col, err := checkColumn(n.Property, columns)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", col, n.Op, b.bind(n.Value)), nil
	case In:
		col, err := checkColumn(n.Property, columns)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(n.Values))
		for i, v := range n.Values {
			parts[i] = b.bind(v)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(parts, ", ")), nil
	case Between:
		col, err := checkColumn(n.Property, columns)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, b.bind(n.Low), b.bind(n.High)), nil
	case Like:
		col, err := checkColumn(n.Property, columns)
		if err != nil {
			return "", err
		}
		b.Args = append(b.Args, n.Pattern)
		return fmt.Sprintf("%s ILIKE $%d", col, len(b.Args)), nil
	case IsNull:
		col, err := checkColumn(n.Property, columns)
		if err != nil {
			return "", err
		}
		return col + " IS NULL", nil
	}
	return "", fmt.Errorf("unsupported expression %T", e)
}

func (b *SQLBuilder) joined(exprs []Expr, sep string, columns map[string]bool) (string, error) {
	parts := make([]string, len(exprs))
	for i, sub := range exprs {
		frag, err := b.Fragment(sub, columns)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + frag + ")"
	}
	return strings.Join(parts, sep), nil
}

func (b *SQLBuilder) bind(l Literal) string {
	if l.IsNum {
		b.Args = append(b.Args, l.Number)
	} else {
		b.Args = append(b.Args, l.Text)
	}
	return fmt.Sprintf("$%d", len(b.Args))
}

func checkColumn(name string, columns map[string]bool) (string, error) {
	if !columns[name] {
		return "", fmt.Errorf("unknown filter property %q", name)
	}
	return quoteIdent(name), nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
