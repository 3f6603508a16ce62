package cql

import (
	"fmt"
	"strconv"
	"strings"
)

// Eval applies an expression to a flat property map. Missing properties fail
// every predicate except IS NULL.
func Eval(e Expr, props map[string]any) bool {
	switch n := e.(type) {
	case And:
		for _, sub := range n.Exprs {
			if !Eval(sub, props) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range n.Exprs {
			if Eval(sub, props) {
				return true
			}
		}
		return false
	case Not:
		return !Eval(n.Expr, props)
	case Comparison:
		v, ok := props[n.Property]
		if !ok || v == nil {
			return false
		}
		return compare(v, n.Op, n.Value)
	case In:
		v, ok := props[n.Property]
		if !ok || v == nil {
			return false
		}
		for _, lit := range n.Values {
			if compare(v, OpEq, lit) {
				return true
			}
		}
		return false
	case Between:
		v, ok := props[n.Property]
		if !ok || v == nil {
			return false
		}
		return compare(v, OpGe, n.Low) && compare(v, OpLe, n.High)
	case Like:
		v, ok := props[n.Property]
		if !ok || v == nil {
			return false
		}
		return likeMatch(stringify(v), n.Pattern)
	case IsNull:
		v, ok := props[n.Property]
		return !ok || v == nil
	}
	return false
}

func compare(v any, op CompareOp, lit Literal) bool {
	if lit.IsNum {
		f, ok := toFloat(v)
		if !ok {
			return false
		}
		switch op {
		case OpEq:
			return f == lit.Number
		case OpNe:
			return f != lit.Number
		case OpLt:
			return f < lit.Number
		case OpLe:
			return f <= lit.Number
		case OpGt:
			return f > lit.Number
		case OpGe:
			return f >= lit.Number
		}
		return false
	}

	s := stringify(v)
	switch op {
	case OpEq:
		return s == lit.Text
	case OpNe:
		return s != lit.Text
	case OpLt:
		return s < lit.Text
	case OpLe:
		return s <= lit.Text
	case OpGt:
		return s > lit.Text
	case OpGe:
		return s >= lit.Text
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}

// likeMatch implements SQL LIKE with % (any run) and _ (any single rune).
func likeMatch(s, pattern string) bool {
	return likeRec([]rune(s), []rune(pattern))
}

func likeRec(s, pat []rune) bool {
	if len(pat) == 0 {
		return len(s) == 0
	}
	switch pat[0] {
	case '%':
		for i := 0; i <= len(s); i++ {
			if likeRec(s[i:], pat[1:]) {
				return true
			}
		}
		return false
	case '_':
		return len(s) > 0 && likeRec(s[1:], pat[1:])
	default:
		return len(s) > 0 && strings.EqualFold(string(s[0]), string(pat[0])) && likeRec(s[1:], pat[1:])
	}
}
