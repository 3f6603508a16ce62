package cql

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, text string) Expr {
	t.Helper()
	e, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	return e
}

func TestParse_Comparison(t *testing.T) {
	e := mustParse(t, "elevation >= 100")
	cmp, ok := e.(Comparison)
	if !ok {
		t.Fatalf("expected Comparison, got %T", e)
	}
	if cmp.Property != "elevation" || cmp.Op != OpGe {
		t.Fatalf("unexpected comparison: %+v", cmp)
	}
	if !cmp.Value.IsNum || cmp.Value.Number != 100 {
		t.Fatalf("unexpected literal: %+v", cmp.Value)
	}
}

func TestParse_StringLiteralWithEscapedQuote(t *testing.T) {
	e := mustParse(t, "name = 'O''Brien'")
	cmp := e.(Comparison)
	if cmp.Value.Text != "O'Brien" {
		t.Fatalf("got %q", cmp.Value.Text)
	}
}

func TestParse_Precedence_AndBindsTighterThanOr(t *testing.T) {
	e := mustParse(t, "a = 1 OR b = 2 AND c = 3")
	or, ok := e.(Or)
	if !ok {
		t.Fatalf("expected Or at top, got %T", e)
	}
	if len(or.Exprs) != 2 {
		t.Fatalf("or arity = %d", len(or.Exprs))
	}
	if _, ok := or.Exprs[1].(And); !ok {
		t.Fatalf("expected And as second OR operand, got %T", or.Exprs[1])
	}
}

func TestParse_Parenthesized(t *testing.T) {
	e := mustParse(t, "(a = 1 OR b = 2) AND c = 3")
	and, ok := e.(And)
	if !ok {
		t.Fatalf("expected And at top, got %T", e)
	}
	if _, ok := and.Exprs[0].(Or); !ok {
		t.Fatalf("expected parenthesized Or first, got %T", and.Exprs[0])
	}
}

func TestParse_KeywordPredicates(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"status IN ('open', 'closed')", "In"},
		{"elevation BETWEEN 10 AND 20", "Between"},
		{"name LIKE 'ber%'", "Like"},
		{"name ILIKE 'BER%'", "Like"},
		{"wmo_id IS NULL", "IsNull"},
	}
	for _, tc := range cases {
		e := mustParse(t, tc.text)
		got := ""
		switch e.(type) {
		case In:
			got = "In"
		case Between:
			got = "Between"
		case Like:
			got = "Like"
		case IsNull:
			got = "IsNull"
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %T, want %s", tc.text, e, tc.want)
		}
	}
}

func TestParse_IsNotNull(t *testing.T) {
	e := mustParse(t, "wmo_id IS NOT NULL")
	not, ok := e.(Not)
	if !ok {
		t.Fatalf("expected Not, got %T", e)
	}
	if _, ok := not.Expr.(IsNull); !ok {
		t.Fatalf("expected IsNull under Not, got %T", not.Expr)
	}
}

func TestParse_NotIn(t *testing.T) {
	e := mustParse(t, "status NOT IN ('closed')")
	not, ok := e.(Not)
	if !ok {
		t.Fatalf("expected Not, got %T", e)
	}
	if _, ok := not.Expr.(In); !ok {
		t.Fatalf("expected In under Not, got %T", not.Expr)
	}
}

func TestParse_CaseInsensitiveKeywords(t *testing.T) {
	mustParse(t, "a = 1 and b = 2 or not c = 3")
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"",
		"name =",
		"name LIKE 5",
		"elevation BETWEEN 10",
		"status IN ('open'",
		"(a = 1",
		"name = 'unterminated",
		"a = 1 trailing",
	}
	for _, text := range bad {
		if _, err := Parse(text); err == nil {
			t.Fatalf("Parse(%q): expected error", text)
		} else {
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse(%q): error type %T, want *ParseError", text, err)
			}
		}
	}
}

func TestCache_MemoizesResultsAndFailures(t *testing.T) {
	c, err := NewCache(4)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	e1, err := c.Parse("a = 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e2, err := c.Parse("a = 1")
	if err != nil {
		t.Fatalf("Parse (cached): %v", err)
	}
	if e1 != e2 {
		t.Fatalf("expected the identical cached expression")
	}

	if _, err := c.Parse("a ="); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := c.Parse("a ="); err == nil {
		t.Fatalf("expected cached parse error")
	}
}
