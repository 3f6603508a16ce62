package cql

import "testing"

func TestSQLBuilder_Fragment(t *testing.T) {
	e := mustParse(t, "elevation >= 100 AND name LIKE 'ber%'")
	cols := map[string]bool{"elevation": true, "name": true}

	b := &SQLBuilder{}
	frag, err := b.Fragment(e, cols)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	want := `("elevation" >= $1) AND ("name" ILIKE $2)`
	if frag != want {
		t.Fatalf("fragment = %q, want %q", frag, want)
	}
	if len(b.Args) != 2 {
		t.Fatalf("args = %v", b.Args)
	}
	if b.Args[0] != 100.0 || b.Args[1] != "ber%" {
		t.Fatalf("unexpected args %v", b.Args)
	}
}

func TestSQLBuilder_PlaceholderOffset(t *testing.T) {
	b := &SQLBuilder{Args: []any{"already", "queued"}}
	frag, err := b.Fragment(mustParse(t, "a = 1"), map[string]bool{"a": true})
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if frag != `"a" = $3` {
		t.Fatalf("fragment = %q", frag)
	}
}

func TestSQLBuilder_RejectsUnknownColumn(t *testing.T) {
	b := &SQLBuilder{}
	if _, err := b.Fragment(mustParse(t, "secret = 1"), map[string]bool{"a": true}); err == nil {
		t.Fatalf("expected unknown column error")
	}
}
