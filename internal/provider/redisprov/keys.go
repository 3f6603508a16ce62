package redisprov

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Key layout, namespaced by collection:
//
//	feat:<ns>:<id>        feature body (GeoJSON)
//	cell:<ns>:<res>:<c>   set of feature ids in H3 cell c
//	ids:<ns>              set of every feature id
//
// The namespace is the sanitized collection name plus a hash of the raw
// name, so distinct names that sanitize identically cannot collide.
func namespace(collection string) string {
	raw := strings.TrimSpace(collection)
	return fmt.Sprintf("%s-%016x", sanitize(raw), xxhash.Sum64String(raw))
}

func featureKey(ns, id string) string {
	return "feat:" + ns + ":" + strings.TrimSpace(id)
}

func cellKey(ns string, res int, cell string) string {
	return fmt.Sprintf("cell:%s:%d:%s", ns, res, cell)
}

func idsKey(ns string) string {
	return "ids:" + ns
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
