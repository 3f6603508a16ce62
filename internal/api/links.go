package api

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
	"github.com/opencdms-dev/opencdms-api/internal/registry"
)

// Link is one entry of a response links array.
type Link struct {
	Type     string `json:"type,omitempty"`
	Rel      string `json:"rel"`
	Title    string `json:"title,omitempty"`
	Href     string `json:"href"`
	Hreflang string `json:"hreflang,omitempty"`
}

// timeStampFormat is UTC with fixed microsecond precision.
const timeStampFormat = "2006-01-02T15:04:05.000000Z"

// serializeQueryParams re-encodes the original query string minus f and
// offset, so every pagination and alternate-format link round-trips the
// active filters. Keys are strictly percent-encoded; values keep commas
// readable.
func serializeQueryParams(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "f" || k == "offset" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			b.WriteByte('&')
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(escapeValue(v))
		}
	}
	return b.String()
}

func escapeValue(v string) string {
	escaped := url.QueryEscape(v)
	return strings.ReplaceAll(escaped, "%2C", ",")
}

// itemsLinks builds the link set of an items response: self plus alternate
// formats, prev/next when applicable, and the collection backlink.
func itemsLinks(itemsURI, collectionTitle string, values url.Values, requested Format, offset, limit, returned int) []Link {
	suffix := serializeQueryParams(values)

	links := []Link{
		{
			Type:  contentTypeGeoJSON,
			Rel:   linkRel(requested, FormatJSON),
			Title: "This document as GeoJSON",
			Href:  fmt.Sprintf("%s?f=%s%s", itemsURI, FormatJSON, suffix),
		},
		{
			Type:  contentTypeJSONLD,
			Rel:   linkRel(requested, FormatJSONLD),
			Title: "This document as RDF (JSON-LD)",
			Href:  fmt.Sprintf("%s?f=%s%s", itemsURI, FormatJSONLD, suffix),
		},
		{
			Type:  contentTypeHTML,
			Rel:   linkRel(requested, FormatHTML),
			Title: "This document as HTML",
			Href:  fmt.Sprintf("%s?f=%s%s", itemsURI, FormatHTML, suffix),
		},
	}

	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, Link{
			Type:  contentTypeGeoJSON,
			Rel:   "prev",
			Title: "items (prev)",
			Href:  fmt.Sprintf("%s?offset=%d%s", itemsURI, prev, suffix),
		})
	}

	if returned == limit {
		links = append(links, Link{
			Type:  contentTypeGeoJSON,
			Rel:   "next",
			Title: "items (next)",
			Href:  fmt.Sprintf("%s?offset=%d%s", itemsURI, offset+limit, suffix),
		})
	}

	links = append(links, Link{
		Type:  contentTypeJSON,
		Rel:   "collection",
		Title: collectionTitle,
		Href:  strings.TrimSuffix(itemsURI, "/items"),
	})

	return links
}

// linkRel is "self" for the link matching the requested format and
// "alternate" for everything else.
func linkRel(requested, target Format) string {
	if requested == target || (requested == "" && target == FormatJSON) {
		return "self"
	}
	return "alternate"
}

// staticLinks localizes the configured link list of a collection.
func staticLinks(c *registry.Collection, locale string) []Link {
	out := make([]Link, 0, len(c.Links))
	for _, l := range c.Links {
		out = append(out, Link{
			Type:     l.Type,
			Rel:      l.Rel,
			Title:    l.Title.Translate(locale),
			Href:     l.Href,
			Hreflang: l.Hreflang,
		})
	}
	return out
}

// formatVariantLink advertises a provider-declared extra format.
func formatVariantLink(baseHref string, f *provider.Format, rel, titlePrefix string) *Link {
	if f == nil {
		return nil
	}
	return &Link{
		Type:  f.MimeType,
		Rel:   rel,
		Title: fmt.Sprintf("%s as %s", titlePrefix, f.Name),
		Href:  fmt.Sprintf("%s?f=%s", baseHref, f.Name),
	}
}
