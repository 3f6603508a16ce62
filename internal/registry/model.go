// Package registry holds the immutable collection catalogue and resolves
// capability-typed providers for it.
package registry

import (
	"strings"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
)

// Text is a localizable string keyed by language tag.
type Text map[string]string

// Translate picks the best value for a locale: exact tag, then base
// language, then English, then any value at all.
func (t Text) Translate(locale string) string {
	if len(t) == 0 {
		return ""
	}
	if v, ok := t[locale]; ok {
		return v
	}
	if base, _, found := strings.Cut(locale, "-"); found {
		if v, ok := t[base]; ok {
			return v
		}
	}
	if v, ok := t["en"]; ok {
		return v
	}
	for _, v := range t {
		return v
	}
	return ""
}

type Visibility string

const (
	VisibilityDefault Visibility = "default"
	VisibilityHidden  Visibility = "hidden"
)

// SpatialExtent is a bounding box with its CRS.
type SpatialExtent struct {
	BBox []float64
	CRS  string
}

// TemporalExtent is a begin/end interval; either side may be open (empty).
type TemporalExtent struct {
	Begin string
	End   string
	TRS   string
}

type Extents struct {
	Spatial  *SpatialExtent
	Temporal *TemporalExtent
}

// Link is a static link carried in collection configuration.
type Link struct {
	Type     string
	Rel      string
	Title    Text
	Href     string
	Hreflang string
}

// Collection is one configured dataset. Built at startup, read-only after.
type Collection struct {
	ID          string
	Title       Text
	Description Text
	Keywords    []string
	Visibility  Visibility
	Extents     *Extents
	Links       []Link
	Providers   []provider.Binding
}

// Binding returns the first binding of the given capability.
func (c *Collection) Binding(cap provider.Capability) (provider.Binding, bool) {
	for _, b := range c.Providers {
		if b.Type == cap {
			return b, true
		}
	}
	return provider.Binding{}, false
}

// DefaultBinding is the collection's primary binding (first in the list).
func (c *Collection) DefaultBinding() (provider.Binding, bool) {
	if len(c.Providers) == 0 {
		return provider.Binding{}, false
	}
	return c.Providers[0], true
}

// Hidden reports whether the collection is excluded from listings.
func (c *Collection) Hidden() bool {
	return c.Visibility == VisibilityHidden
}
