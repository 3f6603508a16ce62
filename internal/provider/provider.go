// Package provider defines the backend contract used by the collection
// query engine: capability-tagged bindings, the query shape, and the result
// shape. Concrete backends register themselves by name, mirroring how
// request handlers self-register in their own packages.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
)

type Capability string

const (
	CapabilityFeature  Capability = "feature"
	CapabilityRecord   Capability = "record"
	CapabilityCoverage Capability = "coverage"
	CapabilityTile     Capability = "tile"
	CapabilityEDR      Capability = "edr"
)

var (
	// ErrConnection means the backend could not be reached.
	ErrConnection = errors.New("provider connection error")
	// ErrQuery means the backend rejected or failed the query.
	ErrQuery = errors.New("provider query error")
	// ErrGeneric covers backend failures outside the other two classes.
	ErrGeneric = errors.New("provider generic error")
)

// Format describes an extra output format a binding advertises.
type Format struct {
	Name     string
	MimeType string
}

// Binding ties one capability of a collection to a named backend.
type Binding struct {
	Type       Capability
	Name       string
	Connection map[string]string
	Format     *Format
}

// Field describes one queryable property. The attribute set is closed:
// a type name and an optional enumeration of legal values.
type Field struct {
	Name string
	Type string
	Enum []string
}

// Schema is the provider-declared shape of a collection's items.
type Schema struct {
	Fields []Field
	// Properties is the selectable subset; empty means every field.
	Properties []string
	IDField    string
	TitleField string
	URIField   string
	TimeField  string
	Filename   string
	Spatial    bool
}

// HasField reports whether name is a declared field.
func (s Schema) HasField(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// FieldNames returns declared field names in declaration order.
func (s Schema) FieldNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Selectable reports whether name may appear in a properties selection.
func (s Schema) Selectable(name string) bool {
	if s.HasField(name) {
		return true
	}
	for _, p := range s.Properties {
		if p == name {
			return true
		}
	}
	return false
}

// Feature is one matched item. Geometry is nil for non-spatial records or
// when the query skipped geometry.
type Feature struct {
	ID         string
	Geometry   orb.Geometry
	Properties map[string]any
}

// Result is a page of matched items.
type Result struct {
	Features []Feature
	// NumberMatched is the total match count when the backend can compute
	// it; MatchedKnown is false otherwise.
	NumberMatched int
	MatchedKnown  bool
}

// Provider executes queries for one capability of one collection.
type Provider interface {
	Schema() Schema
	Query(ctx context.Context, q Query) (*Result, error)
}

// Coverage is implemented by providers that expose coverage metadata.
type Coverage interface {
	Provider
	CRS() string
	DomainSet() map[string]any
	RangeType() map[string]any
}

// EDR is implemented by providers that expose environmental data retrieval
// query types.
type EDR interface {
	Provider
	QueryTypes() []string
	ParameterNames() []Field
}

// Factory builds a provider instance from its binding. Factories are invoked
// per request resolution; ones with expensive setup keep their own keyed
// caches internally.
type Factory func(ctx context.Context, b Binding) (Provider, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under the given binding name.
// Duplicate registration panics; it is a wiring mistake.
func Register(name string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("provider: duplicate registration for %q", name))
	}
	factories[name] = f
}

// Open constructs the provider for a binding.
func Open(ctx context.Context, b Binding) (Provider, error) {
	factoryMu.RLock()
	f, ok := factories[b.Name]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConnection, b.Name)
	}
	p, err := f(ctx, b)
	if err != nil {
		return nil, err
	}
	return p, nil
}
