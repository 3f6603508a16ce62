// Package memory is a feature/record provider over an in-process feature
// set, loaded once from a GeoJSON document. It backs small reference
// datasets and the test suite.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
)

func init() {
	provider.Register("memory", open)
}

var (
	loadMu sync.Mutex
	loaded = map[string]*Provider{}
)

// open satisfies provider.Factory. The backing file is parsed once per
// path; resolution stays cheap on the request path.
func open(_ context.Context, b provider.Binding) (provider.Provider, error) {
	path := b.Connection["data"]
	if path == "" {
		return nil, fmt.Errorf("%w: memory provider requires a data file", provider.ErrConnection)
	}

	loadMu.Lock()
	defer loadMu.Unlock()
	if p, ok := loaded[path]; ok {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", provider.ErrConnection, path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", provider.ErrConnection, path, err)
	}

	idField := b.Connection["id_field"]
	if idField == "" {
		idField = "id"
	}

	features := make([]provider.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		features = append(features, provider.Feature{
			ID:         featureID(f, idField),
			Geometry:   f.Geometry,
			Properties: map[string]any(f.Properties),
		})
	}

	p := New(provider.Schema{
		Fields:     inferFields(features),
		IDField:    idField,
		TitleField: b.Connection["title_field"],
		URIField:   b.Connection["uri_field"],
		TimeField:  b.Connection["time_field"],
		Spatial:    true,
	}, features)
	loaded[path] = p
	return p, nil
}

func featureID(f *geojson.Feature, idField string) string {
	if f.ID != nil {
		return fmt.Sprintf("%v", f.ID)
	}
	if v, ok := f.Properties[idField]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// inferFields derives the field set from feature properties. Names are
// sorted so the declared order is stable across loads.
func inferFields(features []provider.Feature) []provider.Field {
	types := map[string]string{}
	for _, f := range features {
		for name, v := range f.Properties {
			if _, seen := types[name]; seen {
				continue
			}
			types[name] = fieldType(v)
		}
	}
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]provider.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, provider.Field{Name: name, Type: types[name]})
	}
	return fields
}

func fieldType(v any) string {
	switch v.(type) {
	case float64, float32, int, int64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "string"
	}
}

// Provider holds the feature set. Read-only after construction.
type Provider struct {
	schema   provider.Schema
	features []provider.Feature
}

func New(schema provider.Schema, features []provider.Feature) *Provider {
	return &Provider{schema: schema, features: features}
}

func (p *Provider) Schema() provider.Schema {
	return p.schema
}

func (p *Provider) Query(_ context.Context, q provider.Query) (*provider.Result, error) {
	return provider.Apply(p.features, q, p.schema), nil
}
