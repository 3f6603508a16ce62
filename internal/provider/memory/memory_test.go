package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
)

const fixtureGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "s1",
      "geometry": {"type": "Point", "coordinates": [5.0, 51.0]},
      "properties": {"name": "Alta", "elevation": 10, "active": true}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [6.0, 52.0]},
      "properties": {"station_id": "s2", "name": "Bergen", "elevation": 50, "active": false}
    }
  ]
}`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.geojson")
	if err := os.WriteFile(path, []byte(fixtureGeoJSON), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestOpen_LoadsAndInfersSchema(t *testing.T) {
	path := writeFixture(t)
	p, err := provider.Open(context.Background(), provider.Binding{
		Type: provider.CapabilityFeature,
		Name: "memory",
		Connection: map[string]string{
			"data":     path,
			"id_field": "station_id",
		},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	schema := p.Schema()
	if !schema.Spatial || schema.IDField != "station_id" {
		t.Fatalf("schema = %+v", schema)
	}
	want := map[string]string{"active": "boolean", "elevation": "number", "name": "string", "station_id": "string"}
	if len(schema.Fields) != len(want) {
		t.Fatalf("fields = %+v", schema.Fields)
	}
	for _, f := range schema.Fields {
		if want[f.Name] != f.Type {
			t.Fatalf("field %s type = %s, want %s", f.Name, f.Type, want[f.Name])
		}
	}

	r, err := p.Query(context.Background(), provider.Query{Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(r.Features) != 2 {
		t.Fatalf("features = %d", len(r.Features))
	}
	// top-level id wins, property id field is the fallback
	if r.Features[0].ID != "s1" || r.Features[1].ID != "s2" {
		t.Fatalf("ids = %s, %s", r.Features[0].ID, r.Features[1].ID)
	}
}

func TestOpen_CachesPerPath(t *testing.T) {
	path := writeFixture(t)
	b := provider.Binding{Name: "memory", Connection: map[string]string{"data": path}}
	p1, err := provider.Open(context.Background(), b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p2, err := provider.Open(context.Background(), b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("expected the same cached provider")
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := provider.Open(context.Background(), provider.Binding{Name: "memory", Connection: map[string]string{}})
	if !errors.Is(err, provider.ErrConnection) {
		t.Fatalf("missing data: %v", err)
	}

	_, err = provider.Open(context.Background(), provider.Binding{Name: "memory", Connection: map[string]string{"data": "/nonexistent.geojson"}})
	if !errors.Is(err, provider.ErrConnection) {
		t.Fatalf("missing file: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.geojson")
	if err := os.WriteFile(bad, []byte("not geojson"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = provider.Open(context.Background(), provider.Binding{Name: "memory", Connection: map[string]string{"data": bad}})
	if !errors.Is(err, provider.ErrConnection) {
		t.Fatalf("bad file: %v", err)
	}
}

func TestOpen_UnknownProviderName(t *testing.T) {
	_, err := provider.Open(context.Background(), provider.Binding{Name: "nosuch"})
	if !errors.Is(err, provider.ErrConnection) {
		t.Fatalf("got %v", err)
	}
}
