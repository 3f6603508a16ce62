package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
	"github.com/opencdms-dev/opencdms-api/internal/registry"
)

const fixtureYAML = `
metadata:
  identification:
    title:
      en: Surface observation service
      fr: Service d'observations
    description: Surface weather observations
    url: https://example.org

resources:
  stations:
    type: collection
    title:
      en: Weather stations
    description: Station metadata
    keywords: [weather, stations]
    extents:
      spatial:
        bbox: [-180, -90, 180, 90]
        crs: http://www.opengis.net/def/crs/OGC/1.3/CRS84
      temporal:
        begin: "2000-01-01"
        end: ""
    links:
      - type: text/html
        rel: canonical
        title: Upstream registry
        href: https://example.org/stations
        hreflang: en-US
    providers:
      - type: feature
        name: memory
        data: /data/stations.geojson
        id_field: wigos_id
  internal:
    type: collection
    visibility: hidden
    title: Internal records
    providers:
      - type: record
        name: postgres
        dsn: postgres://localhost/obs
        table: records
        format:
          name: parquet
          mimetype: application/x-parquet
`

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resources.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadResources(t *testing.T) {
	meta, collections, err := LoadResources(writeYAML(t, fixtureYAML))
	if err != nil {
		t.Fatalf("LoadResources: %v", err)
	}

	if meta.Title.Translate("fr") != "Service d'observations" {
		t.Fatalf("meta title = %+v", meta.Title)
	}
	if meta.URL != "https://example.org" {
		t.Fatalf("meta url = %q", meta.URL)
	}

	if len(collections) != 2 {
		t.Fatalf("collections = %d", len(collections))
	}
	// sorted by id
	internal, stations := collections[0], collections[1]
	if internal.ID != "internal" || stations.ID != "stations" {
		t.Fatalf("order = %s, %s", internal.ID, stations.ID)
	}

	if stations.Title.Translate("en") != "Weather stations" {
		t.Fatalf("title = %+v", stations.Title)
	}
	if stations.Extents == nil || stations.Extents.Spatial == nil {
		t.Fatalf("extents missing")
	}
	if stations.Extents.Spatial.BBox[2] != 180 {
		t.Fatalf("bbox = %v", stations.Extents.Spatial.BBox)
	}
	if stations.Extents.Temporal.Begin != "2000-01-01" {
		t.Fatalf("temporal = %+v", stations.Extents.Temporal)
	}
	if len(stations.Links) != 1 || stations.Links[0].Rel != "canonical" {
		t.Fatalf("links = %+v", stations.Links)
	}

	b := stations.Providers[0]
	if b.Type != provider.CapabilityFeature || b.Name != "memory" {
		t.Fatalf("binding = %+v", b)
	}
	if b.Connection["data"] != "/data/stations.geojson" || b.Connection["id_field"] != "wigos_id" {
		t.Fatalf("connection = %v", b.Connection)
	}

	if internal.Visibility != registry.VisibilityHidden {
		t.Fatalf("visibility = %q", internal.Visibility)
	}
	pb := internal.Providers[0]
	if pb.Format == nil || pb.Format.Name != "parquet" || pb.Format.MimeType != "application/x-parquet" {
		t.Fatalf("format = %+v", pb.Format)
	}
	if pb.Connection["table"] != "records" {
		t.Fatalf("connection = %v", pb.Connection)
	}
}

func TestLoadResources_Errors(t *testing.T) {
	if _, _, err := LoadResources(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("missing file accepted")
	}

	noProviders := `
resources:
  empty:
    type: collection
    title: Empty
`
	if _, _, err := LoadResources(writeYAML(t, noProviders)); err == nil {
		t.Fatalf("collection without providers accepted")
	}

	missingName := `
resources:
  broken:
    type: collection
    providers:
      - type: feature
`
	if _, _, err := LoadResources(writeYAML(t, missingName)); err == nil {
		t.Fatalf("provider without name accepted")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Addr != ":8080" || cfg.DefaultLimit != 10 || cfg.MaxLimit != 10000 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DEFAULT_LIMIT", "50")
	t.Setenv("MAX_LIMIT", "20")
	t.Setenv("BASE_URL", "https://api.example.org/")
	cfg := FromEnv()
	if cfg.DefaultLimit != 50 {
		t.Fatalf("default limit = %d", cfg.DefaultLimit)
	}
	// max never undercuts the default
	if cfg.MaxLimit != 50 {
		t.Fatalf("max limit = %d", cfg.MaxLimit)
	}
	if cfg.BaseURL != "https://api.example.org" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
}
