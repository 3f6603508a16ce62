package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/paulmach/orb"

	"github.com/opencdms-dev/opencdms-api/internal/api"
	"github.com/opencdms-dev/opencdms-api/internal/config"
	"github.com/opencdms-dev/opencdms-api/internal/health"
	"github.com/opencdms-dev/opencdms-api/internal/logger"
	"github.com/opencdms-dev/opencdms-api/internal/provider"
	"github.com/opencdms-dev/opencdms-api/internal/provider/memory"
	"github.com/opencdms-dev/opencdms-api/internal/registry"
	"github.com/opencdms-dev/opencdms-api/internal/render"
)

var stations = memory.New(provider.Schema{
	Fields: []provider.Field{
		{Name: "name", Type: "string"},
		{Name: "elevation", Type: "number"},
	},
	IDField: "id",
	Spatial: true,
}, []provider.Feature{
	{ID: "s1", Geometry: orb.Point{5.0, 51.0}, Properties: map[string]any{"name": "Alta", "elevation": 10.0}},
	{ID: "s2", Geometry: orb.Point{6.0, 52.0}, Properties: map[string]any{"name": "Bergen", "elevation": 50.0}},
})

func init() {
	provider.Register("stations-test", func(context.Context, provider.Binding) (provider.Provider, error) {
		return stations, nil
	})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	reg, err := registry.New([]registry.Collection{{
		ID:    "stations",
		Title: registry.Text{"en": "Weather stations"},
		Providers: []provider.Binding{
			{Type: provider.CapabilityFeature, Name: "stations-test"},
		},
	}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	renderer, err := render.NewHTMLRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}

	zl := logger.Build(logger.Config{Level: "error", Component: "test"}, os.Stderr)

	cfg := config.Config{
		BaseURL:         "http://example.test",
		DefaultLimit:    10,
		MaxLimit:        100,
		DefaultLanguage: "en",
	}

	engine, err := api.NewEngine(api.Options{
		Registry:     reg,
		Renderer:     renderer,
		Logger:       logger.NewSlog(&zl),
		BaseURL:      cfg.BaseURL,
		DefaultLimit: cfg.DefaultLimit,
		MaxLimit:     cfg.MaxLimit,
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	handler := NewRouter(cfg, Options{
		Engine: engine,
		Meta:   config.Metadata{Title: registry.Text{"en": "Test service"}},
		Logger: &zl,
		Checks: map[string]health.Check{
			"always": func(context.Context) error { return nil },
		},
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRoutes_Items(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv.URL+"/collections/stations/items?limit=1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("content type = %q", ct)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}

	var fc struct {
		Type           string `json:"type"`
		NumberReturned int    `json:"numberReturned"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" || fc.NumberReturned != 1 {
		t.Fatalf("body = %+v", fc)
	}
}

func TestRoutes_ETagRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv.URL+"/collections/stations?f=json", nil)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("missing etag")
	}

	resp2 := get(t, srv.URL+"/collections/stations?f=json", map[string]string{"If-None-Match": etag})
	if resp2.StatusCode != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", resp2.StatusCode)
	}
}

func TestRoutes_ErrorsKeepTheirStatus(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv.URL+"/collections/nosuch/items", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp = get(t, srv.URL+"/collections/stations/items?limit=0", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRoutes_HTMLNegotiation(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv.URL+"/collections/stations/items", map[string]string{"Accept": "text/html"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestRoutes_Queryables(t *testing.T) {
	srv := newTestServer(t)
	resp := get(t, srv.URL+"/collections/stations/queryables", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/schema+json" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestRoutes_HealthAndLanding(t *testing.T) {
	srv := newTestServer(t)

	if resp := get(t, srv.URL+"/healthz", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/readyz", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz = %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/metrics", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}

	resp := get(t, srv.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("landing = %d", resp.StatusCode)
	}
	var doc struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Title != "Test service" {
		t.Fatalf("title = %q", doc.Title)
	}
}
