package api

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
)

func TestNegotiateFormat_FParamWins(t *testing.T) {
	f, ok := NegotiateFormat("csv", "text/html", FormatJSON, FormatCSV)
	if !ok || f != FormatCSV {
		t.Fatalf("got %v ok=%v", f, ok)
	}
}

func TestNegotiateFormat_UnknownFParamRejected(t *testing.T) {
	if _, ok := NegotiateFormat("xml", "", FormatJSON, FormatHTML); ok {
		t.Fatalf("unknown f should fail")
	}
	if _, ok := NegotiateFormat("csv", "", FormatJSON, FormatHTML); ok {
		t.Fatalf("f outside the allowed set should fail")
	}
}

func TestNegotiateFormat_AcceptHeader(t *testing.T) {
	f, ok := NegotiateFormat("", "text/html,application/json;q=0.5", FormatJSON, FormatHTML)
	if !ok || f != FormatHTML {
		t.Fatalf("got %v ok=%v", f, ok)
	}

	f, ok = NegotiateFormat("", "application/json;q=0.9,text/html;q=0.2", FormatJSON, FormatHTML)
	if !ok || f != FormatJSON {
		t.Fatalf("got %v ok=%v", f, ok)
	}
}

func TestNegotiateFormat_DefaultsToJSON(t *testing.T) {
	f, ok := NegotiateFormat("", "", FormatJSON, FormatHTML)
	if !ok || f != FormatJSON {
		t.Fatalf("got %v ok=%v", f, ok)
	}
	f, ok = NegotiateFormat("", "application/octet-stream", FormatJSON)
	if !ok || f != FormatJSON {
		t.Fatalf("unsupported accept should fall back to json, got %v", f)
	}
}

func TestNewItem_GeometryAndNull(t *testing.T) {
	item, err := newItem(provider.Feature{
		ID:         "a",
		Geometry:   orb.Point{5.0, 51.0},
		Properties: map[string]any{"name": "x"},
	})
	if err != nil {
		t.Fatalf("newItem: %v", err)
	}
	var g struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(item.Geometry, &g); err != nil {
		t.Fatalf("geometry: %v", err)
	}
	if g.Type != "Point" || g.Coordinates[0] != 5.0 {
		t.Fatalf("geometry = %+v", g)
	}

	item, err = newItem(provider.Feature{ID: "b"})
	if err != nil {
		t.Fatalf("newItem: %v", err)
	}
	if string(item.Geometry) != "null" {
		t.Fatalf("nil geometry should marshal as null, got %s", item.Geometry)
	}
	if item.Properties == nil {
		t.Fatalf("properties should never be nil in output")
	}
}

func TestToJSON_NoHTMLEscaping(t *testing.T) {
	body, err := toJSON(map[string]string{"href": "http://x?a=1&b=2"})
	if err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	if strings.Contains(string(body), `&`) {
		t.Fatalf("ampersand escaped: %s", body)
	}
}

func csvFixture(t *testing.T) FeatureCollection {
	t.Helper()
	a, err := newItem(provider.Feature{
		ID:       "s1",
		Geometry: orb.Point{5.5, 51.2},
		Properties: map[string]any{
			"name":      "Bergen",
			"elevation": 12.5,
		},
	})
	if err != nil {
		t.Fatalf("newItem: %v", err)
	}
	b, err := newItem(provider.Feature{
		ID:       "s2",
		Geometry: orb.Point{4.1, 52.0},
		Properties: map[string]any{
			"name": "Delft",
		},
	})
	if err != nil {
		t.Fatalf("newItem: %v", err)
	}
	return FeatureCollection{Type: "FeatureCollection", Features: []Item{a, b}}
}

func TestToCSV_PointRows(t *testing.T) {
	body, err := toCSV(csvFixture(t))
	if err != nil {
		t.Fatalf("toCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d: %q", len(lines), body)
	}
	if lines[0] != "id,elevation,name,x,y" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "s1,12.5,Bergen,5.5,51.2" {
		t.Fatalf("row = %q", lines[1])
	}
	// missing property stays an empty cell
	if lines[2] != "s2,,Delft,4.1,52" {
		t.Fatalf("row = %q", lines[2])
	}
}

func TestToCSV_NonPointGeometryFails(t *testing.T) {
	item, err := newItem(provider.Feature{
		ID:       "p1",
		Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
	})
	if err != nil {
		t.Fatalf("newItem: %v", err)
	}
	if _, err := toCSV(FeatureCollection{Features: []Item{item}}); err == nil {
		t.Fatalf("expected error for polygon geometry")
	}
}

func TestToJSONLD_UsesURIField(t *testing.T) {
	item, err := newItem(provider.Feature{
		ID:         "s1",
		Properties: map[string]any{"uri": "https://example.org/s1"},
	})
	if err != nil {
		t.Fatalf("newItem: %v", err)
	}
	fc := FeatureCollection{Features: []Item{item}, NumberReturned: 1}
	body, err := toJSONLD(fc, "stations", "uri")
	if err != nil {
		t.Fatalf("toJSONLD: %v", err)
	}
	if !strings.Contains(string(body), `"@id":"https://example.org/s1"`) {
		t.Fatalf("uri field not used as @id: %s", body)
	}
	if !strings.Contains(string(body), `"@context"`) {
		t.Fatalf("missing context: %s", body)
	}
}
