package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
)

// Format is a negotiated output format name, matching the f parameter.
type Format string

const (
	FormatJSON   Format = "json"
	FormatJSONLD Format = "jsonld"
	FormatHTML   Format = "html"
	FormatCSV    Format = "csv"
)

const (
	contentTypeJSON       = "application/json"
	contentTypeGeoJSON    = "application/geo+json"
	contentTypeJSONLD     = "application/ld+json"
	contentTypeHTML       = "text/html"
	contentTypeCSV        = "text/csv"
	contentTypeSchemaJSON = "application/schema+json"
)

// NegotiateFormat resolves the f query parameter, falling back to the
// Accept header, then to JSON. ok is false when the client named a format
// outside the allowed set.
func NegotiateFormat(fParam, acceptHeader string, allowed ...Format) (Format, bool) {
	if fParam != "" {
		f := Format(strings.ToLower(strings.TrimSpace(fParam)))
		for _, a := range allowed {
			if f == a {
				return f, true
			}
		}
		return "", false
	}

	if f, ok := negotiateAccept(acceptHeader, allowed); ok {
		return f, true
	}
	return FormatJSON, true
}

// negotiateAccept picks the highest-q supported media type.
func negotiateAccept(header string, allowed []Format) (Format, bool) {
	bestQ := -1.0
	var best Format
	for _, part := range strings.Split(header, ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		mt := token
		params := ""
		if i := strings.Index(token, ";"); i >= 0 {
			mt = strings.TrimSpace(token[:i])
			params = token[i+1:]
		}
		q := 1.0
		for _, p := range strings.Split(params, ";") {
			p = strings.TrimSpace(p)
			if after, ok := strings.CutPrefix(p, "q="); ok {
				if v, err := strconv.ParseFloat(after, 64); err == nil {
					q = v
				}
			}
		}
		f, ok := formatForMediaType(mt)
		if !ok {
			continue
		}
		if !formatAllowed(f, allowed) {
			continue
		}
		if q > bestQ {
			bestQ = q
			best = f
		}
	}
	if bestQ < 0 {
		return "", false
	}
	return best, true
}

func formatForMediaType(mt string) (Format, bool) {
	switch {
	case mt == "*/*", mt == contentTypeJSON, mt == contentTypeGeoJSON,
		strings.Contains(mt, "geo+json"):
		return FormatJSON, true
	case mt == contentTypeJSONLD:
		return FormatJSONLD, true
	case mt == contentTypeHTML, mt == "application/xhtml+xml":
		return FormatHTML, true
	case mt == contentTypeCSV:
		return FormatCSV, true
	}
	return "", false
}

func formatAllowed(f Format, allowed []Format) bool {
	for _, a := range allowed {
		if f == a {
			return true
		}
	}
	return false
}

// Item is one feature in an items response body.
type Item struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// FeatureCollection is the items response body.
type FeatureCollection struct {
	Type           string `json:"type"`
	Features       []Item `json:"features"`
	Links          []Link `json:"links,omitempty"`
	TimeStamp      string `json:"timeStamp,omitempty"`
	NumberMatched  *int   `json:"numberMatched,omitempty"`
	NumberReturned int    `json:"numberReturned"`
}

// newItem converts a provider feature; a nil geometry marshals as null.
func newItem(f provider.Feature) (Item, error) {
	item := Item{
		Type:       "Feature",
		ID:         f.ID,
		Geometry:   json.RawMessage("null"),
		Properties: f.Properties,
	}
	if f.Properties == nil {
		item.Properties = map[string]any{}
	}
	if f.Geometry != nil {
		raw, err := json.Marshal(geojsonGeometry{f.Geometry})
		if err != nil {
			return Item{}, err
		}
		item.Geometry = raw
	}
	return item, nil
}

// geojsonGeometry marshals an orb geometry as a GeoJSON geometry object.
type geojsonGeometry struct {
	g orb.Geometry
}

func (gg geojsonGeometry) MarshalJSON() ([]byte, error) {
	doc := struct {
		Type        string `json:"type"`
		Coordinates any    `json:"coordinates"`
	}{Type: gg.g.GeoJSONType()}
	switch g := gg.g.(type) {
	case orb.Point:
		doc.Coordinates = g
	case orb.MultiPoint:
		doc.Coordinates = g
	case orb.LineString:
		doc.Coordinates = g
	case orb.MultiLineString:
		doc.Coordinates = g
	case orb.Polygon:
		doc.Coordinates = g
	case orb.MultiPolygon:
		doc.Coordinates = g
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", gg.g.GeoJSONType())
	}
	return json.Marshal(doc)
}

// toJSON renders any document body.
func toJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// jsonLDContext is the context document wrapped around JSON-LD payloads.
var jsonLDContext = map[string]any{
	"schema":   "https://schema.org/",
	"type":     "@type",
	"features": "schema:itemListElement",
}

// toJSONLD wraps an items body in a JSON-LD context document. The item
// identifier maps from the provider uriField when one is set.
func toJSONLD(fc FeatureCollection, datasetID, idField string) ([]byte, error) {
	items := make([]map[string]any, 0, len(fc.Features))
	for _, f := range fc.Features {
		entry := map[string]any{
			"@id":        fmt.Sprintf("%s/%s", datasetID, f.ID),
			"type":       "schema:Place",
			"properties": f.Properties,
			"geometry":   f.Geometry,
		}
		if idField != "id" {
			if v, ok := f.Properties[idField]; ok {
				entry["@id"] = fmt.Sprintf("%v", v)
			}
		}
		items = append(items, entry)
	}
	doc := map[string]any{
		"@context":       jsonLDContext,
		"@id":            datasetID,
		"type":           "schema:Dataset",
		"features":       items,
		"links":          fc.Links,
		"timeStamp":      fc.TimeStamp,
		"numberReturned": fc.NumberReturned,
	}
	if fc.NumberMatched != nil {
		doc["numberMatched"] = *fc.NumberMatched
	}
	return toJSON(doc)
}

// toCSV flattens features to rows with point geometry in sidecar x/y
// columns. Non-point geometry cannot be represented and fails the
// serialization.
func toCSV(fc FeatureCollection) ([]byte, error) {
	cols := propertyColumns(fc.Features)
	header := append([]string{"id"}, cols...)
	header = append(header, "x", "y")

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, f := range fc.Features {
		row := make([]string, 0, len(header))
		row = append(row, f.ID)
		for _, c := range cols {
			v, ok := f.Properties[c]
			if !ok || v == nil {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprintf("%v", v))
		}
		x, y, err := pointCoords(f.Geometry)
		if err != nil {
			return nil, err
		}
		row = append(row, x, y)
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// propertyColumns collects property names across features, sorted for a
// stable header.
func propertyColumns(items []Item) []string {
	seen := map[string]bool{}
	var cols []string
	for _, it := range items {
		for k := range it.Properties {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func pointCoords(raw json.RawMessage) (string, string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", "", nil
	}
	var g struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &g); err != nil || g.Type != "Point" || len(g.Coordinates) < 2 {
		return "", "", fmt.Errorf("csv output requires point geometry")
	}
	return strconv.FormatFloat(g.Coordinates[0], 'f', -1, 64),
		strconv.FormatFloat(g.Coordinates[1], 'f', -1, 64), nil
}
