package redisprov

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	h3 "github.com/uber/h3-go/v4"

	"github.com/opencdms-dev/opencdms-api/internal/provider"
)

const defaultRes = 7

func init() {
	provider.Register("redis", open)
}

var (
	storeMu sync.Mutex
	stores  = map[string]*Store{}
)

// open satisfies provider.Factory. One store per address is kept; the
// go-redis client pools connections internally and each query owns its
// commands for their full duration.
func open(ctx context.Context, b provider.Binding) (provider.Provider, error) {
	addr := b.Connection["addr"]
	collection := b.Connection["collection"]
	if addr == "" || collection == "" {
		return nil, fmt.Errorf("%w: redis provider requires addr and collection", provider.ErrConnection)
	}

	storeMu.Lock()
	store, ok := stores[addr]
	if !ok {
		var err error
		store, err = NewStore(ctx, addr)
		if err != nil {
			storeMu.Unlock()
			return nil, err
		}
		stores[addr] = store
	}
	storeMu.Unlock()

	res := defaultRes
	if raw := b.Connection["h3_res"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 15 {
			return nil, fmt.Errorf("%w: invalid h3_res %q", provider.ErrConnection, raw)
		}
		res = n
	}

	fields, err := parseFields(b.Connection["fields"])
	if err != nil {
		return nil, err
	}

	return New(store, Config{
		Collection: collection,
		Res:        res,
		Schema: provider.Schema{
			Fields:     fields,
			IDField:    orDefault(b.Connection["id_field"], "id"),
			TitleField: b.Connection["title_field"],
			URIField:   b.Connection["uri_field"],
			TimeField:  b.Connection["time_field"],
			Spatial:    true,
		},
	}), nil
}

// parseFields reads a "name:type,name:type" declaration.
func parseFields(raw string) ([]provider.Field, error) {
	if raw == "" {
		return nil, nil
	}
	var fields []provider.Field
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, typ := tok, "string"
		if head, tail, ok := strings.Cut(tok, ":"); ok {
			name, typ = strings.TrimSpace(head), strings.TrimSpace(tail)
		}
		if name == "" || typ == "" {
			return nil, fmt.Errorf("%w: bad field declaration %q", provider.ErrConnection, tok)
		}
		fields = append(fields, provider.Field{Name: name, Type: typ})
	}
	return fields, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type Config struct {
	Collection string
	Res        int
	Schema     provider.Schema
}

// Provider queries features out of Redis. Candidate ids come from the H3
// cell index for bbox queries and from the master id set otherwise;
// remaining predicates run in process over the fetched candidates.
type Provider struct {
	store *Store
	ns    string
	res   int
	sch   provider.Schema
}

func New(store *Store, cfg Config) *Provider {
	return &Provider{
		store: store,
		ns:    namespace(cfg.Collection),
		res:   cfg.Res,
		sch:   cfg.Schema,
	}
}

func (p *Provider) Schema() provider.Schema {
	return p.sch
}

func (p *Provider) Query(ctx context.Context, q provider.Query) (*provider.Result, error) {
	ids, err := p.candidateIDs(ctx, q)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = featureKey(p.ns, id)
	}
	blobs, err := p.store.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	features := make([]provider.Feature, 0, len(blobs))
	for i, id := range ids {
		raw, ok := blobs[keys[i]]
		if !ok {
			continue
		}
		f, err := decodeFeature(id, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decode feature %s: %v", provider.ErrGeneric, id, err)
		}
		features = append(features, f)
	}

	return provider.Apply(features, q, p.sch), nil
}

func (p *Provider) candidateIDs(ctx context.Context, q provider.Query) ([]string, error) {
	bound, ok := q.Bound()
	if !ok {
		return p.store.SMembers(ctx, idsKey(p.ns))
	}

	cells, err := coverBound(bound, p.res)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrQuery, err)
	}

	seen := map[string]struct{}{}
	var ids []string
	for _, cell := range cells {
		members, err := p.store.SMembers(ctx, cellKey(p.ns, p.res, cell))
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// coverBound returns the H3 cells covering a rectangular bound, including
// the cells of its corners; small bounds may fall between cell centroids.
func coverBound(b orb.Bound, res int) ([]string, error) {
	loop := h3.GeoLoop{
		{Lat: b.Min[1], Lng: b.Min[0]},
		{Lat: b.Min[1], Lng: b.Max[0]},
		{Lat: b.Max[1], Lng: b.Max[0]},
		{Lat: b.Max[1], Lng: b.Min[0]},
	}
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: loop}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	seen := map[string]struct{}{}
	var out []string
	add := func(c h3.Cell) {
		s := c.String()
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, c := range cells {
		add(c)
	}
	for _, ll := range loop {
		c, err := h3.LatLngToCell(ll, res)
		if err != nil {
			return nil, fmt.Errorf("h3 cell: %w", err)
		}
		add(c)
	}
	sort.Strings(out)
	return out, nil
}

func decodeFeature(id string, raw []byte) (provider.Feature, error) {
	gf, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return provider.Feature{}, err
	}
	return provider.Feature{
		ID:         id,
		Geometry:   gf.Geometry,
		Properties: map[string]any(gf.Properties),
	}, nil
}

// Load seeds the store with features for a collection: body blobs, the H3
// cell index and the master id set. Mostly used by ingest tooling and
// tests.
func (p *Provider) Load(ctx context.Context, features []provider.Feature) error {
	ids := make([]string, 0, len(features))
	cellMembers := map[string][]string{}

	for _, f := range features {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.ID
		gf.Properties = geojson.Properties(f.Properties)
		raw, err := json.Marshal(gf)
		if err != nil {
			return fmt.Errorf("%w: encode feature %s: %v", provider.ErrGeneric, f.ID, err)
		}
		if err := p.store.Set(ctx, featureKey(p.ns, f.ID), raw); err != nil {
			return err
		}
		ids = append(ids, f.ID)

		if f.Geometry == nil {
			continue
		}
		center := f.Geometry.Bound().Center()
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: center[1], Lng: center[0]}, p.res)
		if err != nil {
			return fmt.Errorf("%w: index feature %s: %v", provider.ErrGeneric, f.ID, err)
		}
		key := cellKey(p.ns, p.res, cell.String())
		cellMembers[key] = append(cellMembers[key], f.ID)
	}

	for key, members := range cellMembers {
		if err := p.store.SAdd(ctx, key, members); err != nil {
			return err
		}
	}
	return p.store.SAdd(ctx, idsKey(p.ns), ids)
}
