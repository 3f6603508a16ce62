package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/opencdms-dev/opencdms-api/internal/cql"
	"github.com/opencdms-dev/opencdms-api/internal/events"
	"github.com/opencdms-dev/opencdms-api/internal/observability"
	"github.com/opencdms-dev/opencdms-api/internal/provider"
	"github.com/opencdms-dev/opencdms-api/internal/registry"
	"github.com/opencdms-dev/opencdms-api/internal/render"
)

// Request is one incoming call into the engine, already routed.
type Request struct {
	Dataset string
	Params  url.Values
	Accept  string
}

// Response is the fully formatted outcome: status, negotiated content type,
// extra headers and body. Error outcomes go through the same shape; no
// partial payload is ever emitted.
type Response struct {
	Status      int
	ContentType string
	Headers     map[string]string
	Body        []byte
}

// Engine orchestrates validation, provider dispatch, link building and
// formatting for the three collection operations. Stateless between calls;
// safe for concurrent use.
type Engine struct {
	reg          *registry.Registry
	renderer     render.Renderer
	log          *slog.Logger
	baseURL      string
	defaultLimit int
	maxLimit     int
	defaultLang  string
	cqlCache     *cql.Cache
	publisher    *events.Publisher
}

// Options configures an Engine.
type Options struct {
	Registry     *registry.Registry
	Renderer     render.Renderer
	Logger       *slog.Logger
	BaseURL      string
	DefaultLimit int
	MaxLimit     int
	// DefaultLanguage is the locale used when a request names none.
	DefaultLanguage string
	// CQLCacheSize bounds the parsed-filter cache; zero uses the default.
	CQLCacheSize int
	// Publisher is optional; queries are announced on it when set.
	Publisher *events.Publisher
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, errors.New("api: registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	cache, err := cql.NewCache(opts.CQLCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		reg:          opts.Registry,
		renderer:     opts.Renderer,
		log:          opts.Logger,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		defaultLang:  opts.DefaultLanguage,
		cqlCache:     cache,
		publisher:    opts.Publisher,
	}, nil
}

func (e *Engine) collectionsURL() string {
	return e.baseURL + "/collections"
}

func (e *Engine) locale(r Request) string {
	if l := r.Params.Get("lang"); l != "" {
		return l
	}
	return e.defaultLang
}

// exception formats a terminal error in the requested format.
func (e *Engine) exception(f Format, apiErr *Error) Response {
	if f == FormatHTML && e.renderer != nil {
		body, err := e.renderer.Render("exception.html", apiErr, "en")
		if err == nil {
			return Response{Status: apiErr.Status, ContentType: contentTypeHTML, Body: body}
		}
	}
	body, _ := toJSON(map[string]string{
		"code":        apiErr.Code,
		"description": apiErr.Description,
	})
	return Response{Status: apiErr.Status, ContentType: contentTypeJSON, Body: body}
}

func (e *Engine) fail(f Format, err error) Response {
	apiErr := translateError(err)
	if apiErr.Status >= 500 {
		e.log.Error("request failed", "err", err)
	}
	return e.exception(f, apiErr)
}

// ExtentDoc is the extent block of a collection document.
type ExtentDoc struct {
	Spatial  *SpatialExtentDoc  `json:"spatial,omitempty"`
	Temporal *TemporalExtentDoc `json:"temporal,omitempty"`
}

type SpatialExtentDoc struct {
	BBox [][]float64 `json:"bbox"`
	CRS  string      `json:"crs,omitempty"`
}

type TemporalExtentDoc struct {
	Interval [][]any `json:"interval"`
	TRS      string  `json:"trs,omitempty"`
}

// CollectionDoc is one collection's descriptive metadata.
type CollectionDoc struct {
	ID             string                    `json:"id"`
	Title          string                    `json:"title"`
	Description    string                    `json:"description"`
	Keywords       []string                  `json:"keywords"`
	ItemType       string                    `json:"itemType,omitempty"`
	Extent         *ExtentDoc                `json:"extent,omitempty"`
	Links          []Link                    `json:"links"`
	CRS            []string                  `json:"crs,omitempty"`
	DomainSet      map[string]any            `json:"domainset,omitempty"`
	RangeType      map[string]any            `json:"rangetype,omitempty"`
	ParameterNames map[string]provider.Field `json:"parameter-names,omitempty"`
}

// CollectionsDoc is the listing document.
type CollectionsDoc struct {
	Collections []CollectionDoc `json:"collections"`
	Links       []Link          `json:"links"`
}

// DescribeCollections assembles collection metadata, either the full
// listing or a single dataset. Hidden collections are dropped from the
// listing but remain individually addressable.
func (e *Engine) DescribeCollections(ctx context.Context, r Request) Response {
	format, ok := NegotiateFormat(r.Params.Get("f"), r.Accept, FormatJSON, FormatHTML, FormatJSONLD)
	if !ok {
		return e.exception(FormatJSON, invalidParameter("Invalid format"))
	}
	locale := e.locale(r)

	var targets []*registry.Collection
	if r.Dataset != "" {
		c, err := e.reg.Collection(r.Dataset)
		if err != nil {
			return e.fail(format, err)
		}
		targets = []*registry.Collection{c}
	} else {
		targets = e.reg.List()
	}

	docs := make([]CollectionDoc, 0, len(targets))
	for _, c := range targets {
		doc, apiErr := e.describeCollection(ctx, c, locale, r.Dataset != "")
		if apiErr != nil {
			return e.exception(format, apiErr)
		}
		docs = append(docs, *doc)
	}

	if r.Dataset != "" {
		return e.formatCollection(format, docs[0], locale)
	}

	listing := CollectionsDoc{Collections: docs, Links: e.listingLinks(format)}
	return e.formatListing(format, listing, locale)
}

func (e *Engine) listingLinks(format Format) []Link {
	cu := e.collectionsURL()
	return []Link{
		{Type: contentTypeJSON, Rel: linkRel(format, FormatJSON), Title: "This document as JSON", Href: cu + "?f=json"},
		{Type: contentTypeJSONLD, Rel: linkRel(format, FormatJSONLD), Title: "This document as RDF (JSON-LD)", Href: cu + "?f=jsonld"},
		{Type: contentTypeHTML, Rel: linkRel(format, FormatHTML), Title: "This document as HTML", Href: cu + "?f=html"},
	}
}

// describeCollection builds one collection document with its
// capability-conditional link sets.
func (e *Engine) describeCollection(ctx context.Context, c *registry.Collection, locale string, single bool) (*CollectionDoc, *Error) {
	doc := &CollectionDoc{
		ID:          c.ID,
		Title:       c.Title.Translate(locale),
		Description: c.Description.Translate(locale),
		Keywords:    c.Keywords,
		Links:       staticLinks(c, locale),
	}
	doc.Extent = extentDoc(c.Extents)

	cu := e.collectionsURL()
	doc.Links = append(doc.Links,
		Link{Type: contentTypeJSON, Rel: "root", Title: "The landing page of this server as JSON", Href: e.baseURL + "?f=json"},
		Link{Type: contentTypeHTML, Rel: "root", Title: "The landing page of this server as HTML", Href: e.baseURL + "?f=html"},
		Link{Type: contentTypeJSON, Rel: "self", Title: "This document as JSON", Href: fmt.Sprintf("%s/%s?f=json", cu, c.ID)},
		Link{Type: contentTypeJSONLD, Rel: "alternate", Title: "This document as RDF (JSON-LD)", Href: fmt.Sprintf("%s/%s?f=jsonld", cu, c.ID)},
		Link{Type: contentTypeHTML, Rel: "alternate", Title: "This document as HTML", Href: fmt.Sprintf("%s/%s?f=html", cu, c.ID)},
	)

	primary, ok := c.DefaultBinding()
	if !ok {
		return doc, nil
	}

	switch primary.Type {
	case provider.CapabilityFeature, provider.CapabilityRecord, provider.CapabilityTile:
		doc.ItemType = string(primary.Type)
		doc.Links = append(doc.Links,
			Link{Type: contentTypeJSON, Rel: "queryables", Title: "Queryables for this collection as JSON", Href: fmt.Sprintf("%s/%s/queryables?f=json", cu, c.ID)},
			Link{Type: contentTypeHTML, Rel: "queryables", Title: "Queryables for this collection as HTML", Href: fmt.Sprintf("%s/%s/queryables?f=html", cu, c.ID)},
			Link{Type: contentTypeGeoJSON, Rel: "items", Title: "items as GeoJSON", Href: fmt.Sprintf("%s/%s/items?f=json", cu, c.ID)},
			Link{Type: contentTypeJSONLD, Rel: "items", Title: "items as RDF (GeoJSON-LD)", Href: fmt.Sprintf("%s/%s/items?f=jsonld", cu, c.ID)},
			Link{Type: contentTypeHTML, Rel: "items", Title: "Items as HTML", Href: fmt.Sprintf("%s/%s/items?f=html", cu, c.ID)},
		)
	case provider.CapabilityCoverage:
		if apiErr := e.addCoverage(ctx, c, doc, primary, single); apiErr != nil {
			return nil, apiErr
		}
	}

	if _, ok := c.Binding(provider.CapabilityTile); ok {
		doc.Links = append(doc.Links,
			Link{Type: contentTypeJSON, Rel: "tiles", Title: "Tiles as JSON", Href: fmt.Sprintf("%s/%s/tiles?f=json", cu, c.ID)},
			Link{Type: contentTypeHTML, Rel: "tiles", Title: "Tiles as HTML", Href: fmt.Sprintf("%s/%s/tiles?f=html", cu, c.ID)},
		)
	}

	if _, ok := c.Binding(provider.CapabilityEDR); ok && single {
		if apiErr := e.addEDR(ctx, c, doc); apiErr != nil {
			return nil, apiErr
		}
	}

	return doc, nil
}

const ogcRelTypesBase = "http://www.opengis.net/def/rel/ogc/1.0"

func (e *Engine) addCoverage(ctx context.Context, c *registry.Collection, doc *CollectionDoc, binding provider.Binding, single bool) *Error {
	cu := e.collectionsURL()
	coverageURL := fmt.Sprintf("%s/%s/coverage", cu, c.ID)
	doc.Links = append(doc.Links,
		Link{Type: contentTypeJSON, Rel: "collection", Title: "Detailed Coverage metadata in JSON", Href: fmt.Sprintf("%s/%s?f=json", cu, c.ID)},
		Link{Type: contentTypeHTML, Rel: "collection", Title: "Detailed Coverage metadata in HTML", Href: fmt.Sprintf("%s/%s?f=html", cu, c.ID)},
		Link{Type: contentTypeJSON, Rel: ogcRelTypesBase + "/coverage-domainset", Title: "Coverage domain set of collection in JSON", Href: coverageURL + "/domainset?f=json"},
		Link{Type: contentTypeHTML, Rel: ogcRelTypesBase + "/coverage-domainset", Title: "Coverage domain set of collection in HTML", Href: coverageURL + "/domainset?f=html"},
		Link{Type: contentTypeJSON, Rel: ogcRelTypesBase + "/coverage-rangetype", Title: "Coverage range type of collection in JSON", Href: coverageURL + "/rangetype?f=json"},
		Link{Type: contentTypeHTML, Rel: ogcRelTypesBase + "/coverage-rangetype", Title: "Coverage range type of collection in HTML", Href: coverageURL + "/rangetype?f=html"},
		Link{Type: "application/prs.coverage+json", Rel: ogcRelTypesBase + "/coverage", Title: "Coverage data", Href: coverageURL + "?f=json"},
	)
	if l := formatVariantLink(coverageURL, binding.Format, ogcRelTypesBase+"/coverage", "Coverage data"); l != nil {
		doc.Links = append(doc.Links, *l)
	}

	if !single {
		return nil
	}

	p, err := provider.Open(ctx, binding)
	if err != nil {
		if errors.Is(err, provider.ErrConnection) {
			e.log.Error("coverage provider connect", "collection", c.ID, "err", err)
			return serverError("connection error (check logs)")
		}
		// capability mismatch is tolerated here; skip the extended metadata
		return nil
	}
	cov, ok := p.(provider.Coverage)
	if !ok {
		return nil
	}
	doc.CRS = []string{cov.CRS()}
	doc.DomainSet = cov.DomainSet()
	doc.RangeType = cov.RangeType()
	return nil
}

func (e *Engine) addEDR(ctx context.Context, c *registry.Collection, doc *CollectionDoc) *Error {
	binding, _ := c.Binding(provider.CapabilityEDR)
	p, err := provider.Open(ctx, binding)
	if err != nil {
		if errors.Is(err, provider.ErrConnection) {
			e.log.Error("edr provider connect", "collection", c.ID, "err", err)
			return serverError("connection error (check logs)")
		}
		return nil
	}
	edr, ok := p.(provider.EDR)
	if !ok {
		return nil
	}

	if params := edr.ParameterNames(); len(params) > 0 {
		doc.ParameterNames = make(map[string]provider.Field, len(params))
		for _, f := range params {
			doc.ParameterNames[f.Name] = f
		}
	}

	cu := e.collectionsURL()
	for _, qt := range edr.QueryTypes() {
		doc.Links = append(doc.Links,
			Link{Type: contentTypeJSON, Rel: "data", Title: fmt.Sprintf("%s query for this collection as JSON", qt), Href: fmt.Sprintf("%s/%s/%s?f=json", cu, c.ID, qt)},
			Link{Type: contentTypeHTML, Rel: "data", Title: fmt.Sprintf("%s query for this collection as HTML", qt), Href: fmt.Sprintf("%s/%s/%s?f=html", cu, c.ID, qt)},
		)
	}
	return nil
}

func extentDoc(ext *registry.Extents) *ExtentDoc {
	if ext == nil {
		return nil
	}
	doc := &ExtentDoc{}
	if ext.Spatial != nil {
		doc.Spatial = &SpatialExtentDoc{
			BBox: [][]float64{ext.Spatial.BBox},
			CRS:  ext.Spatial.CRS,
		}
	}
	if ext.Temporal != nil {
		interval := []any{nil, nil}
		if ext.Temporal.Begin != "" {
			interval[0] = ext.Temporal.Begin
		}
		if ext.Temporal.End != "" {
			interval[1] = ext.Temporal.End
		}
		doc.Temporal = &TemporalExtentDoc{
			Interval: [][]any{interval},
			TRS:      ext.Temporal.TRS,
		}
	}
	return doc
}

func (e *Engine) formatCollection(format Format, doc CollectionDoc, locale string) Response {
	switch format {
	case FormatHTML:
		payload := map[string]any{
			"Collection":      doc,
			"CollectionsPath": e.collectionsURL(),
		}
		return e.renderHTML("collections/collection.html", payload, locale)
	case FormatJSONLD:
		body, err := toJSON(map[string]any{
			"@context": jsonLDContext,
			"@type":    "Dataset",
			"dataset":  doc,
		})
		if err != nil {
			return e.fail(FormatJSON, err)
		}
		return Response{Status: 200, ContentType: contentTypeJSONLD, Body: body}
	default:
		body, err := toJSON(doc)
		if err != nil {
			return e.fail(FormatJSON, err)
		}
		return Response{Status: 200, ContentType: contentTypeJSON, Body: body}
	}
}

func (e *Engine) formatListing(format Format, doc CollectionsDoc, locale string) Response {
	switch format {
	case FormatHTML:
		payload := map[string]any{
			"Collections":     doc.Collections,
			"Links":           doc.Links,
			"CollectionsPath": e.collectionsURL(),
		}
		return e.renderHTML("collections/index.html", payload, locale)
	case FormatJSONLD:
		datasets := make([]any, 0, len(doc.Collections))
		for _, c := range doc.Collections {
			datasets = append(datasets, c)
		}
		body, err := toJSON(map[string]any{
			"@context": jsonLDContext,
			"@type":    "DataCatalog",
			"dataset":  datasets,
			"links":    doc.Links,
		})
		if err != nil {
			return e.fail(FormatJSON, err)
		}
		return Response{Status: 200, ContentType: contentTypeJSONLD, Body: body}
	default:
		body, err := toJSON(doc)
		if err != nil {
			return e.fail(FormatJSON, err)
		}
		return Response{Status: 200, ContentType: contentTypeJSON, Body: body}
	}
}

func (e *Engine) renderHTML(name string, data any, locale string) Response {
	if e.renderer == nil {
		return e.exception(FormatJSON, serverError("Error serializing output"))
	}
	body, err := e.renderer.Render(name, data, locale)
	if err != nil {
		e.log.Error("template render", "template", name, "err", err)
		return e.exception(FormatJSON, serverError("Error serializing output"))
	}
	return Response{Status: 200, ContentType: contentTypeHTML, Body: body}
}

// QueryableProp describes one queryable property.
type QueryableProp struct {
	Title string   `json:"title,omitempty"`
	Type  string   `json:"type,omitempty"`
	Ref   string   `json:"$ref,omitempty"`
	Enum  []string `json:"enum,omitempty"`
}

// QueryablesDoc is the JSON Schema shaped queryables document.
type QueryablesDoc struct {
	Type       string                   `json:"type"`
	Title      string                   `json:"title"`
	Properties map[string]QueryableProp `json:"properties"`
	Schema     string                   `json:"$schema"`
	ID         string                   `json:"$id"`
}

// DescribeQueryables builds the queryable property map for a collection,
// resolving a feature provider and falling back to record.
func (e *Engine) DescribeQueryables(ctx context.Context, r Request) Response {
	format, ok := NegotiateFormat(r.Params.Get("f"), r.Accept, FormatJSON, FormatHTML)
	if !ok {
		return e.exception(FormatJSON, invalidParameter("Invalid format"))
	}
	locale := e.locale(r)

	c, err := e.reg.Collection(r.Dataset)
	if err != nil {
		return e.fail(format, err)
	}

	p, err := e.resolveItemsProvider(ctx, r.Dataset)
	if err != nil {
		return e.fail(format, err)
	}
	schema := p.Schema()

	doc := QueryablesDoc{
		Type:       "object",
		Title:      c.Title.Translate(locale),
		Properties: map[string]QueryableProp{},
		Schema:     "http://json-schema.org/draft/2019-09/schema",
		ID:         fmt.Sprintf("%s/%s/queryables", e.collectionsURL(), r.Dataset),
	}

	if len(schema.Fields) > 0 && schema.Spatial {
		doc.Properties["geometry"] = QueryableProp{Ref: "https://geojson.org/schema/Geometry.json"}
	}

	for _, f := range schema.Fields {
		if len(schema.Properties) > 0 && !contains(schema.Properties, f.Name) {
			continue
		}
		doc.Properties[f.Name] = QueryableProp{Title: f.Name, Type: f.Type, Enum: f.Enum}
	}

	if format == FormatHTML {
		payload := map[string]any{
			"Title":           doc.Title,
			"Properties":      doc.Properties,
			"CollectionsPath": e.collectionsURL(),
		}
		return e.renderHTML("collections/queryables.html", payload, locale)
	}

	body, err := toJSON(doc)
	if err != nil {
		return e.fail(FormatJSON, err)
	}
	return Response{Status: 200, ContentType: contentTypeSchemaJSON, Body: body}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// resolveItemsProvider opens the feature provider, falling back to record.
// Both capabilities absent reads as an invalid provider type for the items
// surface.
func (e *Engine) resolveItemsProvider(ctx context.Context, dataset string) (provider.Provider, error) {
	p, err := e.reg.ResolveProvider(ctx, dataset, provider.CapabilityFeature)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, registry.ErrCapabilityUnsupported) {
		return nil, err
	}
	return e.reg.ResolveProvider(ctx, dataset, provider.CapabilityRecord)
}

// QueryItems runs the full item query pipeline for one collection.
func (e *Engine) QueryItems(ctx context.Context, r Request) Response {
	format, ok := NegotiateFormat(r.Params.Get("f"), r.Accept, FormatJSON, FormatHTML, FormatJSONLD, FormatCSV)
	if !ok {
		return e.exception(FormatJSON, invalidParameter("Invalid format"))
	}
	locale := e.locale(r)

	c, err := e.reg.Collection(r.Dataset)
	if err != nil {
		return e.fail(format, err)
	}

	p, err := e.resolveItemsProvider(ctx, r.Dataset)
	if err != nil {
		return e.fail(format, err)
	}
	schema := p.Schema()

	q, apiErr := ParseQueryOptions(r.Params, ParseConfig{
		DefaultLimit: e.defaultLimit,
		MaxLimit:     e.maxLimit,
		Extents:      c.Extents,
		Schema:       schema,
		ParseCQL:     e.cqlCache.Parse,
	})
	if apiErr != nil {
		return e.exception(format, apiErr)
	}

	start := time.Now()
	result, err := p.Query(ctx, q)
	observability.ObserveProviderQuery(c.ID, err, time.Since(start).Seconds())
	if err != nil {
		return e.fail(format, err)
	}

	fc := FeatureCollection{
		Type:           "FeatureCollection",
		Features:       make([]Item, 0, len(result.Features)),
		NumberReturned: len(result.Features),
		TimeStamp:      time.Now().UTC().Format(timeStampFormat),
	}
	for _, f := range result.Features {
		item, err := newItem(f)
		if err != nil {
			return e.fail(format, err)
		}
		fc.Features = append(fc.Features, item)
	}
	if result.MatchedKnown {
		matched := result.NumberMatched
		fc.NumberMatched = &matched
	}

	itemsURI := fmt.Sprintf("%s/%s/items", e.collectionsURL(), r.Dataset)
	fc.Links = itemsLinks(itemsURI, c.Title.Translate(locale), r.Params, format, q.Offset, q.Limit, len(result.Features))

	e.announce(c.ID, string(format), q, fc)

	switch format {
	case FormatHTML:
		return e.formatItemsHTML(fc, schema, itemsURI, q.Offset, locale)
	case FormatCSV:
		return e.formatItemsCSV(fc, schema, r.Dataset)
	case FormatJSONLD:
		idField := "id"
		if schema.URIField != "" {
			idField = schema.URIField
		}
		body, err := toJSONLD(fc, r.Dataset, idField)
		if err != nil {
			return e.fail(FormatJSON, err)
		}
		return Response{Status: 200, ContentType: contentTypeJSONLD, Body: body}
	default:
		body, err := toJSON(fc)
		if err != nil {
			return e.fail(FormatJSON, err)
		}
		return Response{Status: 200, ContentType: contentTypeGeoJSON, Body: body}
	}
}

// announce publishes a query-audit event; never blocks, drops when the
// publisher is absent or saturated.
func (e *Engine) announce(collection, format string, q provider.Query, fc FeatureCollection) {
	if e.publisher == nil {
		return
	}
	ev := events.Event{
		Collection:     collection,
		Format:         format,
		Offset:         q.Offset,
		Limit:          q.Limit,
		HasBBox:        len(q.BBox) > 0,
		HasFilter:      q.Filter != nil,
		NumberReturned: fc.NumberReturned,
		TS:             time.Now().UTC(),
	}
	if fc.NumberMatched != nil {
		ev.NumberMatched = *fc.NumberMatched
	}
	e.publisher.Publish(ev)
}

// formatItemsHTML injects the presentation-only fields the templates need.
func (e *Engine) formatItemsHTML(fc FeatureCollection, schema provider.Schema, itemsURI string, offset int, locale string) Response {
	idField := schema.IDField
	if schema.TitleField != "" {
		idField = schema.TitleField
	}
	payload := map[string]any{
		"Features":        fc.Features,
		"Links":           fc.Links,
		"ItemsPath":       itemsURI,
		"DatasetPath":     strings.TrimSuffix(itemsURI, "/items"),
		"CollectionsPath": e.collectionsURL(),
		"Offset":          offset,
		"IDField":         idField,
	}
	if schema.URIField != "" {
		payload["URIField"] = schema.URIField
	}
	return e.renderHTML("collections/items.html", payload, locale)
}

func (e *Engine) formatItemsCSV(fc FeatureCollection, schema provider.Schema, dataset string) Response {
	body, err := toCSV(fc)
	if err != nil {
		e.log.Error("csv serialization", "collection", dataset, "err", err)
		return e.exception(FormatJSON, serverError("Error serializing output"))
	}
	filename := schema.Filename
	if filename == "" {
		filename = dataset + ".csv"
	}
	return Response{
		Status:      200,
		ContentType: contentTypeCSV,
		Headers: map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
		},
		Body: body,
	}
}
