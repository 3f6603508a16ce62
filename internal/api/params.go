package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opencdms-dev/opencdms-api/internal/cql"
	"github.com/opencdms-dev/opencdms-api/internal/provider"
	"github.com/opencdms-dev/opencdms-api/internal/registry"
)

// reservedParams never become property filters, even when a provider
// exposes a field of the same name.
var reservedParams = map[string]bool{
	"bbox":         true,
	"f":            true,
	"lang":         true,
	"limit":        true,
	"offset":       true,
	"resulttype":   true,
	"datetime":     true,
	"sortby":       true,
	"properties":   true,
	"skipGeometry": true,
	"q":            true,
	"filter":       true,
	"filter-lang":  true,
}

// ParseConfig carries the per-request inputs of query validation.
type ParseConfig struct {
	DefaultLimit int
	// MaxLimit, when positive, clamps the requested limit instead of
	// rejecting it.
	MaxLimit int
	Extents  *registry.Extents
	Schema   provider.Schema
	ParseCQL func(string) (cql.Expr, error)
}

// ParseQueryOptions validates raw query parameters into a provider query.
// Rules run in a fixed order and the first violation wins; the returned
// *Error carries the public message for that rule.
func ParseQueryOptions(values url.Values, pc ParseConfig) (provider.Query, *Error) {
	q := provider.Query{ResultType: provider.ResultTypeResults}

	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, invalidParameter("offset value should be an integer")
		}
		if n < 0 {
			return q, invalidParameter("offset value should be positive or zero")
		}
		q.Offset = n
	}

	q.Limit = pc.DefaultLimit
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, invalidParameter("limit value should be an integer")
		}
		if n <= 0 {
			return q, invalidParameter("limit value should be strictly positive")
		}
		q.Limit = n
	}
	if pc.MaxLimit > 0 && q.Limit > pc.MaxLimit {
		q.Limit = pc.MaxLimit
	}

	if raw := values.Get("resulttype"); raw != "" {
		q.ResultType = provider.ResultType(raw)
	}

	if raw := values.Get("bbox"); raw != "" {
		bbox, err := parseBBox(raw)
		if err != nil {
			return q, invalidParameter(err.Error())
		}
		q.BBox = bbox
	}

	if raw := values.Get("datetime"); raw != "" {
		tr, err := parseDatetime(raw)
		if err != nil {
			return q, invalidParameter(err.Error())
		}
		if pc.Extents != nil && pc.Extents.Temporal != nil {
			if !withinTemporalExtent(tr, pc.Extents.Temporal) {
				return q, invalidParameter("datetime parameter out of range")
			}
		}
		q.Datetime = tr
	}

	q.Q = values.Get("q")

	// Field declaration order keeps the filter list deterministic; url.Values
	// iterates randomly.
	for _, name := range pc.Schema.FieldNames() {
		if reservedParams[name] {
			continue
		}
		if _, present := values[name]; !present {
			continue
		}
		q.Properties = append(q.Properties, provider.PropertyFilter{
			Name:  name,
			Value: values.Get(name),
		})
	}

	if raw := values.Get("sortby"); raw != "" {
		for _, token := range strings.Split(raw, ",") {
			order := provider.SortAsc
			prop := token
			if strings.HasPrefix(token, "+") || strings.HasPrefix(token, "-") {
				if token[0] == '-' {
					order = provider.SortDesc
				}
				prop = token[1:]
			}
			if !pc.Schema.HasField(prop) {
				return q, invalidParameter("bad sort property")
			}
			q.SortBy = append(q.SortBy, provider.SortCriterion{Property: prop, Order: order})
		}
	}

	if raw := values.Get("properties"); raw != "" {
		selected := strings.Split(raw, ",")
		for _, name := range selected {
			if !pc.Schema.Selectable(name) {
				return q, invalidParameter("unknown properties specified")
			}
		}
		q.Select = selected
	}

	if raw := values.Get("skipGeometry"); raw != "" {
		q.SkipGeometry = parseBool(raw)
	}

	if lang := values.Get("filter-lang"); lang != "" && lang != "cql-text" {
		return q, invalidParameter("Invalid filter language")
	}

	if raw := values.Get("filter"); raw != "" {
		parse := pc.ParseCQL
		if parse == nil {
			parse = func(s string) (cql.Expr, error) { return cql.Parse(s) }
		}
		expr, err := parse(raw)
		if err != nil {
			return q, invalidParameter(fmt.Sprintf("Bad CQL string : %s", raw))
		}
		q.Filter = expr
	}

	q.Language = values.Get("lang")

	return q, nil
}

func parseBBox(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 && len(parts) != 6 {
		return nil, fmt.Errorf("bbox should be 4 values (minx,miny,maxx,maxy) or 6 values (minx,miny,minz,maxx,maxy,maxz)")
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox values must be numbers")
		}
		vals[i] = f
	}
	half := len(vals) / 2
	for axis := 0; axis < half; axis++ {
		if vals[axis] > vals[axis+half] {
			return nil, fmt.Errorf("bbox minimum value exceeds maximum on an axis")
		}
	}
	return vals, nil
}

func parseDatetime(raw string) (*provider.TimeRange, error) {
	if strings.Contains(raw, "/") {
		parts := strings.SplitN(raw, "/", 2)
		tr := &provider.TimeRange{}
		if parts[0] != ".." && parts[0] != "" {
			t, err := parseInstant(parts[0])
			if err != nil {
				return nil, err
			}
			tr.Start = &t
		}
		if parts[1] != ".." && parts[1] != "" {
			t, err := parseInstant(parts[1])
			if err != nil {
				return nil, err
			}
			tr.End = &t
		}
		if tr.Start == nil && tr.End == nil {
			return nil, fmt.Errorf("datetime value is invalid")
		}
		if tr.Start != nil && tr.End != nil && tr.Start.After(*tr.End) {
			return nil, fmt.Errorf("datetime interval begin exceeds end")
		}
		return tr, nil
	}
	t, err := parseInstant(raw)
	if err != nil {
		return nil, err
	}
	return &provider.TimeRange{Start: &t, End: &t}, nil
}

func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("datetime value is invalid")
}

// withinTemporalExtent rejects intervals entirely outside the declared
// collection extent. Open-ended extent sides accept everything on that side.
func withinTemporalExtent(tr *provider.TimeRange, ext *registry.TemporalExtent) bool {
	if begin, err := parseInstant(ext.Begin); ext.Begin != "" && err == nil {
		if tr.End != nil && tr.End.Before(begin) {
			return false
		}
	}
	if end, err := parseInstant(ext.End); ext.End != "" && err == nil {
		if tr.Start != nil && tr.Start.After(end) {
			return false
		}
	}
	return true
}

// parseBool mirrors lenient truthiness: unknown spellings read as false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
