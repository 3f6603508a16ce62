package provider

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opencdms-dev/opencdms-api/internal/cql"
)

// Apply runs a query against an in-memory feature slice. Backends that pull
// whole candidate sets into memory (the memory and redis providers) share
// this so predicate semantics stay identical between them.
func Apply(features []Feature, q Query, schema Schema) *Result {
	matched := make([]Feature, 0, len(features))
	for _, f := range features {
		if matches(f, q, schema) {
			matched = append(matched, f)
		}
	}

	sortFeatures(matched, q.SortBy)

	total := len(matched)
	if q.ResultType == ResultTypeHits {
		return &Result{Features: []Feature{}, NumberMatched: total, MatchedKnown: true}
	}

	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if q.Limit <= 0 || end > total {
		end = total
	}

	page := make([]Feature, 0, end-start)
	for _, f := range matched[start:end] {
		page = append(page, project(f, q))
	}
	return &Result{Features: page, NumberMatched: total, MatchedKnown: true}
}

func matches(f Feature, q Query, schema Schema) bool {
	if b, ok := q.Bound(); ok {
		if f.Geometry == nil || !b.Intersects(f.Geometry.Bound()) {
			return false
		}
	}

	if q.Datetime != nil && schema.TimeField != "" {
		t, ok := featureTime(f.Properties[schema.TimeField])
		if !ok || !q.Datetime.Contains(t) {
			return false
		}
	}

	for _, pf := range q.Properties {
		v, ok := f.Properties[pf.Name]
		if !ok || fmt.Sprintf("%v", v) != pf.Value {
			return false
		}
	}

	if q.Filter != nil && !cql.Eval(q.Filter, f.Properties) {
		return false
	}

	if q.Q != "" && !freeTextMatch(f, q.Q) {
		return false
	}

	return true
}

func featureTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, true
		}
		if ts, err := time.Parse("2006-01-02", t); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func freeTextMatch(f Feature, q string) bool {
	needle := strings.ToLower(q)
	if strings.Contains(strings.ToLower(f.ID), needle) {
		return true
	}
	for _, v := range f.Properties {
		s, ok := v.(string)
		if ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func sortFeatures(features []Feature, criteria []SortCriterion) {
	if len(criteria) == 0 {
		return
	}
	sort.SliceStable(features, func(i, j int) bool {
		for _, c := range criteria {
			cmp := compareValues(features[i].Properties[c.Property], features[j].Properties[c.Property])
			if cmp == 0 {
				continue
			}
			if c.Order == SortDesc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func project(f Feature, q Query) Feature {
	out := Feature{ID: f.ID, Geometry: f.Geometry}
	if q.SkipGeometry {
		out.Geometry = nil
	}
	if len(q.Select) == 0 {
		out.Properties = f.Properties
		return out
	}
	props := make(map[string]any, len(q.Select))
	for _, name := range q.Select {
		if v, ok := f.Properties[name]; ok {
			props[name] = v
		}
	}
	out.Properties = props
	return out
}
