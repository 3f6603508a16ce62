package provider

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/opencdms-dev/opencdms-api/internal/cql"
)

type ResultType string

const (
	ResultTypeResults ResultType = "results"
	ResultTypeHits    ResultType = "hits"
)

type SortOrder string

const (
	SortAsc  SortOrder = "+"
	SortDesc SortOrder = "-"
)

type SortCriterion struct {
	Property string
	Order    SortOrder
}

// PropertyFilter is one key=value equality taken from the query string.
type PropertyFilter struct {
	Name  string
	Value string
}

// TimeRange is a datetime filter: a single instant (Start == End) or an
// interval with either side open.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// Query is the assembled filter passed to a provider. Predicates combine
// conjunctively; how each one executes is up to the backend.
type Query struct {
	Offset     int
	Limit      int
	ResultType ResultType
	// BBox is empty, or minx,miny[,minz],maxx,maxy[,maxz].
	BBox       []float64
	Datetime   *TimeRange
	Properties []PropertyFilter
	SortBy     []SortCriterion
	// Select lists properties to project; empty keeps all.
	Select       []string
	SkipGeometry bool
	Q            string
	Filter       cql.Expr
	Language     string
}

// Bound converts the 2D part of BBox to an orb bound. ok is false when no
// bbox was requested.
func (q Query) Bound() (orb.Bound, bool) {
	if len(q.BBox) != 4 && len(q.BBox) != 6 {
		return orb.Bound{}, false
	}
	if len(q.BBox) == 6 {
		return orb.Bound{
			Min: orb.Point{q.BBox[0], q.BBox[1]},
			Max: orb.Point{q.BBox[3], q.BBox[4]},
		}, true
	}
	return orb.Bound{
		Min: orb.Point{q.BBox[0], q.BBox[1]},
		Max: orb.Point{q.BBox[2], q.BBox[3]},
	}, true
}
