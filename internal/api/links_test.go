package api

import (
	"net/url"
	"strings"
	"testing"
)

func linkByRel(links []Link, rel string) (Link, bool) {
	for _, l := range links {
		if l.Rel == rel {
			return l, true
		}
	}
	return Link{}, false
}

func TestSerializeQueryParams_DropsFAndOffset(t *testing.T) {
	values := url.Values{}
	values.Set("f", "html")
	values.Set("offset", "20")
	values.Set("bbox", "4,50,6,52")
	values.Set("limit", "5")

	got := serializeQueryParams(values)
	if strings.Contains(got, "f=") && strings.Contains(got, "f=html") {
		t.Fatalf("f survived: %q", got)
	}
	if strings.Contains(got, "offset") {
		t.Fatalf("offset survived: %q", got)
	}
	if got != "&bbox=4,50,6,52&limit=5" {
		t.Fatalf("got %q", got)
	}
}

func TestSerializeQueryParams_KeepsCommasReadable(t *testing.T) {
	values := url.Values{}
	values.Set("properties", "name,elevation")
	got := serializeQueryParams(values)
	if got != "&properties=name,elevation" {
		t.Fatalf("got %q", got)
	}
}

func TestSerializeQueryParams_EscapesValues(t *testing.T) {
	values := url.Values{}
	values.Set("q", "a b&c")
	got := serializeQueryParams(values)
	if got != "&q=a+b%26c" {
		t.Fatalf("got %q", got)
	}
}

func TestItemsLinks_SelfAndAlternates(t *testing.T) {
	links := itemsLinks("http://x/collections/obs/items", "Observations", url.Values{}, FormatJSON, 0, 10, 3)

	self, ok := linkByRel(links, "self")
	if !ok {
		t.Fatalf("no self link")
	}
	if !strings.Contains(self.Href, "f=json") {
		t.Fatalf("self href = %q", self.Href)
	}

	alternates := 0
	for _, l := range links {
		if l.Rel == "alternate" {
			alternates++
		}
	}
	if alternates != 2 {
		t.Fatalf("alternates = %d, want 2", alternates)
	}
}

func TestItemsLinks_SelfFollowsRequestedFormat(t *testing.T) {
	links := itemsLinks("http://x/collections/obs/items", "", url.Values{}, FormatHTML, 0, 10, 3)
	self, _ := linkByRel(links, "self")
	if !strings.Contains(self.Href, "f=html") {
		t.Fatalf("self should be the html variant: %q", self.Href)
	}
}

func TestItemsLinks_Pagination(t *testing.T) {
	// first full page: next but no prev
	links := itemsLinks("http://x/items", "", url.Values{}, FormatJSON, 0, 2, 2)
	if _, ok := linkByRel(links, "prev"); ok {
		t.Fatalf("prev on first page")
	}
	next, ok := linkByRel(links, "next")
	if !ok {
		t.Fatalf("missing next on full page")
	}
	if !strings.Contains(next.Href, "offset=2") {
		t.Fatalf("next href = %q", next.Href)
	}

	// middle page: both
	links = itemsLinks("http://x/items", "", url.Values{}, FormatJSON, 2, 2, 2)
	prev, ok := linkByRel(links, "prev")
	if !ok {
		t.Fatalf("missing prev")
	}
	if !strings.Contains(prev.Href, "offset=0") {
		t.Fatalf("prev href = %q", prev.Href)
	}
	if _, ok := linkByRel(links, "next"); !ok {
		t.Fatalf("missing next")
	}

	// short page: prev only
	links = itemsLinks("http://x/items", "", url.Values{}, FormatJSON, 4, 2, 1)
	if _, ok := linkByRel(links, "next"); ok {
		t.Fatalf("next on short page")
	}
	if _, ok := linkByRel(links, "prev"); !ok {
		t.Fatalf("missing prev")
	}
}

func TestItemsLinks_PrevClampsToZero(t *testing.T) {
	links := itemsLinks("http://x/items", "", url.Values{}, FormatJSON, 1, 5, 0)
	prev, ok := linkByRel(links, "prev")
	if !ok {
		t.Fatalf("missing prev")
	}
	if !strings.Contains(prev.Href, "offset=0") {
		t.Fatalf("prev href = %q", prev.Href)
	}
}

func TestItemsLinks_PaginationKeepsFilters(t *testing.T) {
	values := url.Values{}
	values.Set("bbox", "4,50,6,52")
	values.Set("offset", "2")
	links := itemsLinks("http://x/items", "", values, FormatJSON, 2, 2, 2)
	next, _ := linkByRel(links, "next")
	if !strings.Contains(next.Href, "bbox=4,50,6,52") {
		t.Fatalf("filters dropped from next: %q", next.Href)
	}
	if strings.Count(next.Href, "offset=") != 1 {
		t.Fatalf("offset duplicated: %q", next.Href)
	}
}

func TestItemsLinks_CollectionBacklink(t *testing.T) {
	links := itemsLinks("http://x/collections/obs/items", "Observations", url.Values{}, FormatJSON, 0, 10, 0)
	backlink, ok := linkByRel(links, "collection")
	if !ok {
		t.Fatalf("missing collection link")
	}
	if backlink.Href != "http://x/collections/obs" {
		t.Fatalf("backlink href = %q", backlink.Href)
	}
	if backlink.Title != "Observations" {
		t.Fatalf("backlink title = %q", backlink.Title)
	}
}
