// Package query plans searches against the engine and shapes the results
// for presentation: sort clamping, pagination windows and year facet
// post-processing. It is stateless per request and safe for concurrent
// use; it only reads from the engine.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/soudok/soudok/internal/engine"
)

// DefaultPageSize is the result window used when the caller does not
// specify one.
const DefaultPageSize = 12

// Decade facet bounds. The first bucket starts at the first report year;
// the rest are whole decades.
const (
	facetStartYear = 1922
	facetEndYear   = 2029
)

// scoreSort is the engine's relevance pseudo-field.
const scoreSort = "_score"

// sortDefaults maps each permitted sort field to its direction prefix.
// Any field outside this map is silently replaced with relevance, so a
// caller can never sort on an arbitrary engine field.
var sortDefaults = map[string]string{
	scoreSort:     "-" + scoreSort,
	"number_sort": "-number_sort",
	"title_sort":  "title_sort",
}

// Params is one incoming search request, as decoded from the caller.
type Params struct {
	// Query is the free text; empty matches everything.
	Query string

	// Sort names a sort field from the allow-list. Unknown values fall
	// back to relevance.
	Sort string

	// Years names decade facet buckets to filter by. Unknown names are a
	// client error.
	Years []string

	// Page is 1-based; values past the last page are clamped down to it.
	Page int

	// PageSize <= 0 selects DefaultPageSize.
	PageSize int
}

// Facet is one shaped year bucket.
type Facet struct {
	Name  string
	Start int
	End   int
	Count int
}

// Result is one shaped results page.
type Result struct {
	Total      uint64
	Page       int
	TotalPages int
	PageSize   int
	Hits       []engine.Hit
	Facets     []Facet
}

// Planner executes searches against an engine and shapes the output.
type Planner struct {
	engine engine.Engine
}

// New creates a planner over the given engine.
func New(eng engine.Engine) *Planner {
	return &Planner{engine: eng}
}

// DecadeRanges returns the fixed year facet ranges, ascending. The first
// range is a partial decade starting at the first report year.
func DecadeRanges() []engine.YearRange {
	ranges := []engine.YearRange{{
		Name: fmt.Sprintf("%d-%d", facetStartYear, 1929),
		Min:  facetStartYear,
		Max:  1929,
	}}
	for start := 1930; start < facetEndYear; start += 10 {
		ranges = append(ranges, engine.YearRange{
			Name: fmt.Sprintf("%d-%d", start, start+9),
			Min:  start,
			Max:  start + 9,
		})
	}
	return ranges
}

// Search runs a count request followed by a windowed page request and
// returns the shaped page. Unknown year filter names return an error
// wrapping engine.ErrBadQuery; engine failures pass through unchanged.
func (p *Planner) Search(ctx context.Context, params *Params) (*Result, error) {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	filters, err := resolveYearFilters(params.Years)
	if err != nil {
		return nil, err
	}

	// Count-only pass: cheap total for the pagination clamp.
	count, err := p.engine.Search(ctx, &engine.Request{
		Query:   params.Query,
		Filters: filters,
	})
	if err != nil {
		return nil, fmt.Errorf("count query: %w", err)
	}

	totalPages := int((count.Total + uint64(pageSize) - 1) / uint64(pageSize))
	page := params.Page
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	resp, err := p.engine.Search(ctx, &engine.Request{
		Query:       params.Query,
		Filters:     filters,
		Sort:        resolveSort(params.Query, params.Sort),
		From:        (page - 1) * pageSize,
		Size:        pageSize,
		FacetRanges: DecadeRanges(),
		Highlight:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("page query: %w", err)
	}

	return &Result{
		Total:      resp.Total,
		Page:       page,
		TotalPages: totalPages,
		PageSize:   pageSize,
		Hits:       resp.Hits,
		Facets:     shapeFacets(resp.YearFacets),
	}, nil
}

// resolveYearFilters maps requested facet bucket names to year ranges.
// A name outside the fixed decade set is a client error, not an engine
// field to be passed through.
func resolveYearFilters(names []string) ([]engine.YearRange, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[string]engine.YearRange)
	for _, r := range DecadeRanges() {
		known[r.Name] = r
	}
	var filters []engine.YearRange
	for _, name := range names {
		r, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown year range %q", engine.ErrBadQuery, name)
		}
		filters = append(filters, r)
	}
	return filters, nil
}

// resolveSort clamps the requested sort to the allow-list. An empty
// query with no explicit sort orders chronologically by serial, newest
// first, since relevance is meaningless without query terms.
func resolveSort(query, sort string) []string {
	if sort == "" {
		if query == "" {
			return []string{sortDefaults["number_sort"]}
		}
		return []string{sortDefaults[scoreSort]}
	}
	clause, ok := sortDefaults[sort]
	if !ok {
		clause = sortDefaults[scoreSort]
	}
	return []string{clause}
}

// shapeFacets drops buckets with zero or one hit and re-sorts the rest
// descending by start year. The engine orders buckets by hit count; a
// chronological facet list needs chronological order regardless of
// bucket popularity.
func shapeFacets(buckets []engine.FacetBucket) []Facet {
	var shaped []Facet
	for _, b := range buckets {
		if b.Count <= 1 {
			continue
		}
		shaped = append(shaped, Facet{Name: b.Name, Start: b.Start, End: b.End, Count: b.Count})
	}
	sort.Slice(shaped, func(i, j int) bool {
		return shaped[i].Start > shaped[j].Start
	})
	return shaped
}
