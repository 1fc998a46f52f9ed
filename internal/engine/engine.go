// Package engine abstracts the full-text search engine behind a small
// port: index creation, batch writes with per-item outcomes, and querying
// with filters, sorting, pagination and range facets. The bleve adapter is
// the production implementation; tests substitute fakes.
package engine

import (
	"context"
	"errors"

	"github.com/soudok/soudok/internal/document"
)

// ErrBadQuery marks a client-correctable query error (for example an
// unknown facet range name). Callers distinguish it from engine failures,
// which are operator problems.
var ErrBadQuery = errors.New("invalid query")

// Engine is the write+read surface of the search engine.
type Engine interface {
	// EnsureIndex idempotently creates the index with its fixed schema.
	// An already-existing index is success; any other error is fatal.
	EnsureIndex(ctx context.Context) error

	// Reset destroys and recreates the index. Explicit and destructive;
	// the metadata store is untouched.
	Reset(ctx context.Context) error

	// BulkWrite upserts a batch of documents keyed by ID and returns one
	// result per document. A transport-level failure is returned as an
	// error and is fatal for the run; per-item rejections are reported in
	// the results.
	BulkWrite(ctx context.Context, docs []*document.Document) ([]ItemResult, error)

	// Search executes a query with filters, sort, window and facets.
	Search(ctx context.Context, req *Request) (*Response, error)

	// DocCount returns the number of documents in the index.
	DocCount() (uint64, error)

	Close() error
}

// ItemResult is the per-document outcome of a bulk write.
type ItemResult struct {
	ID     string
	Action string
	Err    error
}

// YearRange is a half-open-free year span; Min and Max are inclusive.
type YearRange struct {
	Name string
	Min  int
	Max  int
}

// Request describes one query against the engine.
type Request struct {
	// Query is the free-text query; empty matches all documents.
	Query string

	// Filters restricts results to documents whose year falls in any of
	// the given ranges.
	Filters []YearRange

	// Sort lists sort keys in engine syntax ("-number_sort" descends).
	Sort []string

	// From/Size delimit the pagination window. Size 0 is a count-only
	// request.
	From int
	Size int

	// FacetRanges, when non-empty, requests a year facet aggregation
	// over the given ranges.
	FacetRanges []YearRange

	// Highlight requests highlighted excerpts for title and full text.
	Highlight bool
}

// Hit is one search result. FullText is never returned; excerpts come
// back as highlight fragments.
type Hit struct {
	ID        string
	Score     float64
	Year      int
	Number    string
	Title     string
	URL       string
	PDFURL    string
	URN       string
	DocType   string
	Fragments map[string][]string
}

// FacetBucket is an aggregated hit count for one year range, in the
// engine's native order (by count).
type FacetBucket struct {
	Name  string
	Start int
	End   int
	Count int
}

// Response is the engine's answer to a Request.
type Response struct {
	Total      uint64
	Hits       []Hit
	YearFacets []FacetBucket
}
