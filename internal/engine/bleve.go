package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/sv"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/soudok/soudok/internal/document"
)

// Bleve implements Engine on top of a bleve index.
type Bleve struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// Verify interface implementation at compile time.
var _ Engine = (*Bleve)(nil)

// NewBleve creates an engine rooted at path. The index itself is not
// opened until EnsureIndex. An empty path selects an in-memory index for
// testing.
func NewBleve(path string) *Bleve {
	return &Bleve{path: path}
}

// indexMapping builds the fixed index schema: integer year, keyword
// fields for identifiers and sort keys, and Swedish-analyzed text fields
// for title and body. full_text is stored with term vectors so the engine
// can produce highlighted excerpts.
func indexMapping() (*mapping.IndexMappingImpl, error) {
	keywordField := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		fm.IncludeInAll = false
		return fm
	}

	yearField := bleve.NewNumericFieldMapping()
	yearField.Store = true

	titleField := bleve.NewTextFieldMapping()
	titleField.Store = true
	titleField.IncludeTermVectors = true

	textField := bleve.NewTextFieldMapping()
	textField.Store = true
	textField.IncludeTermVectors = true

	idField := bleve.NewTextFieldMapping()
	idField.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("year", yearField)
	doc.AddFieldMappingsAt("number", keywordField())
	doc.AddFieldMappingsAt("id_year_number", idField)
	doc.AddFieldMappingsAt("number_sort", keywordField())
	doc.AddFieldMappingsAt("title", titleField)
	doc.AddFieldMappingsAt("title_sort", keywordField())
	doc.AddFieldMappingsAt("url", keywordField())
	doc.AddFieldMappingsAt("url_pdf", keywordField())
	doc.AddFieldMappingsAt("urn", keywordField())
	doc.AddFieldMappingsAt("type", keywordField())
	doc.AddFieldMappingsAt("related_id", keywordField())
	doc.AddFieldMappingsAt("full_text", textField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = sv.AnalyzerName
	return m, nil
}

// EnsureIndex opens the index, creating it with the fixed schema if it
// does not exist. Safe to call repeatedly.
func (b *Bleve) EnsureIndex(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("engine is closed")
	}
	if b.index != nil {
		return nil
	}

	m, err := indexMapping()
	if err != nil {
		return fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if b.path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		idx, err = bleve.Open(b.path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			slog.Info("index_create", slog.String("path", b.path))
			idx, err = bleve.New(b.path, m)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create/open index: %w", err)
	}

	b.index = idx
	return nil
}

// Reset destroys the index and recreates it empty.
func (b *Bleve) Reset(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("engine is closed")
	}
	if b.index != nil {
		if err := b.index.Close(); err != nil {
			b.mu.Unlock()
			return fmt.Errorf("failed to close index: %w", err)
		}
		b.index = nil
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			b.mu.Unlock()
			return fmt.Errorf("failed to remove index: %w", err)
		}
	}
	slog.Info("index_reset", slog.String("path", b.path))
	b.mu.Unlock()

	return b.EnsureIndex(ctx)
}

// indexFields flattens a canonical document into the engine schema.
func indexFields(d *document.Document) map[string]any {
	return map[string]any{
		"year":           d.Year,
		"number":         d.Number,
		"id_year_number": fmt.Sprintf("%s %s", d.ID, d.YearNumber()),
		"number_sort":    document.NumberSortKey(d.Year, d.Number),
		"title":          d.Title,
		"title_sort":     d.TitleSortKey(),
		"url":            d.URL,
		"url_pdf":        d.PDFURL,
		"urn":            d.URN,
		"type":           d.DocType,
		"related_id":     d.RelatedID,
		"full_text":      d.FullText,
	}
}

// BulkWrite upserts docs in one batch. Documents the mapping rejects are
// reported per item and the rest of the batch proceeds; a failure of the
// batch itself is fatal.
func (b *Bleve) BulkWrite(_ context.Context, docs []*document.Document) ([]ItemResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.index == nil {
		return nil, fmt.Errorf("engine is not open")
	}

	results := make([]ItemResult, 0, len(docs))
	batch := b.index.NewBatch()
	for _, d := range docs {
		res := ItemResult{ID: d.ID, Action: "index"}
		if err := batch.Index(d.ID, indexFields(d)); err != nil {
			res.Err = err
		}
		results = append(results, res)
	}

	if err := b.index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}
	return results, nil
}

// Search runs one query. Size 0 yields a count-only response.
func (b *Bleve) Search(ctx context.Context, req *Request) (*Response, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed || b.index == nil {
		return nil, fmt.Errorf("engine is not open")
	}

	sr := bleve.NewSearchRequestOptions(buildQuery(req), req.Size, req.From, false)
	sr.Fields = []string{"year", "number", "title", "url", "url_pdf", "urn", "type"}
	if len(req.Sort) > 0 {
		sr.SortBy(req.Sort)
	}
	if len(req.FacetRanges) > 0 {
		fr := bleve.NewFacetRequest("year", len(req.FacetRanges))
		for _, r := range req.FacetRanges {
			min := float64(r.Min)
			max := float64(r.Max + 1) // bleve range max is exclusive
			fr.AddNumericRange(r.Name, &min, &max)
		}
		sr.AddFacet("years", fr)
	}
	if req.Highlight && req.Size > 0 {
		sr.Highlight = bleve.NewHighlight()
		sr.Highlight.AddField("title")
		sr.Highlight.AddField("full_text")
	}

	res, err := b.index.SearchInContext(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := &Response{Total: res.Total}
	for _, hit := range res.Hits {
		out.Hits = append(out.Hits, Hit{
			ID:        hit.ID,
			Score:     hit.Score,
			Year:      fieldInt(hit.Fields, "year"),
			Number:    fieldString(hit.Fields, "number"),
			Title:     fieldString(hit.Fields, "title"),
			URL:       fieldString(hit.Fields, "url"),
			PDFURL:    fieldString(hit.Fields, "url_pdf"),
			URN:       fieldString(hit.Fields, "urn"),
			DocType:   fieldString(hit.Fields, "type"),
			Fragments: hit.Fragments,
		})
	}

	if facet, ok := res.Facets["years"]; ok {
		for _, nr := range facet.NumericRanges {
			bucket := FacetBucket{Name: nr.Name, Count: nr.Count}
			if nr.Min != nil {
				bucket.Start = int(*nr.Min)
			}
			if nr.Max != nil {
				bucket.End = int(*nr.Max) - 1
			}
			out.YearFacets = append(out.YearFacets, bucket)
		}
	}
	return out, nil
}

// buildQuery combines the free-text disjunction with year range filters.
// The field boosts (number^2, title^3) mirror the weighting the query
// front-end has always used.
func buildQuery(req *Request) query.Query {
	var base query.Query
	if strings.TrimSpace(req.Query) == "" {
		base = bleve.NewMatchAllQuery()
	} else {
		number := bleve.NewMatchQuery(req.Query)
		number.SetField("number")
		number.SetBoost(2.0)

		title := bleve.NewMatchQuery(req.Query)
		title.SetField("title")
		title.SetBoost(3.0)

		text := bleve.NewMatchQuery(req.Query)
		text.SetField("full_text")

		base = bleve.NewDisjunctionQuery(number, title, text)
	}

	if len(req.Filters) == 0 {
		return base
	}

	ranges := make([]query.Query, 0, len(req.Filters))
	for _, r := range req.Filters {
		min := float64(r.Min)
		max := float64(r.Max + 1)
		nr := bleve.NewNumericRangeQuery(&min, &max)
		nr.SetField("year")
		ranges = append(ranges, nr)
	}
	return bleve.NewConjunctionQuery(base, bleve.NewDisjunctionQuery(ranges...))
}

// DocCount returns the number of indexed documents.
func (b *Bleve) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed || b.index == nil {
		return 0, fmt.Errorf("engine is not open")
	}
	return b.index.DocCount()
}

// Close closes the engine. Idempotent.
func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func fieldString(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func fieldInt(fields map[string]any, name string) int {
	if v, ok := fields[name].(float64); ok {
		return int(v)
	}
	return 0
}
