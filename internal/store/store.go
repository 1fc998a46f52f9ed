// Package store provides the durable metadata store backing the ingestion
// pipeline. It is the single source of truth for which documents exist and
// which have been acknowledged by the search engine.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/soudok/soudok/internal/document"
)

// Store persists canonical documents in SQLite.
// is_indexed is the only column mutated after insert.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens (or creates) the metadata store at path.
// If path is empty, an in-memory database is used for testing.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; ingestion is a one-run-at-a-time batch process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS document (
		id TEXT PRIMARY KEY,
		dok_id TEXT,
		urn TEXT,
		year INTEGER NOT NULL,
		number TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		source TEXT NOT NULL,
		url TEXT,
		url_pdf TEXT,
		full_text TEXT,
		related_id TEXT,
		is_indexed INTEGER NOT NULL DEFAULT 0
	);

	-- Natural keys used for duplicate detection across acquisition runs.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_document_dok_id ON document(dok_id) WHERE dok_id IS NOT NULL AND dok_id != '';
	CREATE UNIQUE INDEX IF NOT EXISTS idx_document_urn ON document(urn) WHERE urn IS NOT NULL AND urn != '';
	CREATE INDEX IF NOT EXISTS idx_document_is_indexed ON document(is_indexed);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertIfAbsent inserts doc unless a record with the same primary key or
// natural key (dok_id, urn) already exists. It reports whether an insert
// occurred. Existing records are never overwritten.
func (s *Store) InsertIfAbsent(ctx context.Context, doc *document.Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, fmt.Errorf("store is closed")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO document (id, dok_id, urn, year, number, type, title, source, url, url_pdf, full_text, related_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		doc.ID, doc.DokID, doc.URN, doc.Year, doc.Number, doc.DocType,
		doc.Title, doc.Source, doc.URL, doc.PDFURL, doc.FullText, doc.RelatedID)
	if err != nil {
		return false, fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return n > 0, nil
}

// ExistingDocIDs reports which of the given dok_ids are already stored.
// One batched membership query; acquisition over large archives must not
// issue per-entry lookups.
func (s *Store) ExistingDocIDs(ctx context.Context, dokIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	existing := make(map[string]bool)
	if len(dokIDs) == 0 {
		return existing, nil
	}

	placeholders := make([]string, len(dokIDs))
	args := make([]any, len(dokIDs))
	for i, id := range dokIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("SELECT dok_id FROM document WHERE dok_id IN (%s)",
		strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing dok_ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dok_id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// HasURN reports whether a document with the given URN is already stored.
func (s *Store) HasURN(ctx context.Context, urn string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, fmt.Errorf("store is closed")
	}

	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM document WHERE urn = ?", urn).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query urn %s: %w", urn, err)
	}
	return true, nil
}

// cursorPageSize is how many rows a Cursor fetches per query.
const cursorPageSize = 100

// ListPending returns a cursor over documents awaiting indexing, in
// insertion order. With all set, every document is returned regardless of
// status (full reindex after a schema change). The cursor reads in pages
// keyed by rowid, so the caller may interleave MarkIndexed calls while
// iterating and a once-pending document stays visible until marked.
func (s *Store) ListPending(ctx context.Context, all bool) (*Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	return &Cursor{ctx: ctx, s: s, all: all}, nil
}

// fetchPage loads the next page of documents after lastRowid.
func (s *Store) fetchPage(ctx context.Context, all bool, lastRowid int64) ([]*document.Document, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, 0, fmt.Errorf("store is closed")
	}

	query := `SELECT rowid, id, dok_id, urn, year, number, type, title, source, url, url_pdf, full_text, related_id, is_indexed
		FROM document WHERE rowid > ?`
	if !all {
		query += " AND is_indexed = 0"
	}
	query += " ORDER BY rowid LIMIT ?"

	rows, err := s.db.QueryContext(ctx, query, lastRowid, cursorPageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("query pending documents: %w", err)
	}
	defer rows.Close()

	var docs []*document.Document
	last := lastRowid
	for rows.Next() {
		var d document.Document
		var dokID, urn, url, pdfURL, fullText, relatedID sql.NullString
		var indexed int
		if err := rows.Scan(&last, &d.ID, &dokID, &urn, &d.Year, &d.Number, &d.DocType,
			&d.Title, &d.Source, &url, &pdfURL, &fullText, &relatedID, &indexed); err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		d.DokID = dokID.String
		d.URN = urn.String
		d.URL = url.String
		d.PDFURL = pdfURL.String
		d.FullText = fullText.String
		d.RelatedID = relatedID.String
		d.Indexed = indexed != 0
		docs = append(docs, &d)
	}
	return docs, last, rows.Err()
}

// MarkIndexed records that the engine acknowledged a successful write for
// id. The update is committed before the call returns.
func (s *Store) MarkIndexed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	res, err := s.db.ExecContext(ctx, "UPDATE document SET is_indexed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark indexed %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark indexed %s: no such document", id)
	}
	return nil
}

// Stats summarizes store contents for the status command.
type Stats struct {
	Total   int
	Pending int
}

// Stats returns document counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	st := &Stats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM document").Scan(&st.Total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM document WHERE is_indexed = 0").Scan(&st.Pending); err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	return st, nil
}

// Close closes the store. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// Cursor is a lazy sequence of documents produced by ListPending. It
// holds no open database resources between pages, so writes may be
// interleaved with iteration.
type Cursor struct {
	ctx       context.Context
	s         *Store
	all       bool
	lastRowid int64
	buf       []*document.Document
	pos       int
	done      bool
	err       error
}

// Next advances the cursor. It returns false when the sequence is
// exhausted or an error occurred; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.err != nil || c.done {
		return false
	}
	if c.pos >= len(c.buf) {
		docs, last, err := c.s.fetchPage(c.ctx, c.all, c.lastRowid)
		if err != nil {
			c.err = err
			return false
		}
		if len(docs) == 0 {
			c.done = true
			return false
		}
		c.buf = docs
		c.pos = 0
		c.lastRowid = last
	}
	c.pos++
	return true
}

// Document returns the current document.
func (c *Cursor) Document() *document.Document {
	return c.buf[c.pos-1]
}

// Err returns the first error encountered while iterating.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the cursor. Kept for symmetry with other iterators; the
// cursor holds no resources between pages.
func (c *Cursor) Close() error {
	c.done = true
	return nil
}
