package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soudok/soudok/internal/document"
)

func testDoc(id string, year int, number string) *document.Document {
	return &document.Document{
		ID:      id,
		DokID:   id,
		Year:    year,
		Number:  number,
		DocType: "sou",
		Title:   fmt.Sprintf("Betänkande %d:%s", year, number),
		Source:  document.SourceRiksdagen,
	}
}

func TestInsertIfAbsent_Idempotent(t *testing.T) {
	// Given: an empty store
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	doc := testDoc("H8B36", 2021, "36")

	// When: the same document is inserted twice
	inserted, err := s.InsertIfAbsent(ctx, doc)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertIfAbsent(ctx, doc)
	require.NoError(t, err)

	// Then: the second insert is a no-op
	assert.False(t, inserted)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestInsertIfAbsent_NaturalKeyURN(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	doc := &document.Document{
		ID: "urn:nbn:se:kb:sou-1922-1", URN: "urn:nbn:se:kb:sou-1922-1",
		Year: 1922, Number: "1", DocType: "sou", Title: "T", Source: document.SourceKB,
	}

	inserted, err := s.InsertIfAbsent(ctx, doc)
	require.NoError(t, err)
	assert.True(t, inserted)

	has, err := s.HasURN(ctx, doc.URN)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasURN(ctx, "urn:nbn:se:kb:sou-1922-2")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestExistingDocIDs_Batched(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_, err := s.InsertIfAbsent(ctx, testDoc(fmt.Sprintf("DOC%d", i), 1950, fmt.Sprint(i)))
		require.NoError(t, err)
	}

	existing, err := s.ExistingDocIDs(ctx, []string{"DOC1", "DOC3", "DOC9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"DOC1": true, "DOC3": true}, existing)

	existing, err = s.ExistingDocIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestListPending_And_MarkIndexed(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_, err := s.InsertIfAbsent(ctx, testDoc(fmt.Sprintf("DOC%d", i), 1950, fmt.Sprint(i)))
		require.NoError(t, err)
	}

	// When: one document is acknowledged
	require.NoError(t, s.MarkIndexed(ctx, "DOC2"))

	// Then: only the others remain pending
	var pending []string
	cur, err := s.ListPending(ctx, false)
	require.NoError(t, err)
	for cur.Next() {
		pending = append(pending, cur.Document().ID)
	}
	require.NoError(t, cur.Err())
	require.NoError(t, cur.Close())
	assert.Equal(t, []string{"DOC1", "DOC3"}, pending)

	// And: reindex mode sees everything
	var all []string
	cur, err = s.ListPending(ctx, true)
	require.NoError(t, err)
	for cur.Next() {
		all = append(all, cur.Document().ID)
	}
	require.NoError(t, cur.Err())
	require.NoError(t, cur.Close())
	assert.Equal(t, []string{"DOC1", "DOC2", "DOC3"}, all)
}

func TestListPending_InterleavedMarkIndexed(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := s.InsertIfAbsent(ctx, testDoc(fmt.Sprintf("DOC%d", i), 1950, fmt.Sprint(i)))
		require.NoError(t, err)
	}

	// Marking documents while iterating must not disturb the cursor.
	cur, err := s.ListPending(ctx, false)
	require.NoError(t, err)
	seen := 0
	for cur.Next() {
		require.NoError(t, s.MarkIndexed(ctx, cur.Document().ID))
		seen++
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, 5, seen)

	cur, err = s.ListPending(ctx, false)
	require.NoError(t, err)
	assert.False(t, cur.Next())
	require.NoError(t, cur.Err())
}

func TestMarkIndexed_UnknownID(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	err = s.MarkIndexed(context.Background(), "MISSING")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	_, err = s.InsertIfAbsent(ctx, testDoc("A", 1930, "1"))
	require.NoError(t, err)
	_, err = s.InsertIfAbsent(ctx, testDoc("B", 1930, "2"))
	require.NoError(t, err)
	require.NoError(t, s.MarkIndexed(ctx, "A"))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
}

func TestOpen_OnDisk_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soudok.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.InsertIfAbsent(context.Background(), testDoc("A", 1930, "1"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopen and verify the document survived.
	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestClose_Idempotent(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Stats(context.Background())
	assert.Error(t, err)
}
