// Package ingest streams pending documents from the metadata store to the
// search engine in bounded batches, marking each document indexed only
// after the engine acknowledges its write.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soudok/soudok/internal/document"
	"github.com/soudok/soudok/internal/engine"
	"github.com/soudok/soudok/internal/store"
)

// DefaultBatchSize bounds the peak bulk-request payload against the
// engine. Not a correctness constant.
const DefaultBatchSize = 25

// Indexer runs one ingestion pass: EnsureIndex, then batched streaming.
type Indexer struct {
	store     *store.Store
	engine    engine.Engine
	batchSize int
}

// New creates an indexer. batchSize <= 0 selects DefaultBatchSize.
func New(st *store.Store, eng engine.Engine, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Indexer{store: st, engine: eng, batchSize: batchSize}
}

// Result summarizes one ingestion run.
type Result struct {
	// Indexed counts documents the engine acknowledged.
	Indexed int
	// Failed counts per-item rejections; those documents stay pending
	// and are retried on the next scheduled run.
	Failed int
	// Duration is the total run time.
	Duration time.Duration
}

// Run streams pending documents to the engine. With reindex set, every
// stored document is resubmitted regardless of status (used after a
// schema change). An engine transport failure aborts the run; documents
// already acknowledged stay marked indexed.
func (i *Indexer) Run(ctx context.Context, reindex bool) (*Result, error) {
	start := time.Now()

	stats, err := i.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store stats: %w", err)
	}
	if stats.Pending == 0 && !reindex {
		slog.Info("ingest_nothing_to_do")
		return &Result{Duration: time.Since(start)}, nil
	}

	if err := i.engine.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	cur, err := i.store.ListPending(ctx, reindex)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer func() { _ = cur.Close() }()

	res := &Result{}
	batch := make([]*document.Document, 0, i.batchSize)
	for cur.Next() {
		batch = append(batch, cur.Document())
		if len(batch) == i.batchSize {
			if err := i.flush(ctx, batch, res); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("stream pending: %w", err)
	}
	if len(batch) > 0 {
		if err := i.flush(ctx, batch, res); err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	slog.Info("ingest_done",
		slog.Int("indexed", res.Indexed),
		slog.Int("failed", res.Failed),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// flush writes one batch and records per-item outcomes. Acknowledged
// documents are durably marked indexed before the next batch is sent.
func (i *Indexer) flush(ctx context.Context, batch []*document.Document, res *Result) error {
	results, err := i.engine.BulkWrite(ctx, batch)
	if err != nil {
		return fmt.Errorf("bulk write: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			slog.Warn("ingest_item_failed",
				slog.String("action", r.Action),
				slog.String("id", r.ID),
				slog.String("error", r.Err.Error()))
			res.Failed++
			continue
		}
		if err := i.store.MarkIndexed(ctx, r.ID); err != nil {
			return fmt.Errorf("mark indexed %s: %w", r.ID, err)
		}
		slog.Debug("ingest_item_indexed", slog.String("id", r.ID))
		res.Indexed++
	}
	return nil
}
