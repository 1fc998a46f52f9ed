// Package feed acquires documents from the bulk metadata feed: a zip
// archive of per-document JSON bundles carrying metadata, an HTML body and
// attachment descriptors. Entries already present in the metadata store
// are skipped, so re-running a feed acquisition is safe.
package feed

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/soudok/soudok/internal/document"
	"github.com/soudok/soudok/internal/store"
)

// Adapter acquires documents from one feed archive per run. Network
// failures abort the run; re-invocation is safe because acquisition is
// idempotent by natural key.
type Adapter struct {
	store  *store.Store
	titles document.Titles
	client *http.Client
}

// New creates a feed adapter. A nil client selects http.DefaultClient.
func New(st *store.Store, titles document.Titles, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{store: st, titles: titles, client: client}
}

// Result summarizes one acquisition run.
type Result struct {
	// Inserted is the number of net-new documents stored.
	Inserted int
	// Skipped counts entries whose natural key already existed.
	Skipped int
	// Dropped counts entries with structural defects (no PDF reference,
	// malformed year); these need an upstream data fix, not a retry.
	Dropped int
}

// Run downloads the archive at url and stores every entry not already
// present in the metadata store.
func (a *Adapter) Run(ctx context.Context, url string) (*Result, error) {
	slog.Info("feed_run_start", slog.String("url", url))

	archivePath, err := a.download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(archivePath) }()

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	// Entry stems, uppercased, are the feed's document ids,
	// e.g. "h8b41.json" -> "H8B41".
	entries := make(map[string]*zip.File, len(zr.File))
	ids := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		stem := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name))
		id := strings.ToUpper(stem)
		entries[id] = f
		ids = append(ids, id)
	}

	// One batched membership query, not N lookups.
	existing, err := a.store.ExistingDocIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check existing documents: %w", err)
	}

	res := &Result{}
	for _, id := range ids {
		if existing[id] {
			res.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slog.Info("feed_entry_process", slog.String("dok_id", id))

		doc, err := a.decodeEntry(entries[id])
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", id, err)
		}
		if doc == nil {
			res.Dropped++
			continue
		}

		inserted, err := a.store.InsertIfAbsent(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", id, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}

	slog.Info("feed_run_done",
		slog.Int("inserted", res.Inserted),
		slog.Int("skipped", res.Skipped),
		slog.Int("dropped", res.Dropped))
	return res, nil
}

func (a *Adapter) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download archive: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download archive: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp("", "soudok-feed-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("save archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("save archive: %w", err)
	}
	slog.Info("feed_archive_downloaded", slog.String("path", tmp.Name()))
	return tmp.Name(), nil
}

// payload is the per-entry JSON shape of the feed.
type payload struct {
	Dokumentstatus struct {
		Dokument struct {
			DokID       string `json:"dok_id"`
			RM          string `json:"rm"`
			Nummer      string `json:"nummer"`
			Typ         string `json:"typ"`
			Titel       string `json:"titel"`
			RelateratID string `json:"relaterat_id"`
			HTML        string `json:"html"`
		} `json:"dokument"`
		Dokbilaga struct {
			Bilaga attachments `json:"bilaga"`
		} `json:"dokbilaga"`
	} `json:"dokumentstatus"`
}

// attachment describes one attached file in the feed.
type attachment struct {
	DokID  string `json:"dok_id"`
	FilURL string `json:"fil_url"`
}

// attachments is the feed's attachment union: a single object or an
// array, depending on the entry.
type attachments struct {
	items  []attachment
	single bool
}

func (l *attachments) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var one attachment
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		l.items = []attachment{one}
		l.single = true
		return nil
	}
	l.single = false
	return json.Unmarshal(data, &l.items)
}

// resolvePDF finds the canonical PDF URL for the document. With a single
// attachment it is taken as-is; with a list, the attachment whose own
// dok_id matches the document's is chosen.
func (l *attachments) resolvePDF(dokID string) (string, bool) {
	if l.single && len(l.items) == 1 {
		return l.items[0].FilURL, l.items[0].FilURL != ""
	}
	for _, att := range l.items {
		if strings.ToUpper(att.DokID) == dokID {
			return att.FilURL, att.FilURL != ""
		}
	}
	return "", false
}

// decodeEntry converts one archive entry into a canonical document.
// A nil document with nil error means the entry was dropped for a
// structural defect (already logged).
func (a *Adapter) decodeEntry(f *zip.File) (*document.Document, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	// The feed writes UTF-8 with a BOM.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}

	dok := p.Dokumentstatus.Dokument
	dokID := strings.ToUpper(dok.DokID)

	year, err := strconv.Atoi(strings.TrimSpace(dok.RM))
	if err != nil {
		slog.Warn("feed_entry_dropped",
			slog.String("dok_id", dokID),
			slog.String("reason", "malformed year"),
			slog.String("rm", dok.RM))
		return nil, nil
	}

	pdfURL, ok := p.Dokumentstatus.Dokbilaga.Bilaga.resolvePDF(dokID)
	if !ok {
		slog.Warn("feed_entry_dropped",
			slog.String("dok_id", dokID),
			slog.String("reason", "no PDF reference"))
		return nil, nil
	}

	title := document.BackfillTitle(a.titles, dok.Typ, year, dok.Nummer, dok.Titel)
	text := document.NormalizeText(stripHTML(dok.HTML))

	return &document.Document{
		ID:        dokID,
		DokID:     dokID,
		Year:      year,
		Number:    dok.Nummer,
		DocType:   dok.Typ,
		Title:     title,
		Source:    document.SourceRiksdagen,
		URL:       pdfURL,
		PDFURL:    pdfURL,
		FullText:  text,
		RelatedID: dok.RelateratID,
	}, nil
}
