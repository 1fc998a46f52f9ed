// Package scrape acquires documents from the library's index page: a list
// of anchor links whose text encodes "{year}:{serial}", whose following
// text node holds the title, and whose target page links to the actual
// PDF. Text is extracted from the downloaded PDF and normalized like any
// other source.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/soudok/soudok/internal/document"
	"github.com/soudok/soudok/internal/pdftext"
	"github.com/soudok/soudok/internal/store"
)

// DefaultURNHost identifies entry links on the index page.
const DefaultURNHost = "urn.kb.se"

// Adapter acquires documents from the scrape source. Entries are fetched
// by a bounded worker pool; the first failure cancels the whole run (no
// internal retries, re-running is idempotent by URN).
type Adapter struct {
	store     *store.Store
	extractor pdftext.Extractor
	client    *http.Client

	// URNHost filters index page anchors to entry links.
	URNHost string
	// Concurrency bounds the per-entry worker pool.
	Concurrency int
}

// New creates a scrape adapter. A nil client selects http.DefaultClient.
func New(st *store.Store, extractor pdftext.Extractor, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{
		store:       st,
		extractor:   extractor,
		client:      client,
		URNHost:     DefaultURNHost,
		Concurrency: 4,
	}
}

// Result summarizes one scrape run.
type Result struct {
	Inserted int
	Skipped  int
}

// anchorRe captures an anchor's href, its text, and the text node that
// follows it (the title on the index page).
var anchorRe = regexp.MustCompile(`(?is)<a[^>]*href="([^"]+)"[^>]*>(.*?)</a>([^<]*)`)

// entry is one parsed index page link.
type entry struct {
	year    int
	serial  string
	title   string
	pageURL string
	urn     string
}

// Run fetches the index page at indexURL and acquires every entry whose
// URN is not already stored.
func (a *Adapter) Run(ctx context.Context, indexURL string) (*Result, error) {
	slog.Info("scrape_run_start", slog.String("url", indexURL))

	page, err := a.fetch(ctx, indexURL)
	if err != nil {
		return nil, err
	}

	entries, err := a.parseIndex(indexURL, page)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Concurrency)
	for _, e := range entries {
		g.Go(func() error {
			inserted, err := a.acquire(gctx, e)
			if err != nil {
				return err
			}
			mu.Lock()
			if inserted {
				res.Inserted++
			} else {
				res.Skipped++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("scrape_run_done",
		slog.Int("inserted", res.Inserted),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

// parseIndex extracts entries from the index page markup. A link text
// whose year prefix is not numeric indicates a violated parsing
// assumption upstream and is fatal for the run.
func (a *Adapter) parseIndex(indexURL, page string) ([]entry, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("parse index url: %w", err)
	}

	var entries []entry
	for _, m := range anchorRe.FindAllStringSubmatch(page, -1) {
		href, text, sibling := m[1], strings.TrimSpace(m[2]), strings.TrimSpace(m[3])
		if !strings.Contains(href, a.URNHost) {
			continue
		}

		if len(text) < 6 || text[4] != ':' {
			return nil, fmt.Errorf("invalid year:serial link text %q", text)
		}
		year, err := strconv.Atoi(text[:4])
		if err != nil {
			return nil, fmt.Errorf("invalid year for %q: %w", text, err)
		}

		ref, err := url.Parse(href)
		if err != nil {
			return nil, fmt.Errorf("parse link %q: %w", href, err)
		}
		resolved := base.ResolveReference(ref)

		urn := resolved.Query().Get("urn")
		if urn == "" {
			return nil, fmt.Errorf("no urn in link %q", href)
		}

		entries = append(entries, entry{
			year:    year,
			serial:  text[5:],
			title:   sibling,
			pageURL: resolved.String(),
			urn:     urn,
		})
	}
	return entries, nil
}

// acquire fetches one entry's page, downloads its PDF, extracts the text
// and stores the document. Reports whether a new record was inserted.
func (a *Adapter) acquire(ctx context.Context, e entry) (bool, error) {
	exists, err := a.store.HasURN(ctx, e.urn)
	if err != nil {
		return false, err
	}
	if exists {
		slog.Info("scrape_entry_skip", slog.String("urn", e.urn))
		return false, nil
	}

	slog.Info("scrape_entry_process",
		slog.Int("year", e.year),
		slog.String("serial", e.serial),
		slog.String("urn", e.urn))

	page, err := a.fetch(ctx, e.pageURL)
	if err != nil {
		return false, err
	}

	pdfURL, err := firstAnchorHref(e.pageURL, page)
	if err != nil {
		return false, fmt.Errorf("entry %s: %w", e.urn, err)
	}

	pdfPath, err := a.downloadPDF(ctx, pdfURL)
	if err != nil {
		return false, err
	}
	defer func() { _ = os.Remove(pdfPath) }()

	text, err := a.extractor.Extract(ctx, pdfPath)
	if err != nil {
		return false, fmt.Errorf("extract %s: %w", e.urn, err)
	}

	doc := &document.Document{
		ID:       e.urn,
		URN:      e.urn,
		Year:     e.year,
		Number:   e.serial,
		DocType:  "sou",
		Title:    e.title,
		Source:   document.SourceKB,
		URL:      e.pageURL,
		PDFURL:   pdfURL,
		FullText: document.NormalizeText(text),
	}
	return a.store.InsertIfAbsent(ctx, doc)
}

var hrefRe = regexp.MustCompile(`(?is)<a[^>]*href="([^"]+)"`)

// firstAnchorHref returns the target of the page's first link, resolved
// against the page URL. Entry pages contain exactly one link, to the PDF.
func firstAnchorHref(pageURL, page string) (string, error) {
	m := hrefRe.FindStringSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("no PDF link on page")
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(m[1])
	if err != nil {
		return "", fmt.Errorf("parse PDF link: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (a *Adapter) fetch(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", u, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u, err)
	}
	return string(data), nil
}

func (a *Adapter) downloadPDF(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", u, resp.Status)
	}

	tmp, err := os.CreateTemp("", "soudok-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("save %s: %w", u, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("save %s: %w", u, err)
	}
	return tmp.Name(), nil
}
