package feed

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soudok/soudok/internal/store"
	"github.com/soudok/soudok/internal/titles"
)

// entryJSON builds a feed entry; bilaga is raw JSON (object or array).
func entryJSON(dokID, rm, nummer, titel, html, bilaga string) string {
	return fmt.Sprintf(`{
		"dokumentstatus": {
			"dokument": {
				"dok_id": %q, "rm": %q, "nummer": %q, "typ": "sou",
				"titel": %q, "relaterat_id": "", "html": %q
			},
			"dokbilaga": {"bilaga": %s}
		}
	}`, dokID, rm, nummer, titel, html, bilaga)
}

func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		// The feed writes entries with a UTF-8 BOM.
		_, err = f.Write(append([]byte{0xEF, 0xBB, 0xBF}, []byte(content)...))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func serveArchive(t *testing.T, archive []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_InsertsDocuments(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	archive := buildArchive(t, map[string]string{
		// Attachment list: the one whose dok_id matches wins.
		"h8b01.json": entryJSON("h8b01", "1998", "1", "Titel ett",
			"<html><body><p>Första utredningen</p></body></html>",
			`[{"dok_id": "OTHER", "fil_url": "http://x/other.pdf"},
			  {"dok_id": "H8B01", "fil_url": "http://x/h8b01.pdf"}]`),
		// Single attachment object: taken as-is.
		"h8b02.json": entryJSON("h8b02", "1998", "2", "Titel två",
			"<p>Andra utredningen</p>",
			`{"dok_id": "H8B02", "fil_url": "http://x/h8b02.pdf"}`),
	})
	srv := serveArchive(t, archive)

	res, err := New(st, titles.Empty(), srv.Client()).Run(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Dropped)

	// The matched attachment URL was stored.
	cur, err := st.ListPending(context.Background(), false)
	require.NoError(t, err)
	defer func() { _ = cur.Close() }()
	urls := map[string]string{}
	for cur.Next() {
		urls[cur.Document().ID] = cur.Document().PDFURL
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, "http://x/h8b01.pdf", urls["H8B01"])
	assert.Equal(t, "http://x/h8b02.pdf", urls["H8B02"])
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	archive := buildArchive(t, map[string]string{
		"h8b01.json": entryJSON("h8b01", "1998", "1", "Titel",
			"<p>Text</p>", `{"dok_id": "H8B01", "fil_url": "http://x/a.pdf"}`),
	})
	srv := serveArchive(t, archive)
	adapter := New(st, titles.Empty(), srv.Client())

	res, err := adapter.Run(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	// When: acquiring the same feed again
	res, err = adapter.Run(context.Background(), srv.URL)
	require.NoError(t, err)

	// Then: zero net-new records
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 1, res.Skipped)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestRun_DropsEntryWithoutPDF(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	archive := buildArchive(t, map[string]string{
		// No attachment matches the document's own id; this mirrors the
		// one known production failure shape for related documents.
		"h8b03.json": entryJSON("h8b03", "1998", "3", "Titel",
			"<p>Text</p>", `[{"dok_id": "H8B99", "fil_url": "http://x/other.pdf"}]`),
	})
	srv := serveArchive(t, archive)

	res, err := New(st, titles.Empty(), srv.Client()).Run(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 1, res.Dropped)
}

func TestRun_DropsMalformedYear(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	archive := buildArchive(t, map[string]string{
		"h8b04.json": entryJSON("h8b04", "19xx", "4", "Titel",
			"<p>Text</p>", `{"dok_id": "H8B04", "fil_url": "http://x/a.pdf"}`),
	})
	srv := serveArchive(t, archive)

	res, err := New(st, titles.Empty(), srv.Client()).Run(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
}

func TestRun_TitleBackfill(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	idx, err := titles.Parse([]byte(`{"SOU 2001:42": "Riktig titel"}`))
	require.NoError(t, err)

	archive := buildArchive(t, map[string]string{
		"h8b05.json": entryJSON("h8b05", "2001", "42", "dok.htm",
			"<p>Text</p>", `{"dok_id": "H8B05", "fil_url": "http://x/a.pdf"}`),
	})
	srv := serveArchive(t, archive)

	_, err = New(st, idx, srv.Client()).Run(context.Background(), srv.URL)
	require.NoError(t, err)

	cur, err := st.ListPending(context.Background(), false)
	require.NoError(t, err)
	defer func() { _ = cur.Close() }()
	require.True(t, cur.Next())
	assert.Equal(t, "Riktig titel", cur.Document().Title)
}

func TestRun_StripsMarkupAndNormalizes(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	archive := buildArchive(t, map[string]string{
		"h8b06.json": entryJSON("h8b06", "1998", "6", "Titel",
			"<html><head><script>evil()</script><style>b{}</style></head>"+
				"<body><p>Utredningen fort-</p><p>satte under året</p></body></html>",
			`{"dok_id": "H8B06", "fil_url": "http://x/a.pdf"}`),
	})
	srv := serveArchive(t, archive)

	_, err = New(st, titles.Empty(), srv.Client()).Run(context.Background(), srv.URL)
	require.NoError(t, err)

	cur, err := st.ListPending(context.Background(), false)
	require.NoError(t, err)
	defer func() { _ = cur.Close() }()
	require.True(t, cur.Next())
	text := cur.Document().FullText
	assert.NotContains(t, text, "evil")
	assert.NotContains(t, text, "<p>")
	assert.Contains(t, text, "fortsatte under året")
}

func TestRun_DownloadFailureAborts(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err = New(st, titles.Empty(), srv.Client()).Run(context.Background(), srv.URL)
	assert.Error(t, err)
}
