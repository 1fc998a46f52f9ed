// Package document defines the canonical record for a government report
// and the normalization rules that derive its computed fields.
package document

import (
	"fmt"
	"strings"
)

// Source identifiers for provenance tracking.
const (
	SourceRiksdagen = "riksdagen"
	SourceKB        = "kb"
)

// Document is the canonical, source-independent representation of a report.
// ID is derived from source identifiers (dok_id for feed documents, URN for
// scraped ones) and never regenerated, so re-ingestion is idempotent.
type Document struct {
	ID        string
	DokID     string
	URN       string
	Year      int
	Number    string
	DocType   string
	Title     string
	Source    string
	URL       string
	PDFURL    string
	FullText  string
	RelatedID string
	Indexed   bool
}

// YearNumber returns the display identifier, e.g. "1922:50".
func (d *Document) YearNumber() string {
	return fmt.Sprintf("%d:%s", d.Year, d.Number)
}

// TitleSortKey returns the collation key used for title ordering.
// Currently the title itself; kept behind a method so a locale-aware
// key can be substituted without touching the index schema.
func (d *Document) TitleSortKey() string {
	return d.Title
}

// NumberSortKey builds a sort key whose lexicographic order matches
// chronological-then-serial order. Some early reports carry serials like
// "1 första serien" alongside a plain "1", so only the digit subsequence
// of the serial participates in the key while the original string stays
// available for display.
func NumberSortKey(year int, number string) string {
	return fmt.Sprintf("%d:%s", year, padSerial(digitsOnly(number)))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func padSerial(s string) string {
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// conjunction is the one token that must survive dehyphenation: compounds
// like "första- och sistaordet" elide a shared suffix before "och", so the
// trailing hyphen there is real and not a line wrap.
const conjunction = "och"

// NormalizeText collapses carriage returns and newlines to spaces and then
// repairs line-wrap hyphenation: a "- " sequence is removed unless the
// text after the space starts with the conjunction token.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return dehyphenate(text)
}

func dehyphenate(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] == '-' && i+1 < len(text) && text[i+1] == ' ' {
			if !strings.HasPrefix(text[i+2:], conjunction) {
				i++ // drop both the hyphen and the space
				continue
			}
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

// Titles looks up replacement titles by a "{TYPE} {year}:{number}" key.
// Implemented by the secondary title index in internal/titles.
type Titles interface {
	Lookup(key string) (string, bool)
}

// BackfillStartYear and BackfillEndYear bound the range of report years
// whose titles are known to be defective in the primary feed.
const (
	BackfillStartYear = 2000
	BackfillEndYear   = 2004
)

// BackfillTitle substitutes a title from the secondary index for years in
// the defective range, falling back to the primary title when the index
// has no entry.
func BackfillTitle(titles Titles, docType string, year int, number, title string) string {
	if titles == nil || year < BackfillStartYear || year > BackfillEndYear {
		return title
	}
	key := fmt.Sprintf("%s %d:%s", strings.ToUpper(docType), year, number)
	if t, ok := titles.Lookup(key); ok {
		return t
	}
	return title
}
