// Package titles loads the secondary title index used to backfill
// defective titles in the primary feed. The index is a JSON object keyed
// by "{TYPE} {year}:{number}", e.g. "SOU 2001:42".
package titles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Index maps document keys to replacement titles.
type Index struct {
	titles map[string]string
}

// Load reads a title index from a JSON file.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read title index: %w", err)
	}
	return Parse(data)
}

// Parse decodes a title index from JSON bytes. A UTF-8 BOM is tolerated
// since the upstream files are written with one.
func Parse(data []byte) (*Index, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	titles := make(map[string]string)
	if err := json.Unmarshal(data, &titles); err != nil {
		return nil, fmt.Errorf("parse title index: %w", err)
	}
	return &Index{titles: titles}, nil
}

// Empty returns an index with no entries; every lookup misses.
func Empty() *Index {
	return &Index{titles: map[string]string{}}
}

// Lookup returns the replacement title for key, if one exists.
func (i *Index) Lookup(key string) (string, bool) {
	t, ok := i.titles[key]
	return t, ok
}

// Len returns the number of entries in the index.
func (i *Index) Len() int {
	return len(i.titles)
}
