package titles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	idx, err := Parse([]byte(`{"SOU 2001:42": "En titel", "SOU 2002:1": "En annan"}`))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	title, ok := idx.Lookup("SOU 2001:42")
	assert.True(t, ok)
	assert.Equal(t, "En titel", title)

	_, ok = idx.Lookup("SOU 1999:1")
	assert.False(t, ok)
}

func TestParse_TolerableBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"SOU 2000:3": "Titel"}`)...)
	idx, err := Parse(data)
	require.NoError(t, err)

	title, ok := idx.Lookup("SOU 2000:3")
	assert.True(t, ok)
	assert.Equal(t, "Titel", title)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`[1, 2, 3]`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"SOU 2003:9": "Titel"}`), 0o644))

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	idx := Empty()
	_, ok := idx.Lookup("SOU 2001:1")
	assert.False(t, ok)
}
