package filelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/index"
	"github.com/pakvfs/corefs/index/scan"
)

func buildIndex(t *testing.T) *index.Index {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "base", "textures", "wall"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base", "textures", "brick.tga"), make([]byte, 10), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base", "textures", "wall", "stone.tga"), make([]byte, 20), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base", "textures", "notes.txt"), make([]byte, 5), 0o644))

	idx, err := index.New(external.OS{})
	require.NoError(t, err)
	idx.BeginScan()
	s := scan.New(external.OS{}, external.OS{}, dir, 0)
	require.NoError(t, s.Walk(func(sf index.ScanFile) error {
		return idx.Ingest(sf)
	}))
	return idx
}

func TestListNonRecursiveOnlyReturnsDirectChildren(t *testing.T) {
	idx := buildIndex(t)
	entries, err := List(idx, "textures", Options{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Base+"."+e.Ext] = true
	}
	assert.True(t, names["brick.tga"])
	assert.True(t, names["notes.txt"])
	assert.False(t, names["stone.tga"], "stone.tga lives under the wall/ subdirectory and must not appear non-recursively")
}

func TestListRecursiveIncludesSubdirectories(t *testing.T) {
	idx := buildIndex(t)
	entries, err := List(idx, "textures", Options{Recursive: true})
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestListFiltersByExtension(t *testing.T) {
	idx := buildIndex(t)
	entries, err := List(idx, "textures", Options{Filter: NewExtensionFilter("tga")})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "brick", entries[0].Base)
}

func TestListOnUnpopulatedPrefixReturnsEmptyNotError(t *testing.T) {
	idx := buildIndex(t)
	entries, err := List(idx, "textures/nonexistent", Options{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewExtensionFilterAcceptsLeadingDot(t *testing.T) {
	f := NewExtensionFilter(".TGA")
	assert.True(t, f.matches("tga"))
	assert.False(t, f.matches("txt"))
}
