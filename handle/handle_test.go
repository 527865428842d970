package handle

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakvfs/corefs/archive"
	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/vfscache"
)

func TestTableOpenGetClose(t *testing.T) {
	tb := NewTable(4)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	ref, err := OpenDirectRead(tb, System, external.OS{}, path)
	require.NoError(t, err)
	assert.Equal(t, 1, tb.Len())

	h, err := tb.Get(ref)
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := h.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	require.NoError(t, tb.Close(ref))
	assert.Equal(t, 0, tb.Len())

	_, err = tb.Get(ref)
	assert.ErrorIs(t, err, ErrStaleRef)
}

func TestTableFullReturnsError(t *testing.T) {
	tb := NewTable(1)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := OpenDirectRead(tb, System, external.OS{}, path)
	require.NoError(t, err)
	_, err = OpenDirectRead(tb, System, external.OS{}, path)
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestCloseAllForOwnerClosesOnlyThatOwner(t *testing.T) {
	tb := NewTable(4)
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.txt")
	p2 := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(p1, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(p2, []byte("y"), 0o644))

	_, err := OpenDirectRead(tb, CGame, external.OS{}, p1)
	require.NoError(t, err)
	_, err = OpenDirectRead(tb, UI, external.OS{}, p2)
	require.NoError(t, err)

	n := tb.CloseAllForOwner(CGame)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, tb.Len())
}

func TestCacheReadHandleLocksAndReadsForward(t *testing.T) {
	tb := NewTable(4)
	cache, err := vfscache.New(1024)
	require.NoError(t, err)

	identity := vfscache.Identity{Size: 5}
	ref, err := OpenCacheRead(tb, System, cache, identity, []byte("hello"), "virtual/path")
	require.NoError(t, err)

	h, err := tb.Get(ref)
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := h.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	require.NoError(t, tb.Close(ref))
}

func TestChooseReadKindPicksCacheWhenItFits(t *testing.T) {
	assert.Equal(t, CacheRead, ChooseReadKind(10, 1024, true))
	assert.Equal(t, DirectRead, ChooseReadKind(10000, 1024, true))
	assert.Equal(t, ArchiveRead, ChooseReadKind(10000, 1024, false))
}

func TestOpenReadArchiveSubfileStreamsWhenOverThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pak.pk3")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "x.txt", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("archive contents"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	a, err := archive.Open(path, external.OS{})
	require.NoError(t, err)
	require.Len(t, a.Subfiles, 1)

	tb := NewTable(4)
	cache, err := vfscache.New(8) // too small to hold anything
	require.NoError(t, err)

	ref, err := OpenReadArchiveSubfile(tb, System, cache, external.OS{}, a, a.Subfiles[0], vfscache.Identity{}, 0, 8, "pak.pk3/x.txt")
	require.NoError(t, err)
	h, err := tb.Get(ref)
	require.NoError(t, err)
	data, err := io.ReadAll(readerFunc(h.Read))
	require.NoError(t, err)
	assert.Equal(t, "archive contents", string(data))
}

// readerFunc adapts a Read method value to an io.Reader for io.ReadAll.
type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
