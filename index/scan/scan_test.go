package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/index"
)

func writeFile(t *testing.T, p string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o644))
}

func TestWalkDerivesModDirAndLogicalPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "baseq3", "textures", "common", "white.tga"), 16)

	var got []index.ScanFile
	s := New(external.OS{}, external.OS{}, dir, 0)
	require.NoError(t, s.Walk(func(sf index.ScanFile) error {
		got = append(got, sf)
		return nil
	}))

	require.Len(t, got, 1)
	assert.Equal(t, "baseq3", got[0].ModDir)
	assert.Equal(t, "textures/common", got[0].Dir)
	assert.Equal(t, "white", got[0].Base)
	assert.Equal(t, "tga", got[0].Ext)
}

func TestWalkRecognizesNestedDirBundle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "baseq3", "mymap.pk3dir", "maps", "mymap.bsp"), 16)

	var got []index.ScanFile
	s := New(external.OS{}, external.OS{}, dir, 0)
	require.NoError(t, s.Walk(func(sf index.ScanFile) error {
		got = append(got, sf)
		return nil
	}))

	require.Len(t, got, 1)
	assert.Equal(t, "mymap", got[0].NestedBundleParent)
	assert.Equal(t, "maps", got[0].Dir)
	assert.Equal(t, "mymap", got[0].Base)
}

func TestWalkSkipsAppBundles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "baseq3", "Quake3.app", "Contents", "MacOS", "quake3"), 16)
	writeFile(t, filepath.Join(dir, "baseq3", "scripts", "real.shader"), 16)

	var got []index.ScanFile
	s := New(external.OS{}, external.OS{}, dir, 0)
	require.NoError(t, s.Walk(func(sf index.ScanFile) error {
		got = append(got, sf)
		return nil
	}))

	require.Len(t, got, 1)
	assert.Equal(t, "real", got[0].Base)
}

func TestWalkMarksDownloadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "baseq3", "downloads", "extra.pk3"), 16)

	var got []index.ScanFile
	s := New(external.OS{}, external.OS{}, dir, 0)
	require.NoError(t, s.Walk(func(sf index.ScanFile) error {
		got = append(got, sf)
		return nil
	}))

	require.Len(t, got, 1)
	assert.True(t, got[0].InDownloadDir)
}
