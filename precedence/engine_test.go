package precedence

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/index"
	"github.com/pakvfs/corefs/index/scan"
)

// writePak builds a minimal pk3 (zip, stored) with a single shader file
// entry whose contents define one material.
func writePak(t *testing.T, path, shaderBody string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "scripts/common.shader", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte(shaderBody))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func buildIndexWithTwoPaks(t *testing.T) (*index.Index, string) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "base"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mymod"), 0o755))
	writePak(t, filepath.Join(dir, "base", "pak0.pk3"), `common/white { qer_editorimage textures/white.tga }`)
	writePak(t, filepath.Join(dir, "mymod", "zz.pk3"), `common/white { qer_editorimage textures/mymod_white.tga }`)

	idx, err := index.New(external.OS{})
	require.NoError(t, err)
	idx.BeginScan()

	s := scan.New(external.OS{}, external.OS{}, dir, 0)
	require.NoError(t, s.Walk(func(sf index.ScanFile) error {
		return idx.Ingest(sf)
	}))
	return idx, dir
}

func TestE1OverlayPrecedenceShaderFromCurrentModWins(t *testing.T) {
	idx, _ := buildIndexWithTwoPaks(t)
	require.NoError(t, idx.SetModDirState("base", index.ModDirBasegame))
	require.NoError(t, idx.SetModDirState("mymod", index.ModDirCurrentMod))

	eng := &Engine{Index: idx}
	winner, err := eng.Lookup(Shader("common/white", "", ""))
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.True(t, winner.IsShader)
	assert.Equal(t, "zz", winner.ArchiveBaseName)
}

func TestE3ShaderBeatsImageWithSameLogicalName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "base", "gfx", "2d"), 0o755))
	writePakAt := filepath.Join(dir, "base", "pak0.pk3")
	func() {
		f, err := os.Create(writePakAt)
		require.NoError(t, err)
		defer f.Close()
		zw := zip.NewWriter(f)
		w, err := zw.CreateHeader(&zip.FileHeader{Name: "scripts/ui.shader", Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write([]byte(`gfx/2d/logo { qer_editorimage gfx/2d/logo.tga }`))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	}()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base", "gfx", "2d", "logo.tga"), make([]byte, 4), 0o644))

	idx, err := index.New(external.OS{})
	require.NoError(t, err)
	idx.BeginScan()
	s := scan.New(external.OS{}, external.OS{}, dir, 0)
	require.NoError(t, s.Walk(func(sf index.ScanFile) error {
		return idx.Ingest(sf)
	}))
	require.NoError(t, idx.SetModDirState("base", index.ModDirBasegame))

	eng := &Engine{Index: idx}
	winner, err := eng.Lookup(Shader("gfx/2d/logo", "gfx/2d", "logo"))
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.True(t, winner.IsShader, "rule 8 must prefer the shader over the loose image")
}

func TestLookupReturnsNilWhenNoMatch(t *testing.T) {
	idx, err := index.New(external.OS{})
	require.NoError(t, err)
	idx.BeginScan()
	eng := &Engine{Index: idx}
	winner, err := eng.Lookup(General("textures", "missing", "tga"))
	require.NoError(t, err)
	assert.Nil(t, winner)
}

func TestLookupReturnsNilWhenWinnerDisabledByInactiveMod(t *testing.T) {
	idx, err := index.New(external.OS{})
	require.NoError(t, err)
	idx.BeginScan()
	require.NoError(t, idx.Ingest(index.ScanFile{
		ModDir: "oldmod", Dir: "models", Base: "x", Ext: "md3", OSPath: "/p/x.md3", Size: 1, MTimeUnix: 1,
	}))
	// oldmod's state is never set, so it defaults to ModDirInactive.
	eng := &Engine{Index: idx}
	winner, err := eng.Lookup(General("models", "x", "md3"))
	require.NoError(t, err)
	assert.Nil(t, winner)
}
