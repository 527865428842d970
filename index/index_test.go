package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakvfs/corefs/external"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassArchive, Classify("", "pk3", false))
	assert.Equal(t, ClassDownloadArchive, Classify("", "pk3", true))
	assert.Equal(t, ClassShaderFile, Classify("scripts", "shader", false))
	assert.Equal(t, ClassRegular, Classify("models", "shader", false))
	assert.Equal(t, ClassImage, Classify("textures", "tga", false))
	assert.Equal(t, ClassCodeModule, Classify("vm", "qvm", false))
	assert.Equal(t, ClassConfig, Classify("", "cfg", false))
	assert.Equal(t, ClassRegular, Classify("models", "md3", false))
}

func TestIngestNewRegularFile(t *testing.T) {
	idx, err := New(external.OS{})
	require.NoError(t, err)
	idx.BeginScan()

	sf := ScanFile{
		ModDir: "baseq3", Dir: "models/players/x", Base: "head", Ext: "md3",
		OSPath: "/mods/baseq3/models/players/x/head.md3", SourceDirID: 0,
		Size: 1024, MTimeUnix: 1000,
	}
	require.NoError(t, idx.Ingest(sf))

	off, err := idx.findMatchingLooseFile(sf)
	require.NoError(t, err)
	require.NotZero(t, off)

	active, err := idx.IsActive(off)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestIngestReactivatesUnchangedFile(t *testing.T) {
	idx, err := New(external.OS{})
	require.NoError(t, err)

	sf := ScanFile{ModDir: "baseq3", Dir: "d", Base: "f", Ext: "md3", OSPath: "/p/f.md3", Size: 10, MTimeUnix: 5}

	idx.BeginScan()
	require.NoError(t, idx.Ingest(sf))
	off1, err := idx.findMatchingLooseFile(sf)
	require.NoError(t, err)

	idx.BeginScan()
	require.NoError(t, idx.Ingest(sf))
	off2, err := idx.findMatchingLooseFile(sf)
	require.NoError(t, err)

	assert.Equal(t, off1, off2, "unchanged file should be reactivated, not reallocated")
	active, err := idx.IsActive(off1)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestIngestMutatesRegularFileInPlace(t *testing.T) {
	idx, err := New(external.OS{})
	require.NoError(t, err)

	sf := ScanFile{ModDir: "baseq3", Dir: "d", Base: "f", Ext: "md3", OSPath: "/p/f.md3", Size: 10, MTimeUnix: 5}
	idx.BeginScan()
	require.NoError(t, idx.Ingest(sf))
	off1, err := idx.findMatchingLooseFile(sf)
	require.NoError(t, err)

	sf.Size = 20
	sf.MTimeUnix = 6
	idx.BeginScan()
	require.NoError(t, idx.Ingest(sf))
	off2, err := idx.findMatchingLooseFile(sf)
	require.NoError(t, err)

	assert.Equal(t, off1, off2, "regular file with changed size/mtime mutates in place")
}

func TestOldGenerationBecomesInactive(t *testing.T) {
	idx, err := New(external.OS{})
	require.NoError(t, err)

	sf := ScanFile{ModDir: "baseq3", Dir: "d", Base: "f", Ext: "md3", OSPath: "/p/f.md3", Size: 10, MTimeUnix: 5}
	idx.BeginScan()
	require.NoError(t, idx.Ingest(sf))
	off, err := idx.findMatchingLooseFile(sf)
	require.NoError(t, err)

	idx.BeginScan()
	// Simulate the file disappearing from the next scan: nothing re-ingests it.
	active, err := idx.IsActive(off)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestLookupByNameFindsCaseInsensitiveAndFlagsExactCase(t *testing.T) {
	idx, err := New(external.OS{})
	require.NoError(t, err)
	idx.BeginScan()

	sf := ScanFile{ModDir: "baseq3", Dir: "Models", Base: "Head", Ext: "md3", OSPath: "/p/head.md3", Size: 10, MTimeUnix: 5}
	require.NoError(t, idx.Ingest(sf))

	refs, exact, err := idx.LookupByName("Head", "Models")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, KindLooseFile, refs[0].Kind)
	assert.True(t, exact[0])

	refs, exact, err = idx.LookupByName("head", "models")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.False(t, exact[0])
}

func TestSplitSubfilePath(t *testing.T) {
	dir, base, ext := splitSubfilePath("scripts/common.shader")
	assert.Equal(t, "scripts", dir)
	assert.Equal(t, "common", base)
	assert.Equal(t, "shader", ext)

	dir, base, ext = splitSubfilePath("readme.txt")
	assert.Equal(t, "", dir)
	assert.Equal(t, "readme", base)
	assert.Equal(t, "txt", ext)
}
