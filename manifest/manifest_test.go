package manifest

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakvfs/corefs/archive"
	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/index"
	"github.com/pakvfs/corefs/index/scan"
	"github.com/pakvfs/corefs/precedence"
)

func writePak(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "scripts/common.shader", Method: zip.Store})
	require.NoError(t, err)
	// The leading comment names the pak so each one gets its own content,
	// and therefore its own identity hash.
	_, err = w.Write([]byte("// " + filepath.Base(path) + "\ncommon/white { qer_editorimage textures/white.tga }"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func buildContext(t *testing.T) (*Context, string) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "base"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mymod"), 0o755))
	writePak(t, filepath.Join(dir, "base", "pak0.pk3"))
	writePak(t, filepath.Join(dir, "mymod", "zz.pk3"))

	idx, err := index.New(external.OS{})
	require.NoError(t, err)
	idx.BeginScan()
	s := scan.New(external.OS{}, external.OS{}, dir, 0)
	require.NoError(t, s.Walk(func(sf index.ScanFile) error {
		return idx.Ingest(sf)
	}))
	require.NoError(t, idx.SetModDirState("base", index.ModDirBasegame))
	require.NoError(t, idx.SetModDirState("mymod", index.ModDirCurrentMod))

	ctx := &Context{
		Index:        idx,
		Engine:       &precedence.Engine{Index: idx},
		ActiveModDir: "mymod",
		Tracker:      NewReferenceTracker(),
	}
	return ctx, dir
}

func TestTokenizeRecognizesEveryTokenKind(t *testing.T) {
	tokens, err := Tokenize("*mod_paks - mymod/zz.pk3:123 &exclude base/pak0.pk3 &exclude_reset")
	require.NoError(t, err)
	require.Len(t, tokens, 6)
	assert.Equal(t, TokenWildcard, tokens[0].Kind)
	assert.Equal(t, WildcardModPaks, tokens[0].Wildcard)
	assert.Equal(t, TokenClusterBreak, tokens[1].Kind)
	assert.Equal(t, TokenExplicit, tokens[2].Kind)
	assert.Equal(t, "mymod", tokens[2].ModDir)
	assert.Equal(t, "zz.pk3", tokens[2].Name)
	assert.True(t, tokens[2].HasHash)
	assert.EqualValues(t, 123, tokens[2].Hash)
	assert.Equal(t, TokenExcludeSet, tokens[3].Kind)
	assert.Equal(t, TokenExplicit, tokens[4].Kind)
	assert.Equal(t, TokenExcludeReset, tokens[5].Kind)
}

func TestTokenizeRejectsMalformedExplicitRef(t *testing.T) {
	_, err := Tokenize("nameWithoutSlash")
	assert.ErrorIs(t, err, ErrMalformedExplicitRef)

	_, err = Tokenize("mod/name:notanumber")
	assert.ErrorIs(t, err, ErrMalformedExplicitRef)
}

func TestBuildReferenceSetModPaksSelectsOnlyActiveModDir(t *testing.T) {
	ctx, _ := buildContext(t)
	set, err := BuildReferenceSet("*mod_paks", ctx)
	require.NoError(t, err)
	refs := set.Refs()
	require.Len(t, refs, 1)
	assert.Equal(t, "mymod", refs[0].ModDir)
	assert.Equal(t, "zz.pk3", refs[0].Name)
}

func TestBuildReferenceSetExcludeDropsMatchingArchive(t *testing.T) {
	ctx, _ := buildContext(t)
	set, err := BuildReferenceSet("&exclude mymod/zz.pk3 *mod_paks *base_paks", ctx)
	require.NoError(t, err)
	refs := set.Refs()
	require.Len(t, refs, 1)
	assert.Equal(t, "base", refs[0].ModDir)
}

func TestBuildReferenceSetDedupesSameArchiveAcrossClusters(t *testing.T) {
	ctx, _ := buildContext(t)

	// base/pak0.pk3 is selected twice: once by explicit name in cluster 0,
	// once by *base_paks after a cluster break. Both resolve to the same
	// archive hash, so the set must keep exactly one entry for it.
	set, err := BuildReferenceSet("base/pak0.pk3 - *base_paks", ctx)
	require.NoError(t, err)
	refs := set.Refs()
	require.Len(t, refs, 1)
	assert.Equal(t, "base", refs[0].ModDir)
}

func TestBuildDownloadListStripsSystemPaks(t *testing.T) {
	refs := []ArchiveRef{
		{ModDir: "base", Name: "pak0.pk3", Hash: 111},
		{ModDir: "mymod", Name: "zz.pk3", Hash: 222},
	}
	list := BuildDownloadList(refs, map[uint32]int{111: 1})
	assert.Equal(t, "222", list.HashList)
	assert.Equal(t, "mymod/zz.pk3", list.NameList)
	ref, ok := list.ByName("mymod/zz.pk3")
	require.True(t, ok)
	assert.EqualValues(t, 222, ref.Hash)
	_, ok = list.ByName("base/pak0.pk3")
	assert.False(t, ok)
}

func TestBuildDownloadListKeepsEverythingWithNoRankTable(t *testing.T) {
	refs := []ArchiveRef{{ModDir: "base", Name: "pak0.pk3", Hash: 111}}
	list := BuildDownloadList(refs, nil)
	assert.Equal(t, "111", list.HashList)
}

func TestReferenceTrackerDedupesByHash(t *testing.T) {
	tr := NewReferenceTracker()
	tr.Register(ArchiveRef{ModDir: "base", Name: "pak0.pk3", Hash: 5})
	tr.Register(ArchiveRef{ModDir: "base", Name: "pak0.pk3", Hash: 5})
	assert.Len(t, tr.All(), 1)
	tr.Reset()
	assert.Empty(t, tr.All())
}

func writeArchiveWithCRCs(t *testing.T, path string, bodies ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for i, body := range bodies {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: filepath.Base(path) + string(rune('a'+i)), Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestPureChecksumCacheIsDeterministicAndMemoized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pak0.pk3")
	writeArchiveWithCRCs(t, path, "one", "two")

	a, err := archive.Open(path, external.OS{})
	require.NoError(t, err)

	cache, err := NewPureChecksumCache()
	require.NoError(t, err)

	first := cache.Checksum(a, 0xdeadbeef)
	second := cache.Checksum(a, 0xdeadbeef)
	assert.Equal(t, first, second)

	other := cache.Checksum(a, 1)
	assert.NotEqual(t, first, other, "a different checksum_feed must produce a different pure checksum")
}

func TestPureValidationStringMatchesFeedXorFormula(t *testing.T) {
	refs := []uint32{10, 20}
	feed := uint32(5)
	got := PureValidationString(100, 200, refs, feed)

	final := feed ^ 10 ^ 20 ^ uint32(len(refs))
	want := "100 200 @ 10 20 " + strconv.FormatUint(uint64(final), 10)
	assert.Equal(t, want, got)
}

func TestAbbreviatedPureValidationStringMatchesFormula(t *testing.T) {
	got := AbbreviatedPureValidationString(100, 200, 5)
	final := uint32(5) ^ 100 ^ 1
	want := "100 200 @ 100 " + strconv.FormatUint(uint64(final), 10)
	assert.Equal(t, want, got)
}
