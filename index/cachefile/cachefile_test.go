package cachefile

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/index"
)

func TestExportImportRoundTrip(t *testing.T) {
	idx, err := index.New(external.OS{})
	require.NoError(t, err)
	idx.BeginScan()
	sf := index.ScanFile{ModDir: "baseq3", Dir: "models", Base: "f", Ext: "md3", OSPath: "/p/f.md3", Size: 10, MTimeUnix: 5}
	require.NoError(t, idx.Ingest(sf))

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, idx))

	restored, err := Import(&buf, external.OS{})
	require.NoError(t, err)

	nameOff, found, err := restored.Pool.Intern("f", false)
	require.NoError(t, err)
	require.True(t, found)
	got, err := restored.Pool.String(nameOff)
	require.NoError(t, err)
	assert.Equal(t, "f", got)

	refs, _, err := restored.LookupByName("f", "models")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, index.KindLooseFile, refs[0].Kind)

	view, err := restored.ViewLooseFile(refs[0].Offset)
	require.NoError(t, err)
	assert.False(t, view.Active, "imported entries start inactive until reactivated by a scan")
}

func TestImportRejectsBadVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	_, err := Import(&buf, external.OS{})
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestSideIndexRecordsAndChecksScanTime(t *testing.T) {
	dir := t.TempDir()
	si, err := OpenSideIndex(filepath.Join(dir, "side.db"), time.Second)
	require.NoError(t, err)
	defer si.Close()

	now := time.Unix(1000, 0)
	unchanged, err := si.UnchangedSince(0, now)
	require.NoError(t, err)
	assert.False(t, unchanged)

	require.NoError(t, si.RecordScanned(0, now))
	unchanged, err = si.UnchangedSince(0, now)
	require.NoError(t, err)
	assert.True(t, unchanged)

	unchanged, err = si.UnchangedSince(0, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, unchanged)
}
