package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakvfs/corefs/index"
)

func TestBuildScansDirsAndSetsModDirState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "base"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mymod"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base", "readme.txt"), []byte("hi"), 0o644))

	sess, err := Build([]string{dir}, "mymod")
	require.NoError(t, err)

	state, err := sess.Index.ModDirStateOf("base")
	require.NoError(t, err)
	assert.Equal(t, index.ModDirBasegame, state)
}

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := RootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["lookup"])
	assert.True(t, names["scan"])
}

func TestRootCmdRequiresAtLeastOneDir(t *testing.T) {
	root := RootCmd()
	root.SetArgs([]string{"scan"})
	root.SilenceUsage = true
	root.SilenceErrors = true
	err := root.Execute()
	assert.Error(t, err)
}
