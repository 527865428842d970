// Package session builds the index/precedence wiring corefsctl's
// subcommands share and assembles the cobra command tree.
package session

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/index"
	"github.com/pakvfs/corefs/index/scan"
	"github.com/pakvfs/corefs/precedence"
)

// Session bundles the built index and a ready-to-use precedence engine.
type Session struct {
	Index  *index.Index
	Engine *precedence.Engine
}

// Build scans every directory in dirs in order (earlier entries getting
// lower sourceDirIDs per spec.md §4.7 rule 14; each root's first-level
// subdirectories are its mod-dirs, per the scanner's own path decomposition)
// and marks currentMod as ModDirCurrentMod, every other discovered mod-dir
// as ModDirBasegame.
func Build(dirs []string, currentMod string) (*Session, error) {
	idx, err := index.New(external.OS{})
	if err != nil {
		return nil, errors.Wrap(err, "corefsctl: creating index")
	}
	idx.BeginScan()

	modDirs := map[string]bool{}
	for i, dir := range dirs {
		s := scan.New(external.OS{}, external.OS{}, dir, uint16(i))
		if err := s.Walk(func(sf index.ScanFile) error {
			modDirs[sf.ModDir] = true
			return idx.Ingest(sf)
		}); err != nil {
			return nil, errors.Wrapf(err, "corefsctl: scanning %q", dir)
		}
	}

	for modDir := range modDirs {
		state := index.ModDirBasegame
		if modDir == currentMod {
			state = index.ModDirCurrentMod
		}
		if err := idx.SetModDirState(modDir, state); err != nil {
			return nil, err
		}
	}

	return &Session{
		Index:  idx,
		Engine: &precedence.Engine{Index: idx},
	}, nil
}

// RootCmd assembles corefsctl's full command tree.
func RootCmd() *cobra.Command {
	var dirs []string
	var game string
	var sess *Session

	root := &cobra.Command{
		Use:   "corefsctl",
		Short: "Debug CLI over the corefs virtual-filesystem index",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(dirs) == 0 {
				return fmt.Errorf("corefsctl: at least one --dir is required")
			}
			built, err := Build(dirs, game)
			if err != nil {
				return err
			}
			sess = built
			return nil
		},
	}
	root.PersistentFlags().StringSliceVar(&dirs, "dir", nil, "source directory to scan (repeatable, earlier = higher rule-14 priority)")
	root.PersistentFlags().StringVar(&game, "game", "", "current mod directory (fs_game); empty = basegame only")

	root.AddCommand(
		newListCmd(&sess),
		newLookupCmd(&sess),
		newScanCmd(&sess),
	)
	return root
}
