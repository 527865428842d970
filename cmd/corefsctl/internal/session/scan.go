package session

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pakvfs/corefs/filelist"
)

func newScanCmd(sess **Session) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the configured --dir list and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := filelist.List((*sess).Index, "", filelist.Options{Recursive: true})
			if err != nil {
				return err
			}
			archives, err := (*sess).Index.AllActiveArchiveLooseFiles()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d active files, %d active archives\n", len(entries), len(archives))
			return nil
		},
	}
}
