package session

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pakvfs/corefs/filelist"
	"github.com/pakvfs/corefs/index"
)

func newListCmd(sess **Session) *cobra.Command {
	var extFilter string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "list <prefix>",
		Short: "List active files under a logical directory prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := filelist.Options{Recursive: recursive}
			if extFilter != "" {
				opts.Filter = filelist.NewExtensionFilter(strings.Split(extFilter, ",")...)
			}
			entries, err := filelist.List((*sess).Index, args[0], opts)
			if err != nil {
				return err
			}
			for _, e := range entries {
				kind := "loose"
				if e.Kind == index.KindArchiveSubfile {
					kind = "pak"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s.%s\t%s\t%s\t%d bytes\n", e.Dir, e.Base, e.Ext, e.ModDir, kind, e.Size)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&extFilter, "ext", "", "comma-separated extension filter (e.g. \"tga,jpg\")")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "also list subdirectories")
	return cmd
}
