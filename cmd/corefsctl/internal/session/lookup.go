package session

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pakvfs/corefs/precedence"
)

func newLookupCmd(sess **Session) *cobra.Command {
	var ext string
	var shaderName string
	var debug bool

	cmd := &cobra.Command{
		Use:   "lookup <dir> <name>",
		Short: "Run a precedence lookup and print the winner (or the full explain trail with --debug)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, name := args[0], args[1]
			var q precedence.Query
			switch {
			case shaderName != "":
				q = precedence.Shader(shaderName, dir, name)
			case ext != "":
				q = precedence.General(dir, name, ext)
			default:
				q = precedence.Image(dir, name)
			}

			if debug {
				explained, err := (*sess).Engine.LookupDebug(q)
				if err != nil {
					return err
				}
				if len(explained) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no candidates")
					return nil
				}
				for i, e := range explained {
					marker := " "
					if i == 0 && !e.Candidate.Disabled {
						marker = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s/%s.%s (%s) disabled=%v rule=%q\n",
						marker, e.Candidate.Dir, e.Candidate.Base, e.Candidate.Ext,
						e.Candidate.ModDir, e.Candidate.Disabled, e.Rule)
				}
				return nil
			}

			winner, err := (*sess).Engine.Lookup(q)
			if err != nil {
				return err
			}
			if winner == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no match")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s.%s (%s)\n", winner.Dir, winner.Base, winner.Ext, winner.ModDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&ext, "ext", "", "single extension to look up (general lookup flavor)")
	cmd.Flags().StringVar(&shaderName, "shader", "", "shader material name (shader lookup flavor)")
	cmd.Flags().BoolVar(&debug, "debug", false, "print the full sorted candidate list with deciding rules")
	return cmd
}
