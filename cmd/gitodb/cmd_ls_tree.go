package main

import (
	"fmt"

	"github.com/odvcencio/gitodb/pkg/object"
	"github.com/spf13/cobra"
)

func newLsTreeCmd(g *globalOptions) *cobra.Command {
	var nameOnly, recursive bool

	cmd := &cobra.Command{
		Use:   "ls-tree [--name-only] [-r] <tree-id>",
		Short: "List the entries of a tree object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := object.ParseHash(args[0])
			if err != nil {
				return usagef("ls-tree: %v", err)
			}
			r, err := g.openRepo()
			if err != nil {
				return err
			}

			entries, err := r.ListTree(h, recursive)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				if nameOnly {
					fmt.Fprintln(out, e.Path)
				} else {
					fmt.Fprintln(out, e)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&nameOnly, "name-only", false, "list only entry names")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recurse into subtrees")

	return cmd
}
