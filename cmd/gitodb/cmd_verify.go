package main

import (
	"fmt"

	"github.com/odvcencio/gitodb/pkg/object"
	"github.com/spf13/cobra"
)

func newVerifyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [root-id...]",
		Short: "Re-hash every stored object and check connectivity from roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := make([]object.Hash, 0, len(args))
			for _, arg := range args {
				h, err := object.ParseHash(arg)
				if err != nil {
					return usagef("verify: %v", err)
				}
				roots = append(roots, h)
			}

			r, err := g.openRepo()
			if err != nil {
				return err
			}

			report, err := r.Store.Verify()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: verified %d loose object(s) (%d blob, %d tree, %d commit)\n",
				report.LooseObjects, report.Blobs, report.Trees, report.Commits)

			if len(roots) == 0 {
				return nil
			}
			reachable, missing, err := r.Store.Reachable(roots)
			if err != nil {
				return err
			}
			for _, h := range missing {
				fmt.Fprintf(out, "missing %s\n", h)
			}
			if len(missing) > 0 {
				return fmt.Errorf("verify: %d referenced object(s) missing: %w", len(missing), object.ErrNotFound)
			}
			fmt.Fprintf(out, "ok: %d object(s) reachable from %d root(s)\n", len(reachable), len(roots))
			return nil
		},
	}
}
