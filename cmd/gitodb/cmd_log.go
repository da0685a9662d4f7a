package main

import (
	"fmt"
	"strings"

	"github.com/odvcencio/gitodb/pkg/object"
	"github.com/odvcencio/gitodb/pkg/repo"
	"github.com/spf13/cobra"
)

func newLogCmd(g *globalOptions) *cobra.Command {
	var oneline bool
	var limit int
	var showSignature bool

	cmd := &cobra.Command{
		Use:   "log <commit-id>",
		Short: "Show first-parent history starting at a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := object.ParseHash(args[0])
			if err != nil {
				return usagef("log: %v", err)
			}
			r, err := g.openRepo()
			if err != nil {
				return err
			}

			commits, err := r.Log(start, limit)
			if err != nil {
				return err
			}

			// Each commit's id is the first parent of the one before it.
			out := cmd.OutOrStdout()
			h := start
			for i, c := range commits {
				if i > 0 {
					h = commits[i-1].Parents[0]
				}
				subject, _, _ := strings.Cut(c.Message, "\n")

				if oneline {
					fmt.Fprintf(out, "%s %s\n", h.String()[:8], subject)
					continue
				}
				fmt.Fprintf(out, "commit %s\n", h)
				if showSignature {
					fmt.Fprintf(out, "Signature: %s\n", signatureStatus(c))
				}
				fmt.Fprintf(out, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
				fmt.Fprintf(out, "Date:   %s\n", c.Author.When.Format("Mon Jan 2 15:04:05 2006 -0700"))
				fmt.Fprintln(out)
				for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show")
	cmd.Flags().BoolVar(&showSignature, "show-signature", false, "verify and show commit signatures")

	return cmd
}

func signatureStatus(c *object.Commit) string {
	pub, err := repo.VerifyCommitSignature(c)
	if err != nil {
		return err.Error()
	}
	return "good " + pub.Type() + " signature"
}
