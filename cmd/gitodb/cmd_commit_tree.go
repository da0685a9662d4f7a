package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/odvcencio/gitodb/pkg/object"
	"github.com/odvcencio/gitodb/pkg/repo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCommitTreeCmd(g *globalOptions) *cobra.Command {
	var parentIDs []string
	var messages []string
	var signingKey string

	cmd := &cobra.Command{
		Use:   "commit-tree <tree-id> [-p <parent>]... [-m <message>]... [-S[=<key>]]",
		Short: "Create a commit object for a tree",
		Long: "Create a commit object for a tree. Each -m adds a paragraph; " +
			"without -m the message is read from standard input.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := object.ParseHash(args[0])
			if err != nil {
				return usagef("commit-tree: tree: %v", err)
			}
			parents := make([]object.Hash, 0, len(parentIDs))
			for _, p := range parentIDs {
				h, err := object.ParseHash(p)
				if err != nil {
					return usagef("commit-tree: -p: %v", err)
				}
				parents = append(parents, h)
			}

			message, err := commitMessage(cmd.InOrStdin(), messages)
			if err != nil {
				return err
			}

			r, err := g.openRepo()
			if err != nil {
				return err
			}
			author, committer, err := r.Identity(cmd.Context(), time.Now())
			if err != nil {
				return err
			}

			req := repo.CommitRequest{
				Tree:      tree,
				Parents:   parents,
				Message:   message,
				Author:    author,
				Committer: &committer,
			}
			if cmd.Flags().Changed("gpg-sign") {
				signer, keyPath, err := newSSHCommitSigner(signingKey)
				if err != nil {
					return err
				}
				g.log.Debug("signing commit", zap.String("key", keyPath))
				req.Signer = signer
			}

			h, err := r.CommitTree(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&parentIDs, "parent", "p", nil, "parent commit id (repeatable)")
	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "commit message paragraph (repeatable)")
	cmd.Flags().StringVarP(&signingKey, "gpg-sign", "S", "", "sign with an SSH private key (default: ~/.ssh/id_*)")
	cmd.Flags().Lookup("gpg-sign").NoOptDefVal = defaultSigningKey

	return cmd
}

// commitMessage joins -m paragraphs with blank lines, or reads standard
// input. The result always ends with a newline.
func commitMessage(stdin io.Reader, paragraphs []string) (string, error) {
	var msg string
	if len(paragraphs) > 0 {
		msg = strings.Join(paragraphs, "\n\n")
	} else {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("commit-tree: read message: %w", err)
		}
		msg = string(data)
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	return msg, nil
}
