package main

import (
	"fmt"
	"io"

	"github.com/odvcencio/gitodb/pkg/object"
	"github.com/spf13/cobra"
)

func newCatFileCmd(g *globalOptions) *cobra.Command {
	var pretty, showKind, showSize, exists bool

	cmd := &cobra.Command{
		Use:   "cat-file (-p | -t | -s | -e) <id>",
		Short: "Show the content, kind or size of a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, set := range []bool{pretty, showKind, showSize, exists} {
				if set {
					modes++
				}
			}
			if modes != 1 {
				return usagef("cat-file: give exactly one of -p, -t, -s or -e")
			}
			h, err := object.ParseHash(args[0])
			if err != nil {
				return usagef("cat-file: %v", err)
			}

			r, err := g.openRepo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !pretty {
				hdr, err := r.Store.Stat(h)
				switch {
				case exists && object.IsNotFound(err):
					return &exitError{code: 2}
				case err != nil:
					return err
				case showKind:
					fmt.Fprintln(out, hdr.Kind)
				case showSize:
					fmt.Fprintln(out, hdr.Size)
				}
				return nil
			}

			obj, err := r.Store.Read(h)
			if err != nil {
				return err
			}
			defer obj.Close()

			if obj.Kind == object.KindTree {
				entries, err := r.ListTree(h, false)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintln(out, e)
				}
				return nil
			}
			if _, err := io.Copy(out, obj); err != nil {
				return fmt.Errorf("cat-file %s: %w", h, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty-print the object content")
	cmd.Flags().BoolVarP(&showKind, "type", "t", false, "show the object kind")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "show the payload size")
	cmd.Flags().BoolVarP(&exists, "exists", "e", false, "exit 0 if the object exists, 2 if it does not")

	return cmd
}
