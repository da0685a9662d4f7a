package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/odvcencio/gitodb/pkg/repo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// globalOptions carries the persistent flags shared by every subcommand.
type globalOptions struct {
	gitDir  string
	verbose bool
	log     *zap.Logger
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	g := &globalOptions{log: zap.NewNop()}
	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	_ = g.log.Sync()
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "fatal: %v\n", err)
	return exitCode(err)
}

func newRootCmd(g *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "gitodb",
		Short:         "Content-addressable object database in the git loose-object format",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !g.verbose {
				return nil
			}
			log, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			g.log = log
			return nil
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.PersistentFlags().StringVar(&g.gitDir, "git-dir", "", "path to the object store (default: search upward for .git)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log store activity to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(g))
	root.AddCommand(newHashObjectCmd(g))
	root.AddCommand(newCatFileCmd(g))
	root.AddCommand(newLsTreeCmd(g))
	root.AddCommand(newWriteTreeCmd(g))
	root.AddCommand(newCommitTreeCmd(g))
	root.AddCommand(newLogCmd(g))
	root.AddCommand(newVerifyCmd(g))

	for _, c := range root.Commands() {
		if c.Args != nil {
			c.Args = usageArgs(c.Args)
		}
	}
	return root
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitodb %s\n", version)
		},
	}
}

// openRepo opens the repository named by --git-dir, with the current
// directory as working tree, or searches upward from the current directory.
func (g *globalOptions) openRepo() (*repo.Repo, error) {
	opts := []repo.Option{repo.WithLogger(g.log)}
	if g.gitDir == "" {
		return repo.Open(".", opts...)
	}

	gitDir, err := filepath.Abs(g.gitDir)
	if err != nil {
		return nil, fmt.Errorf("resolve --git-dir: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	return repo.OpenAt(wd, gitDir, opts...)
}

// usageError marks bad flags or arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitError ends the process with code and no message.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func exitCode(err error) int {
	var ue *usageError
	switch {
	case errors.As(err, &ue), errors.Is(err, repo.ErrNotRepository):
		return 128
	default:
		return 1
	}
}
