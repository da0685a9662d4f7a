package repo

import (
	"fmt"
	"os"
	"path/filepath"
)

// Init creates a new repository at path: .git/ with objects/, refs/heads/,
// refs/tags/, a HEAD pointing at refs/heads/main, and a default
// config.toml. Returns an error if a .git/ directory already exists.
func Init(path string, opts ...Option) (*Repo, error) {
	gitDir := filepath.Join(path, StoreDirName)

	if _, err := os.Stat(gitDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", gitDir)
	}

	dirs := []string{
		filepath.Join(gitDir, "objects"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(gitDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	if err := WriteConfig(gitDir, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	return OpenAt(path, gitDir, opts...)
}
