package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/gitodb/pkg/object"
	"go.uber.org/zap"
)

// StoreDirName is the repository-internal directory that holds the object
// store. It is never part of a snapshot.
const StoreDirName = ".git"

// ErrNotRepository is returned when no store directory can be found.
var ErrNotRepository = errors.New("not a repository")

// Repo represents an opened repository.
type Repo struct {
	RootDir string        // working directory root
	GitDir  string        // store root, normally RootDir/.git
	Store   *object.Store // content-addressed object store
	Config  *Config

	log    *zap.Logger
	ignore *IgnoreChecker
}

type options struct {
	log *zap.Logger
}

// Option configures how a repository is opened.
type Option func(*options)

// WithLogger sets the logger used by the repository and its store.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// OpenAt opens the repository whose working tree is rootDir and whose store
// lives in gitDir. Nothing is discovered implicitly.
func OpenAt(rootDir, gitDir string, opts ...Option) (*Repo, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("open %s: %w", gitDir, ErrNotRepository)
	}

	cfg, err := ReadConfig(gitDir)
	if err != nil {
		return nil, err
	}

	storeName := filepath.Base(gitDir)
	return &Repo{
		RootDir: rootDir,
		GitDir:  gitDir,
		Store: object.NewStore(gitDir,
			object.WithLogger(o.log),
			object.WithCompressionLevel(cfg.Core.Compression),
			object.WithHeaderCache(cfg.Core.HeaderCache),
		),
		Config: cfg,
		log:    o.log.With(zap.String("component", "Repo")),
		ignore: NewIgnoreChecker(storeName, cfg.Core.Ignore),
	}, nil
}

// Open searches upward from path for a .git/ directory and opens the
// repository.
func Open(path string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		gitDir := filepath.Join(cur, StoreDirName)
		info, err := os.Stat(gitDir)
		if err == nil && info.IsDir() {
			return OpenAt(cur, gitDir, opts...)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open %s: %w (or any parent up to /)", abs, ErrNotRepository)
		}
		cur = parent
	}
}
