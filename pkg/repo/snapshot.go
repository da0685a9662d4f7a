package repo

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/odvcencio/gitodb/pkg/object"
	"go.uber.org/zap"
)

// ErrEmptyTree is returned by WriteTree when the working tree has no
// eligible entries.
var ErrEmptyTree = errors.New("nothing to snapshot")

// WriteTree snapshots the whole working tree and returns the root tree id.
func (r *Repo) WriteTree() (object.Hash, error) {
	h, ok, err := r.BuildTree(r.RootDir)
	if err != nil {
		return object.ZeroHash, err
	}
	if !ok {
		return object.ZeroHash, fmt.Errorf("write tree %s: %w", r.RootDir, ErrEmptyTree)
	}
	return h, nil
}

// BuildTree snapshots dir recursively, writing a blob for every regular
// file and symlink and a tree for every non-empty directory. It returns
// ok=false, and writes no tree, when nothing under dir is eligible.
//
// The store directory and the configured ignore patterns are skipped. Ignore
// patterns are matched against paths relative to the repository root.
func (r *Repo) BuildTree(dir string) (id object.Hash, ok bool, err error) {
	return r.buildTreeDir(dir, r.relPath(dir))
}

func (r *Repo) relPath(dir string) string {
	rel, err := filepath.Rel(r.RootDir, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

func (r *Repo) buildTreeDir(dir, rel string) (object.Hash, bool, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return object.ZeroHash, false, fmt.Errorf("build tree %s: %w: %w", dir, object.ErrIO, err)
	}

	var entries []object.TreeEntry
	for _, de := range dirEntries {
		name := de.Name()
		childRel := name
		if rel != "" {
			childRel = path.Join(rel, name)
		}

		info, err := de.Info()
		if err != nil {
			return object.ZeroHash, false, fmt.Errorf("build tree %s: %w: %w", childRel, object.ErrIO, err)
		}
		if r.ignore.IsIgnored(childRel, info.IsDir()) {
			r.log.Debug("ignored", zap.String("path", childRel))
			continue
		}
		mode, ok := modeFromFileInfo(info)
		if !ok {
			r.log.Debug("skipping special file", zap.String("path", childRel), zap.Stringer("mode", info.Mode()))
			continue
		}

		full := filepath.Join(dir, name)
		var h object.Hash
		switch mode {
		case object.TreeModeDir:
			sub, nonEmpty, err := r.buildTreeDir(full, childRel)
			if err != nil {
				return object.ZeroHash, false, err
			}
			if !nonEmpty {
				continue
			}
			h = sub
		case object.TreeModeSymlink:
			// Links are stored as their target path, never followed.
			target, err := os.Readlink(full)
			if err != nil {
				return object.ZeroHash, false, fmt.Errorf("build tree %s: %w: %w", childRel, object.ErrIO, err)
			}
			if h, err = r.Store.WriteFromBytes(object.KindBlob, []byte(target)); err != nil {
				return object.ZeroHash, false, fmt.Errorf("build tree %s: %w", childRel, err)
			}
		default:
			if h, err = r.Store.WriteBlobFromPath(full); err != nil {
				return object.ZeroHash, false, fmt.Errorf("build tree %s: %w", childRel, err)
			}
		}
		entries = append(entries, object.TreeEntry{Mode: mode, Name: name, Hash: h})
	}

	if len(entries) == 0 {
		return object.ZeroHash, false, nil
	}
	h, err := r.Store.WriteTree(&object.Tree{Entries: entries})
	if err != nil {
		return object.ZeroHash, false, fmt.Errorf("build tree %s: %w", dir, err)
	}
	r.log.Debug("tree written", zap.String("dir", rel), zap.Int("entries", len(entries)), zap.Stringer("id", h))
	return h, true, nil
}
