package repo

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/odvcencio/gitodb/pkg/object"
)

// ListEntry is one line of a tree listing.
type ListEntry struct {
	Mode string
	Kind object.Kind
	Hash object.Hash
	Path string // entry name, or slash-joined path in recursive listings
}

// String renders the entry as "<mode> <kind> <hash>\t<path>" with the mode
// zero-padded to six digits.
func (e ListEntry) String() string {
	mode := e.Mode
	if len(mode) < 6 {
		mode = strings.Repeat("0", 6-len(mode)) + mode
	}
	return fmt.Sprintf("%s %s %s\t%s", mode, e.Kind, e.Hash, e.Path)
}

// ListTree lists the entries of tree h in stored order. When recursive is
// set, subtrees are expanded in place and only non-tree entries are
// returned, with their full paths.
func (r *Repo) ListTree(h object.Hash, recursive bool) ([]ListEntry, error) {
	var out []ListEntry
	if err := r.listTreeRec(h, "", recursive, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) listTreeRec(h object.Hash, prefix string, recursive bool, out *[]ListEntry) error {
	obj, err := r.Store.Read(h)
	if err != nil {
		return fmt.Errorf("ls-tree: %w", err)
	}
	defer obj.Close()
	if obj.Kind != object.KindTree {
		return fmt.Errorf("ls-tree: %w", &object.KindMismatchError{ID: h, Got: obj.Kind, Want: object.KindTree})
	}

	sc := object.NewTreeScanner(obj)
	for {
		e, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ls-tree %s: %w", h, err)
		}

		full := e.Name
		if prefix != "" {
			full = path.Join(prefix, e.Name)
		}
		if recursive && e.IsDir() {
			if err := r.listTreeRec(e.Hash, full, true, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, ListEntry{Mode: e.Mode, Kind: r.entryKind(e), Hash: e.Hash, Path: full})
	}
}

// entryKind reports the stored kind of the entry's object, falling back to
// the kind implied by its mode when the object is absent.
func (r *Repo) entryKind(e object.TreeEntry) object.Kind {
	if e.Mode == object.TreeModeGitlink {
		return object.KindCommit
	}
	if hdr, err := r.Store.Stat(e.Hash); err == nil {
		return hdr.Kind
	}
	return e.Kind()
}
