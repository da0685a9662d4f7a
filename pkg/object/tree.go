package object

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// SortTreeEntries orders entries by raw name bytes, the canonical order of
// a tree payload.
func SortTreeEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
}

// MarshalTree serializes tree entries. A sorted copy is encoded so the
// payload, and therefore the identifier, does not depend on input order.
// Each entry is:
//
//	<mode> SP <name> NUL <20 raw hash bytes>
func MarshalTree(entries []TreeEntry) ([]byte, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	SortTreeEntries(sorted)

	size := 0
	for i, e := range sorted {
		if err := validateTreeEntry(e); err != nil {
			return nil, fmt.Errorf("marshal tree: %w", err)
		}
		if i > 0 && sorted[i-1].Name == e.Name {
			return nil, fmt.Errorf("marshal tree: %w: duplicate entry %q", ErrFormat, e.Name)
		}
		size += len(e.Mode) + 1 + len(e.Name) + 1 + HashSize
	}

	buf := make([]byte, 0, size)
	for _, e := range sorted {
		buf = append(buf, e.Mode...)
		buf = append(buf, ' ')
		buf = append(buf, e.Name...)
		buf = append(buf, 0)
		buf = append(buf, e.Hash[:]...)
	}
	return buf, nil
}

func validateTreeEntry(e TreeEntry) error {
	switch {
	case e.Name == "" || e.Name == "." || e.Name == "..":
		return fmt.Errorf("%w: invalid entry name %q", ErrFormat, e.Name)
	case strings.ContainsAny(e.Name, "/\x00"):
		return fmt.Errorf("%w: entry name %q contains '/' or NUL", ErrFormat, e.Name)
	case !isOctal(e.Mode):
		return fmt.Errorf("%w: entry %q: invalid mode %q", ErrFormat, e.Name, e.Mode)
	}
	return nil
}

func isOctal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}
	return true
}

// UnmarshalTree decodes a complete tree payload.
func UnmarshalTree(data []byte) (*Tree, error) {
	tr := &Tree{}
	sc := NewTreeScanner(bytes.NewReader(data))
	for {
		e, err := sc.Next()
		if err == io.EOF {
			return tr, nil
		}
		if err != nil {
			return nil, err
		}
		tr.Entries = append(tr.Entries, e)
	}
}

// TreeScanner decodes tree entries one at a time from a payload stream.
// The hash field is always read by length: its raw bytes may contain NUL.
type TreeScanner struct {
	r   *bufio.Reader
	err error
}

// NewTreeScanner reads entries from r.
func NewTreeScanner(r io.Reader) *TreeScanner {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &TreeScanner{r: br}
}

// Next returns the next entry, or io.EOF once the payload is exhausted at an
// entry boundary.
func (ts *TreeScanner) Next() (TreeEntry, error) {
	if ts.err != nil {
		return TreeEntry{}, ts.err
	}
	e, err := ts.next()
	if err != nil {
		ts.err = err
	}
	return e, err
}

func (ts *TreeScanner) next() (TreeEntry, error) {
	head, err := ts.r.ReadBytes(0)
	if err == io.EOF {
		if len(head) == 0 {
			return TreeEntry{}, io.EOF
		}
		return TreeEntry{}, fmt.Errorf("%w: truncated tree entry %q", ErrFormat, head)
	}
	if err != nil {
		return TreeEntry{}, err
	}
	head = head[:len(head)-1]

	mode, name, ok := bytes.Cut(head, []byte{' '})
	if !ok {
		return TreeEntry{}, fmt.Errorf("%w: tree entry %q: want \"<mode> <name>\"", ErrFormat, head)
	}
	e := TreeEntry{Mode: string(mode), Name: string(name)}
	if err := validateTreeEntry(e); err != nil {
		return TreeEntry{}, err
	}

	if _, err := io.ReadFull(ts.r, e.Hash[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return TreeEntry{}, fmt.Errorf("%w: tree entry %q: truncated hash", ErrFormat, e.Name)
		}
		return TreeEntry{}, err
	}
	return e, nil
}
