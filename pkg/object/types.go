package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// HashSize is the length in bytes of a raw object identifier.
const HashSize = 20

// Hash is the raw SHA-1 digest of an object's framed bytes.
type Hash [HashSize]byte

// ZeroHash is the all-zero identifier. No stored object hashes to it.
var ZeroHash Hash

// ParseHash decodes a 40-character hex identifier. Upper-case input is
// accepted; String always renders lower-case.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != 2*HashSize {
		return h, fmt.Errorf("%w: %q: want %d hex characters", ErrInvalidHash, s, 2*HashSize)
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("%w: %q: %v", ErrInvalidHash, s, err)
	}
	return h, nil
}

// HashFromBytes copies a raw 20-byte identifier.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: raw length %d, want %d", ErrInvalidHash, len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// String returns the 40-character lower-case hex form.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero identifier.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Compare orders identifiers by their raw bytes.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// Kind identifies the type of a stored object.
type Kind uint8

const (
	KindBlob Kind = iota + 1
	KindTree
	KindCommit
)

var kindNames = map[Kind]string{
	KindBlob:   "blob",
	KindTree:   "tree",
	KindCommit: "commit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind maps a lower-case kind name to its Kind. Unknown names are a
// format error: they only appear when on-disk data is malformed.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "blob":
		return KindBlob, nil
	case "tree":
		return KindTree, nil
	case "commit":
		return KindCommit, nil
	default:
		return 0, fmt.Errorf("%w: unknown object kind %q", ErrFormat, name)
	}
}

const (
	// Tree mode strings, in the canonical form used inside tree payloads.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
	// TreeModeGitlink is accepted when decoding but never produced here.
	TreeModeGitlink = "160000"
)

// Header is the parsed "<kind> <size>" frame that prefixes every object.
type Header struct {
	Kind Kind
	Size int64
}

// Object is a single stored record. The payload is consumed through Read
// and is never shared: an Object serves one write or one read and is then
// discarded.
type Object struct {
	Kind Kind
	Size int64

	r      io.Reader
	closer io.Closer
}

// NewObject wraps an arbitrary payload reader. size must be the exact number
// of payload bytes r will yield; writers copy exactly size bytes.
func NewObject(kind Kind, size int64, r io.Reader) *Object {
	o := &Object{Kind: kind, Size: size, r: r}
	if c, ok := r.(io.Closer); ok {
		o.closer = c
	}
	return o
}

// NewObjectFromBytes wraps an in-memory payload.
func NewObjectFromBytes(kind Kind, data []byte) *Object {
	return &Object{Kind: kind, Size: int64(len(data)), r: bytes.NewReader(data)}
}

// Header returns the object's frame header.
func (o *Object) Header() Header {
	return Header{Kind: o.Kind, Size: o.Size}
}

// Read reads from the payload.
func (o *Object) Read(p []byte) (int, error) {
	return o.r.Read(p)
}

// Close releases any file held by the payload. It is safe to call more than
// once and on objects built from memory.
func (o *Object) Close() error {
	if o.closer == nil {
		return nil
	}
	c := o.closer
	o.closer = nil
	return c.Close()
}

// Tree is a decoded tree payload.
type Tree struct {
	Entries []TreeEntry
}

// TreeEntry is one row of a tree payload. Name holds the raw filesystem name
// bytes and never contains a path separator.
type TreeEntry struct {
	Mode string
	Name string
	Hash Hash
}

// IsDir reports whether the entry refers to a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Mode == TreeModeDir
}

// Kind returns the kind of object the entry's mode implies.
func (e TreeEntry) Kind() Kind {
	switch e.Mode {
	case TreeModeDir:
		return KindTree
	case TreeModeGitlink:
		return KindCommit
	default:
		return KindBlob
	}
}

func (e TreeEntry) String() string {
	return strings.Join([]string{e.Mode, e.Kind().String(), e.Hash.String(), e.Name}, " ")
}
