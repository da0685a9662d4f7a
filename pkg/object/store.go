package object

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap"
)

// tmpPrefix names in-flight object files under objects/. They are never
// valid fan-out entries, so listing and verification skip them.
const tmpPrefix = "tmp_obj_"

// DefaultHeaderCacheSize is the number of parsed headers Stat keeps.
const DefaultHeaderCacheSize = 1024

// Store is a content-addressed loose object store with a 2-character
// fan-out directory layout: <root>/objects/ab/cdef0123...
type Store struct {
	root    string
	level   int
	log     *zap.Logger
	headers *lru.Cache[Hash, Header]
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCompressionLevel sets the zlib level used for new objects.
func WithCompressionLevel(level int) Option {
	return func(s *Store) {
		s.level = level
	}
}

// WithHeaderCache sets how many object headers Stat caches. Zero or a
// negative size disables the cache.
func WithHeaderCache(size int) Option {
	return func(s *Store) {
		s.headers = nil
		if size > 0 {
			// lru.New only fails for non-positive sizes.
			s.headers, _ = lru.New[Hash, Header](size)
		}
	}
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		root:  root,
		level: zlib.DefaultCompression,
		log:   zap.NewNop(),
	}
	WithHeaderCache(DefaultHeaderCacheSize)(s)
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("component", "ObjectStore"))
	return s
}

// Root returns the directory that holds objects/.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) objectsDir() string {
	return filepath.Join(s.root, "objects")
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	hex := h.String()
	return filepath.Join(s.objectsDir(), hex[:2], hex[2:])
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Read opens an object and parses its header. The returned Object streams
// the decompressed payload and must be closed. Reading it to io.EOF also
// consumes the rest of the zlib stream, so a bad checksum or a truncated
// file surfaces as ErrDecode.
func (s *Store) Read(h Hash) (*Object, error) {
	f, err := os.Open(s.objectPath(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return nil, ioErr(fmt.Sprintf("object read %s", h), err)
	}

	d, err := newDecompressor(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("object read %s: %w", h, err)
	}
	br := bufio.NewReader(d)
	hdr, err := ReadHeader(br)
	if err != nil {
		d.Close()
		f.Close()
		return nil, fmt.Errorf("object read %s: %w", h, err)
	}

	s.log.Debug("object opened", zap.Stringer("id", h), zap.Stringer("kind", hdr.Kind), zap.Int64("size", hdr.Size))
	payload := newPayloadReader(br, hdr.Size)
	payload.drainTail = true
	return &Object{
		Kind:   hdr.Kind,
		Size:   hdr.Size,
		r:      payload,
		closer: &objectFile{d: d, f: f},
	}, nil
}

type objectFile struct {
	d *decompressor
	f *os.File
}

func (o *objectFile) Close() error {
	derr := o.d.Close()
	if err := o.f.Close(); err != nil {
		return err
	}
	return derr
}

// Stat returns an object's header without reading its payload. Headers are
// cached only from writes and complete reads.
func (s *Store) Stat(h Hash) (Header, error) {
	if s.headers != nil {
		if hdr, ok := s.headers.Get(h); ok {
			return hdr, nil
		}
	}
	obj, err := s.Read(h)
	if err != nil {
		return Header{}, err
	}
	hdr := obj.Header()
	if err := obj.Close(); err != nil {
		return Header{}, ioErr(fmt.Sprintf("object stat %s", h), err)
	}
	return hdr, nil
}

func (s *Store) cacheHeader(h Hash, hdr Header) {
	if s.headers != nil {
		s.headers.Add(h, hdr)
	}
}

// ReadBytes reads an object and materializes its payload.
func (s *Store) ReadBytes(h Hash) (Kind, []byte, error) {
	obj, err := s.Read(h)
	if err != nil {
		return 0, nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return 0, nil, fmt.Errorf("object read %s: %w", h, err)
	}
	s.cacheHeader(h, obj.Header())
	return obj.Kind, data, nil
}

// WriteBlobFromPath stores the content of the named file as a blob. The
// blob size is the file length when it is opened.
func (s *Store) WriteBlobFromPath(path string) (Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return ZeroHash, ioErr("write blob", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ZeroHash, ioErr("write blob", err)
	}
	if !info.Mode().IsRegular() {
		return ZeroHash, fmt.Errorf("write blob %s: %w: not a regular file", path, ErrPrecondition)
	}
	return s.Write(NewObject(KindBlob, info.Size(), f))
}

// WriteFromBytes stores an in-memory payload of the given kind.
func (s *Store) WriteFromBytes(kind Kind, data []byte) (Hash, error) {
	return s.Write(NewObjectFromBytes(kind, data))
}

// Write streams the framed object through a hashing compressor into a
// temporary file, then renames it into place under its identifier. A failure
// before the rename leaves the visible store unchanged. An existing object
// at the destination is replaced by identical bytes.
func (s *Store) Write(obj *Object) (Hash, error) {
	if !obj.Kind.Valid() {
		return ZeroHash, fmt.Errorf("object write: %w: invalid kind %s", ErrPrecondition, obj.Kind)
	}
	if obj.Size < 0 {
		return ZeroHash, fmt.Errorf("object write: %w: negative size %d", ErrPrecondition, obj.Size)
	}

	if err := os.MkdirAll(s.objectsDir(), 0o755); err != nil {
		return ZeroHash, ioErr("object write mkdir", err)
	}
	tmp, err := os.CreateTemp(s.objectsDir(), tmpPrefix+"*")
	if err != nil {
		return ZeroHash, ioErr("object write tmpfile", err)
	}
	tmpName := tmp.Name()

	h, err := s.encode(tmp, obj)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return ZeroHash, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return ZeroHash, ioErr("object write close", err)
	}

	dest := s.objectPath(h)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		os.Remove(tmpName)
		return ZeroHash, ioErr("object write mkdir", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return ZeroHash, ioErr("object write rename", err)
	}

	s.cacheHeader(h, obj.Header())
	s.log.Debug("object written", zap.Stringer("id", h), zap.Stringer("kind", obj.Kind), zap.Int64("size", obj.Size))
	return h, nil
}

// encode writes header and payload through zlib into w, hashing the
// uncompressed framed bytes on the way.
func (s *Store) encode(w io.Writer, obj *Object) (Hash, error) {
	zw, err := newCompressor(w, s.level)
	if err != nil {
		return ZeroHash, fmt.Errorf("object write: %w", err)
	}
	hw := NewHashWriter(zw)
	if err := copyFramed(hw, obj); err != nil {
		zw.Close()
		return ZeroHash, err
	}
	if err := zw.Close(); err != nil {
		return ZeroHash, ioErr("object write finish", err)
	}
	return hw.Sum(), nil
}

// Hash computes the identifier obj would be stored under without writing
// anything.
func (s *Store) Hash(obj *Object) (Hash, error) {
	hw := NewHashWriter(nil)
	if err := copyFramed(hw, obj); err != nil {
		return ZeroHash, err
	}
	return hw.Sum(), nil
}

func copyFramed(w io.Writer, obj *Object) error {
	if _, err := w.Write(AppendHeader(nil, obj.Kind, obj.Size)); err != nil {
		return ioErr("object write header", err)
	}
	n, err := io.CopyN(w, obj, obj.Size)
	if err == io.EOF {
		return ioErr("object write payload", fmt.Errorf("%w: got %d of %d bytes", io.ErrUnexpectedEOF, n, obj.Size))
	}
	if err != nil {
		return ioErr("object write payload", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteTree serializes and stores a tree.
func (s *Store) WriteTree(tr *Tree) (Hash, error) {
	data, err := MarshalTree(tr.Entries)
	if err != nil {
		return ZeroHash, err
	}
	return s.WriteFromBytes(KindTree, data)
}

// ReadTree reads and decodes a tree.
func (s *Store) ReadTree(h Hash) (*Tree, error) {
	kind, data, err := s.ReadBytes(h)
	if err != nil {
		return nil, err
	}
	if kind != KindTree {
		return nil, &KindMismatchError{ID: h, Got: kind, Want: KindTree}
	}
	tr, err := UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return tr, nil
}

// WriteCommit serializes and stores a commit.
func (s *Store) WriteCommit(c *Commit) (Hash, error) {
	return s.WriteFromBytes(KindCommit, MarshalCommit(c))
}

// ReadCommit reads and decodes a commit.
func (s *Store) ReadCommit(h Hash) (*Commit, error) {
	kind, data, err := s.ReadBytes(h)
	if err != nil {
		return nil, err
	}
	if kind != KindCommit {
		return nil, &KindMismatchError{ID: h, Got: kind, Want: KindCommit}
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return c, nil
}
