package object

import (
	"hash"
	"io"

	"github.com/pjbgf/sha1cd"
)

// HashWriter forwards every write to an underlying sink and folds the bytes
// actually accepted by the sink into a SHA-1 digest, in write order.
type HashWriter struct {
	w io.Writer
	h hash.Hash
}

// NewHashWriter wraps w. A nil w hashes without forwarding.
func NewHashWriter(w io.Writer) *HashWriter {
	if w == nil {
		w = io.Discard
	}
	return &HashWriter{w: w, h: sha1cd.New()}
}

func (hw *HashWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	return n, err
}

// Sum returns the digest of everything written so far.
func (hw *HashWriter) Sum() Hash {
	var out Hash
	copy(out[:], hw.h.Sum(nil))
	return out
}

// HashObject computes the identifier of an in-memory object without storing
// it: SHA-1 over "<kind> <len>\0<data>".
func HashObject(kind Kind, data []byte) Hash {
	hw := NewHashWriter(nil)
	hw.Write(AppendHeader(nil, kind, int64(len(data))))
	hw.Write(data)
	return hw.Sum()
}
