package object

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// newCompressor wraps w with a zlib stream. The returned writer must be
// closed to flush the final block and checksum; until then w holds a
// truncated, unreadable object.
func newCompressor(w io.Writer, level int) (*zlib.Writer, error) {
	zw, err := zlib.NewWriterLevel(w, level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	return zw, nil
}

// decompressor inflates a zlib stream lazily. Every error other than a
// clean io.EOF is reported as ErrDecode.
type decompressor struct {
	zr io.ReadCloser
}

// newDecompressor reads the zlib header from r. r is buffered first so the
// inflater never needs to read ahead of the compressed data it consumes.
func newDecompressor(r io.Reader) (*decompressor, error) {
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, decodeErr(err)
	}
	return &decompressor{zr: zr}, nil
}

func (d *decompressor) Read(p []byte) (int, error) {
	n, err := d.zr.Read(p)
	if err != nil && err != io.EOF {
		err = decodeErr(err)
	}
	return n, err
}

func (d *decompressor) Close() error {
	return d.zr.Close()
}

func decodeErr(err error) error {
	if errors.Is(err, ErrDecode) {
		return err
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %w", ErrDecode, err)
}
