package object

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxHeaderLen bounds the search for the header's NUL terminator. The
// longest valid header is "commit " plus 19 digits plus NUL.
const maxHeaderLen = 32

// AppendHeader appends the frame header "<kind> <size>\0" to dst.
func AppendHeader(dst []byte, kind Kind, size int64) []byte {
	dst = append(dst, kind.String()...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, size, 10)
	return append(dst, 0)
}

// ReadHeader consumes bytes from r up to and including the first NUL and
// parses them as "<kind> <size>". It never reads past the NUL.
func ReadHeader(r io.ByteReader) (Header, error) {
	buf := make([]byte, 0, maxHeaderLen)
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return Header{}, fmt.Errorf("%w: header %q: missing NUL terminator", ErrFormat, buf)
		}
		if err != nil {
			return Header{}, err
		}
		if b == 0 {
			break
		}
		if len(buf) == maxHeaderLen {
			return Header{}, fmt.Errorf("%w: header exceeds %d bytes without NUL", ErrFormat, maxHeaderLen)
		}
		buf = append(buf, b)
	}
	return ParseHeader(string(buf))
}

// ParseHeader parses the text of a frame header without its NUL.
func ParseHeader(s string) (Header, error) {
	kindName, sizeText, ok := strings.Cut(s, " ")
	if !ok || kindName == "" {
		return Header{}, fmt.Errorf("%w: header %q: want \"<kind> <size>\"", ErrFormat, s)
	}
	if !isDecimal(sizeText) {
		return Header{}, fmt.Errorf("%w: header %q: size %q is not a decimal integer", ErrFormat, s, sizeText)
	}
	if len(sizeText) > 1 && sizeText[0] == '0' {
		return Header{}, fmt.Errorf("%w: header %q: size %q has leading zeros", ErrFormat, s, sizeText)
	}
	size, err := strconv.ParseInt(sizeText, 10, 64)
	if err != nil {
		return Header{}, fmt.Errorf("%w: header %q: size: %v", ErrFormat, s, err)
	}
	kind, err := ParseKind(kindName)
	if err != nil {
		return Header{}, err
	}
	return Header{Kind: kind, Size: size}, nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// payloadReader yields exactly size bytes of r and then io.EOF, whatever
// follows in r. A source that ends early is a format error.
type payloadReader struct {
	r         io.Reader
	remaining int64

	// drainTail consumes r to its end once the payload is delivered, so a
	// checksummed source gets to report a corrupt or missing trailer.
	drainTail bool
	err       error
}

func newPayloadReader(r io.Reader, size int64) *payloadReader {
	return &payloadReader{r: r, remaining: size}
}

func (p *payloadReader) Read(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.remaining <= 0 {
		if p.drainTail {
			if _, err := io.Copy(io.Discard, p.r); err != nil {
				p.err = err
				return 0, err
			}
		}
		p.err = io.EOF
		return 0, io.EOF
	}
	if int64(len(b)) > p.remaining {
		b = b[:p.remaining]
	}
	n, err := p.r.Read(b)
	p.remaining -= int64(n)
	if err == io.EOF {
		if p.remaining > 0 {
			p.err = fmt.Errorf("%w: payload truncated, %d bytes missing", ErrFormat, p.remaining)
			return n, p.err
		}
		err = nil
	}
	return n, err
}
