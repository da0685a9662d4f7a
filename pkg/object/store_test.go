package object

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap/zaptest"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(dir, WithLogger(zaptest.NewLogger(t)))
}

// writeRawObject stores arbitrary decompressed bytes under id, bypassing the
// framing so tests can plant malformed objects.
func writeRawObject(t *testing.T, s *Store, id Hash, raw []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	writeObjectFile(t, s, id, buf.Bytes())
}

func writeObjectFile(t *testing.T, s *Store, id Hash, data []byte) {
	t.Helper()
	path := s.objectPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func mustParseHash(t *testing.T, s string) Hash {
	t.Helper()
	h, err := ParseHash(s)
	if err != nil {
		t.Fatalf("ParseHash(%q): %v", s, err)
	}
	return h
}

func TestStoreWriteReadRoundTrip(t *testing.T) {
	s := tempStore(t)
	payloads := map[Kind][]byte{
		KindBlob:   []byte("hello world\n"),
		KindTree:   append([]byte("100644 a\x00"), bytes.Repeat([]byte{0}, HashSize)...),
		KindCommit: []byte("tree 4b825dc642cb6eb9a060e54bf8d69288fbee4904\nauthor a <a@b> 0 +0000\ncommitter a <a@b> 0 +0000\n\nmsg\n"),
	}
	for kind, data := range payloads {
		t.Run(kind.String(), func(t *testing.T) {
			h, err := s.WriteFromBytes(kind, data)
			if err != nil {
				t.Fatalf("WriteFromBytes: %v", err)
			}
			if h != HashObject(kind, data) {
				t.Errorf("stored id %s, want %s", h, HashObject(kind, data))
			}

			gotKind, gotData, err := s.ReadBytes(h)
			if err != nil {
				t.Fatalf("ReadBytes: %v", err)
			}
			if gotKind != kind {
				t.Errorf("Kind: got %s, want %s", gotKind, kind)
			}
			if !bytes.Equal(gotData, data) {
				t.Errorf("Data: got %q, want %q", gotData, data)
			}
		})
	}
}

func TestStoreBinaryPayloadStreams(t *testing.T) {
	s := tempStore(t)
	data := make([]byte, 256*1024)
	for i := range data {
		data[i] = byte(i * 7)
	}
	h, err := s.Write(NewObject(KindBlob, int64(len(data)), bytes.NewReader(data)))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	obj, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer obj.Close()
	if obj.Kind != KindBlob || obj.Size != int64(len(data)) {
		t.Fatalf("header = %s %d, want blob %d", obj.Kind, obj.Size, len(data))
	}
	got, err := io.ReadAll(obj)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("payload mismatch")
	}
}

func TestStoreEmptyBlobKnownID(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteFromBytes(KindBlob, nil)
	if err != nil {
		t.Fatalf("WriteFromBytes: %v", err)
	}
	if got, want := h.String(), "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"; got != want {
		t.Errorf("empty blob id = %s, want %s", got, want)
	}
}

func TestStoreDeterministicIDs(t *testing.T) {
	s := tempStore(t)
	h1, err := s.WriteFromBytes(KindBlob, []byte("duplicate"))
	if err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	h2, err := s.WriteFromBytes(KindBlob, []byte("duplicate"))
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("same content produced different ids: %s vs %s", h1, h2)
	}
	h3, err := s.WriteFromBytes(KindBlob, []byte("different"))
	if err != nil {
		t.Fatalf("Write 3: %v", err)
	}
	if h3 == h1 {
		t.Error("different content produced the same id")
	}
}

func TestStoreFanoutLayout(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteFromBytes(KindBlob, []byte("fanout test"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	hex := h.String()
	objPath := filepath.Join(s.Root(), "objects", hex[:2], hex[2:])
	if _, err := os.Stat(objPath); err != nil {
		t.Errorf("expected fan-out file at %s: %v", objPath, err)
	}
	if !s.Has(h) {
		t.Error("Has returned false for existing object")
	}
}

func TestStoreLeavesNoTempFiles(t *testing.T) {
	s := tempStore(t)
	for _, data := range []string{"a", "b", "a"} {
		if _, err := s.WriteFromBytes(KindBlob, []byte(data)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	entries, err := os.ReadDir(filepath.Join(s.Root(), "objects"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tmpPrefix) {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestStoreShortPayloadLeavesStoreUnchanged(t *testing.T) {
	s := tempStore(t)
	obj := NewObject(KindBlob, 10, strings.NewReader("short"))
	_, err := s.Write(obj)
	if !errors.Is(err, ErrIO) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Write short payload: err = %v, want ErrIO wrapping ErrUnexpectedEOF", err)
	}
	hashes, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(hashes) != 0 {
		t.Errorf("store has %d objects after failed write", len(hashes))
	}
	entries, _ := os.ReadDir(filepath.Join(s.Root(), "objects"))
	if len(entries) != 0 {
		t.Errorf("objects dir not empty: %d entries", len(entries))
	}
}

func TestStoreOverwriteExisting(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteFromBytes(KindBlob, []byte("same"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	before, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if _, err := s.WriteFromBytes(KindBlob, []byte("same")); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	after, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("rewriting an object changed its bytes")
	}
}

func TestStoreWriteBlobFromPath(t *testing.T) {
	s := tempStore(t)
	path := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(path, []byte("hello world\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h, err := s.WriteBlobFromPath(path)
	if err != nil {
		t.Fatalf("WriteBlobFromPath: %v", err)
	}
	if got, want := h.String(), "3b18e512dba79e4c8300dd08aeb37f8e728b8dad"; got != want {
		t.Errorf("id = %s, want %s", got, want)
	}

	if _, err := s.WriteBlobFromPath(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrIO) {
		t.Errorf("missing file: err = %v, want ErrIO", err)
	}
	if _, err := s.WriteBlobFromPath(t.TempDir()); !errors.Is(err, ErrPrecondition) {
		t.Errorf("directory: err = %v, want ErrPrecondition", err)
	}
}

func TestStoreCompressedWithZlib(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteFromBytes(KindBlob, []byte("zlib framed"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := os.Open(s.objectPath(h))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	zr, err := zlib.NewReader(f)
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if want := "blob 11\x00zlib framed"; string(raw) != want {
		t.Errorf("raw = %q, want %q", raw, want)
	}
}

func TestStoreReadMissing(t *testing.T) {
	s := tempStore(t)
	_, err := s.Read(mustParseHash(t, "0000000000000000000000000000000000000001"))
	if !IsNotFound(err) {
		t.Errorf("Read missing: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Stat(mustParseHash(t, "0000000000000000000000000000000000000001")); !IsNotFound(err) {
		t.Errorf("Stat missing: err = %v, want ErrNotFound", err)
	}
}

func TestStoreReadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantErr error
	}{
		{name: "no NUL", raw: []byte("nonsense"), wantErr: ErrFormat},
		{name: "unknown kind", raw: []byte("tag 3\x00abc"), wantErr: ErrFormat},
		{name: "non numeric size", raw: []byte("blob x\x00"), wantErr: ErrFormat},
		{name: "negative size", raw: []byte("blob -1\x00"), wantErr: ErrFormat},
		{name: "three tokens", raw: []byte("blob 1 2\x00a"), wantErr: ErrFormat},
		{name: "no space", raw: []byte("blob\x00"), wantErr: ErrFormat},
		{name: "header too long", raw: bytes.Repeat([]byte("a"), 100), wantErr: ErrFormat},
	}
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := tempStore(t)
			id := HashObject(KindBlob, []byte{byte(i)})
			writeRawObject(t, s, id, tc.raw)
			_, err := s.Read(id)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Read: err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestStoreReadTruncatedPayload(t *testing.T) {
	s := tempStore(t)
	id := HashObject(KindBlob, []byte("truncated"))
	writeRawObject(t, s, id, []byte("blob 10\x00abc"))
	_, _, err := s.ReadBytes(id)
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("ReadBytes: err = %v, want ErrFormat", err)
	}
}

func TestStoreReadIgnoresTrailingBytes(t *testing.T) {
	s := tempStore(t)
	id := HashObject(KindBlob, []byte("abc"))
	writeRawObject(t, s, id, []byte("blob 3\x00abcTRAILING"))
	_, data, err := s.ReadBytes(id)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("data = %q, want %q", data, "abc")
	}
}

func TestStoreReadCorruptCompression(t *testing.T) {
	s := tempStore(t)

	id := HashObject(KindBlob, []byte("garbage"))
	writeObjectFile(t, s, id, []byte("definitely not zlib"))
	if _, err := s.Read(id); !errors.Is(err, ErrDecode) {
		t.Errorf("garbage: err = %v, want ErrDecode", err)
	}

	good, err := s.WriteFromBytes(KindBlob, bytes.Repeat([]byte("payload "), 64))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	compressed, err := os.ReadFile(s.objectPath(good))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	truncatedID := HashObject(KindBlob, []byte("truncated stream"))
	writeObjectFile(t, s, truncatedID, compressed[:len(compressed)/2])
	if _, _, err := s.ReadBytes(truncatedID); !errors.Is(err, ErrDecode) {
		t.Errorf("truncated: err = %v, want ErrDecode", err)
	}
}

func TestStoreReadChecksTrailer(t *testing.T) {
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i*7 + i>>3)
	}

	tests := []struct {
		name   string
		mangle func([]byte) []byte
	}{
		{name: "last byte cut", mangle: func(b []byte) []byte { return b[:len(b)-1] }},
		{name: "checksum cut", mangle: func(b []byte) []byte { return b[:len(b)-4] }},
		{name: "checksum flipped", mangle: func(b []byte) []byte {
			b[len(b)-1] ^= 0xff
			return b
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := tempStore(t)
			id, err := s.WriteFromBytes(KindBlob, data)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			compressed, err := os.ReadFile(s.objectPath(id))
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			writeObjectFile(t, s, id, tc.mangle(compressed))

			if _, _, err := s.ReadBytes(id); !errors.Is(err, ErrDecode) {
				t.Errorf("ReadBytes: err = %v, want ErrDecode", err)
			}
			if _, err := s.Verify(); !errors.Is(err, ErrDecode) {
				t.Errorf("Verify: err = %v, want ErrDecode", err)
			}
		})
	}
}

func TestStoreFailedReadDoesNotCacheHeader(t *testing.T) {
	s := tempStore(t)
	id := HashObject(KindBlob, []byte("truncated"))
	writeRawObject(t, s, id, []byte("blob 10\x00abc"))

	if _, _, err := s.ReadBytes(id); !errors.Is(err, ErrFormat) {
		t.Fatalf("ReadBytes: err = %v, want ErrFormat", err)
	}
	if err := os.Remove(s.objectPath(id)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Stat(id); !IsNotFound(err) {
		t.Errorf("Stat after failed read: err = %v, want ErrNotFound", err)
	}

	good := HashObject(KindBlob, []byte("abc"))
	writeRawObject(t, s, good, []byte("blob 3\x00abc"))
	if _, _, err := s.ReadBytes(good); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if err := os.Remove(s.objectPath(good)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if hdr, err := s.Stat(good); err != nil || hdr != (Header{Kind: KindBlob, Size: 3}) {
		t.Errorf("Stat after full read = %+v, %v; want cached blob 3", hdr, err)
	}
}

func TestStoreStatUsesHeaderCache(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteFromBytes(KindCommit, []byte("cached"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := os.Remove(s.objectPath(h)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	hdr, err := s.Stat(h)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if hdr.Kind != KindCommit || hdr.Size != 6 {
		t.Errorf("Stat = %+v, want commit 6", hdr)
	}

	uncached := NewStore(s.Root(), WithHeaderCache(0))
	if _, err := uncached.Stat(h); !IsNotFound(err) {
		t.Errorf("uncached Stat: err = %v, want ErrNotFound", err)
	}
}

func TestStoreHashDoesNotWrite(t *testing.T) {
	s := tempStore(t)
	h, err := s.Hash(NewObjectFromBytes(KindBlob, []byte("hello world\n")))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if got, want := h.String(), "3b18e512dba79e4c8300dd08aeb37f8e728b8dad"; got != want {
		t.Errorf("Hash = %s, want %s", got, want)
	}
	if s.Has(h) {
		t.Error("Hash wrote an object")
	}
}

func TestStoreTypedReadKindMismatch(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteFromBytes(KindBlob, []byte("not a tree"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, err = s.ReadTree(h)
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("ReadTree(blob): err = %v, want ErrPrecondition", err)
	}
	var mismatch *KindMismatchError
	if !errors.As(err, &mismatch) || mismatch.Got != KindBlob || mismatch.Want != KindTree {
		t.Errorf("KindMismatchError = %+v", mismatch)
	}
	if _, err := s.ReadCommit(h); !errors.Is(err, ErrPrecondition) {
		t.Errorf("ReadCommit(blob): err = %v, want ErrPrecondition", err)
	}
}

func TestStoreRejectsInvalidKind(t *testing.T) {
	s := tempStore(t)
	if _, err := s.WriteFromBytes(Kind(0), []byte("x")); !errors.Is(err, ErrPrecondition) {
		t.Errorf("Write(kind 0): err = %v, want ErrPrecondition", err)
	}
}
