package object

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no object file exists for an identifier.
	ErrNotFound = errors.New("object not found")
	// ErrFormat means a frame header, tree entry or commit could not be parsed.
	ErrFormat = errors.New("malformed object")
	// ErrDecode means the compressed stream is corrupt or truncated.
	ErrDecode = errors.New("corrupt compressed object")
	// ErrIO wraps failures of the underlying filesystem.
	ErrIO = errors.New("object i/o")
	// ErrPrecondition means an input object has the wrong kind.
	ErrPrecondition = errors.New("precondition failed")
	// ErrInvalidHash means an identifier is not 40 hex characters / 20 bytes.
	ErrInvalidHash = errors.New("invalid object id")
)

// IsNotFound reports whether err was caused by a missing object.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// ioErr tags a filesystem failure with ErrIO while keeping the original
// error reachable through errors.Is/As.
func ioErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}

// KindMismatchError reports that an object exists but is not of the kind an
// operation requires.
type KindMismatchError struct {
	ID   Hash
	Got  Kind
	Want Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("object %s: %s: got %s, want %s", e.ID, ErrPrecondition, e.Got, e.Want)
}

func (e *KindMismatchError) Is(target error) bool {
	return target == ErrPrecondition
}
