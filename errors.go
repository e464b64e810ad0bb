package omnifile

import (
	"errors"
	"fmt"
)

// Common errors returned by omnifile backends and streams.
var (
	// ErrNotFound is returned when a path does not exist.
	ErrNotFound = errors.New("omnifile: not found")

	// ErrPermissionDenied is returned when access to a path is denied.
	ErrPermissionDenied = errors.New("omnifile: permission denied")

	// ErrBackendClosed is returned when operating on a closed backend.
	ErrBackendClosed = errors.New("omnifile: backend closed")

	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("omnifile: writer closed")

	// ErrReaderClosed is returned when reading from a closed reader.
	ErrReaderClosed = errors.New("omnifile: reader closed")

	// ErrInvalidPath is returned when a path is empty or escapes the backend root.
	ErrInvalidPath = errors.New("omnifile: invalid path")

	// ErrUnknownBackend is returned by Open when the backend name is not registered.
	ErrUnknownBackend = errors.New("omnifile: unknown backend")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("omnifile: invalid config")

	// ErrInvalidText is returned when a line is not valid UTF-8.
	ErrInvalidText = errors.New("omnifile: invalid UTF-8 text")
)

// Kind classifies an Error.
type Kind int

const (
	// KindIO covers missing paths, permissions, full disks, corrupt or
	// truncated compressed data and codec initialization failures.
	KindIO Kind = iota + 1

	// KindConversion covers record/row shape and type mismatches and
	// malformed delimited syntax.
	KindConversion
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindConversion:
		return "conversion"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by stream and record operations.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("omnifile: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("omnifile: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IOError wraps err as a KindIO error.
// It returns nil for a nil err and leaves an existing *Error untouched.
func IOError(op, path string, err error) error {
	return wrap(KindIO, op, path, err)
}

// ConversionError wraps err as a KindConversion error.
// It returns nil for a nil err and leaves an existing *Error untouched.
func ConversionError(op, path string, err error) error {
	return wrap(KindConversion, op, path, err)
}

func wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsIO returns true if err is a KindIO error.
func IsIO(err error) bool {
	return KindOf(err) == KindIO
}

// IsConversion returns true if err is a KindConversion error.
func IsConversion(err error) bool {
	return KindOf(err) == KindConversion
}

// IsNotFound returns true if the error indicates a path was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermissionDenied returns true if the error indicates permission was denied.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
