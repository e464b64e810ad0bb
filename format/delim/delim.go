// Package delim reads and writes tables of records as delimited text,
// such as CSV and TSV, through a stream.Gateway.
//
// A table is a sequence of structs of one type. The header row holds the
// field names in declaration order, taken from the "csv" struct tag when
// present. Paths ending in ".gz", ".bgz" or ".zst" are compressed
// transparently.
//
//	type Sample struct {
//	    ID       string   `csv:"id"`
//	    Reads    int      `csv:"reads"`
//	    Coverage *float64 `csv:"coverage"`
//	}
//
//	err := delim.WriteTSV(ctx, delim.Default(), "samples.tsv.gz", samples)
//	samples, err := delim.ReadTSV[Sample](ctx, delim.Default(), "samples.tsv.gz")
package delim

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/grokify/omnifile/stream"
)

// Common delimiters.
const (
	Comma = ','
	Tab   = '\t'
)

// DefaultTag is the struct tag that names columns.
const DefaultTag = "csv"

// Errors returned by table reads and writes. They carry omnifile.KindConversion.
var (
	// ErrMissingHeader is returned when a table has no header row.
	ErrMissingHeader = errors.New("delim: missing header row")

	// ErrSchemaMismatch is returned when the header does not match the record type.
	ErrSchemaMismatch = errors.New("delim: header does not match record type")

	// ErrInvalidDelimiter is returned for a delimiter that cannot separate fields.
	ErrInvalidDelimiter = errors.New("delim: invalid delimiter")
)

// QuoteMode controls field quoting on write.
type QuoteMode int

const (
	// QuoteAsNeeded quotes fields containing the delimiter, a quote or a
	// line break, doubling embedded quotes.
	QuoteAsNeeded QuoteMode = iota

	// QuoteNever writes fields verbatim. Fields containing the delimiter or
	// a line break produce a table that does not read back.
	QuoteNever
)

// String returns the mode name.
func (m QuoteMode) String() string {
	switch m {
	case QuoteAsNeeded:
		return "as-needed"
	case QuoteNever:
		return "never"
	default:
		return fmt.Sprintf("QuoteMode(%d)", int(m))
	}
}

// File reads and writes tables through a stream gateway.
type File struct {
	gw  *stream.Gateway
	tag string
}

// Option configures a File.
type Option func(*File)

// WithTag sets the struct tag used for column names. Default "csv".
func WithTag(tag string) Option {
	return func(f *File) {
		f.tag = tag
	}
}

// New returns a File using gw for all streams.
func New(gw *stream.Gateway, opts ...Option) *File {
	f := &File{gw: gw, tag: DefaultTag}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Default returns a File on stream.Default.
func Default() *File {
	return New(stream.Default())
}

func validDelimiter(r rune) error {
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError || !utf8.ValidRune(r) {
		return fmt.Errorf("%w: %q", ErrInvalidDelimiter, r)
	}
	return nil
}
