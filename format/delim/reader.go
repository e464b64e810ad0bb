package delim

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/grokify/omnifile"
	"github.com/grokify/omnifile/stream"
)

// splitReader splits lines on the delimiter, treating quotes as content.
// Blank lines are skipped unless the header has a single column, where a
// blank line is one empty field.
type splitReader struct {
	r      *stream.Reader
	sep    string
	fields int
	line   int
}

func (s *splitReader) Read() ([]string, error) {
	for {
		text, err := s.r.ReadLine()
		if err != nil {
			return nil, err
		}
		s.line++
		if text == "" {
			if s.fields == 1 {
				return []string{""}, nil
			}
			continue
		}

		record := strings.Split(text, s.sep)
		if s.fields == 0 {
			s.fields = len(record)
		} else if len(record) != s.fields {
			return record, &csv.ParseError{StartLine: s.line, Line: s.line, Column: 1, Err: csv.ErrFieldCount}
		}
		return record, nil
	}
}

func newRowReader(r *stream.Reader, delimiter rune, quote bool) csvutil.Reader {
	if !quote {
		return &splitReader{r: r, sep: string(delimiter)}
	}
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	return cr
}

// Read reads the table at path. The first row must be a header whose
// columns are exactly the fields of T, in any order.
//
// With quote false, lines are split literally on the delimiter and quote
// characters are ordinary content. With quote true, a "\r\n" inside a
// quoted field reads back as "\n". A header-only table yields an empty,
// non-nil slice. Row numbers in errors count data rows from 1.
func Read[T any](ctx context.Context, f *File, path string, delimiter rune, quote bool) ([]T, error) {
	if err := validDelimiter(delimiter); err != nil {
		return nil, omnifile.ConversionError("read", path, err)
	}

	var zero T
	want, err := csvutil.Header(zero, f.tag)
	if err != nil {
		return nil, omnifile.ConversionError("read", path, err)
	}

	records := []T{}
	err = f.gw.WithReader(ctx, path, func(r *stream.Reader) error {
		dec, err := csvutil.NewDecoder(newRowReader(r, delimiter, quote))
		if errors.Is(err, io.EOF) {
			return ErrMissingHeader
		}
		if err != nil {
			return fmt.Errorf("header: %w", err)
		}
		dec.Tag = f.tag
		dec.DisallowMissingColumns = true

		if err := checkHeader(dec.Header(), want); err != nil {
			return err
		}

		for row := 1; ; row++ {
			var rec T
			err := dec.Decode(&rec)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("row %d: %w", row, err)
			}
			records = append(records, rec)
		}
	})
	if err != nil {
		return nil, omnifile.ConversionError("read", path, err)
	}
	return records, nil
}

// checkHeader reports columns in got that T lacks and fields of T that got lacks.
func checkHeader(got, want []string) error {
	var unknown, missing []string
	for _, col := range got {
		if !slices.Contains(want, col) {
			unknown = append(unknown, col)
		}
	}
	for _, col := range want {
		if !slices.Contains(got, col) {
			missing = append(missing, col)
		}
	}
	if len(unknown) == 0 && len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: unknown columns %q, missing columns %q", ErrSchemaMismatch, unknown, missing)
}

// ReadCSV reads a comma-separated table with quoting.
func ReadCSV[T any](ctx context.Context, f *File, path string) ([]T, error) {
	return Read[T](ctx, f, path, Comma, true)
}

// ReadTSV reads a tab-separated table with quoting.
func ReadTSV[T any](ctx context.Context, f *File, path string) ([]T, error) {
	return Read[T](ctx, f, path, Tab, true)
}
