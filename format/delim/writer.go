package delim

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/grokify/omnifile"
	"github.com/grokify/omnifile/stream"
)

// rowWriter is the row sink handed to the encoder.
type rowWriter interface {
	Write(record []string) error
	Flush() error
}

// quotingWriter quotes fields as needed. A record holding one empty field
// is written as "" so it does not become a blank line, which readers skip.
type quotingWriter struct {
	*csv.Writer
	out io.Writer
}

func (w quotingWriter) Write(record []string) error {
	if len(record) != 1 || record[0] != "" {
		return w.Writer.Write(record)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w.out, "\"\"\n")
	return err
}

func (w quotingWriter) Flush() error {
	w.Writer.Flush()
	return w.Writer.Error()
}

// verbatimWriter joins fields with the delimiter without quoting.
type verbatimWriter struct {
	w   io.Writer
	sep string
}

func (w verbatimWriter) Write(record []string) error {
	_, err := io.WriteString(w.w, strings.Join(record, w.sep)+"\n")
	return err
}

func (w verbatimWriter) Flush() error {
	return nil
}

func newRowWriter(w io.Writer, delimiter rune, mode QuoteMode) rowWriter {
	if mode == QuoteNever {
		return verbatimWriter{w: w, sep: string(delimiter)}
	}
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	return quotingWriter{Writer: cw, out: w}
}

// Write writes a header row and one row per record to path.
// The header is written even when records is empty.
//
// Values that cannot be serialized fail with a KindConversion error and
// stream failures with a KindIO error. In both cases the file is closed.
func Write[T any](ctx context.Context, f *File, path string, records iter.Seq[T], delimiter rune, mode QuoteMode) error {
	if err := validDelimiter(delimiter); err != nil {
		return omnifile.ConversionError("write", path, err)
	}

	err := f.gw.WithWriter(ctx, path, func(w *stream.Writer) error {
		sink := newRowWriter(w, delimiter, mode)
		enc := csvutil.NewEncoder(sink)
		enc.Tag = f.tag
		enc.AutoHeader = false

		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return fmt.Errorf("header: %w", err)
		}

		row := 0
		for rec := range records {
			row++
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("row %d: %w", row, err)
			}
		}
		return sink.Flush()
	})
	return omnifile.ConversionError("write", path, err)
}

// WriteCSV writes records as comma-separated values, quoting as needed.
func WriteCSV[T any](ctx context.Context, f *File, path string, records []T) error {
	return Write(ctx, f, path, slices.Values(records), Comma, QuoteAsNeeded)
}

// WriteTSV writes records as tab-separated values, quoting as needed.
func WriteTSV[T any](ctx context.Context, f *File, path string, records []T) error {
	return Write(ctx, f, path, slices.Values(records), Tab, QuoteAsNeeded)
}
