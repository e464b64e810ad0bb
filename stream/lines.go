package stream

import (
	"context"
	"errors"
	"io"
	"iter"
)

// WithReader opens path, calls fn and closes the reader on every exit path.
// A close error is returned alongside any error from fn.
func (g *Gateway) WithReader(ctx context.Context, path string, fn func(*Reader) error) error {
	r, err := g.NewReader(ctx, path)
	if err != nil {
		return err
	}
	return joinClose(fn(r), r.Close())
}

// WithWriter creates path, calls fn and closes the writer on every exit
// path. A finalization error is returned alongside any error from fn, so a
// nil result means the file is complete.
func (g *Gateway) WithWriter(ctx context.Context, path string, fn func(*Writer) error) error {
	w, err := g.NewWriter(ctx, path)
	if err != nil {
		return err
	}
	return joinClose(fn(w), w.Close())
}

func joinClose(fnErr, closeErr error) error {
	switch {
	case closeErr == nil:
		return fnErr
	case fnErr == nil:
		return closeErr
	default:
		return errors.Join(fnErr, closeErr)
	}
}

// ReadLines returns all lines of path without terminators.
func (g *Gateway) ReadLines(ctx context.Context, path string) ([]string, error) {
	lines := []string{}
	err := g.WithReader(ctx, path, func(r *Reader) error {
		for {
			line, err := r.ReadLine()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// WriteLines writes each line followed by "\n".
func (g *Gateway) WriteLines(ctx context.Context, path string, lines []string) error {
	return g.WriteLineSeq(ctx, path, func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	})
}

// WriteLineSeq writes each line of seq followed by "\n".
// An empty sequence produces an empty (but valid) file.
func (g *Gateway) WriteLineSeq(ctx context.Context, path string, seq iter.Seq[string]) error {
	return g.WithWriter(ctx, path, func(w *Writer) error {
		for line := range seq {
			if _, err := w.WriteString(line); err != nil {
				return err
			}
			if _, err := w.WriteString("\n"); err != nil {
				return err
			}
		}
		return nil
	})
}
