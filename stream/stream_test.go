package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/grokify/omnifile"
	"github.com/grokify/omnifile/backend/memory"
)

// testWriteCloser is a backend writer whose Close fails.
type testWriteCloser struct {
	bytes.Buffer
	closeErr error
}

func (w *testWriteCloser) Close() error {
	return w.closeErr
}

// failingBackend hands out writers that fail on Close.
type failingBackend struct {
	*memory.Backend
	closeErr error
}

func (b *failingBackend) NewWriter(_ context.Context, _ string, _ ...omnifile.WriterOption) (io.WriteCloser, error) {
	return &testWriteCloser{closeErr: b.closeErr}, nil
}

func newMemoryGateway(t *testing.T) (*Gateway, *memory.Backend) {
	t.Helper()
	backend := memory.New()
	gw, err := New(omnifile.DefaultConfig(), WithBackend(backend))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return gw, backend
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  omnifile.Config
	}{
		{"zero buffer", omnifile.Config{CompressionLevel: 5, BufferSize: 0}},
		{"level too high", omnifile.Config{CompressionLevel: 10, BufferSize: 1024}},
		{"level too low", omnifile.Config{CompressionLevel: -4, BufferSize: 1024}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, omnifile.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestRoundTripFiles(t *testing.T) {
	dir := t.TempDir()
	gw := Default()
	ctx := context.Background()
	lines := []string{"a,b\tc", "\"quoted\"", "", "héllo wörld"}

	for _, name := range []string{"x.txt", "x.txt.gz", "x.txt.bgz", "x.txt.zst", "noext"} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(dir, name)
			if err := gw.WriteLines(ctx, p, lines); err != nil {
				t.Fatalf("WriteLines() error = %v", err)
			}
			got, err := gw.ReadLines(ctx, p)
			if err != nil {
				t.Fatalf("ReadLines() error = %v", err)
			}
			if !slices.Equal(got, lines) {
				t.Errorf("ReadLines() = %q, want %q", got, lines)
			}
		})
	}
}

func TestCompressedBytesDiffer(t *testing.T) {
	gw, backend := newMemoryGateway(t)
	ctx := context.Background()
	content := strings.Repeat("ACGTACGTACGT\n", 1000)

	for _, p := range []string{"r.txt", "r.txt.gz", "r.txt.zst"} {
		if err := gw.WithWriter(ctx, p, func(w *Writer) error {
			_, err := w.WriteString(content)
			return err
		}); err != nil {
			t.Fatalf("WithWriter(%s) error = %v", p, err)
		}
	}

	plain, _ := backend.Bytes("r.txt")
	gz, _ := backend.Bytes("r.txt.gz")
	zs, _ := backend.Bytes("r.txt.zst")

	if string(plain) != content {
		t.Error("plain file does not hold the written bytes")
	}
	if len(gz) >= len(plain) || len(zs) >= len(plain) {
		t.Errorf("compressed sizes gz=%d zst=%d not smaller than plain=%d", len(gz), len(zs), len(plain))
	}
	if gz[0] != 0x1f || gz[1] != 0x8b {
		t.Error("gzip magic missing")
	}
	if !bytes.HasPrefix(zs, []byte{0x28, 0xb5, 0x2f, 0xfd}) {
		t.Error("zstd magic missing")
	}
	if ct := backend.ContentType("r.txt.gz"); ct != "application/gzip" {
		t.Errorf("content type = %q, want application/gzip", ct)
	}
}

func TestReadNotFound(t *testing.T) {
	gw := Default()
	_, err := gw.NewReader(context.Background(), filepath.Join(t.TempDir(), "missing.gz"))
	if !omnifile.IsNotFound(err) {
		t.Errorf("NewReader() error = %v, want not found", err)
	}
	if !omnifile.IsIO(err) {
		t.Errorf("NewReader() error kind = %v, want io", omnifile.KindOf(err))
	}
}

func TestWriteMissingParent(t *testing.T) {
	gw := Default()
	p := filepath.Join(t.TempDir(), "no", "such", "dir", "out.gz")
	if _, err := gw.NewWriter(context.Background(), p); !omnifile.IsIO(err) {
		t.Errorf("NewWriter() error = %v, want io error", err)
	}
}

func TestMultiMemberGzip(t *testing.T) {
	var buf bytes.Buffer
	for _, part := range []string{"first\n", "second\n", "third"} {
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write([]byte(part)); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
	}

	p := filepath.Join(t.TempDir(), "multi.bgz")
	if err := os.WriteFile(p, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Default().ReadLines(context.Background(), p)
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	want := []string{"first", "second", "third"}
	if !slices.Equal(got, want) {
		t.Errorf("ReadLines() = %q, want %q", got, want)
	}
}

func TestCorruptGzipFailsAtOpen(t *testing.T) {
	p := filepath.Join(t.TempDir(), "plain.gz")
	if err := os.WriteFile(p, []byte("this is not gzip data\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Default().NewReader(context.Background(), p)
	if err == nil {
		t.Fatal("NewReader() error = nil, want error")
	}
	if !omnifile.IsIO(err) {
		t.Errorf("NewReader() error kind = %v, want io", omnifile.KindOf(err))
	}
}

func TestTruncatedGzipFailsOnRead(t *testing.T) {
	gw, backend := newMemoryGateway(t)
	ctx := context.Background()
	if err := gw.WriteLines(ctx, "t.gz", []string{strings.Repeat("x", 5000)}); err != nil {
		t.Fatal(err)
	}
	data, _ := backend.Bytes("t.gz")

	w, err := backend.NewWriter(ctx, "cut.gz")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write(data[:len(data)-6])
	_ = w.Close()

	_, err = gw.ReadLines(ctx, "cut.gz")
	if !omnifile.IsIO(err) {
		t.Errorf("ReadLines(truncated) error = %v, want io error", err)
	}
}

func TestWithWriterReportsCloseError(t *testing.T) {
	closeErr := errors.New("disk full")
	gw, err := New(omnifile.DefaultConfig(), WithBackend(&failingBackend{Backend: memory.New(), closeErr: closeErr}))
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{"out.txt", "out.gz", "out.zst"} {
		err := gw.WithWriter(context.Background(), p, func(w *Writer) error {
			_, err := w.WriteString("data\n")
			return err
		})
		if !errors.Is(err, closeErr) {
			t.Errorf("WithWriter(%s) error = %v, want %v", p, err, closeErr)
		}
		if !omnifile.IsIO(err) {
			t.Errorf("WithWriter(%s) error kind = %v, want io", p, omnifile.KindOf(err))
		}
	}
}

func TestWithWriterJoinsErrors(t *testing.T) {
	closeErr := errors.New("disk full")
	fnErr := errors.New("callback failed")
	gw, err := New(omnifile.DefaultConfig(), WithBackend(&failingBackend{Backend: memory.New(), closeErr: closeErr}))
	if err != nil {
		t.Fatal(err)
	}

	err = gw.WithWriter(context.Background(), "out.gz", func(*Writer) error { return fnErr })
	if !errors.Is(err, fnErr) || !errors.Is(err, closeErr) {
		t.Errorf("WithWriter() error = %v, want both errors", err)
	}
}

func TestWriterClosedOnCallbackError(t *testing.T) {
	gw, backend := newMemoryGateway(t)
	fnErr := errors.New("stop")

	err := gw.WithWriter(context.Background(), "partial.zst", func(w *Writer) error {
		_, _ = w.WriteString("kept\n")
		return fnErr
	})
	if !errors.Is(err, fnErr) {
		t.Fatalf("WithWriter() error = %v, want %v", err, fnErr)
	}

	if _, ok := backend.Bytes("partial.zst"); !ok {
		t.Fatal("writer was not closed")
	}
	got, err := gw.ReadLines(context.Background(), "partial.zst")
	if err != nil || !slices.Equal(got, []string{"kept"}) {
		t.Errorf("ReadLines() = %q, %v", got, err)
	}
}

func TestWriterAfterClose(t *testing.T) {
	gw, _ := newMemoryGateway(t)
	w, err := gw.NewWriter(context.Background(), "a.gz")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if _, err := w.Write([]byte("x")); !errors.Is(err, omnifile.ErrWriterClosed) {
		t.Errorf("Write() after Close error = %v, want ErrWriterClosed", err)
	}
	if err := w.Flush(); !errors.Is(err, omnifile.ErrWriterClosed) {
		t.Errorf("Flush() after Close error = %v, want ErrWriterClosed", err)
	}
}

func TestReaderAfterClose(t *testing.T) {
	gw, _ := newMemoryGateway(t)
	ctx := context.Background()
	if err := gw.WriteLines(ctx, "a.txt", []string{"x"}); err != nil {
		t.Fatal(err)
	}
	r, err := gw.NewReader(ctx, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if _, err := r.ReadLine(); !errors.Is(err, omnifile.ErrReaderClosed) {
		t.Errorf("ReadLine() after Close error = %v, want ErrReaderClosed", err)
	}
}

func TestFlushMakesDataDecodable(t *testing.T) {
	gw, backend := newMemoryGateway(t)
	ctx := context.Background()

	for _, p := range []string{"f.gz", "f.zst"} {
		w, err := gw.NewWriter(ctx, p)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.WriteString("line\n"); err != nil {
			t.Fatal(err)
		}
		if err := w.Flush(); err != nil {
			t.Errorf("Flush(%s) error = %v", p, err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		if _, ok := backend.Bytes(p); !ok {
			t.Errorf("%s not committed", p)
		}
	}
}

func TestReadLineTerminators(t *testing.T) {
	gw, backend := newMemoryGateway(t)
	ctx := context.Background()

	w, _ := backend.NewWriter(ctx, "crlf.txt")
	_, _ = w.Write([]byte("one\r\ntwo\nthree"))
	_ = w.Close()

	got, err := gw.ReadLines(ctx, "crlf.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"one", "two", "three"}
	if !slices.Equal(got, want) {
		t.Errorf("ReadLines() = %q, want %q", got, want)
	}
}

func TestReadLineInvalidUTF8(t *testing.T) {
	gw, backend := newMemoryGateway(t)
	ctx := context.Background()

	w, _ := backend.NewWriter(ctx, "bad.txt")
	_, _ = w.Write([]byte("ok\n\xff\xfe\n"))
	_ = w.Close()

	_, err := gw.ReadLines(ctx, "bad.txt")
	if !errors.Is(err, omnifile.ErrInvalidText) {
		t.Errorf("ReadLines() error = %v, want ErrInvalidText", err)
	}
}

func TestEmptySequence(t *testing.T) {
	gw, backend := newMemoryGateway(t)
	ctx := context.Background()

	for _, p := range []string{"e.txt", "e.gz", "e.zst"} {
		if err := gw.WriteLineSeq(ctx, p, slices.Values([]string(nil))); err != nil {
			t.Fatalf("WriteLineSeq(%s) error = %v", p, err)
		}
		got, err := gw.ReadLines(ctx, p)
		if err != nil {
			t.Fatalf("ReadLines(%s) error = %v", p, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("ReadLines(%s) = %#v, want empty non-nil", p, got)
		}
	}

	if data, _ := backend.Bytes("e.txt"); len(data) != 0 {
		t.Errorf("plain empty file has %d bytes", len(data))
	}
}

func TestCopyTranscodes(t *testing.T) {
	gw, backend := newMemoryGateway(t)
	ctx := context.Background()
	lines := []string{"@r1", "ACGT", "+", "IIII"}

	if err := gw.WriteLines(ctx, "reads.fq.gz", lines); err != nil {
		t.Fatal(err)
	}

	n, err := Copy(ctx, gw, "reads.fq.gz", gw, "reads.fq.zst")
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if want := int64(len(strings.Join(lines, "\n")) + 1); n != want {
		t.Errorf("Copy() = %d bytes, want %d", n, want)
	}

	zs, _ := backend.Bytes("reads.fq.zst")
	if !bytes.HasPrefix(zs, []byte{0x28, 0xb5, 0x2f, 0xfd}) {
		t.Error("destination is not zstd")
	}

	got, err := gw.ReadLines(ctx, "reads.fq.zst")
	if err != nil || !slices.Equal(got, lines) {
		t.Errorf("ReadLines() = %q, %v; want %q", got, err, lines)
	}
}

func TestCopyAcrossBackends(t *testing.T) {
	mem, _ := newMemoryGateway(t)
	disk := Default()
	ctx := context.Background()
	dst := filepath.Join(t.TempDir(), "out.txt")

	if err := mem.WriteLines(ctx, "in.zst", []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Copy(ctx, mem, "in.zst", disk, dst); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "a\nb\n" {
		t.Errorf("copied file = %q, %v", data, err)
	}
}

func TestCopyMissingSource(t *testing.T) {
	gw, _ := newMemoryGateway(t)
	if _, err := Copy(context.Background(), gw, "missing.gz", gw, "out.gz"); !omnifile.IsNotFound(err) {
		t.Errorf("Copy() error = %v, want not found", err)
	}
}

func TestCanceledContext(t *testing.T) {
	gw, _ := newMemoryGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := gw.NewWriter(ctx, "a.gz"); !errors.Is(err, context.Canceled) {
		t.Errorf("NewWriter() error = %v, want context.Canceled", err)
	}
	if _, err := gw.NewReader(ctx, "a.gz"); !errors.Is(err, context.Canceled) {
		t.Errorf("NewReader() error = %v, want context.Canceled", err)
	}
}

func TestSmallBufferRoundTrip(t *testing.T) {
	backend := memory.New()
	gw, err := New(omnifile.Config{CompressionLevel: 9, BufferSize: 16}, WithBackend(backend))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	long := strings.Repeat("0123456789", 100)

	for _, p := range []string{"s.txt", "s.gz", "s.zst"} {
		if err := gw.WriteLines(ctx, p, []string{long, "short"}); err != nil {
			t.Fatal(err)
		}
		got, err := gw.ReadLines(ctx, p)
		if err != nil || !slices.Equal(got, []string{long, "short"}) {
			t.Errorf("ReadLines(%s) mismatch, err = %v", p, err)
		}
	}
}

func TestClassifyReexports(t *testing.T) {
	if Classify("x.fq.gz") != omnifile.Gzip || !IsGzipPath("x.bgz") || !IsZstdPath("x.zst") || !IsFastqPath("x.fq") {
		t.Error("classification helpers disagree with omnifile")
	}
}
