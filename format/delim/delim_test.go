package delim

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/grokify/omnifile"
	"github.com/grokify/omnifile/backend/memory"
	"github.com/grokify/omnifile/stream"
)

type Rec struct {
	S string   `csv:"S"`
	I int      `csv:"I"`
	B bool     `csv:"B"`
	O *float64 `csv:"O"`
}

type Unsupported struct {
	Name string   `csv:"name"`
	Ch   chan int `csv:"ch"`
}

type Renamed struct {
	ID    string `tsv:"id"`
	Count int    `tsv:"count"`
}

func ptr(f float64) *float64 { return &f }

func newMemoryFile(t *testing.T, opts ...Option) (*File, *memory.Backend) {
	t.Helper()
	backend := memory.New()
	gw, err := stream.New(omnifile.DefaultConfig(), stream.WithBackend(backend))
	if err != nil {
		t.Fatalf("stream.New() error = %v", err)
	}
	return New(gw, opts...), backend
}

func writeRaw(t *testing.T, backend *memory.Backend, p, content string) {
	t.Helper()
	w, err := backend.NewWriter(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func readRaw(t *testing.T, backend *memory.Backend, p string) string {
	t.Helper()
	data, ok := backend.Bytes(p)
	if !ok {
		t.Fatalf("%s not found", p)
	}
	return string(data)
}

func equalRecs(a, b []Rec) bool {
	return slices.EqualFunc(a, b, func(x, y Rec) bool {
		if x.S != y.S || x.I != y.I || x.B != y.B {
			return false
		}
		if x.O == nil || y.O == nil {
			return x.O == nil && y.O == nil
		}
		return *x.O == *y.O
	})
}

var sample = []Rec{
	{S: "a", I: 1, B: true, O: ptr(0.5)},
	{S: "b,c", I: 2, B: false, O: nil},
	{S: "say \"hi\"", I: -3, B: true, O: ptr(2)},
}

func TestCSVRoundTrip(t *testing.T) {
	f, backend := newMemoryFile(t)
	ctx := context.Background()

	if err := WriteCSV(ctx, f, "t.csv", sample); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	raw := readRaw(t, backend, "t.csv")
	if !strings.HasPrefix(raw, "S,I,B,O\n") {
		t.Errorf("header = %q, want S,I,B,O", strings.SplitN(raw, "\n", 2)[0])
	}
	if !strings.Contains(raw, "\"b,c\",2,false,\n") {
		t.Errorf("comma field not quoted or nil not empty: %q", raw)
	}

	got, err := ReadCSV[Rec](ctx, f, "t.csv")
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if !equalRecs(got, sample) {
		t.Errorf("ReadCSV() = %+v, want %+v", got, sample)
	}
	if got[1].O != nil {
		t.Error("nil optional field read back as present")
	}
}

func TestTSVCompressedRoundTrip(t *testing.T) {
	f, backend := newMemoryFile(t)
	ctx := context.Background()

	for _, p := range []string{"t.tsv.gz", "t.tsv.zst"} {
		t.Run(p, func(t *testing.T) {
			if err := WriteTSV(ctx, f, p, sample); err != nil {
				t.Fatalf("WriteTSV() error = %v", err)
			}
			if strings.HasPrefix(readRaw(t, backend, p), "S\tI") {
				t.Error("file is not compressed")
			}
			got, err := ReadTSV[Rec](ctx, f, p)
			if err != nil {
				t.Fatalf("ReadTSV() error = %v", err)
			}
			if !equalRecs(got, sample) {
				t.Errorf("ReadTSV() = %+v, want %+v", got, sample)
			}
		})
	}
}

func TestOnDiskRoundTrip(t *testing.T) {
	f := Default()
	p := filepath.Join(t.TempDir(), "t.csv.gz")
	ctx := context.Background()

	if err := WriteCSV(ctx, f, p, sample); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	got, err := ReadCSV[Rec](ctx, f, p)
	if err != nil || !equalRecs(got, sample) {
		t.Errorf("ReadCSV() = %+v, %v", got, err)
	}
}

func TestEmptyTable(t *testing.T) {
	f, backend := newMemoryFile(t)
	ctx := context.Background()

	if err := WriteCSV(ctx, f, "empty.csv", []Rec{}); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if raw := readRaw(t, backend, "empty.csv"); raw != "S,I,B,O\n" {
		t.Errorf("empty table = %q, want header only", raw)
	}

	got, err := ReadCSV[Rec](ctx, f, "empty.csv")
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ReadCSV() = %#v, want empty non-nil", got)
	}
}

func TestQuoteNever(t *testing.T) {
	f, backend := newMemoryFile(t)
	ctx := context.Background()
	recs := []Rec{{S: "say \"hi\"", I: 1, B: true}}

	if err := Write(ctx, f, "n.tsv", slices.Values(recs), Tab, QuoteNever); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	want := "S\tI\tB\tO\nsay \"hi\"\t1\ttrue\t\n"
	if raw := readRaw(t, backend, "n.tsv"); raw != want {
		t.Errorf("file = %q, want %q", raw, want)
	}

	got, err := Read[Rec](ctx, f, "n.tsv", Tab, false)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 1 || got[0].S != "say \"hi\"" {
		t.Errorf("Read() = %+v, want quotes kept as content", got)
	}
}

func TestReadWithoutQuoting(t *testing.T) {
	f, backend := newMemoryFile(t)
	writeRaw(t, backend, "q.csv", "S,I,B,O\n\"x\",1,true,\n")

	got, err := Read[Rec](context.Background(), f, "q.csv", Comma, false)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got[0].S != "\"x\"" {
		t.Errorf("S = %q, want quotes preserved", got[0].S)
	}

	got, err = Read[Rec](context.Background(), f, "q.csv", Comma, true)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got[0].S != "x" {
		t.Errorf("S = %q, want quotes removed", got[0].S)
	}
}

func TestColumnOrderIndependent(t *testing.T) {
	f, backend := newMemoryFile(t)
	writeRaw(t, backend, "o.csv", "O,B,I,S\n1.5,true,7,z\n")

	got, err := ReadCSV[Rec](context.Background(), f, "o.csv")
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	want := []Rec{{S: "z", I: 7, B: true, O: ptr(1.5)}}
	if !equalRecs(got, want) {
		t.Errorf("ReadCSV() = %+v, want %+v", got, want)
	}
}

func TestSchemaMismatch(t *testing.T) {
	f, backend := newMemoryFile(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown column", "S,I,B,O,extra\na,1,true,,x\n"},
		{"missing column", "S,I,B\na,1,true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeRaw(t, backend, "s.csv", tt.content)
			_, err := ReadCSV[Rec](ctx, f, "s.csv")
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Errorf("ReadCSV() error = %v, want ErrSchemaMismatch", err)
			}
			if !omnifile.IsConversion(err) {
				t.Errorf("ReadCSV() error kind = %v, want conversion", omnifile.KindOf(err))
			}
		})
	}
}

func TestMissingHeader(t *testing.T) {
	f, backend := newMemoryFile(t)
	writeRaw(t, backend, "blank.csv", "")

	_, err := ReadCSV[Rec](context.Background(), f, "blank.csv")
	if !errors.Is(err, ErrMissingHeader) {
		t.Errorf("ReadCSV() error = %v, want ErrMissingHeader", err)
	}
	if !omnifile.IsConversion(err) {
		t.Errorf("ReadCSV() error kind = %v, want conversion", omnifile.KindOf(err))
	}
}

func TestRowErrors(t *testing.T) {
	f, backend := newMemoryFile(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
		quote   bool
		row     string
	}{
		{"bad int", "S,I,B,O\na,1,true,\nb,notint,true,\n", true, "row 2"},
		{"bad bool", "S,I,B,O\na,1,maybe,\n", true, "row 1"},
		{"short row split", "S,I,B,O\na,1,true,\nb,2\n", false, "row 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeRaw(t, backend, "r.csv", tt.content)
			_, err := Read[Rec](ctx, f, "r.csv", Comma, tt.quote)
			if !omnifile.IsConversion(err) {
				t.Fatalf("Read() error = %v, want conversion error", err)
			}
			if !strings.Contains(err.Error(), tt.row) {
				t.Errorf("Read() error = %q, want it to name %s", err, tt.row)
			}
		})
	}
}

func TestMalformedQuoting(t *testing.T) {
	f, backend := newMemoryFile(t)
	writeRaw(t, backend, "m.csv", "S,I,B,O\n\"unterminated,1,true,\n")

	_, err := ReadCSV[Rec](context.Background(), f, "m.csv")
	if !omnifile.IsConversion(err) {
		t.Errorf("ReadCSV() error = %v, want conversion error", err)
	}
}

func TestUnsupportedType(t *testing.T) {
	f, _ := newMemoryFile(t)
	recs := []Unsupported{{Name: "x", Ch: make(chan int)}}

	err := WriteCSV(context.Background(), f, "u.csv", recs)
	if err == nil {
		t.Fatal("WriteCSV() error = nil, want error")
	}
	if !omnifile.IsConversion(err) {
		t.Errorf("WriteCSV() error kind = %v, want conversion", omnifile.KindOf(err))
	}
}

func TestMissingFileIsIO(t *testing.T) {
	f, _ := newMemoryFile(t)
	_, err := ReadCSV[Rec](context.Background(), f, "nope.csv")
	if !omnifile.IsIO(err) || !omnifile.IsNotFound(err) {
		t.Errorf("ReadCSV() error = %v, want io not found", err)
	}
}

func TestInvalidDelimiter(t *testing.T) {
	f, _ := newMemoryFile(t)
	ctx := context.Background()

	for _, d := range []rune{'"', '\r', '\n', 0xD800} {
		if err := Write(ctx, f, "d.csv", slices.Values(sample), d, QuoteAsNeeded); !errors.Is(err, ErrInvalidDelimiter) {
			t.Errorf("Write(%q) error = %v, want ErrInvalidDelimiter", d, err)
		}
		if _, err := Read[Rec](ctx, f, "d.csv", d, true); !errors.Is(err, ErrInvalidDelimiter) {
			t.Errorf("Read(%q) error = %v, want ErrInvalidDelimiter", d, err)
		}
	}
}

func TestCustomDelimiter(t *testing.T) {
	f, backend := newMemoryFile(t)
	ctx := context.Background()

	if err := Write(ctx, f, "p.txt", slices.Values(sample), '|', QuoteAsNeeded); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.HasPrefix(readRaw(t, backend, "p.txt"), "S|I|B|O\n") {
		t.Error("pipe delimiter not used")
	}
	got, err := Read[Rec](ctx, f, "p.txt", '|', true)
	if err != nil || !equalRecs(got, sample) {
		t.Errorf("Read() = %+v, %v", got, err)
	}
}

func TestWithTag(t *testing.T) {
	f, backend := newMemoryFile(t, WithTag("tsv"))
	ctx := context.Background()
	recs := []Renamed{{ID: "s1", Count: 10}}

	if err := WriteTSV(ctx, f, "r.tsv", recs); err != nil {
		t.Fatalf("WriteTSV() error = %v", err)
	}
	if raw := readRaw(t, backend, "r.tsv"); raw != "id\tcount\ns1\t10\n" {
		t.Errorf("file = %q", raw)
	}
	got, err := ReadTSV[Renamed](ctx, f, "r.tsv")
	if err != nil || len(got) != 1 || got[0] != recs[0] {
		t.Errorf("ReadTSV() = %+v, %v", got, err)
	}
}

func TestQuoteModeString(t *testing.T) {
	if QuoteAsNeeded.String() != "as-needed" || QuoteNever.String() != "never" {
		t.Error("unexpected QuoteMode names")
	}
}

type Note struct {
	Text *string `csv:"note"`
}

func TestSingleColumnEmptyRows(t *testing.T) {
	f, backend := newMemoryFile(t)
	ctx := context.Background()
	x := "x"
	notes := []Note{{}, {Text: &x}, {}}

	check := func(t *testing.T, got []Note) {
		t.Helper()
		if len(got) != len(notes) {
			t.Fatalf("read %d rows, want %d", len(got), len(notes))
		}
		if got[0].Text != nil || got[2].Text != nil {
			t.Error("nil row read back as present")
		}
		if got[1].Text == nil || *got[1].Text != "x" {
			t.Errorf("row 2 = %v, want x", got[1].Text)
		}
	}

	t.Run("csv", func(t *testing.T) {
		if err := WriteCSV(ctx, f, "n.csv", notes); err != nil {
			t.Fatalf("WriteCSV() error = %v", err)
		}
		if raw := readRaw(t, backend, "n.csv"); raw != "note\n\"\"\nx\n\"\"\n" {
			t.Errorf("file = %q", raw)
		}
		got, err := ReadCSV[Note](ctx, f, "n.csv")
		if err != nil {
			t.Fatalf("ReadCSV() error = %v", err)
		}
		check(t, got)
	})

	t.Run("tsv.gz", func(t *testing.T) {
		if err := WriteTSV(ctx, f, "n.tsv.gz", notes); err != nil {
			t.Fatalf("WriteTSV() error = %v", err)
		}
		got, err := ReadTSV[Note](ctx, f, "n.tsv.gz")
		if err != nil {
			t.Fatalf("ReadTSV() error = %v", err)
		}
		check(t, got)
	})

	t.Run("unquoted", func(t *testing.T) {
		if err := Write(ctx, f, "n.txt", slices.Values(notes), Tab, QuoteNever); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if raw := readRaw(t, backend, "n.txt"); raw != "note\n\nx\n\n" {
			t.Errorf("file = %q", raw)
		}
		got, err := Read[Note](ctx, f, "n.txt", Tab, false)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		check(t, got)
	})
}

func TestBlankLinesSkippedForMultipleColumns(t *testing.T) {
	f, backend := newMemoryFile(t)
	writeRaw(t, backend, "b.csv", "S,I,B,O\n\na,1,true,\n\n")

	for _, quote := range []bool{true, false} {
		got, err := Read[Rec](context.Background(), f, "b.csv", Comma, quote)
		if err != nil {
			t.Fatalf("Read(quote=%v) error = %v", quote, err)
		}
		if len(got) != 1 || got[0].S != "a" {
			t.Errorf("Read(quote=%v) = %+v, want one row", quote, got)
		}
	}
}

func TestQuotedCRLFReadsAsLF(t *testing.T) {
	f, _ := newMemoryFile(t)
	ctx := context.Background()

	if err := WriteCSV(ctx, f, "crlf.csv", []Rec{{S: "a\r\nb", I: 1}}); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	got, err := ReadCSV[Rec](ctx, f, "crlf.csv")
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(got) != 1 || got[0].S != "a\nb" {
		t.Errorf("ReadCSV() = %+v, want S normalized to %q", got, "a\nb")
	}
}
