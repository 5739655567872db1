package chunking

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitPrefersWordBreaks(t *testing.T) {
	s := NewSplitter(10, 0)
	got := s.Split("aaaa bbbb cccc")
	want := []string{"aaaa bbbb", "cccc"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	s := NewSplitter(12, 0)
	got := s.Split("Kedja ok\n\nSvärd ok")
	want := []string{"Kedja ok", "Svärd ok"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSplitHardCutsWithOverlap(t *testing.T) {
	s := NewSplitter(4, 2)
	got := s.Split("0123456789")
	want := []string{"0123", "2345", "4567", "6789"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSplitCountsRunes(t *testing.T) {
	s := NewSplitter(3, 0)
	got := s.Split("åäöÅÄÖ")
	want := []string{"åäö", "ÅÄÖ"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSplitEmptyAndBlank(t *testing.T) {
	s := NewSplitter(10, 2)
	if got := s.Split(""); got != nil {
		t.Fatalf("expected nil for empty text, got %q", got)
	}
	if got := s.Split("   \n  "); len(got) != 0 {
		t.Fatalf("expected no chunks for blank text, got %q", got)
	}
}

func TestSplitCoversLongText(t *testing.T) {
	text := strings.Repeat("Kontrollera kedjespänningen före varje användning. ", 100)
	s := NewSplitter(DefaultChunkSize, DefaultOverlap)
	chunks := s.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > DefaultChunkSize {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(text), chunks[len(chunks)-1][len(chunks[len(chunks)-1])-10:]) {
		t.Fatalf("last chunk does not reach the end of the text")
	}
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != DefaultChunkSize || s.Overlap != 0 {
		t.Fatalf("unexpected splitter %+v", s)
	}
	s = NewSplitter(100, 100)
	if s.Overlap != 20 {
		t.Fatalf("expected overlap clamp to 20, got %d", s.Overlap)
	}
}
