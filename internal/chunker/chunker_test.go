package chunker

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewRejectsInvalidSizes(t *testing.T) {
	if _, err := New(0, 0); err == nil {
		t.Fatal("expected error for zero size")
	}
	if _, err := New(10, -1); err == nil {
		t.Fatal("expected error for negative overlap")
	}
	if _, err := New(10, 10); err == nil {
		t.Fatal("expected error for overlap equal to size")
	}
}

func TestSplitPrefersParagraphs(t *testing.T) {
	s, err := New(10, 3)
	if err != nil {
		t.Fatal(err)
	}
	got := s.Split("aaaa\n\nbbbb\n\ncccc")
	want := []string{"aaaa\n\n", "bbbb\n\ncccc"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split() = %q, want %q", got, want)
	}
}

func TestSplitCarriesOverlap(t *testing.T) {
	s, err := New(8, 4)
	if err != nil {
		t.Fatal(err)
	}
	text := "ab. cd. ef. gh."
	segs := s.Segments(text)
	got := make([]string, len(segs))
	for i, seg := range segs {
		got[i] = seg.Text
	}
	want := []string{"ab. cd. ", "cd. ef. ", "ef. gh."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Segments() = %q, want %q", got, want)
	}
	if segs[1].Overlap != 4 || segs[2].Overlap != 4 {
		t.Fatalf("unexpected overlaps: %d, %d", segs[1].Overlap, segs[2].Overlap)
	}
	if Join(segs) != text {
		t.Fatalf("Join() = %q, want %q", Join(segs), text)
	}
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	s, _ := New(1000, 200)
	got := s.Split("short text")
	if len(got) != 1 || got[0] != "short text" {
		t.Fatalf("unexpected chunks: %q", got)
	}
	if chunks := s.Split(""); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text, got %q", chunks)
	}
}

func TestSplitKeepsUnsplittableToken(t *testing.T) {
	s, _ := New(5, 1)
	token := "abcdefghijklmnop"
	got := s.Split(token)
	if len(got) != 1 || got[0] != token {
		t.Fatalf("expected single oversized chunk, got %q", got)
	}
}

func randomDocument(r *rand.Rand) string {
	letters := "abcdefghijklmnopqrstuvwxyzéü"
	runes := []rune(letters)
	var b strings.Builder
	paragraphs := 1 + r.Intn(8)
	for p := 0; p < paragraphs; p++ {
		lines := 1 + r.Intn(5)
		for l := 0; l < lines; l++ {
			sentences := 1 + r.Intn(6)
			for s := 0; s < sentences; s++ {
				words := 1 + r.Intn(5)
				for w := 0; w < words; w++ {
					n := 1 + r.Intn(6)
					for i := 0; i < n; i++ {
						b.WriteRune(runes[r.Intn(len(runes))])
					}
					if w < words-1 {
						b.WriteByte(' ')
					}
				}
				if s < sentences-1 {
					b.WriteString(". ")
				}
			}
			if l < lines-1 {
				b.WriteByte('\n')
			}
		}
		if p < paragraphs-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func TestSegmentsCoverText(t *testing.T) {
	const size, overlap = 50, 15
	s, err := New(size, overlap)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		text := randomDocument(r)
		segs := s.Segments(text)
		if len(segs) == 0 {
			t.Fatalf("doc %d: no segments", i)
		}
		if segs[0].Start != 0 || segs[len(segs)-1].End != len(text) {
			t.Fatalf("doc %d: segments do not span the text", i)
		}
		for j, seg := range segs {
			if seg.Text == "" {
				t.Fatalf("doc %d: empty segment %d", i, j)
			}
			if text[seg.Start:seg.End] != seg.Text {
				t.Fatalf("doc %d: segment %d offsets do not match text", i, j)
			}
			if n := utf8.RuneCountInString(seg.Text); n > size {
				t.Fatalf("doc %d: segment %d has %d runes, max %d", i, j, n, size)
			}
			if j > 0 {
				prev := segs[j-1]
				if seg.Start <= prev.Start || seg.End <= prev.End {
					t.Fatalf("doc %d: segment %d does not advance", i, j)
				}
				if seg.Overlap != prev.End-seg.Start {
					t.Fatalf("doc %d: segment %d overlap mismatch", i, j)
				}
				if n := utf8.RuneCountInString(seg.Text[:seg.Overlap]); n > overlap {
					t.Fatalf("doc %d: segment %d overlap %d exceeds %d", i, j, n, overlap)
				}
			}
		}
		if got := Join(segs); got != text {
			t.Fatalf("doc %d: Join mismatch\n got: %q\nwant: %q", i, got, text)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	s, _ := New(120, 30)
	text := randomDocument(rand.New(rand.NewSource(7)))
	first := s.Split(text)
	second := s.Split(text)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("Split is not deterministic")
	}
}
