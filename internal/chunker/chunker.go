// Package chunker splits document text into overlapping segments.
//
// Splitting prefers paragraph breaks, then line breaks, then sentence
// boundaries. Separators stay attached to the text that precedes them, so the
// chunks of a document, with the overlap between neighbours removed, rebuild
// the input byte for byte.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators is the descending-preference separator list.
var DefaultSeparators = []string{"\n\n", "\n", ". "}

// Segment is one chunk plus its location in the source text.
// Start and End are byte offsets; Overlap is the number of leading bytes
// shared with the previous segment.
type Segment struct {
	Text    string
	Start   int
	End     int
	Overlap int
}

// Splitter is a recursive character splitter. Size and Overlap are measured
// in characters (runes).
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New returns a Splitter with the default separators.
func New(size, overlap int) (*Splitter, error) {
	return NewWithSeparators(size, overlap, DefaultSeparators)
}

// NewWithSeparators returns a Splitter that tries separators in order.
func NewWithSeparators(size, overlap int, separators []string) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero")
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be zero or greater")
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	seps := make([]string, 0, len(separators))
	for _, s := range separators {
		if s != "" {
			seps = append(seps, s)
		}
	}
	return &Splitter{size: size, overlap: overlap, separators: seps}, nil
}

// Size returns the target maximum chunk length.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the target overlap between consecutive chunks.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunk texts for text.
func (s *Splitter) Split(text string) []string {
	segments := s.Segments(text)
	out := make([]string, len(segments))
	for i, seg := range segments {
		out[i] = seg.Text
	}
	return out
}

// Segments returns the chunks of text with their byte offsets.
func (s *Splitter) Segments(text string) []Segment {
	if text == "" {
		return nil
	}
	pieces := s.pieces(text, s.separators)

	// offsets[i] is the byte offset where pieces[i] starts.
	offsets := make([]int, len(pieces)+1)
	lengths := make([]int, len(pieces))
	for i, p := range pieces {
		offsets[i+1] = offsets[i] + len(p)
		lengths[i] = utf8.RuneCountInString(p)
	}

	var segments []Segment
	start := 0
	prevEnd := 0
	for start < len(pieces) {
		end := start
		total := 0
		for end < len(pieces) && (end == start || total+lengths[end] <= s.size) {
			total += lengths[end]
			end++
		}

		seg := Segment{
			Text:  text[offsets[start]:offsets[end]],
			Start: offsets[start],
			End:   offsets[end],
		}
		if len(segments) > 0 {
			seg.Overlap = prevEnd - seg.Start
		}
		segments = append(segments, seg)
		prevEnd = seg.End

		if end == len(pieces) {
			break
		}
		start = s.nextStart(lengths, start, end)
	}
	return segments
}

// nextStart picks the first piece of the chunk following pieces[start:end].
// It walks back from end while the carried tail fits in the overlap budget,
// always advancing past start, and releases carried pieces when the next
// uncarried piece would not fit beside them.
func (s *Splitter) nextStart(lengths []int, start, end int) int {
	next := end
	carried := 0
	for next-1 > start && carried+lengths[next-1] <= s.overlap {
		next--
		carried += lengths[next]
	}
	for next < end && carried+lengths[end] > s.size {
		carried -= lengths[next]
		next++
	}
	return next
}

// pieces breaks text into fragments no longer than size where a separator
// allows it. Concatenating the fragments yields text.
func (s *Splitter) pieces(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.size {
		return []string{text}
	}
	for i, sep := range separators {
		if !strings.Contains(text, sep) {
			continue
		}
		var out []string
		for _, part := range splitKeep(text, sep) {
			if utf8.RuneCountInString(part) > s.size {
				out = append(out, s.pieces(part, separators[i+1:])...)
				continue
			}
			out = append(out, part)
		}
		return out
	}
	return []string{text}
}

// splitKeep splits text after every occurrence of sep.
func splitKeep(text, sep string) []string {
	var parts []string
	for {
		i := strings.Index(text, sep)
		if i < 0 {
			break
		}
		parts = append(parts, text[:i+len(sep)])
		text = text[i+len(sep):]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// Join rebuilds the source text from segments produced by Segments.
func Join(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text[seg.Overlap:])
	}
	return b.String()
}
