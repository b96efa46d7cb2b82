// Package loader extracts plain text from source documents.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat reports a file type no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Section is the text of one page (or page-like unit) of a document.
// Page numbers start at 1.
type Section struct {
	Page int
	Text string
}

// TextExtractor turns a document on disk into ordered sections.
type TextExtractor interface {
	Extract(ctx context.Context, path string) ([]Section, error)
}

var textExtensions = map[string]struct{}{
	"":      {},
	".txt":  {},
	".text": {},
	".md":   {},
	".csv":  {},
	".log":  {},
}

// FileExtractor picks an extraction method from the file extension.
type FileExtractor struct{}

// NewFileExtractor returns the default extractor.
func NewFileExtractor() FileExtractor { return FileExtractor{} }

// Extract reads path and returns its sections.
func (FileExtractor) Extract(ctx context.Context, path string) ([]Section, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return extractPDF(ctx, path)
	}
	if _, ok := textExtensions[ext]; ok {
		return extractText(path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// extractText splits a UTF-8 file into pages at form feeds.
func extractText(path string) ([]Section, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("document %s is not valid UTF-8", path)
	}
	pages := strings.Split(string(raw), "\f")
	sections := make([]Section, len(pages))
	for i, p := range pages {
		sections[i] = Section{Page: i + 1, Text: p}
	}
	return sections, nil
}

func extractPDF(ctx context.Context, path string) (sections []Section, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			sections = nil
			err = fmt.Errorf("parse pdf %s: %v", path, r)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer file.Close()

	total := reader.NumPage()
	sections = make([]Section, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			sections = append(sections, Section{Page: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf %s page %d: %w", path, i, err)
		}
		sections = append(sections, Section{Page: i, Text: text})
	}
	return sections, nil
}

// HasContent reports whether any section holds non-whitespace text.
func HasContent(sections []Section) bool {
	for _, s := range sections {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}
