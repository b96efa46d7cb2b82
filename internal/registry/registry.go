// Package registry owns the document indexes of a process. Each document is
// identified by its canonical path; concurrent requests for the same document
// share a single build.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mwiater/ragbot/internal/embedding"
	"github.com/mwiater/ragbot/internal/loader"
	"github.com/mwiater/ragbot/internal/logging"
	"github.com/mwiater/ragbot/internal/vectorstore"
)

// ErrEmptyDocument reports a document with no extractable text. No index is
// created for it.
var ErrEmptyDocument = errors.New("document appears empty or unreadable")

// Splitter breaks section text into chunk strings.
type Splitter interface {
	Split(text string) []string
}

// Registry maps canonical document paths to opened indexes.
type Registry struct {
	store     *vectorstore.Store
	extractor loader.TextExtractor
	splitter  Splitter
	embedder  embedding.Embedder

	mu      sync.Mutex
	indexes map[string]*vectorstore.Index
	builds  int
	group   singleflight.Group
}

// New returns an empty Registry.
func New(store *vectorstore.Store, extractor loader.TextExtractor, splitter Splitter, embedder embedding.Embedder) *Registry {
	return &Registry{
		store:     store,
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		indexes:   make(map[string]*vectorstore.Index),
	}
}

// Canonical resolves path to an absolute path with symlinks evaluated. It
// fails when the file does not exist.
func Canonical(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("document path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve document path %q: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve document path %q: %w", path, err)
	}
	return resolved, nil
}

// Ensure returns the index for the document at path, reusing one already in
// memory, loading one from disk, or building a new one.
func (r *Registry) Ensure(ctx context.Context, path string) (*vectorstore.Index, error) {
	key, err := Canonical(path)
	if err != nil {
		return nil, err
	}
	if idx, ok := r.cached(key); ok {
		return idx, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if idx, ok := r.cached(key); ok {
			return idx, nil
		}
		// Callers share this build, so it must outlive any one caller.
		idx, err := r.open(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.indexes[key] = idx
		r.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*vectorstore.Index), nil
}

func (r *Registry) cached(key string) (*vectorstore.Index, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.indexes[key]
	return idx, ok
}

func (r *Registry) open(ctx context.Context, key string) (*vectorstore.Index, error) {
	name := vectorstore.IndexName(key)
	if r.store.Exists(name) {
		logging.LogEvent("[REGISTRY] Loading existing index %s for %s", r.store.Dir(name), key)
		idx, err := r.store.Load(ctx, name, r.embedder)
		if err != nil {
			return nil, fmt.Errorf("load index for %s: %w", key, err)
		}
		return idx, nil
	}

	start := time.Now()
	r.mu.Lock()
	r.builds++
	r.mu.Unlock()

	logging.LogEvent("[REGISTRY] Building index %s for %s", r.store.Dir(name), key)
	sections, err := r.extractor.Extract(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", key, err)
	}
	if !loader.HasContent(sections) {
		logging.LogWarning("%s: %s", key, ErrEmptyDocument)
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, key)
	}

	chunks := r.chunk(sections)
	logging.LogEvent("[REGISTRY] Split %d sections into %d chunks", len(sections), len(chunks))
	idx, err := r.store.Create(ctx, name, chunks, r.embedder)
	if err != nil {
		return nil, fmt.Errorf("create index for %s: %w", key, err)
	}
	logging.LogEvent("[REGISTRY] Index for %s ready in %s", key, time.Since(start).Truncate(time.Millisecond))
	return idx, nil
}

// chunk splits every non-blank section. Page is the section number and
// Sequence the chunk number within it, both starting at 1.
func (r *Registry) chunk(sections []loader.Section) []vectorstore.Chunk {
	var chunks []vectorstore.Chunk
	for _, sec := range sections {
		if strings.TrimSpace(sec.Text) == "" {
			continue
		}
		for j, text := range r.splitter.Split(sec.Text) {
			chunks = append(chunks, vectorstore.Chunk{Text: text, Page: sec.Page, Sequence: j + 1})
		}
	}
	return chunks
}

// Lookup returns the in-memory index for path without building anything.
func (r *Registry) Lookup(path string) (*vectorstore.Index, bool) {
	key, err := Canonical(path)
	if err != nil {
		return nil, false
	}
	return r.cached(key)
}

// Drop closes any in-memory index for path and deletes its on-disk copy.
func (r *Registry) Drop(path string) error {
	key, err := Canonical(path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	idx, ok := r.indexes[key]
	delete(r.indexes, key)
	r.mu.Unlock()
	if ok {
		_ = idx.Close()
	}
	return r.store.Remove(vectorstore.IndexName(key))
}

// Builds returns how many times the extract, chunk and embed pipeline ran.
func (r *Registry) Builds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builds
}

// Close releases every open index.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for key, idx := range r.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index for %s: %w", key, err))
		}
		delete(r.indexes, key)
	}
	return errors.Join(errs...)
}
