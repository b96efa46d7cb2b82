// Package embedding converts text into fixed-length vectors.
package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrDimensionMismatch reports a vector whose length differs from the pinned dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrModelMismatch reports vectors from a different model or backend than
	// the ones already stored.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// Embedder turns text into vectors. Bulk and single calls must use the same
// model and produce vectors of the same length.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	// Dimension is the vector length, or 0 when it is not known until the
	// first call.
	Dimension() int
	Model() string
	// Provider names the backend serving Model.
	Provider() string
}

// Manifest records the model a cache folder was first used with.
type Manifest struct {
	Model     string    `json:"model"`
	Provider  string    `json:"provider"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

const sampleText = "dimension sample"

// Pin fixes the vector dimension of e. The dimension is measured when e does
// not report one, compared against any manifest in cacheDir, and recorded
// there with the provider. The returned Embedder rejects vectors of any other length.
func Pin(ctx context.Context, e Embedder, cacheDir string) (Embedder, error) {
	dim := e.Dimension()
	if dim <= 0 {
		vec, err := e.EmbedOne(ctx, sampleText)
		if err != nil {
			return nil, fmt.Errorf("measure embedding dimension: %w", err)
		}
		dim = len(vec)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding model %q returned an empty vector", e.Model())
	}

	if strings.TrimSpace(cacheDir) != "" {
		if err := checkManifest(cacheDir, e.Model(), e.Provider(), dim); err != nil {
			return nil, err
		}
	}
	return &pinned{inner: e, dim: dim}, nil
}

func checkManifest(cacheDir, model, provider string, dim int) error {
	path := ManifestPath(cacheDir, model)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var m Manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("parse embedding manifest %s: %w", path, err)
		}
		if m.Provider != provider {
			return fmt.Errorf("%w: model %q was recorded with provider %q, now served by %q", ErrModelMismatch, model, m.Provider, provider)
		}
		if m.Dimension != dim {
			return fmt.Errorf("%w: model %q was recorded with dimension %d, now produces %d", ErrDimensionMismatch, model, m.Dimension, dim)
		}
		return nil
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("read embedding manifest %s: %w", path, err)
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("create embedding cache folder: %w", err)
	}
	data, err := json.MarshalIndent(Manifest{Model: model, Provider: provider, Dimension: dim, CreatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write embedding manifest %s: %w", path, err)
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ManifestPath returns where the manifest for model lives inside cacheDir.
func ManifestPath(cacheDir, model string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(model, "_"), "_")
	if slug == "" {
		slug = "default"
	}
	return filepath.Join(cacheDir, slug+".json")
}

type pinned struct {
	inner Embedder
	dim   int
}

func (p *pinned) Dimension() int   { return p.dim }
func (p *pinned) Model() string    { return p.inner.Model() }
func (p *pinned) Provider() string { return p.inner.Provider() }

func (p *pinned) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.inner.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != p.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), p.dim)
	}
	return vec, nil
}

func (p *pinned) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := p.inner.EmbedMany(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding backend returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != p.dim {
			return nil, fmt.Errorf("%w: text %d got %d, want %d", ErrDimensionMismatch, i, len(v), p.dim)
		}
	}
	return vecs, nil
}
