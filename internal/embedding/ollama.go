package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwiater/ragbot/internal/logging"
)

// Ollama requests embeddings from an Ollama host, one text per request.
type Ollama struct {
	baseURL     string
	model       string
	client      *http.Client
	timeout     time.Duration
	concurrency int
}

// OllamaOptions configures an Ollama embedder.
type OllamaOptions struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Concurrency int
}

// NewOllama returns an Ollama embedder.
func NewOllama(opts OllamaOptions) (*Ollama, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("ollama embedding model is empty")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("ollama embedding url is empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Ollama{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		model:       opts.Model,
		client:      &http.Client{Timeout: opts.Timeout},
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
	}, nil
}

func (o *Ollama) Dimension() int   { return 0 }
func (o *Ollama) Model() string    { return o.model }
func (o *Ollama) Provider() string { return "ollama" }

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EmbedMany embeds texts concurrently, preserving input order.
func (o *Ollama) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := o.EmbedOne(gctx, text)
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedOne requests an embedding vector for a single text.
func (o *Ollama) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model":  o.model,
		"prompt": text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	endpoint := o.baseURL + "/api/embeddings"
	logging.LogRequest("RAGBOT->EMBED", endpoint, o.model, body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logging.LogRequest("EMBED->RAGBOT", endpoint, o.model, raw)
		return nil, fmt.Errorf("embedding request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed ollamaEmbeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response returned empty vector")
	}
	return toFloat32(parsed.Embedding), nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
