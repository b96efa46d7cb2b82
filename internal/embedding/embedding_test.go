package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestLocalEmbedderIsDeterministicAndNormalized(t *testing.T) {
	e, err := NewLocal(64)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	a, _ := e.EmbedOne(ctx, "The cat sat on the mat")
	b, _ := e.EmbedOne(ctx, "The cat sat on the mat")
	if len(a) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("local embedder is not deterministic")
		}
	}
	if n := math.Sqrt(dot(a, a)); math.Abs(n-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", n)
	}
	empty, _ := e.EmbedOne(ctx, " ... ")
	if dot(empty, empty) != 0 {
		t.Fatal("expected zero vector for text without words")
	}
}

func TestLocalEmbedderRanksOverlap(t *testing.T) {
	e, _ := NewLocal(256)
	ctx := context.Background()
	vecs, err := e.EmbedMany(ctx, []string{
		"invoices are due thirty days after delivery",
		"the office closes at six on fridays",
	})
	if err != nil {
		t.Fatal(err)
	}
	q, _ := e.EmbedOne(ctx, "when are invoices due")
	if dot(q, vecs[0]) <= dot(q, vecs[1]) {
		t.Fatal("expected overlapping text to score higher")
	}
}

func TestOllamaEmbedManyPreservesOrder(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		calls.Add(1)
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{float64(len(req.Prompt)), 1}})
	}))
	defer server.Close()

	e, err := NewOllama(OllamaOptions{BaseURL: server.URL, Model: "all-minilm", Concurrency: 3})
	if err != nil {
		t.Fatal(err)
	}
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.EmbedMany(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedMany: %v", err)
	}
	for i, v := range vecs {
		if int(v[0]) != len(texts[i]) {
			t.Fatalf("vector %d out of order: %v", i, v)
		}
	}
	if calls.Load() != int32(len(texts)) {
		t.Fatalf("expected %d calls, got %d", len(texts), calls.Load())
	}
}

func TestOllamaErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	e, _ := NewOllama(OllamaOptions{BaseURL: server.URL, Model: "missing"})
	_, err := e.EmbedOne(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "404") || !strings.Contains(got, "model not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestEmbeddersLogOutboundRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/embeddings" {
			_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"embedding":[1,0]}`))
	}))
	defer server.Close()
	buf := captureLog(t)

	ollama, err := NewOllama(OllamaOptions{BaseURL: server.URL, Model: "all-minilm"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ollama.EmbedOne(context.Background(), "refund policy"); err != nil {
		t.Fatalf("ollama EmbedOne: %v", err)
	}
	openai, err := NewOpenAI(OpenAIOptions{BaseURL: server.URL, Model: "text-embedding-3-small"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := openai.EmbedOne(context.Background(), "shipping times"); err != nil {
		t.Fatalf("openai EmbedOne: %v", err)
	}

	got := buf.String()
	for _, want := range []string{
		"[RAGBOT->EMBED] endpoint=" + server.URL + "/api/embeddings model=all-minilm",
		"refund policy",
		"[RAGBOT->EMBED] endpoint=" + server.URL + "/v1/embeddings model=text-embedding-3-small",
		"shipping times",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in log output:\n%s", want, got)
		}
	}
}

func TestOpenAIBatchesAndReorders(t *testing.T) {
	var batches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer header")
		}
		batches.Add(1)
		var req openAIEmbeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float64{float64(len(req.Input[i]))}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer server.Close()

	e, _ := NewOpenAI(OpenAIOptions{BaseURL: server.URL, APIKey: "key", Model: "m", BatchSize: 2})
	texts := []string{"a", "bb", "ccc"}
	vecs, err := e.EmbedMany(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedMany: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if int(v[0]) != len(texts[i]) {
			t.Fatalf("vector %d out of order: %v", i, v)
		}
	}
	if batches.Load() != 2 {
		t.Fatalf("expected 2 batches, got %d", batches.Load())
	}
}

type fixedEmbedder struct {
	model    string
	provider string
	dim      int
}

func (f fixedEmbedder) Dimension() int { return 0 }
func (f fixedEmbedder) Model() string  { return f.model }
func (f fixedEmbedder) Provider() string {
	if f.provider == "" {
		return "fixed"
	}
	return f.provider
}
func (f fixedEmbedder) EmbedOne(context.Context, string) ([]float32, error) {
	return make([]float32, f.dim), nil
}
func (f fixedEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func TestPinRecordsAndEnforcesDimension(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	pinned, err := Pin(ctx, fixedEmbedder{model: "org/model", dim: 8}, dir)
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if pinned.Dimension() != 8 {
		t.Fatalf("expected measured dimension 8, got %d", pinned.Dimension())
	}
	if _, err := os.Stat(ManifestPath(dir, "org/model")); err != nil {
		t.Fatalf("expected manifest: %v", err)
	}

	if _, err := Pin(ctx, fixedEmbedder{model: "org/model", dim: 16}, dir); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestPinRejectsProviderSwap(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	if _, err := Pin(ctx, fixedEmbedder{model: "all-minilm", provider: "local", dim: 8}, dir); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	raw, err := os.ReadFile(ManifestPath(dir, "all-minilm"))
	if err != nil {
		t.Fatal(err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m.Provider != "local" || m.Dimension != 8 {
		t.Fatalf("unexpected manifest %+v", m)
	}

	_, err = Pin(ctx, fixedEmbedder{model: "all-minilm", provider: "openai", dim: 8}, dir)
	if !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch for a new backend under the same model, got %v", err)
	}
}

func TestLocalModelID(t *testing.T) {
	e, err := NewLocal(384)
	if err != nil {
		t.Fatal(err)
	}
	if e.Model() != "local-hashing-384" || e.Model() != LocalModelID(384) {
		t.Fatalf("unexpected local model id %q", e.Model())
	}
	if e.Provider() != "local" {
		t.Fatalf("unexpected provider %q", e.Provider())
	}
	if _, err := NewLocal(0); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

type driftingEmbedder struct{ fixedEmbedder }

func (d driftingEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, d.dim+1)
	}
	return out, nil
}

func TestPinnedRejectsWrongLength(t *testing.T) {
	e, err := Pin(context.Background(), driftingEmbedder{fixedEmbedder{model: "m", dim: 4}}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.EmbedMany(context.Background(), []string{"x"}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}
