package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/ragbot/internal/appconfig"
	"github.com/mwiater/ragbot/internal/embedding"
	"github.com/mwiater/ragbot/internal/synth"
)

type recordingClient struct {
	reply    string
	messages []synth.Message
}

func (c *recordingClient) Complete(ctx context.Context, messages []synth.Message) (string, error) {
	c.messages = messages
	return c.reply, nil
}

func testConfig(t *testing.T, document string) appconfig.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := appconfig.Defaults()
	cfg.DocumentPath = filepath.Join(dir, "docs", "handbook.txt")
	cfg.PersistFolder = filepath.Join(dir, "vectorstore")
	cfg.EmbeddingCacheFolder = filepath.Join(dir, "models")
	cfg.EmbeddingProvider = appconfig.ProviderLocal
	cfg.ChunkSize = 80
	cfg.ChunkOverlap = 10
	if err := os.MkdirAll(filepath.Dir(cfg.DocumentPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.DocumentPath, []byte(document), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

const handbook = "Refunds are accepted within ten days of purchase.\n\nShipping takes three business days.\n\nSupport is open on weekdays."

func TestAskUsesDocumentContext(t *testing.T) {
	cfg := testConfig(t, handbook)
	client := &recordingClient{reply: "  Ten days.  "}
	p, err := New(context.Background(), cfg, WithCompletionClient(client))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	answer, err := p.Ask(context.Background(), "How long do refunds take?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Text != "Ten days." {
		t.Fatalf("unexpected answer %q", answer.Text)
	}
	if len(answer.Sources) == 0 {
		t.Fatal("expected sources")
	}
	if len(client.messages) != 2 || !strings.Contains(client.messages[1].Content, "Refunds are accepted") {
		t.Fatalf("document text missing from prompt: %+v", client.messages)
	}
	if _, err := os.Stat(embedding.ManifestPath(cfg.EmbeddingCacheFolder, embedding.LocalModelID(cfg.EmbeddingDimension))); err != nil {
		t.Fatalf("expected embedding manifest: %v", err)
	}
}

func TestAskEmptyDocumentNotInitialized(t *testing.T) {
	cfg := testConfig(t, "   \n\n  ")
	p, err := New(context.Background(), cfg, WithCompletionClient(&recordingClient{reply: "x"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	idx, err := p.OpenDocument(context.Background(), cfg.DocumentPath)
	if err != nil || idx != nil {
		t.Fatalf("expected nil index without error, got %v, %v", idx, err)
	}
	_, err = p.Ask(context.Background(), "anything")
	if !errors.Is(err, synth.ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
}

func TestAskMissingDocument(t *testing.T) {
	cfg := testConfig(t, handbook)
	cfg.DocumentPath = filepath.Join(t.TempDir(), "absent.txt")
	p, err := New(context.Background(), cfg, WithCompletionClient(&recordingClient{reply: "x"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if _, err := p.Ask(context.Background(), "anything"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestRebuild(t *testing.T) {
	cfg := testConfig(t, handbook)
	p, err := New(context.Background(), cfg, WithCompletionClient(&recordingClient{reply: "x"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if _, err := p.OpenDocument(context.Background(), cfg.DocumentPath); err != nil {
		t.Fatal(err)
	}
	idx, err := p.Rebuild(context.Background(), cfg.DocumentPath)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if idx.Len() == 0 {
		t.Fatal("rebuilt index is empty")
	}
	if got := p.Registry().Builds(); got != 2 {
		t.Fatalf("expected 2 builds, got %d", got)
	}
}

func TestNewEmbedderUnsupported(t *testing.T) {
	cfg := appconfig.Defaults()
	cfg.EmbeddingProvider = "word2vec"
	if _, err := NewEmbedder(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
