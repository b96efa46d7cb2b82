package pipeline

import (
	"context"
	"fmt"

	"github.com/mwiater/ragbot/internal/appconfig"
	"github.com/mwiater/ragbot/internal/embedding"
	"github.com/mwiater/ragbot/internal/logging"
	"github.com/mwiater/ragbot/internal/synth"
)

// NewEmbedder selects the embedding backend named by the configuration and
// pins its dimension against the model cache folder.
func NewEmbedder(ctx context.Context, cfg appconfig.Config) (embedding.Embedder, error) {
	var (
		emb embedding.Embedder
		err error
	)
	switch cfg.EmbeddingProviderName() {
	case appconfig.ProviderLocal:
		emb, err = embedding.NewLocal(cfg.EmbeddingDimension)
	case appconfig.ProviderOllama:
		emb, err = embedding.NewOllama(embedding.OllamaOptions{
			BaseURL:     cfg.EmbeddingURL,
			Model:       cfg.EmbeddingModel,
			Timeout:     cfg.EmbeddingRequestTimeout(),
			Concurrency: cfg.EmbeddingConcurrency,
		})
	case appconfig.ProviderOpenAI:
		emb, err = embedding.NewOpenAI(embedding.OpenAIOptions{
			BaseURL: cfg.EmbeddingURL,
			APIKey:  cfg.EmbeddingAPIKey,
			Model:   cfg.EmbeddingModel,
			Timeout: cfg.EmbeddingRequestTimeout(),
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbeddingProvider)
	}
	if err != nil {
		return nil, err
	}

	pinned, err := embedding.Pin(ctx, emb, cfg.EmbeddingCacheFolder)
	if err != nil {
		return nil, err
	}
	logging.LogEvent("Embedding provider ready: %s model=%s dim=%d", cfg.EmbeddingProviderName(), pinned.Model(), pinned.Dimension())
	return pinned, nil
}

// NewCompletionClient returns the chat-completions client for the configured
// remote model.
func NewCompletionClient(cfg appconfig.Config) synth.CompletionClient {
	return synth.NewHTTPClient(synth.HTTPClientOptions{
		URL:     cfg.RAGAPIURL,
		APIKey:  cfg.RAGAPIKey,
		Model:   cfg.RAGModel,
		Timeout: cfg.RequestTimeout(),
	})
}
