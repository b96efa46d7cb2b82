// Package pipeline assembles the loader, chunker, embedder, vector store,
// registry and synthesizer from one configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwiater/ragbot/internal/appconfig"
	"github.com/mwiater/ragbot/internal/chunker"
	"github.com/mwiater/ragbot/internal/embedding"
	"github.com/mwiater/ragbot/internal/loader"
	"github.com/mwiater/ragbot/internal/logging"
	"github.com/mwiater/ragbot/internal/registry"
	"github.com/mwiater/ragbot/internal/synth"
	"github.com/mwiater/ragbot/internal/vectorstore"
)

// Pipeline is a fully wired question-answering stack.
type Pipeline struct {
	cfg         appconfig.Config
	embedder    embedding.Embedder
	store       *vectorstore.Store
	registry    *registry.Registry
	synthesizer *synth.Synthesizer
}

// Option overrides a component built by New.
type Option func(*options)

type options struct {
	embedder embedding.Embedder
	client   synth.CompletionClient
}

// WithEmbedder uses e instead of the configured embedding provider.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithCompletionClient uses c instead of the configured remote model.
func WithCompletionClient(c synth.CompletionClient) Option {
	return func(o *options) { o.client = c }
}

// New builds a Pipeline from cfg.
func New(ctx context.Context, cfg appconfig.Config, opts ...Option) (*Pipeline, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	splitter, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("configure chunker: %w", err)
	}

	emb := o.embedder
	if emb == nil {
		emb, err = NewEmbedder(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("configure embeddings: %w", err)
		}
	}
	client := o.client
	if client == nil {
		client = NewCompletionClient(cfg)
	}

	store := vectorstore.Open(cfg.PersistFolder)
	return &Pipeline{
		cfg:         cfg,
		embedder:    emb,
		store:       store,
		registry:    registry.New(store, loader.NewFileExtractor(), splitter, emb),
		synthesizer: synth.New(client, cfg.RAGTopK),
	}, nil
}

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() appconfig.Config { return p.cfg }

// Registry exposes the document registry.
func (p *Pipeline) Registry() *registry.Registry { return p.registry }

// Synthesizer exposes the answer synthesizer.
func (p *Pipeline) Synthesizer() *synth.Synthesizer { return p.synthesizer }

// OpenDocument returns the index for path, building it when needed. An empty
// document yields a nil Searcher and no error; queries against it report the
// store as not initialized.
func (p *Pipeline) OpenDocument(ctx context.Context, path string) (synth.Searcher, error) {
	idx, err := p.registry.Ensure(ctx, path)
	if errors.Is(err, registry.ErrEmptyDocument) {
		logging.LogWarning("No index available for %s; queries will fail until the document has text", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Rebuild discards any stored index for path and builds a fresh one.
func (p *Pipeline) Rebuild(ctx context.Context, path string) (*vectorstore.Index, error) {
	if err := p.registry.Drop(path); err != nil {
		return nil, fmt.Errorf("drop index: %w", err)
	}
	return p.registry.Ensure(ctx, path)
}

// Ask answers question against the configured document.
func (p *Pipeline) Ask(ctx context.Context, question string) (synth.Answer, error) {
	idx, err := p.OpenDocument(ctx, p.cfg.DocumentPath)
	if err != nil {
		return synth.Answer{}, err
	}
	return p.synthesizer.Answer(ctx, question, idx)
}

// Close releases all open indexes.
func (p *Pipeline) Close() error {
	return p.registry.Close()
}
