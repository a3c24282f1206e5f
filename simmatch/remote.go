package simmatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIBackend requests embeddings from an OpenAI-compatible endpoint.
type OpenAIBackend struct {
	embedder embeddings.Embedder
}

// NewOpenAIBackend creates the langchaingo client for cfg.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai backend requires OPENAI_API_KEY")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 256
	}
	embedder, err := embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(batch),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &OpenAIBackend{embedder: embedder}, nil
}

// Encode embeds texts in batches.
func (b *OpenAIBackend) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	return b.embedder.EmbedDocuments(ctx, texts)
}

func (b *OpenAIBackend) Close() error { return nil }
