package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/masterdb/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder over an OpenAI-compatible embeddings endpoint.
type Embedder struct {
	embedder  embeddings.Embedder
	dimension int
	logger    *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.EmbeddingBatchSize),
	)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:  embedder,
		dimension: config.Dimension,
		logger:    slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder creates an embedder for config.EmbeddingModel.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds one question text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, cleanText(text))
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}
	if err := e.checkDimension(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedTexts embeds texts in requests of the configured batch size.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("generating embeddings", "count", len(texts))

	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = cleanText(t)
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, cleaned)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for _, v := range vectors {
		if err := e.checkDimension(v); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

func (e *Embedder) checkDimension(v []float32) error {
	if e.dimension > 0 && len(v) != e.dimension {
		return fmt.Errorf("%w: got %d, want %d", ai.ErrUnexpectedDimension, len(v), e.dimension)
	}
	return nil
}
