package ai

import "context"

// Embedder generates vector embeddings from question text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Classifier assigns the advisory legacy mid/sub categories to question text.
// Implementations must be thread-safe for concurrent use.
type Classifier interface {
	// Classify labels a single question. Labels the model cannot place are
	// returned as Unclassified rather than as an error.
	Classify(ctx context.Context, text string) (Classification, error)

	// ClassifyTexts labels several questions in one request.
	// The result has the same length and order as texts.
	ClassifyTexts(ctx context.Context, texts []string) ([]Classification, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Classifier returns the legacy category classifier.
	Classifier() Classifier

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
