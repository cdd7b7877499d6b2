package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync/atomic"
)

// DefaultDimension is the length of vectors produced by the default behavior.
const DefaultDimension = 64

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, each text is embedded with EmbedText.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// Vectors pins the vector returned for an exact text.
	Vectors map[string][]float32

	// Dimension of generated vectors. Zero means DefaultDimension.
	Dimension int

	callCount atomic.Int64
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Returns the concrete type so tests can inject behavior and inspect calls.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Vectors: make(map[string][]float32)}
}

// EmbedText returns the pinned vector for text or a deterministic one derived from its hash.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return m.vectorFor(text), nil
}

// EmbedTexts embeds each text in order.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if m.EmbedTextFunc != nil {
			v, err := m.EmbedTextFunc(ctx, text)
			if err != nil {
				return nil, err
			}
			out[i] = v
			continue
		}
		out[i] = m.vectorFor(text)
	}
	return out, nil
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
	m.Vectors = make(map[string][]float32)
}

func (m *MockEmbedder) vectorFor(text string) []float32 {
	if v, ok := m.Vectors[text]; ok {
		return v
	}
	dim := m.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	return generateDeterministicVector(text, dim)
}

// generateDeterministicVector creates a unit vector from the FNV hash of text,
// so the same text always produces the same vector.
func generateDeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	var sumSquares float64
	for i := range vector {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 + 0.001
		sumSquares += float64(vector[i]) * float64(vector[i])
	}

	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}
