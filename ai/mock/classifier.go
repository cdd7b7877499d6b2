package mock

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/masterdb/ai"
)

// MockClassifier is a test double for ai.Classifier.
// It allows custom behavior injection via function fields.
type MockClassifier struct {
	// ClassifyFunc is called for every text if set.
	// If nil, Labels is consulted.
	ClassifyFunc func(ctx context.Context, text string) (ai.Classification, error)

	// Labels pins the classification returned for an exact text.
	// Texts not present are unclassified.
	Labels map[string]ai.Classification

	callCount atomic.Int64
}

// NewMockClassifier creates a mock classifier that labels nothing by default.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{Labels: make(map[string]ai.Classification)}
}

// Classify labels a single text.
func (m *MockClassifier) Classify(ctx context.Context, text string) (ai.Classification, error) {
	m.callCount.Add(1)
	return m.classify(ctx, text)
}

// ClassifyTexts labels each text in order.
func (m *MockClassifier) ClassifyTexts(ctx context.Context, texts []string) ([]ai.Classification, error) {
	m.callCount.Add(1)

	out := make([]ai.Classification, len(texts))
	for i, text := range texts {
		c, err := m.classify(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (m *MockClassifier) classify(ctx context.Context, text string) (ai.Classification, error) {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text)
	}
	if c, ok := m.Labels[text]; ok {
		return c, nil
	}
	return ai.Classification{Mid: ai.Unclassified, Sub: ai.Unclassified}, nil
}

// CallCount returns the number of times any method was called.
func (m *MockClassifier) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockClassifier) Reset() {
	m.callCount.Store(0)
	m.ClassifyFunc = nil
	m.Labels = make(map[string]ai.Classification)
}
