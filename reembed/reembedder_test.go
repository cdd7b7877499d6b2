package reembed

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/poiesic/masterdb/ai/mock"
	"github.com/poiesic/masterdb/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	calls atomic.Int64
}

func (c *countingInvalidator) Invalidate() { c.calls.Add(1) }

func testConfig() *Config {
	return &Config{BatchSize: 3, ReportInterval: 3, Retry: fastRetry()}
}

func TestNewReembedder_Validation(t *testing.T) {
	s := setupTestStore(t)

	_, err := NewReembedder(nil, s.Embeddings, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewReembedder(s.Questions, nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewReembedder(s.Questions, s.Embeddings, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestReembedder_Run(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	addQuestions(t, s, 5, core.CategoryOrganizational, core.CategoryDirector)

	var buf bytes.Buffer
	inv := &countingInvalidator{}
	r, err := NewReembedder(s.Questions, s.Embeddings, mock.NewMockEmbedder(),
		WithConfig(testConfig()), WithProgress(&buf), WithModel("bge-m3"), WithInvalidator(inv))
	require.NoError(t, err)

	result, err := r.Run(ctx, ModeAll)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Embedded)
	assert.Equal(t, []core.Category{core.CategoryDirector, core.CategoryOrganizational}, result.Categories)
	assert.EqualValues(t, 1, inv.calls.Load())

	ids, err := s.Embeddings.EmbeddingIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 10)

	output := buf.String()
	assert.Contains(t, output, "10/10")
	assert.Contains(t, output, "Embedding complete")
}

func TestReembedder_ModeMissing(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	addQuestions(t, s, 2, core.CategoryOrganizational, core.CategoryLeadership)

	require.NoError(t, s.Embeddings.PutEmbeddings(ctx,
		&core.Embedding{QuestionID: "OD_00", Vector: []float32{1, 0}},
		&core.Embedding{QuestionID: "OD_01", Vector: []float32{0, 1}},
	))

	embedder := mock.NewMockEmbedder()
	r, err := NewReembedder(s.Questions, s.Embeddings, embedder, WithConfig(testConfig()))
	require.NoError(t, err)

	result, err := r.Run(ctx, ModeMissing)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Embedded)
	assert.Equal(t, []core.Category{core.CategoryLeadership}, result.Categories)

	t.Run("nothing left", func(t *testing.T) {
		before := embedder.CallCount()
		result, err := r.Run(ctx, ModeMissing)
		require.NoError(t, err)
		assert.Zero(t, result.Embedded)
		assert.Empty(t, result.Categories)
		assert.Equal(t, before, embedder.CallCount())
	})
}

func TestReembedder_EmptyDatabase(t *testing.T) {
	s := setupTestStore(t)

	var buf bytes.Buffer
	inv := &countingInvalidator{}
	r, err := NewReembedder(s.Questions, s.Embeddings, mock.NewMockEmbedder(),
		WithProgress(&buf), WithInvalidator(inv))
	require.NoError(t, err)

	result, err := r.Run(context.Background(), ModeAll)
	require.NoError(t, err)
	assert.Zero(t, result.Embedded)
	assert.Zero(t, inv.calls.Load())
	assert.Contains(t, buf.String(), "No questions to embed")
}

func TestReembedder_PartialFailure(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	addQuestions(t, s, 3, core.CategoryOrganizational, core.CategoryLeadership)

	batches := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		batches++
		if batches > 1 {
			return nil, errors.New("quota exceeded")
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 1}
		}
		return out, nil
	}

	inv := &countingInvalidator{}
	r, err := NewReembedder(s.Questions, s.Embeddings, embedder,
		WithConfig(testConfig()), WithInvalidator(inv))
	require.NoError(t, err)

	result, err := r.Run(ctx, ModeAll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	require.NotNil(t, result)
	assert.Equal(t, 3, result.Embedded, "first batch was stored")
	assert.Equal(t, []core.Category{core.CategoryOrganizational}, result.Categories)
	assert.EqualValues(t, 1, inv.calls.Load(), "stored vectors still invalidate the cache")
}
