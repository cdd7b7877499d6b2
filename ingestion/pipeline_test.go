package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/poiesic/masterdb/ai"
	"github.com/poiesic/masterdb/ai/mock"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
	"github.com/poiesic/masterdb/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	calls atomic.Int64
}

func (c *countingInvalidator) Invalidate() { c.calls.Add(1) }

func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewPipeline_Validation(t *testing.T) {
	s := setupTestStore(t)
	provider := mock.NewMockProvider()

	_, err := NewPipeline(nil, s.Embeddings, provider)
	assert.ErrorIs(t, err, ErrQuestionRepositoryRequired)

	_, err = NewPipeline(s.Questions, nil, provider)
	assert.ErrorIs(t, err, ErrEmbeddingRepositoryRequired)

	_, err = NewPipeline(s.Questions, s.Embeddings, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestPipeline_Ingest(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	provider := mock.NewMockProvider()
	classifier := provider.(*mock.MockProvider).GetMockClassifier()
	classifier.Labels["리더는 비전을 제시한다"] = ai.Classification{Mid: "리더십", Sub: "목표/전략"}

	inv := &countingInvalidator{}
	p, err := NewPipeline(s.Questions, s.Embeddings, provider,
		WithPoolSize(2), WithBatchSize(2), WithEmbeddingModel("bge-m3"), WithInvalidator(inv))
	require.NoError(t, err)
	defer p.Release()

	added, err := p.Ingest(ctx,
		&core.Question{ID: "Q_00001", Text: "리더는 비전을 제시한다", Category: core.CategoryLeadership},
		&core.Question{ID: "Q_00002", Text: "보상이 공정하다", Category: core.CategoryOrganizational},
		&core.Question{ID: "Q_00003", Text: "팀워크가 좋다", Category: core.CategoryOrganizational,
			LegacyMid: "조직/프로세스", LegacySub: "부서간협력"},
	)
	require.NoError(t, err)
	require.Len(t, added, 3)
	require.NoError(t, p.Wait())

	ids, err := s.Embeddings.EmbeddingIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q_00001", "Q_00002", "Q_00003"}, ids)

	blob, err := s.Embeddings.GetEmbedding(ctx, "Q_00001")
	require.NoError(t, err)
	v, err := storage.UnmarshalVector(blob, mock.DefaultDimension)
	require.NoError(t, err)
	assert.Len(t, v, mock.DefaultDimension)
	assert.EqualValues(t, 2, inv.calls.Load(), "one invalidation per embedding batch")

	q1, err := s.Questions.GetQuestion(ctx, "Q_00001")
	require.NoError(t, err)
	assert.Equal(t, "리더십", q1.LegacyMid)
	assert.Equal(t, "목표/전략", q1.LegacySub)

	q2, err := s.Questions.GetQuestion(ctx, "Q_00002")
	require.NoError(t, err)
	assert.Empty(t, q2.LegacyMid, "unclassified labels are not stored")

	q3, err := s.Questions.GetQuestion(ctx, "Q_00003")
	require.NoError(t, err)
	assert.Equal(t, "조직/프로세스", q3.LegacyMid, "existing legacy categories are kept")
}

func TestPipeline_ClassificationDisabled(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	provider := mock.NewMockProvider()
	classifier := provider.(*mock.MockProvider).GetMockClassifier()

	p, err := NewPipeline(s.Questions, s.Embeddings, provider, WithClassification(false))
	require.NoError(t, err)
	defer p.Release()

	_, err = p.Ingest(ctx, &core.Question{ID: "Q1", Text: "text", Category: core.CategoryDirector})
	require.NoError(t, err)
	require.NoError(t, p.Wait())

	assert.Zero(t, classifier.CallCount())
}

func TestPipeline_EmbeddingErrorsAreCollected(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service unavailable")
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockClassifier())

	p, err := NewPipeline(s.Questions, s.Embeddings, provider, WithBatchSize(1))
	require.NoError(t, err)
	defer p.Release()

	questions := make([]*core.Question, 3)
	for i := range questions {
		questions[i] = &core.Question{ID: fmt.Sprintf("Q%d", i), Text: "text", Category: core.CategoryOrganizational}
	}
	_, err = p.Ingest(ctx, questions...)
	require.NoError(t, err, "async failures do not fail ingestion")

	err = p.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service unavailable")
	assert.NoError(t, p.Wait(), "errors are reported once")

	ids, err := s.Embeddings.EmbeddingIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPipeline_ResultMismatch(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockClassifier())

	p, err := NewPipeline(s.Questions, s.Embeddings, provider, WithClassification(false))
	require.NoError(t, err)
	defer p.Release()

	_, err = p.Ingest(ctx,
		&core.Question{ID: "Q1", Text: "a", Category: core.CategoryOrganizational},
		&core.Question{ID: "Q2", Text: "b", Category: core.CategoryOrganizational},
	)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Wait(), ErrResultMismatch)
}

func TestPipeline_InvalidQuestionRejected(t *testing.T) {
	s := setupTestStore(t)
	p, err := NewPipeline(s.Questions, s.Embeddings, mock.NewMockProvider())
	require.NoError(t, err)
	defer p.Release()

	_, err = p.Ingest(context.Background(), &core.Question{ID: "Q1", Text: "", Category: core.CategoryOrganizational})
	assert.ErrorIs(t, err, core.ErrInvalidQuestion)
	assert.NoError(t, p.Wait())
}
