package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/masterdb/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionIterator_ForEach(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	addQuestions(t, s, 5, core.CategoryOrganizational)

	ids := []string{"OD_00", "OD_01", "OD_02", "OD_03", "OD_04"}

	tests := []struct {
		name      string
		batchSize int
		wantSizes []int
	}{
		{"single batch", 10, []int{5}},
		{"exact batches", 5, []int{5}},
		{"partial last batch", 2, []int{2, 2, 1}},
		{"default batch size", 0, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewQuestionIterator(s.Questions, tt.batchSize)
			var sizes []int
			var seen []string
			err := it.ForEach(ctx, ids, func(batch []*core.Question) error {
				sizes = append(sizes, len(batch))
				for _, q := range batch {
					seen = append(seen, q.ID)
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSizes, sizes)
			assert.Equal(t, ids, seen)
		})
	}
}

func TestQuestionIterator_SkipsMissing(t *testing.T) {
	s := setupTestStore(t)
	addQuestions(t, s, 1, core.CategoryOrganizational)

	it := NewQuestionIterator(s.Questions, 1)
	var seen []string
	err := it.ForEach(context.Background(), []string{"gone", "OD_00", "also-gone"}, func(batch []*core.Question) error {
		for _, q := range batch {
			seen = append(seen, q.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"OD_00"}, seen)
}

func TestQuestionIterator_Stops(t *testing.T) {
	s := setupTestStore(t)
	addQuestions(t, s, 4, core.CategoryOrganizational)
	ids := []string{"OD_00", "OD_01", "OD_02", "OD_03"}
	it := NewQuestionIterator(s.Questions, 1)

	t.Run("callback error", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := it.ForEach(context.Background(), ids, func([]*core.Question) error {
			calls++
			if calls == 2 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, calls)
	})

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := it.ForEach(ctx, ids, func([]*core.Question) error {
			calls++
			cancel()
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
