// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

const (
	// DefaultBatchSize is the default number of questions to fetch in each batch
	DefaultBatchSize = 100
)

// QuestionIterator loads questions in batches from a fixed list of IDs.
type QuestionIterator struct {
	repo      storage.QuestionRepository
	batchSize int
}

// NewQuestionIterator creates an iterator. A non-positive batchSize means DefaultBatchSize.
func NewQuestionIterator(repo storage.QuestionRepository, batchSize int) *QuestionIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &QuestionIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn with each batch of questions, in the order of ids.
// IDs that no longer exist are dropped from their batch; empty batches are skipped.
// Iteration stops at the first error from fn or when ctx is done.
func (it *QuestionIterator) ForEach(ctx context.Context, ids []string, fn func([]*core.Question) error) error {
	for start := 0; start < len(ids); start += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := ids[start:min(start+it.batchSize, len(ids))]
		questions, err := it.repo.GetQuestions(ctx, batch...)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			continue
		}

		if err := fn(questions); err != nil {
			return err
		}
	}

	return nil
}
