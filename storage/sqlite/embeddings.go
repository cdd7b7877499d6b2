package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository for SQLite.
type EmbeddingRepository struct {
	repository
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(backend *Backend) *EmbeddingRepository {
	return &EmbeddingRepository{repository{backend: backend}}
}

// PutEmbeddings stores or replaces vectors.
func (r *EmbeddingRepository) PutEmbeddings(ctx context.Context, embeddings ...*core.Embedding) error {
	return r.backend.WithTransaction(ctx, func(ctx context.Context) error {
		conn, err := r.backend.conn(ctx)
		if err != nil {
			return err
		}
		now := formatTime(time.Now())
		for _, e := range embeddings {
			if len(e.Vector) == 0 {
				return fmt.Errorf("%w: empty vector for %s", storage.ErrInvalidQuery, e.QuestionID)
			}
			_, err := conn.ExecContext(ctx, `
				INSERT INTO embeddings (question_id, vector, model, created_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(question_id) DO UPDATE SET
					vector = excluded.vector,
					model = excluded.model,
					created_at = excluded.created_at
			`, e.QuestionID, storage.MarshalVector(e.Vector), e.Model, now)
			if err != nil {
				return fmt.Errorf("store embedding %s: %w", e.QuestionID, err)
			}
		}
		return nil
	})
}

// GetEmbedding returns the raw blob stored for a question.
func (r *EmbeddingRepository) GetEmbedding(ctx context.Context, questionID string) ([]byte, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	var blob []byte
	err = conn.QueryRowContext(ctx, `SELECT vector FROM embeddings WHERE question_id = ?`, questionID).Scan(&blob)
	if err != nil {
		return nil, notFound(err, "embedding %s", questionID)
	}
	return blob, nil
}

// ScanEmbeddings calls fn for every stored vector in ascending question ID order.
// fn runs while the result set is open and must not call back into the store.
func (r *EmbeddingRepository) ScanEmbeddings(ctx context.Context, fn func(questionID string, blob []byte) error) error {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return err
	}
	rows, err := conn.QueryContext(ctx, `SELECT question_id, vector FROM embeddings ORDER BY question_id`)
	if err != nil {
		return fmt.Errorf("scan embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return err
		}
		if err := fn(id, blob); err != nil {
			return err
		}
	}
	return rows.Err()
}

// EmbeddingIDs returns the IDs of every question with a stored vector.
func (r *EmbeddingRepository) EmbeddingIDs(ctx context.Context) ([]string, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `SELECT question_id FROM embeddings ORDER BY question_id`)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	return scanStrings(rows)
}
