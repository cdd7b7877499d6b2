package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository for BadgerDB.
type EmbeddingRepository struct {
	backend *Backend
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(backend *Backend) (storage.EmbeddingRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", storage.ErrInvalidQuery)
	}
	return &EmbeddingRepository{
		backend: backend,
	}, nil
}

// Close releases resources. EmbeddingRepository has no resources to release.
func (r *EmbeddingRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EmbeddingRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// PutEmbeddings stores or replaces vectors. Outside a caller transaction,
// large batches are committed in several transactions.
func (r *EmbeddingRepository) PutEmbeddings(ctx context.Context, embeddings ...*core.Embedding) error {
	for _, e := range embeddings {
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: empty vector for %s", storage.ErrInvalidQuery, e.QuestionID)
		}
	}

	if inTransaction(ctx) {
		return r.backend.WithTx(ctx, func(tx *badger.Txn) error {
			for _, e := range embeddings {
				if err := setEmbedding(tx, e); err != nil {
					return err
				}
			}
			return nil
		}, true)
	}

	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := r.backend.db.NewTransaction(true)
	defer func() { tx.Discard() }()
	for _, e := range embeddings {
		err := setEmbedding(tx, e)
		if isTxnTooBig(err) {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
			}
			tx = r.backend.db.NewTransaction(true)
			err = setEmbedding(tx, e)
		}
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
	}
	return nil
}

// GetEmbedding returns the raw blob stored for a question.
func (r *EmbeddingRepository) GetEmbedding(ctx context.Context, questionID string) ([]byte, error) {
	var blob []byte
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingKey(questionID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: embedding %s", storage.ErrNotFound, questionID)
			}
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// ScanEmbeddings calls fn for every stored vector in ascending question ID order.
func (r *EmbeddingRepository) ScanEmbeddings(ctx context.Context, fn func(questionID string, blob []byte) error) error {
	return r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			id := questionIDFromKey(item.Key())
			blob, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(id, blob); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// EmbeddingIDs returns the IDs of every question with a stored vector.
func (r *EmbeddingRepository) EmbeddingIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			ids = append(ids, questionIDFromKey(iter.Item().Key()))
		}
		return nil
	}, false)
	return ids, err
}

// Model returns the name of the model that produced a question's vector.
func (r *EmbeddingRepository) Model(ctx context.Context, questionID string) (string, error) {
	var model string
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingModelKey(questionID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: embedding model %s", storage.ErrNotFound, questionID)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			model = string(val)
			return nil
		})
	}, false)
	return model, err
}

func setEmbedding(tx *badger.Txn, e *core.Embedding) error {
	if err := tx.Set(makeEmbeddingKey(e.QuestionID), storage.MarshalVector(e.Vector)); err != nil {
		return err
	}
	return tx.Set(makeEmbeddingModelKey(e.QuestionID), []byte(e.Model))
}
