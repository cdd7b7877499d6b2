package vectors

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// Skipped records a vector that could not be loaded.
type Skipped struct {
	QuestionID string
	Err        error
}

// Store caches normalized question vectors.
type Store struct {
	repo   storage.EmbeddingRepository
	dim    int
	logger *slog.Logger

	mu      sync.RWMutex
	snap    *Snapshot
	skipped []Skipped
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "vectors")
		return nil
	}
}

// WithDimension fixes the expected vector dimension D.
// Zero accepts any whole number of float32 values.
func WithDimension(dim int) Option {
	return func(s *Store) error {
		if dim < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
		}
		s.dim = dim
		return nil
	}
}

// NewStore creates a vector store over an embedding repository.
// Nothing is read until Load is called.
func NewStore(repo storage.EmbeddingRepository, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	s := &Store{
		repo:   repo,
		logger: slog.Default().With("component", "vectors"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Load reads all vectors into the cache. It is a no-op once the cache is
// populated; call Invalidate first to force a reload.
func (s *Store) Load(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.snap != nil
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil {
		return nil
	}

	b := newBuilder(s.dim)
	var skipped []Skipped
	err := s.repo.ScanEmbeddings(ctx, func(id string, blob []byte) error {
		v, err := storage.UnmarshalVector(blob, s.dim)
		if err != nil {
			s.logger.Warn("skipping malformed vector", "question_id", id, "bytes", len(blob), "err", err)
			skipped = append(skipped, Skipped{QuestionID: id, Err: err})
			return nil
		}
		ok, err := b.add(id, v)
		if err != nil {
			s.logger.Warn("skipping vector of unexpected length", "question_id", id, "err", err)
			skipped = append(skipped, Skipped{QuestionID: id, Err: err})
			return nil
		}
		if !ok {
			s.logger.Warn("zero vector has no direction", "question_id", id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}

	s.snap = b.snapshot()
	s.skipped = skipped
	s.logger.Info("vectors loaded", "count", s.snap.Len(), "skipped", len(skipped), "dimension", s.snap.Dimension())
	return nil
}

// Loaded reports whether the cache is populated.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap != nil
}

// Invalidate drops the cache. The next Load rereads every vector.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = nil
	s.skipped = nil
}

// Snapshot returns the cached vectors. Before Load it returns an empty snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return emptySnapshot
	}
	return s.snap
}

// Skipped returns the vectors rejected by the last Load.
func (s *Store) Skipped() []Skipped {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Skipped, len(s.skipped))
	copy(out, s.skipped)
	return out
}

// Len returns the number of cached vectors, zero vectors included.
func (s *Store) Len() int {
	return s.Snapshot().Len()
}

// Dimension returns the configured dimension, or the dimension of the
// first cached vector when none was configured.
func (s *Store) Dimension() int {
	if s.dim > 0 {
		return s.dim
	}
	return s.Snapshot().Dimension()
}

// Lookup returns the cached unit vector of a question.
// Returns false if the question has no usable cached vector.
func (s *Store) Lookup(questionID string) ([]float32, bool) {
	return s.Snapshot().Lookup(questionID)
}

// Get reads one vector straight from the repository, bypassing the cache.
// The vector is returned as stored, without normalization. A missing vector
// is storage.ErrNotFound; a malformed blob is storage.ErrCorruptVector.
func (s *Store) Get(ctx context.Context, questionID string) ([]float32, error) {
	blob, err := s.repo.GetEmbedding(ctx, questionID)
	if err != nil {
		return nil, err
	}
	v, err := storage.UnmarshalVector(blob, s.dim)
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", questionID, err)
	}
	return v, nil
}

// Points returns the cached (ID, unit vector) pairs for the given IDs in the
// order given, and the IDs that have no cached vector.
// Zero vectors are returned as-is so callers can report them.
func (s *Store) Points(ids []string) (found []core.Embedding, missing []string) {
	snap := s.Snapshot()
	for _, id := range ids {
		i, ok := snap.Index(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		found = append(found, core.Embedding{QuestionID: id, Vector: snap.Vector(i)})
	}
	return found, missing
}
