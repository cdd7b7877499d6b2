package sqlite

import "fmt"

// Store bundles every SQLite repository over one backend.
type Store struct {
	Backend    *Backend
	Questions  *QuestionRepository
	Embeddings *EmbeddingRepository
	Masters    *MasterRepository
	Taxonomy   *TaxonomyRepository
	Tags       *TagRepository
}

// Open opens the database at path and builds all repositories.
func Open(path string) (*Store, error) {
	backend, err := OpenBackend(path)
	if err != nil {
		return nil, err
	}
	return newStore(backend), nil
}

// NewMemoryStore opens an in-memory store for testing.
// Caller must Close the store when done.
func NewMemoryStore() (*Store, error) {
	backend, err := OpenBackend(MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	return newStore(backend), nil
}

func newStore(backend *Backend) *Store {
	return &Store{
		Backend:    backend,
		Questions:  NewQuestionRepository(backend),
		Embeddings: NewEmbeddingRepository(backend),
		Masters:    NewMasterRepository(backend),
		Taxonomy:   NewTaxonomyRepository(backend),
		Tags:       NewTagRepository(backend),
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.Backend.Close()
}
