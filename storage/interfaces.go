package storage

import (
	"context"

	"github.com/poiesic/masterdb/core"
)

// TransactionManager provides transactional execution shared by the repositories.
// Implementations must be thread-safe and support concurrent access.
type TransactionManager interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn carries the transaction; repository calls
	// made with that context join it.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// QuestionRepository provides operations for managing survey questions.
// Cluster and master columns are only written through MasterRepository.
type QuestionRepository interface {
	TransactionManager

	// AddQuestions inserts questions or updates the text, category and legacy
	// categories of existing ones. Cluster state of existing questions is kept.
	AddQuestions(ctx context.Context, questions ...*core.Question) ([]*core.Question, error)

	// GetQuestion retrieves a single question by ID.
	// Returns ErrNotFound if the question doesn't exist.
	GetQuestion(ctx context.Context, id string) (*core.Question, error)

	// GetQuestions retrieves multiple questions by their IDs.
	// Returns only the questions that exist, ordered by ID.
	GetQuestions(ctx context.Context, ids ...string) ([]*core.Question, error)

	// QuestionIDsByCategory returns every question ID of a category in ascending order.
	QuestionIDsByCategory(ctx context.Context, category core.Category) ([]string, error)

	// QuestionsByMaster returns all questions sharing a master ID,
	// representative first, then ascending question ID.
	QuestionsByMaster(ctx context.Context, masterID string) ([]*core.Question, error)

	// SearchText returns questions whose text contains keyword, optionally
	// restricted to one category. An empty category matches all.
	SearchText(ctx context.Context, keyword string, category core.Category, limit int) ([]*core.Question, error)

	// UnclassifiedQuestions returns questions without a legacy mid category,
	// counting core.LegacyUnclassified as none.
	// limit <= 0 returns all of them.
	UnclassifiedQuestions(ctx context.Context, limit int) ([]*core.Question, error)

	// UpdateLegacyCategories sets the advisory legacy categories of a question.
	// Returns ErrNotFound if the question doesn't exist.
	UpdateLegacyCategories(ctx context.Context, id, mid, sub string) error

	// Statistics reports row counts across the store.
	Statistics(ctx context.Context) (*core.Statistics, error)
}

// EmbeddingRepository stores one vector blob per question.
// Vectors are written with MarshalVector and returned as raw blobs so readers
// can validate them against the expected dimension.
type EmbeddingRepository interface {
	TransactionManager

	// PutEmbeddings stores or replaces the vectors of the given questions.
	PutEmbeddings(ctx context.Context, embeddings ...*core.Embedding) error

	// GetEmbedding returns the raw blob stored for a question.
	// Returns ErrNotFound if no vector is stored.
	GetEmbedding(ctx context.Context, questionID string) ([]byte, error)

	// ScanEmbeddings calls fn for every stored vector in ascending question ID order.
	// Iteration stops at the first error returned by fn.
	ScanEmbeddings(ctx context.Context, fn func(questionID string, blob []byte) error) error

	// EmbeddingIDs returns the IDs of every question with a stored vector, ascending.
	EmbeddingIDs(ctx context.Context) ([]string, error)
}

// MasterRepository owns the cluster and master state of each category.
type MasterRepository interface {
	TransactionManager

	// ReplaceCategory supersedes every cluster and master row of the
	// consolidation's category with its contents, and records the run.
	// Either all rows change or none do.
	ReplaceCategory(ctx context.Context, consolidation *core.Consolidation) error

	// GetMaster retrieves a master question by ID.
	// Returns ErrNotFound if the master doesn't exist.
	GetMaster(ctx context.Context, masterID string) (*core.MasterQuestion, error)

	// MastersByCategory returns the masters of a category ordered by master ID.
	MastersByCategory(ctx context.Context, category core.Category) ([]*core.MasterQuestion, error)

	// LastRun returns the most recent consolidation run recorded for a category,
	// without masters or assignments. Returns ErrNotFound if none exists.
	LastRun(ctx context.Context, category core.Category) (*core.Consolidation, error)
}

// TaxonomyRepository manages the controlled vocabulary.
type TaxonomyRepository interface {
	TransactionManager

	// AddTerms inserts new terms and populates their IDs.
	// Returns ErrDuplicateKey if a term text already exists.
	AddTerms(ctx context.Context, terms ...*core.TaxonomyTerm) ([]*core.TaxonomyTerm, error)

	// GetTerm retrieves a term by ID.
	// Returns ErrNotFound if the term doesn't exist.
	GetTerm(ctx context.Context, id int64) (*core.TaxonomyTerm, error)

	// FindTerm retrieves a term by its exact text.
	// Returns ErrNotFound if the term doesn't exist.
	FindTerm(ctx context.Context, term string) (*core.TaxonomyTerm, error)

	// TermsByType returns the terms of one level ordered by usage count
	// descending, then ID.
	TermsByType(ctx context.Context, termType core.TermType) ([]*core.TaxonomyTerm, error)

	// AddRelation records a directed relation. Existing relations are left unchanged.
	AddRelation(ctx context.Context, relation core.TermRelation) error

	// Children returns the targets of relationType edges leaving parentID,
	// ordered by usage count descending, then ID.
	Children(ctx context.Context, parentID int64, relationType string) ([]*core.TaxonomyTerm, error)

	// Parents returns the sources of relationType edges entering childID, ordered by ID.
	Parents(ctx context.Context, childID int64, relationType string) ([]*core.TaxonomyTerm, error)
}

// TagRepository manages question tags and the derived term usage counts.
type TagRepository interface {
	TransactionManager

	// UpsertTag inserts the tag or replaces the existing row with the same
	// (question, term, tag type) key, then recomputes the term's usage count
	// from the live number of tag rows referencing it.
	UpsertTag(ctx context.Context, tag *core.QuestionTag) error

	// RemoveTag deletes one tag row and recomputes the term's usage count.
	// Returns ErrNotFound if no such row exists.
	RemoveTag(ctx context.Context, questionID string, termID int64, tagType core.TagType) error

	// TagsForQuestion returns a question's tags with term text populated,
	// ordered by tag type then term ID.
	TagsForQuestion(ctx context.Context, questionID string) ([]*core.QuestionTag, error)

	// UntaggedQuestionIDs returns IDs of questions with no tag of tagType, ascending.
	// limit <= 0 returns all of them.
	UntaggedQuestionIDs(ctx context.Context, tagType core.TagType, limit int) ([]string, error)

	// QuestionIDsByTerm returns IDs of questions tagged with a term, ascending.
	// An empty tagType matches every tag type.
	QuestionIDsByTerm(ctx context.Context, termID int64, tagType core.TagType, limit int) ([]string, error)
}
