package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/poiesic/masterdb/storage"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Backend wraps a SQLite database and provides low-level operations
// shared by the repositories.
type Backend struct {
	db     *sql.DB
	logger *slog.Logger
	closed atomic.Bool
}

// txKey carries the active *sql.Tx in a context.
type txKey struct{}

// querier is the subset of *sql.DB and *sql.Tx used by the repositories.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenBackend opens the SQLite database at path and creates the schema.
// Pass MemoryPath for a throwaway database.
func OpenBackend(path string) (*Backend, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serializes writers and keeps an in-memory
	// database alive for the lifetime of the handle.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	b := &Backend{
		db:     db,
		logger: slog.Default().With("component", "sqlite"),
	}

	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return b, nil
}

// initSchema creates the database tables if they don't exist.
func (b *Backend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		question_id TEXT PRIMARY KEY,
		question_text TEXT NOT NULL,
		category TEXT NOT NULL,             -- OD, LD, MA, DD
		legacy_mid TEXT NOT NULL DEFAULT '',
		legacy_sub TEXT NOT NULL DEFAULT '',
		cluster_id INTEGER,                 -- unique only within category
		master_id TEXT REFERENCES master_questions(master_id),
		is_representative INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS embeddings (
		question_id TEXT PRIMARY KEY,
		vector BLOB NOT NULL,               -- little-endian float32
		model TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(question_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS master_questions (
		master_id TEXT PRIMARY KEY,         -- e.g. OD_0001
		representative_question_id TEXT NOT NULL,
		category TEXT NOT NULL,
		cluster_id INTEGER NOT NULL,
		cluster_size INTEGER NOT NULL,
		centroid_distance REAL,
		coherence_score REAL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (representative_question_id) REFERENCES questions(question_id),
		UNIQUE(category, cluster_id)
	);

	CREATE TABLE IF NOT EXISTS taxonomy (
		term_id INTEGER PRIMARY KEY AUTOINCREMENT,
		term TEXT NOT NULL UNIQUE,
		term_type TEXT NOT NULL CHECK (term_type IN ('THEME', 'CONCEPT', 'ASPECT')),
		description TEXT NOT NULL DEFAULT '',
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS taxonomy_relations (
		from_term_id INTEGER NOT NULL,
		to_term_id INTEGER NOT NULL,
		relation_type TEXT NOT NULL,
		strength REAL NOT NULL DEFAULT 1.0,
		FOREIGN KEY (from_term_id) REFERENCES taxonomy(term_id) ON DELETE CASCADE,
		FOREIGN KEY (to_term_id) REFERENCES taxonomy(term_id) ON DELETE CASCADE,
		UNIQUE(from_term_id, to_term_id, relation_type)
	);

	CREATE TABLE IF NOT EXISTS question_tags (
		question_id TEXT NOT NULL,
		term_id INTEGER NOT NULL,
		tag_type TEXT NOT NULL,             -- themes, concepts, aspects
		confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
		is_auto_tagged INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(question_id) ON DELETE CASCADE,
		FOREIGN KEY (term_id) REFERENCES taxonomy(term_id) ON DELETE CASCADE,
		UNIQUE(question_id, term_id, tag_type)
	);

	CREATE TABLE IF NOT EXISTS consolidation_runs (
		run_id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		policy TEXT NOT NULL,
		threshold REAL NOT NULL,
		fingerprint TEXT NOT NULL,          -- blake2b of the assignments
		cluster_count INTEGER NOT NULL,
		question_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_questions_category ON questions(category);
	CREATE INDEX IF NOT EXISTS idx_questions_master ON questions(master_id);
	CREATE INDEX IF NOT EXISTS idx_masters_category ON master_questions(category);
	CREATE INDEX IF NOT EXISTS idx_taxonomy_type ON taxonomy(term_type);
	CREATE INDEX IF NOT EXISTS idx_relations_to ON taxonomy_relations(to_term_id);
	CREATE INDEX IF NOT EXISTS idx_tags_term ON question_tags(term_id);
	CREATE INDEX IF NOT EXISTS idx_tags_type ON question_tags(tag_type);
	CREATE INDEX IF NOT EXISTS idx_runs_category ON consolidation_runs(category, created_at);
	`
	_, err := b.db.Exec(schema)
	return err
}

// Close closes the database. Closing twice is a no-op.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.closed.Load()
}

// conn returns the transaction carried by ctx, or the database handle.
func (b *Backend) conn(ctx context.Context) (querier, error) {
	if b.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx, nil
	}
	return b.db, nil
}

// WithTransaction executes fn within a transaction carried by the context
// passed to fn. A call made while a transaction is already active joins it.
// Implements storage.TransactionManager.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.closed.Load() {
		return storage.ErrStorageClosed
	}
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", storage.ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", storage.ErrTransactionFailed, err)
	}
	return nil
}

// repository is embedded by every repository type.
type repository struct {
	backend *Backend
}

// WithTransaction delegates to the backend.
func (r repository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// Close releases resources. Repositories share the backend, which the
// caller closes separately.
func (r repository) Close() error {
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// notFound maps sql.ErrNoRows to storage.ErrNotFound.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
