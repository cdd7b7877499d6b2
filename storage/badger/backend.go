package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/masterdb/storage"
)

// Backend wraps the BadgerDB instance holding question vectors.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLogger routes badger's printf-style logging to slog.
// Badger's info output is routine compaction chatter and is logged at debug.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (bl *badgerLogger) Errorf(msg string, items ...any) {
	bl.logger.Error(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLogger) Warningf(msg string, items ...any) {
	bl.logger.Warn(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLogger) Infof(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLogger) Debugf(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

// txnKey carries the active *badger.Txn in a context.
type txnKey struct{}

// BackendOption adjusts how the database is opened.
type BackendOption func(*backendConfig)

type backendConfig struct {
	logger     *slog.Logger
	syncWrites bool
}

// WithLogger sets the logger badger reports through.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) BackendOption {
	return func(c *backendConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSyncWrites fsyncs every commit. Off by default: vectors can be
// rebuilt from the questions by re-embedding.
func WithSyncWrites(sync bool) BackendOption {
	return func(c *backendConfig) {
		c.syncWrites = sync
	}
}

// OpenBackend opens the vector database in dir, creating the directory when
// missing. With inMemory set, dir is ignored and nothing touches disk.
func OpenBackend(dir string, inMemory bool, opts ...BackendOption) (*Backend, error) {
	cfg := &backendConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger.With("component", "badger")

	var bopts badger.Options
	if inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(dir).WithSyncWrites(cfg.syncWrites)
	}
	bopts.Logger = &badgerLogger{logger: logger}
	// float32 blobs barely compress
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open vector store %s: %w", dir, err)
	}
	logger.Debug("vector store opened", "dir", dir, "in_memory", inMemory)

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

func ensureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: empty vector store directory", storage.ErrInvalidQuery)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// Close closes the BadgerDB database. Closing twice is a no-op.
func (b *Backend) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes fn within the transaction carried by ctx, or within a new
// BadgerDB transaction. A new read-write transaction is committed when fn
// returns nil; the transaction is discarded otherwise.
func (b *Backend) WithTx(ctx context.Context, fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	if tx, ok := ctx.Value(txnKey{}).(*badger.Txn); ok {
		return fn(tx)
	}

	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	if !isWrite {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
	}
	return nil
}

// WithTransaction executes a function within a read-write transaction
// carried by the context passed to fn.
// Implements storage.TransactionManager interface.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txnKey{}).(*badger.Txn); ok {
		return fn(ctx)
	}
	return b.WithTx(ctx, func(tx *badger.Txn) error {
		return fn(context.WithValue(ctx, txnKey{}, tx))
	}, true)
}

// inTransaction reports whether ctx carries an active transaction.
func inTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txnKey{}).(*badger.Txn)
	return ok
}

// isTxnTooBig reports whether err means the transaction must be split.
func isTxnTooBig(err error) bool {
	return errors.Is(err, badger.ErrTxnTooBig)
}
