// Package embedded stores vector collections in an embedded badger database.
package embedded

import (
	"context"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

// Backend wraps a badger instance.
type Backend struct {
	db     *badger.DB
	logger *zap.Logger
}

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	s *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any)   { l.s.Errorf(msg, items...) }
func (l *badgerLogger) Warningf(msg string, items ...any) { l.s.Warnf(msg, items...) }
func (l *badgerLogger) Infof(msg string, items ...any)    { l.s.Debugf(msg, items...) }
func (l *badgerLogger) Debugf(msg string, items ...any)   { l.s.Debugf(msg, items...) }

// OpenBackend opens a badger database at path, creating the directory if needed.
// inMemory ignores path.
func OpenBackend(path string, inMemory bool, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLogger{s: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Backend{db: db, logger: logger}, nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Ping reports whether the database is still open.
func (b *Backend) Ping(context.Context) error {
	if b.db.IsClosed() {
		return fmt.Errorf("badger: database closed")
	}
	return nil
}

func (b *Backend) view(fn func(tx *badger.Txn) error) error {
	return b.db.View(fn)
}

func (b *Backend) update(fn func(tx *badger.Txn) error) error {
	return b.db.Update(fn)
}
