package embedded

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/kailas-cloud/medrag/internal/db"
)

// kvPrefix keeps plain KV entries apart from collection keys.
const kvPrefix = "kv/"

// Get returns the value stored under key, or db.ErrKeyNotFound.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.view(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(kvPrefix + key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return out, nil
}

// SetWithTTL stores value under key. A zero ttl never expires.
func (b *Backend) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := badger.NewEntry([]byte(kvPrefix+key), value)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	if err := b.update(func(tx *badger.Txn) error { return tx.SetEntry(e) }); err != nil {
		return &db.Error{Op: db.OpSet, Err: fmt.Errorf("set %s: %w", key, err)}
	}
	return nil
}
