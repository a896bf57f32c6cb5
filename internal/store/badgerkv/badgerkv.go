// Package badgerkv stores task data in an embedded badger database.
package badgerkv

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/tasklist/internal/store"
)

// DefaultPrefix namespaces every key this backend touches.
const DefaultPrefix = "tasklist/"

// Backend implements store.Backend on a badger DB.
type Backend struct {
	db     *badger.DB
	prefix []byte
	owned  bool
}

// Open opens (or creates) a database in dir. An empty dir opens an
// in-memory database. The returned Backend closes the DB on Close.
func Open(dir string, logger log.FieldLogger) (*Backend, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if logger != nil {
		opts = opts.WithLogger(logger.WithField("component", "badger"))
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, wrap("open", err)
	}
	b := New(db, DefaultPrefix)
	b.owned = true
	return b, nil
}

// New wraps an open DB. The caller keeps ownership of db.
func New(db *badger.DB, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{db: db, prefix: []byte(prefix)}
}

func (b *Backend) key(k string) []byte {
	out := make([]byte, 0, len(b.prefix)+len(k))
	return append(append(out, b.prefix...), k...)
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	var v []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, wrap("get", err)
	}
	return v, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(key), value)
	})
	if err != nil {
		return wrap("set", err)
	}
	return nil
}

func (b *Backend) Remove(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(key))
	})
	if err != nil {
		return wrap("delete", err)
	}
	return nil
}

func (b *Backend) Clear(_ context.Context) error {
	if err := b.db.DropPrefix(b.prefix); err != nil {
		return wrap("drop prefix", err)
	}
	return nil
}

func (b *Backend) Usage(_ context.Context) (int64, error) {
	var n int64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = b.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			n += int64(len(item.Key())-len(b.prefix)) + item.ValueSize()
		}
		return nil
	})
	if err != nil {
		return 0, wrap("usage", err)
	}
	return n, nil
}

func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}

func wrap(op string, err error) error {
	switch {
	case errors.Is(err, badger.ErrReadOnlyTxn), errors.Is(err, os.ErrPermission):
		return fmt.Errorf("badger %s: %w: %w", op, store.ErrAccessDenied, err)
	case errors.Is(err, badger.ErrTxnTooBig):
		return fmt.Errorf("badger %s: %w: %w", op, store.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("badger %s: %w", op, err)
}
