package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend persists cache entries in a Badger database and enforces a
// byte quota on top of it. Badger itself has no quota, so usage is counted
// at open and maintained on every write and delete.
type BadgerBackend struct {
	db     *badger.DB
	logger *slog.Logger
	quota  int64

	mu   sync.Mutex // serializes quota accounting
	used int64
}

// BadgerOptions configures OpenBadger.
type BadgerOptions struct {
	Path       string
	QuotaBytes int64 // <= 0 means unlimited
	ReadOnly   bool
	InMemory   bool // for tests
}

// OpenBadger opens (or creates) the cache database.
func OpenBadger(opts BadgerOptions, logger *slog.Logger) (*BadgerBackend, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil
	bopts.ReadOnly = opts.ReadOnly
	bopts.CompactL0OnClose = !opts.ReadOnly

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	b := &BadgerBackend{db: db, logger: logger, quota: opts.QuotaBytes}

	used, err := b.measure()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	b.used = used

	if logger != nil {
		logger.Info("ratings cache opened", "path", opts.Path, "bytes", used, "quota", opts.QuotaBytes)
	}
	return b, nil
}

func (b *BadgerBackend) measure() (int64, error) {
	var used int64
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			used += int64(len(item.Key())) + item.ValueSize()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure badger cache: %w", err)
	}
	return used, nil
}

// Get implements Backend.
func (b *BadgerBackend) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements Backend.
func (b *BadgerBackend) Set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delta := entrySize(key, value)
	err := b.db.Update(func(txn *badger.Txn) error {
		if item, err := txn.Get([]byte(key)); err == nil {
			delta -= int64(len(key)) + item.ValueSize()
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if b.quota > 0 && b.used+delta > b.quota {
			return ErrQuotaExceeded
		}
		return txn.Set([]byte(key), value)
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return ErrQuotaExceeded
	}
	if err != nil {
		return err
	}
	b.used += delta
	return nil
}

// Delete implements Backend.
func (b *BadgerBackend) Delete(keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Batches keep large evictions under badger's transaction size limit.
	for chunk := range slices.Chunk(keys, 1000) {
		var freed int64
		err := b.db.Update(func(txn *badger.Txn) error {
			for _, key := range chunk {
				item, err := txn.Get([]byte(key))
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				freed += int64(len(key)) + item.ValueSize()
				if err := txn.Delete([]byte(key)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("delete cache entries: %w", err)
		}
		b.used -= freed
	}
	return nil
}

// Scan implements Backend.
func (b *BadgerBackend) Scan(prefix string, fn func(key string, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Usage implements Backend.
func (b *BadgerBackend) Usage() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Close implements Backend.
func (b *BadgerBackend) Close() error {
	if b.logger != nil {
		b.logger.Info("closing ratings cache")
	}
	return b.db.Close()
}
