// Package badgerfs stores docstore files as keys in a Badger database.
package badgerfs

import (
	"context"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/goliatone/go-docstore/pkg/storage"
)

// Option configures an FS.
type Option func(*FS)

// WithPrefix namespaces every key (default "docstore/").
func WithPrefix(prefix string) Option {
	return func(f *FS) {
		f.prefix = prefix
	}
}

// FS implements storage.FileSystem on top of a Badger key space. Each write is
// a single transaction, so overwrites are atomic.
type FS struct {
	db     *badger.DB
	prefix string
	owned  bool
}

// New wraps an existing database. The caller keeps ownership of db.
func New(db *badger.DB, opts ...Option) *FS {
	f := &FS{db: db, prefix: "docstore/"}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Open opens (or creates) a database at dir. Close releases it.
func Open(dir string, opts ...Option) (*FS, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("badgerfs: open %q: %w", dir, err)
	}
	f := New(db, opts...)
	f.owned = true
	return f, nil
}

// OpenInMemory opens a throwaway in-memory database.
func OpenInMemory(opts ...Option) (*FS, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("badgerfs: open in-memory: %w", err)
	}
	f := New(db, opts...)
	f.owned = true
	return f, nil
}

// Close closes the database when it was opened by this package.
func (f *FS) Close() error {
	if f == nil || f.db == nil || !f.owned {
		return nil
	}
	return f.db.Close()
}

// AtomicReplace implements storage.AtomicReplacer.
func (f *FS) AtomicReplace() bool {
	return true
}

func (f *FS) key(name string) []byte {
	return []byte(f.prefix + name)
}

func (f *FS) Exists(_ context.Context, name string) (bool, error) {
	found := false
	err := f.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(f.key(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badgerfs: exists %q: %w", name, err)
	}
	return found, nil
}

func (f *FS) Read(_ context.Context, name string) ([]byte, error) {
	var data []byte
	err := f.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(f.key(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("badgerfs: read %q: %w", name, err)
	}
	return data, nil
}

func (f *FS) Write(_ context.Context, name string, data []byte) error {
	value := make([]byte, len(data))
	copy(value, data)
	err := f.db.Update(func(txn *badger.Txn) error {
		return txn.Set(f.key(name), value)
	})
	if err != nil {
		return fmt.Errorf("badgerfs: write %q: %w", name, err)
	}
	return nil
}

func (f *FS) Remove(_ context.Context, name string) error {
	err := f.db.Update(func(txn *badger.Txn) error {
		key := f.key(name)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("badgerfs: remove %q: %w", name, err)
	}
	return nil
}

func (f *FS) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	scan := f.key(prefix)
	err := f.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = scan
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(scan); it.ValidForPrefix(scan); it.Next() {
			key := it.Item().KeyCopy(nil)
			names = append(names, string(key[len(f.prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerfs: list %q: %w", prefix, err)
	}
	sort.Strings(names)
	return names, nil
}
