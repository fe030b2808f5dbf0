// Package sqlitefs stores docstore files as rows in a SQLite database.
//
// The database is configured the same way for every connection:
//
//   - WAL mode so readers never block on the writer
//   - busy_timeout=5000 to ride out short lock contention
//   - a single open connection, which also keeps ":memory:" databases shared
package sqlitefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-docstore/pkg/storage"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS docstore_files (
	name       TEXT PRIMARY KEY COLLATE BINARY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// FS implements storage.FileSystem with one row per name. Upserts run in a
// single statement, so overwrites are atomic.
type FS struct {
	db    *sql.DB
	owned bool
}

// Open opens (or creates) the database at path.
func Open(path string) (*FS, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitefs: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitefs: connect %q: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitefs: execute %q: %w", pragma, err)
		}
	}

	f, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	f.owned = true
	return f, nil
}

// New wraps an existing database and ensures the schema exists.
func New(db *sql.DB) (*FS, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlitefs: database is required")
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("sqlitefs: apply schema: %w", err)
	}
	return &FS{db: db}, nil
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

func (f *FS) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := f.db.QueryRowContext(ctx, `SELECT 1 FROM docstore_files WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlitefs: exists %q: %w", name, err)
	}
	return true, nil
}

func (f *FS) Read(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := f.db.QueryRowContext(ctx, `SELECT data FROM docstore_files WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitefs: read %q: %w", name, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (f *FS) Write(ctx context.Context, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO docstore_files (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, data, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlitefs: write %q: %w", name, err)
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, name string) error {
	res, err := f.db.ExecContext(ctx, `DELETE FROM docstore_files WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("sqlitefs: remove %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlitefs: remove %q: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	return nil
}

func (f *FS) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT name FROM docstore_files
		WHERE instr(name, ?) = 1
		ORDER BY name ASC`, prefix)
	if err != nil {
		return nil, fmt.Errorf("sqlitefs: list %q: %w", prefix, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlitefs: scan %q: %w", prefix, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitefs: list %q: %w", prefix, err)
	}
	return names, nil
}
