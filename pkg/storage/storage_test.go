package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-docstore/pkg/storage"
)

func backends(t *testing.T) map[string]storage.FileSystem {
	t.Helper()
	osfs, err := storage.NewOSAt(t.TempDir(), storage.WithSubdirectory("app"))
	require.NoError(t, err)
	return map[string]storage.FileSystem{
		"os":     osfs,
		"memory": storage.NewMemory(),
	}
}

func TestFileSystemContract(t *testing.T) {
	ctx := context.Background()
	for name, fs := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := fs.Exists(ctx, "notes.json")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = fs.Read(ctx, "notes.json")
			assert.True(t, storage.IsNotFound(err), "expected not found, got %v", err)

			require.NoError(t, fs.Write(ctx, "notes.json", []byte(`[]`)))
			require.NoError(t, fs.Write(ctx, "notes.json", []byte(`[{"id":"a"}]`)))

			ok, err = fs.Exists(ctx, "notes.json")
			require.NoError(t, err)
			assert.True(t, ok)

			data, err := fs.Read(ctx, "notes.json")
			require.NoError(t, err)
			assert.Equal(t, `[{"id":"a"}]`, string(data))

			require.NoError(t, fs.Write(ctx, "notes.json.backup.2", []byte("2")))
			require.NoError(t, fs.Write(ctx, "notes.json.backup.1", []byte("1")))

			lister, ok := fs.(storage.Lister)
			require.True(t, ok)
			names, err := lister.List(ctx, "notes.json.backup.")
			require.NoError(t, err)
			assert.Equal(t, []string{"notes.json.backup.1", "notes.json.backup.2"}, names)

			require.NoError(t, fs.Remove(ctx, "notes.json"))
			err = fs.Remove(ctx, "notes.json")
			assert.True(t, storage.IsNotFound(err), "expected not found, got %v", err)
			assert.True(t, storage.SupportsAtomicReplace(fs))
		})
	}
}

func TestOSRejectsNestedNames(t *testing.T) {
	fs, err := storage.NewOSAt(t.TempDir())
	require.NoError(t, err)

	err = fs.Write(context.Background(), "../escape.json", []byte("x"))
	require.Error(t, err)
	_, err = fs.Read(context.Background(), "sub/file.json")
	require.Error(t, err)
}

func TestOSWriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	fs, err := storage.NewOSAt(root)
	require.NoError(t, err)

	require.NoError(t, fs.Write(context.Background(), "notes.json", []byte("[]")))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.json", entries[0].Name())

	info, err := os.Stat(filepath.Join(root, "notes.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestResolveDirectory(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	path, err := storage.ResolveDirectory(storage.DirectoryData)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg-data", path)

	path, err = storage.ResolveDirectory(storage.DirectoryTemp)
	require.NoError(t, err)
	assert.Equal(t, os.TempDir(), path)

	_, err = storage.ResolveDirectory(storage.Directory("nowhere"))
	require.Error(t, err)

	dir, err := storage.ParseDirectory(" Cache ")
	require.NoError(t, err)
	assert.Equal(t, storage.DirectoryCache, dir)
	_, err = storage.ParseDirectory("bogus")
	require.Error(t, err)
}

func TestMemoryHooksAndCopies(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	boom := errors.New("disk full")

	mem.SetHooks(storage.MemoryHooks{
		Write: func(name string, _ []byte) error {
			if name == "locked.json" {
				return boom
			}
			return nil
		},
		Transform: func(_ string, data []byte) []byte {
			return append(data, '!')
		},
	})

	require.ErrorIs(t, mem.Write(ctx, "locked.json", []byte("x")), boom)

	payload := []byte("abc")
	require.NoError(t, mem.Write(ctx, "open.json", payload))
	payload[0] = 'z'

	stored, ok := mem.Bytes("open.json")
	require.True(t, ok)
	assert.Equal(t, "abc", string(stored))

	read, err := mem.Read(ctx, "open.json")
	require.NoError(t, err)
	assert.Equal(t, "abc!", string(read))
	assert.Equal(t, []string{"open.json"}, mem.Names())
}
