package docstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-docstore/pkg/storage"
)

const canonical = "notes.json"

type advisories struct {
	mu    sync.Mutex
	codes []AdvisoryCode
}

func (a *advisories) handler() Option {
	return WithAdvisoryHandler(AdvisoryHandlerFunc(func(_ context.Context, adv Advisory) {
		a.mu.Lock()
		a.codes = append(a.codes, adv.Code)
		a.mu.Unlock()
	}))
}

func (a *advisories) count(code AdvisoryCode) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.codes {
		if c == code {
			n++
		}
	}
	return n
}

func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}

func newTestWriter(fs storage.FileSystem, opts ...Option) (*writer, *advisories) {
	adv := &advisories{}
	cfg := applyOptions(append([]Option{adv.handler()}, opts...))
	return newWriter(canonical, fs, cfg, newReporter(canonical, cfg)), adv
}

// nonListingFS hides every optional capability of Memory.
type nonListingFS struct {
	mem *storage.Memory
}

func (f nonListingFS) Exists(ctx context.Context, name string) (bool, error) {
	return f.mem.Exists(ctx, name)
}

func (f nonListingFS) Read(ctx context.Context, name string) ([]byte, error) {
	return f.mem.Read(ctx, name)
}

func (f nonListingFS) Write(ctx context.Context, name string, data []byte) error {
	return f.mem.Write(ctx, name, data)
}

func (f nonListingFS) Remove(ctx context.Context, name string) error {
	return f.mem.Remove(ctx, name)
}

// nonAtomicFS lists names but does not declare atomic replacement.
type nonAtomicFS struct {
	nonListingFS
}

func (f nonAtomicFS) List(ctx context.Context, prefix string) ([]string, error) {
	return f.mem.List(ctx, prefix)
}

func TestBackupStampFormat(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 30, 0, 123_000_000, time.FixedZone("CEST", 2*60*60))

	stamp := formatBackupStamp(at)
	assert.Equal(t, "2026-10-19T06-30-00-123Z", stamp)

	parsed, err := parseBackupStamp(stamp)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at))

	_, err = parseBackupStamp("2026-10-19T06:30:00.123Z")
	assert.Error(t, err)
}

func TestParseBackupName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
		seq  int
	}{
		{name: "notes.json.backup.2026-10-19T06-30-00-123Z", ok: true},
		{name: "notes.json.backup.2026-10-19T06-30-00-123Z-2", ok: true, seq: 2},
		{name: "notes.json.backup.2026-10-19T06-30-00-123Z-12", ok: true, seq: 12},
		{name: "notes.json.backup.2026-10-19T06-30-00-123Z-0"},
		{name: "notes.json.backup.2026-10-19T06-30-00-123Zx"},
		{name: "notes.json.backup.garbage"},
		{name: "other.json.backup.2026-10-19T06-30-00-123Z"},
		{name: "notes.json.tmp.1700000000-abcdef12"},
		{name: "notes.json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, ok := parseBackupName(canonical, tc.name)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.seq, b.seq)
				assert.Equal(t, tc.name, b.Name)
			}
		})
	}
}

func TestWriterStagingName(t *testing.T) {
	at := time.Unix(1700000000, 42)
	w, _ := newTestWriter(storage.NewMemory(), WithClock(func() time.Time { return at }))

	name := w.stagingName()
	prefix := canonical + ".tmp.1700000000000000042-"
	require.True(t, strings.HasPrefix(name, prefix), name)
	assert.Len(t, strings.TrimPrefix(name, prefix), 8)
	assert.NotEqual(t, name, w.stagingName())
}

func TestWriterKeepsNewestBackups(t *testing.T) {
	mem := storage.NewMemory()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w, adv := newTestWriter(mem, WithBackups(2), WithClock(steppingClock(start, time.Second)))
	ctx := context.Background()

	for _, v := range []string{"v1", "v2", "v3", "v4", "v5"} {
		_, err := w.write(ctx, []byte(v))
		require.NoError(t, err)
	}

	backups, err := w.list(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 2)
	newest, _ := mem.Bytes(backups[0].Name)
	older, _ := mem.Bytes(backups[1].Name)
	assert.Equal(t, "v4", string(newest))
	assert.Equal(t, "v3", string(older))
	assert.True(t, backups[0].CreatedAt.After(backups[1].CreatedAt))

	current, _ := mem.Bytes(canonical)
	assert.Equal(t, "v5", string(current))
	assert.Zero(t, adv.count(AdvisoryPruneFailed))

	for _, name := range mem.Names() {
		assert.NotContains(t, name, ".tmp.")
	}
}

func TestWriterBackupCollisionsAppendCounter(t *testing.T) {
	mem := storage.NewMemory()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w, _ := newTestWriter(mem, WithBackups(10), WithClock(func() time.Time { return at }))
	ctx := context.Background()

	var created []string
	for _, v := range []string{"v1", "v2", "v3", "v4"} {
		res, err := w.write(ctx, []byte(v))
		require.NoError(t, err)
		if res.Backup != "" {
			created = append(created, res.Backup)
		}
	}

	base := canonical + ".backup.2026-01-01T00-00-00-000Z"
	assert.Equal(t, []string{base, base + "-1", base + "-2"}, created)

	backups, err := w.list(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, base+"-2", backups[0].Name)
	assert.Equal(t, base, backups[2].Name)
	content, _ := mem.Bytes(backups[0].Name)
	assert.Equal(t, "v3", string(content))
}

func TestWriterPruneOrdersCountersNumerically(t *testing.T) {
	mem := storage.NewMemory()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := canonical + ".backup." + formatBackupStamp(at)
	for _, suffix := range []string{"", "-1", "-2", "-9", "-10", "-11"} {
		mem.Put(base+suffix, []byte(suffix))
	}
	mem.Put(canonical, []byte("current"))

	w, _ := newTestWriter(mem, WithBackups(2), WithClock(func() time.Time { return at }))
	pruned := w.prune(context.Background())

	assert.ElementsMatch(t, []string{base, base + "-1", base + "-2", base + "-9"}, pruned)
	backups, err := w.list(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, base+"-11", backups[0].Name)
	assert.Equal(t, base+"-10", backups[1].Name)
}

func TestWriterPruneUnsupportedAdvisesOnce(t *testing.T) {
	mem := storage.NewMemory()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w, adv := newTestWriter(nonListingFS{mem: mem}, WithBackups(1), WithClock(steppingClock(start, time.Millisecond)))
	ctx := context.Background()

	for _, v := range []string{"v1", "v2", "v3", "v4"} {
		_, err := w.write(ctx, []byte(v))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, adv.count(AdvisoryPruneUnsupported))
	var backups int
	for _, name := range mem.Names() {
		if strings.Contains(name, ".backup.") {
			backups++
		}
	}
	assert.Equal(t, 3, backups, "nothing can be pruned without listing")

	_, err := w.list(ctx)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestWriterVerifyMismatchIsAdvisory(t *testing.T) {
	mem := storage.NewMemory()
	mem.SetHooks(storage.MemoryHooks{
		Transform: func(name string, data []byte) []byte {
			if strings.Contains(name, ".tmp.") {
				return append(data, '!')
			}
			return data
		},
	})
	w, adv := newTestWriter(mem)

	_, err := w.write(context.Background(), []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, 1, adv.count(AdvisoryVerifyMismatch))
	current, _ := mem.Bytes(canonical)
	assert.Equal(t, "payload", string(current))
}

func TestWriterRemovesCanonicalOnlyWithoutAtomicReplace(t *testing.T) {
	var removed []string
	hooks := storage.MemoryHooks{
		Remove: func(name string) error {
			removed = append(removed, name)
			return nil
		},
	}
	ctx := context.Background()

	atomic := storage.NewMemory()
	atomic.Put(canonical, []byte("old"))
	atomic.SetHooks(hooks)
	w, _ := newTestWriter(atomic)
	_, err := w.write(ctx, []byte("new"))
	require.NoError(t, err)
	assert.NotContains(t, removed, canonical)

	removed = nil
	plain := storage.NewMemory()
	plain.Put(canonical, []byte("old"))
	plain.SetHooks(hooks)
	w, _ = newTestWriter(nonAtomicFS{nonListingFS{mem: plain}})
	_, err = w.write(ctx, []byte("new"))
	require.NoError(t, err)
	require.NotEmpty(t, removed)
	assert.Equal(t, canonical, removed[0])
	current, _ := plain.Bytes(canonical)
	assert.Equal(t, "new", string(current))
}

func TestWriterBestEffortSteps(t *testing.T) {
	ctx := context.Background()

	t.Run("remove failure", func(t *testing.T) {
		mem := storage.NewMemory()
		mem.Put(canonical, []byte("old"))
		mem.SetHooks(storage.MemoryHooks{
			Remove: func(name string) error {
				if name == canonical {
					return errors.New("busy")
				}
				return nil
			},
		})
		w, adv := newTestWriter(nonAtomicFS{nonListingFS{mem: mem}})
		_, err := w.write(ctx, []byte("new"))
		require.NoError(t, err)
		assert.Equal(t, 1, adv.count(AdvisoryRemoveFailed))
	})

	t.Run("cleanup failure", func(t *testing.T) {
		mem := storage.NewMemory()
		mem.SetHooks(storage.MemoryHooks{
			Remove: func(name string) error {
				if strings.Contains(name, ".tmp.") {
					return errors.New("locked")
				}
				return nil
			},
		})
		w, adv := newTestWriter(mem)
		_, err := w.write(ctx, []byte("new"))
		require.NoError(t, err)
		assert.Equal(t, 1, adv.count(AdvisoryCleanupFailed))
	})

	t.Run("backup failure", func(t *testing.T) {
		mem := storage.NewMemory()
		mem.Put(canonical, []byte("old"))
		mem.SetHooks(storage.MemoryHooks{
			Write: func(name string, _ []byte) error {
				if strings.Contains(name, ".backup.") {
					return errors.New("no space for backups")
				}
				return nil
			},
		})
		w, adv := newTestWriter(mem, WithBackups(3))
		res, err := w.write(ctx, []byte("new"))
		require.NoError(t, err)
		assert.Empty(t, res.Backup)
		assert.Equal(t, 1, adv.count(AdvisoryBackupFailed))
		current, _ := mem.Bytes(canonical)
		assert.Equal(t, "new", string(current))
	})

	t.Run("no backup for a missing canonical file", func(t *testing.T) {
		mem := storage.NewMemory()
		w, adv := newTestWriter(mem, WithBackups(3))
		res, err := w.write(ctx, []byte("first"))
		require.NoError(t, err)
		assert.Empty(t, res.Backup)
		assert.Zero(t, adv.count(AdvisoryBackupFailed))
		assert.Equal(t, []string{canonical}, mem.Names())
	})
}
