package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/goliatone/go-docstore/pkg/activity"
	"github.com/goliatone/go-docstore/pkg/storage"
)

const (
	backupInfix  = ".backup."
	stagingInfix = ".tmp."
	backupLayout = "2006-01-02T15:04:05.000Z"
	stampLength  = len(backupLayout)

	maxBackupCollisions = 1000
)

var errBackupCollision = errors.New("no free backup name")

// Backup describes a point-in-time copy of the canonical payload.
type Backup struct {
	Name      string
	CreatedAt time.Time
	seq       int
}

// writeResult reports what a write did besides promoting the payload.
type writeResult struct {
	Backup string
	Pruned []string
	Bytes  int
}

// writer promotes payloads to the canonical name through a verified staging
// artifact and keeps timestamped backups of the previous payload.
type writer struct {
	name          string
	fs            storage.FileSystem
	createBackups bool
	maxBackups    int
	clock         func() time.Time
	report        *reporter

	pruneWarn sync.Once
}

func newWriter(name string, fs storage.FileSystem, cfg config, report *reporter) *writer {
	return &writer{
		name:          name,
		fs:            fs,
		createBackups: cfg.createBackups,
		maxBackups:    cfg.maxBackups,
		clock:         cfg.clock,
		report:        report,
	}
}

func (w *writer) write(ctx context.Context, payload []byte) (writeResult, error) {
	result := writeResult{Bytes: len(payload)}

	existed, err := w.fs.Exists(ctx, w.name)
	if err != nil {
		// Unknown state: attempt the removal step anyway.
		existed = true
		w.report.logger.DebugContext(ctx, "docstore exists check failed", "error", err)
	}

	if existed && w.createBackups {
		result.Backup, result.Pruned = w.backup(ctx)
	}

	staging := w.stagingName()
	if err := w.fs.Write(ctx, staging, payload); err != nil {
		w.cleanup(ctx, staging)
		return result, newError("write", w.name, ErrWriteFailed, fmt.Errorf("stage %s: %w", staging, err))
	}

	w.verify(ctx, staging, payload)

	if existed && !storage.SupportsAtomicReplace(w.fs) {
		if err := w.fs.Remove(ctx, w.name); err != nil && !storage.IsNotFound(err) {
			w.report.advise(ctx, AdvisoryRemoveFailed, "could not remove canonical file before promotion", err)
		}
	}

	if err := w.fs.Write(ctx, w.name, payload); err != nil {
		w.cleanup(ctx, staging)
		return result, newError("write", w.name, ErrWriteFailed, err)
	}

	w.cleanup(ctx, staging)
	return result, nil
}

func (w *writer) stagingName() string {
	token := uuid.NewString()[:8]
	return w.name + stagingInfix + strconv.FormatInt(w.clock().UnixNano(), 10) + "-" + token
}

func (w *writer) verify(ctx context.Context, staging string, payload []byte) {
	staged, err := w.fs.Read(ctx, staging)
	if err != nil {
		w.report.advise(ctx, AdvisoryVerifyMismatch, "staged payload could not be read back", err)
		return
	}
	if blake3.Sum256(staged) != blake3.Sum256(payload) {
		w.report.advise(ctx, AdvisoryVerifyMismatch,
			fmt.Sprintf("staged payload differs from intended payload (%d vs %d bytes)", len(staged), len(payload)), nil)
	}
}

func (w *writer) cleanup(ctx context.Context, staging string) {
	if err := w.fs.Remove(ctx, staging); err != nil && !storage.IsNotFound(err) {
		w.report.advise(ctx, AdvisoryCleanupFailed, "could not remove staging artifact "+staging, err)
	}
}

// backup copies the canonical payload to a fresh backup name and prunes
// expired backups. Failures are advisories only.
func (w *writer) backup(ctx context.Context) (string, []string) {
	current, err := w.fs.Read(ctx, w.name)
	if err != nil {
		if !storage.IsNotFound(err) {
			w.report.advise(ctx, AdvisoryBackupFailed, "could not read canonical file for backup", err)
		}
		return "", nil
	}

	name, err := w.nextBackupName(ctx)
	if err == nil {
		err = w.fs.Write(ctx, name, current)
	}
	if err != nil {
		w.report.advise(ctx, AdvisoryBackupFailed, "could not create backup", err)
		return "", nil
	}

	w.report.emit(ctx, activity.BuildBackupCreatedEvent(activity.CollectionEventInput{
		Collection: w.name,
		Backup:     name,
		Bytes:      len(current),
	}))

	return name, w.prune(ctx)
}

func (w *writer) nextBackupName(ctx context.Context) (string, error) {
	base := w.name + backupInfix + formatBackupStamp(w.clock())
	candidate := base
	for n := 1; n <= maxBackupCollisions; n++ {
		exists, err := w.fs.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
	return "", errBackupCollision
}

// prune removes the oldest backups beyond maxBackups.
func (w *writer) prune(ctx context.Context) []string {
	backups, err := w.list(ctx)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			w.pruneWarn.Do(func() {
				w.report.advise(ctx, AdvisoryPruneUnsupported, "storage backend cannot list backups, none will be pruned", nil)
			})
			return nil
		}
		w.report.advise(ctx, AdvisoryPruneFailed, "could not list backups", err)
		return nil
	}
	if len(backups) <= w.maxBackups {
		return nil
	}

	// list returns newest first.
	var pruned []string
	var errs []error
	for _, b := range backups[w.maxBackups:] {
		if err := w.fs.Remove(ctx, b.Name); err != nil && !storage.IsNotFound(err) {
			errs = append(errs, err)
			continue
		}
		pruned = append(pruned, b.Name)
	}
	if err := errors.Join(errs...); err != nil {
		w.report.advise(ctx, AdvisoryPruneFailed, "could not remove expired backups", err)
	}
	if len(pruned) > 0 {
		w.report.emit(ctx, activity.BuildBackupsPrunedEvent(activity.CollectionEventInput{
			Collection: w.name,
			Records:    len(pruned),
			Metadata:   map[string]any{"pruned": pruned},
		}))
	}
	return pruned
}

// list returns the collection's backups, newest first.
func (w *writer) list(ctx context.Context) ([]Backup, error) {
	lister, ok := w.fs.(storage.Lister)
	if !ok {
		return nil, ErrUnsupported
	}
	prefix := w.name + backupInfix
	names, err := lister.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	backups := make([]Backup, 0, len(names))
	for _, name := range names {
		if b, ok := parseBackupName(w.name, name); ok {
			backups = append(backups, b)
		}
	}
	sort.SliceStable(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].seq > backups[j].seq
	})
	return backups, nil
}

// parseBackupName recognises "<canonical>.backup.<stamp>[-n]".
func parseBackupName(canonical, name string) (Backup, bool) {
	stamp, ok := strings.CutPrefix(name, canonical+backupInfix)
	if !ok || len(stamp) < stampLength {
		return Backup{}, false
	}
	created, err := parseBackupStamp(stamp[:stampLength])
	if err != nil {
		return Backup{}, false
	}
	seq := 0
	if rest := stamp[stampLength:]; rest != "" {
		n, ok := strings.CutPrefix(rest, "-")
		if !ok {
			return Backup{}, false
		}
		seq, err = strconv.Atoi(n)
		if err != nil || seq < 1 {
			return Backup{}, false
		}
	}
	return Backup{Name: name, CreatedAt: created, seq: seq}, true
}

var stampReplacer = strings.NewReplacer(":", "-", ".", "-")

// formatBackupStamp renders t as a UTC ISO-8601 instant with millisecond
// precision and ':' and '.' replaced by '-'.
func formatBackupStamp(t time.Time) string {
	return stampReplacer.Replace(t.UTC().Format(backupLayout))
}

func parseBackupStamp(stamp string) (time.Time, error) {
	if len(stamp) != stampLength {
		return time.Time{}, fmt.Errorf("backup stamp %q has unexpected length", stamp)
	}
	raw := []byte(stamp)
	// 2006-01-02T15-04-05-000Z
	for _, i := range []int{13, 16} {
		if raw[i] != '-' {
			return time.Time{}, fmt.Errorf("backup stamp %q is malformed", stamp)
		}
		raw[i] = ':'
	}
	if raw[19] != '-' {
		return time.Time{}, fmt.Errorf("backup stamp %q is malformed", stamp)
	}
	raw[19] = '.'
	return time.Parse(backupLayout, string(raw))
}
