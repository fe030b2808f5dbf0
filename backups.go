package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-docstore/pkg/activity"
	"github.com/goliatone/go-docstore/pkg/storage"
)

// Backups lists the collection's backups, newest first. It fails with
// ErrUnsupported when the backend cannot list names.
func (a *Adapter[T]) Backups(ctx context.Context) ([]Backup, error) {
	ctx = ensureContext(ctx)
	backups, err := a.writer.list(ctx)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return nil, newError("backups", a.name, ErrUnsupported, nil)
		}
		return nil, fmt.Errorf("docstore: list backups of %q: %w", a.name, err)
	}
	return backups, nil
}

// RestoreBackup validates the named backup with the adapter's decode policy
// and promotes its bytes to the canonical file through the durable writer.
// When backups are enabled the current payload is backed up first. The
// callback is notified as after a save.
func (a *Adapter[T]) RestoreBackup(ctx context.Context, backup string) (err error) {
	ctx = ensureContext(ctx)
	ctx, span := a.startSpan(ctx, "restore")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(AttrBackup.String(backup))

	if _, ok := parseBackupName(a.name, backup); !ok {
		return newError("restore", a.name, ErrInvalidName, fmt.Errorf("%q is not a backup of this collection", backup))
	}

	raw, err := a.fs.Read(ctx, backup)
	if err != nil {
		if storage.IsNotFound(err) {
			return newError("restore", a.name, ErrInvalidName, err)
		}
		return newError("restore", a.name, ErrSaveFailed, err)
	}

	items, err := a.decodePayload(ctx, raw)
	if err != nil {
		return err
	}

	// Re-encoded with the current cipher.
	plaintext, _, err := a.persist(ctx, items)
	if err != nil {
		return newError("restore", a.name, ErrSaveFailed, err)
	}

	span.SetAttributes(AttrRecords.Int(len(items)))
	a.report.emit(ctx, activity.BuildBackupRestoredEvent(activity.CollectionEventInput{
		Collection: a.name,
		Backup:     backup,
		Records:    len(items),
		Encrypted:  a.codec.encrypted(),
	}))

	return a.notify(ctx, "restore", plaintext)
}
