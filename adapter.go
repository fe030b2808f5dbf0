package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-docstore/internal/hydrate"
	"github.com/goliatone/go-docstore/pkg/activity"
	"github.com/goliatone/go-docstore/pkg/storage"
)

var emptyCollection = []byte("[]")

// Adapter persists one named collection of T on a storage.FileSystem. Each
// Adapter owns its callback and lifecycle; nothing is shared between
// instances.
type Adapter[T Record] struct {
	name    string
	fs      storage.FileSystem
	cfg     config
	report  *reporter
	codec   *codec
	writer  *writer
	decoder *hydrate.Decoder[T]
	tracer  trace.Tracer

	mu       sync.RWMutex
	callback ChangeFunc[T]
}

// New validates name and the security configuration and returns an
// unregistered adapter. No I/O happens here.
func New[T Record](name string, fs storage.FileSystem, opts ...Option) (*Adapter[T], error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if fs == nil {
		return nil, newError("new", name, ErrInitFailed, errors.New("filesystem is nil"))
	}

	cfg := applyOptions(opts)
	if cfg.enforceEncryption && (cfg.encrypter == nil || cfg.decrypter == nil) {
		return nil, newError("new", name, ErrEncryptionRequired, errors.New("encrypter and decrypter must both be configured"))
	}

	report := newReporter(name, cfg)
	a := &Adapter[T]{
		name:    name,
		fs:      fs,
		cfg:     cfg,
		report:  report,
		codec:   newCodec(name, cfg, report),
		writer:  newWriter(name, fs, cfg, report),
		decoder: newDecoder[T](cfg),
		tracer:  cfg.tracer,
	}

	if cfg.encrypter == nil {
		report.advise(context.Background(), AdvisoryPlaintextStorage, "no encrypter configured, collection is stored as readable plaintext", nil)
	}
	switch {
	case cfg.encrypter != nil && cfg.decrypter == nil:
		report.advise(context.Background(), AdvisoryOneWayCipher, "encrypter without decrypter, saved ciphertext loads as an unparsable plaintext payload", nil)
	case cfg.encrypter == nil && cfg.decrypter != nil:
		report.advise(context.Background(), AdvisoryOneWayCipher, "decrypter without encrypter, plaintext saves fail to decrypt on load", nil)
	}
	return a, nil
}

func newDecoder[T Record](cfg config) *hydrate.Decoder[T] {
	var opts []hydrate.DecoderOption[T]
	if cfg.disallowUnknownFields {
		opts = append(opts, hydrate.WithDisallowUnknownFields[T]())
	}
	return hydrate.NewDecoder(opts...)
}

// Name returns the canonical collection name.
func (a *Adapter[T]) Name() string {
	return a.name
}

// Registered reports whether a change callback is installed.
func (a *Adapter[T]) Registered() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.callback != nil
}

// Register installs cb, creates the canonical file with an empty collection
// if it is missing, and hands cb the current collection when it is not
// empty. An existing file is never rewritten here.
func (a *Adapter[T]) Register(ctx context.Context, cb ChangeFunc[T]) (err error) {
	ctx = ensureContext(ctx)
	ctx, span := a.startSpan(ctx, "register")
	defer func() { endSpan(span, err) }()

	a.mu.Lock()
	a.callback = cb
	a.mu.Unlock()

	a.report.emit(ctx, activity.BuildRegisteredEvent(activity.CollectionEventInput{Collection: a.name}))

	if err := a.ensureFile(ctx); err != nil {
		return err
	}

	items, err := a.Load(ctx)
	if err != nil {
		a.report.advise(ctx, AdvisoryInitialNotifyFailed, "initial load failed", err)
		return nil
	}
	span.SetAttributes(AttrRecords.Int(len(items)))
	if len(items) == 0 || cb == nil {
		return nil
	}
	if err := invoke(ctx, cb, items); err != nil {
		a.report.advise(ctx, AdvisoryInitialNotifyFailed, "initial change callback failed", err)
	}
	return nil
}

func (a *Adapter[T]) ensureFile(ctx context.Context) error {
	exists, err := a.fs.Exists(ctx, a.name)
	if err != nil {
		return newError("register", a.name, ErrInitFailed, err)
	}
	if exists {
		return nil
	}
	payload, err := a.codec.encode(emptyCollection)
	if err != nil {
		return newError("register", a.name, ErrInitFailed, err)
	}
	if _, err := a.writer.write(ctx, payload); err != nil {
		return newError("register", a.name, ErrInitFailed, err)
	}
	a.report.logger.DebugContext(ctx, "docstore created empty collection")
	return nil
}

// Unregister removes the change callback. Later saves notify nobody.
func (a *Adapter[T]) Unregister() {
	a.mu.Lock()
	had := a.callback != nil
	a.callback = nil
	a.mu.Unlock()
	if had {
		a.report.emit(context.Background(), activity.BuildUnregisteredEvent(activity.CollectionEventInput{Collection: a.name}))
	}
}

// Load reads, decodes and validates the collection. A missing or unreadable
// file is an empty collection; decryption and validation failures are
// errors.
func (a *Adapter[T]) Load(ctx context.Context) (items []T, err error) {
	ctx = ensureContext(ctx)
	ctx, span := a.startSpan(ctx, "load")
	defer func() { endSpan(span, err) }()

	raw, err := a.fs.Read(ctx, a.name)
	if err != nil {
		if !storage.IsNotFound(err) {
			a.report.logger.DebugContext(ctx, "docstore read failed, treating as empty", "error", err)
		}
		return []T{}, nil
	}

	items, err = a.decodePayload(ctx, raw)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(AttrRecords.Int(len(items)))
	a.report.emit(ctx, activity.BuildLoadedEvent(activity.CollectionEventInput{
		Collection: a.name,
		Records:    len(items),
		Bytes:      len(raw),
		Encrypted:  a.codec.encrypted(),
	}))
	return items, nil
}

func (a *Adapter[T]) decodePayload(ctx context.Context, raw []byte) ([]T, error) {
	plaintext, source, err := a.codec.decode(ctx, raw)
	if err != nil {
		return nil, err
	}
	kind := ErrValidationFailed
	if source == sourceFallback {
		kind = ErrFallbackValidationFailed
	}
	items, err := a.decoder.Decode(hydrate.Context{Collection: a.name, Source: source}, plaintext)
	if err != nil {
		return nil, newError("decode", a.name, kind, err)
	}
	if err := validateStructs(a.cfg.structValidator, items); err != nil {
		return nil, newError("decode", a.name, kind, err)
	}
	return items, nil
}

// Save persists final. The change set is applied to a fresh load; when it
// does not reproduce the keys of final, final is written verbatim. The
// callback, if any, receives a private copy of what was written.
func (a *Adapter[T]) Save(ctx context.Context, final []T, changes ChangeSet[T]) (err error) {
	ctx = ensureContext(ctx)
	ctx, span := a.startSpan(ctx, "save")
	defer func() { endSpan(span, err) }()

	if key, dup := duplicateKey(final); dup {
		return newError("save", a.name, ErrValidationFailed, fmt.Errorf("final set repeats key %q", key))
	}

	previous, err := a.Load(ctx)
	if err != nil {
		return newError("save", a.name, ErrSaveFailed, err)
	}

	result := Reconcile(previous, changes, final)
	if result.FellBack {
		a.report.advise(ctx, AdvisoryReconcileMismatch, "change set does not match final set, saving final set: "+result.Reason, nil)
	}
	span.SetAttributes(AttrRecords.Int(len(result.Items)), AttrFellBack.Bool(result.FellBack))

	if err := validateStructs(a.cfg.structValidator, result.Items); err != nil {
		return newError("save", a.name, ErrValidationFailed, err)
	}

	plaintext, written, err := a.persist(ctx, result.Items)
	if err != nil {
		return newError("save", a.name, ErrSaveFailed, err)
	}
	if written.Backup != "" {
		span.SetAttributes(AttrBackup.String(written.Backup))
	}

	a.report.emit(ctx, activity.BuildSavedEvent(activity.CollectionEventInput{
		Collection: a.name,
		Records:    len(result.Items),
		Bytes:      written.Bytes,
		Encrypted:  a.codec.encrypted(),
		FellBack:   result.FellBack,
		Backup:     written.Backup,
	}))

	return a.notify(ctx, "save", plaintext)
}

// persist encodes items and hands them to the writer. It returns the
// plaintext JSON that was encoded.
func (a *Adapter[T]) persist(ctx context.Context, items []T) ([]byte, writeResult, error) {
	if items == nil {
		items = []T{}
	}
	plaintext, err := json.Marshal(items)
	if err != nil {
		return nil, writeResult{}, fmt.Errorf("marshal collection: %w", err)
	}
	payload, err := a.codec.encode(plaintext)
	if err != nil {
		return nil, writeResult{}, err
	}
	written, err := a.writer.write(ctx, payload)
	if err != nil {
		return nil, written, err
	}
	return plaintext, written, nil
}

// notify hands the registered callback a copy rebuilt from plaintext, so
// nothing it mutates is shared with the caller or the engine.
func (a *Adapter[T]) notify(ctx context.Context, op string, plaintext []byte) error {
	a.mu.RLock()
	cb := a.callback
	a.mu.RUnlock()
	if cb == nil {
		return nil
	}

	items, err := a.decoder.Decode(hydrate.Context{Collection: a.name, Source: "notify"}, plaintext)
	if err == nil {
		err = invoke(ctx, cb, items)
	}
	if err == nil {
		return nil
	}
	if a.cfg.propagateCallbackErrors {
		return newError(op, a.name, ErrCallbackFailed, err)
	}
	a.report.advise(ctx, AdvisoryCallbackFailed, "change callback failed", err)
	return nil
}

func invoke[T Record](ctx context.Context, cb ChangeFunc[T], items []T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return cb(ctx, items)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
