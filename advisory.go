package docstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/goliatone/go-docstore/pkg/activity"
)

// AdvisoryCode identifies a non-fatal security or durability warning.
type AdvisoryCode string

const (
	// AdvisoryPlaintextStorage: no encrypter is configured, data is stored readable.
	AdvisoryPlaintextStorage AdvisoryCode = "plaintext_storage"
	// AdvisoryOneWayCipher: only one cipher direction is configured. Saved
	// ciphertext cannot be read back, or reads expect ciphertext that saves
	// never produce.
	AdvisoryOneWayCipher AdvisoryCode = "one_way_cipher"
	// AdvisoryPlaintextFallback: decryption failed and raw bytes were parsed as plaintext.
	AdvisoryPlaintextFallback AdvisoryCode = "plaintext_fallback"
	// AdvisoryLegacyParseFailure: an unencrypted payload failed to parse and was read as empty.
	AdvisoryLegacyParseFailure AdvisoryCode = "legacy_parse_failure"
	AdvisoryBackupFailed       AdvisoryCode = "backup_failed"
	AdvisoryPruneFailed        AdvisoryCode = "prune_failed"
	// AdvisoryPruneUnsupported: the backend cannot list names, old backups are kept.
	AdvisoryPruneUnsupported AdvisoryCode = "prune_unsupported"
	// AdvisoryVerifyMismatch: the staged bytes could not be read back identically.
	AdvisoryVerifyMismatch AdvisoryCode = "verify_mismatch"
	AdvisoryRemoveFailed   AdvisoryCode = "remove_failed"
	AdvisoryCleanupFailed  AdvisoryCode = "cleanup_failed"
	// AdvisoryReconcileMismatch: the change set disagreed with the final set, which was saved verbatim.
	AdvisoryReconcileMismatch   AdvisoryCode = "reconcile_mismatch"
	AdvisoryInitialNotifyFailed AdvisoryCode = "initial_notify_failed"
	AdvisoryCallbackFailed      AdvisoryCode = "callback_failed"
)

// Advisory is a warning signal distinct from an error: the operation that
// raised it carried on.
type Advisory struct {
	Code       AdvisoryCode
	Collection string
	Message    string
	Err        error
	OccurredAt time.Time
}

func (a Advisory) String() string {
	msg := string(a.Code) + " " + a.Collection
	if a.Message != "" {
		msg += ": " + a.Message
	}
	if a.Err != nil {
		msg += ": " + a.Err.Error()
	}
	return msg
}

// AdvisoryHandler observes advisories as they are raised.
type AdvisoryHandler interface {
	HandleAdvisory(ctx context.Context, advisory Advisory)
}

// AdvisoryHandlerFunc adapts a function to AdvisoryHandler.
type AdvisoryHandlerFunc func(ctx context.Context, advisory Advisory)

// HandleAdvisory implements AdvisoryHandler.
func (f AdvisoryHandlerFunc) HandleAdvisory(ctx context.Context, advisory Advisory) {
	if f != nil {
		f(ctx, advisory)
	}
}

// reporter delivers advisories and lifecycle events for one collection to the
// logger, the advisory handlers and the activity emitter.
type reporter struct {
	name     string
	logger   *slog.Logger
	handlers []AdvisoryHandler
	emitter  *activity.Emitter
	clock    func() time.Time
}

func newReporter(name string, cfg config) *reporter {
	return &reporter{
		name:     name,
		logger:   cfg.logger.With(slog.String("collection", name)),
		handlers: cfg.advisoryHandlers,
		emitter:  activity.NewEmitter(cfg.activityHooks, cfg.activity),
		clock:    cfg.clock,
	}
}

func (r *reporter) advise(ctx context.Context, code AdvisoryCode, message string, err error) {
	advisory := Advisory{
		Code:       code,
		Collection: r.name,
		Message:    message,
		Err:        err,
		OccurredAt: r.clock(),
	}

	attrs := []any{slog.String("code", string(code))}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	r.logger.WarnContext(ctx, "docstore advisory: "+message, attrs...)

	for _, handler := range r.handlers {
		if handler != nil {
			handler.HandleAdvisory(ctx, advisory)
		}
	}

	r.emit(ctx, activity.BuildAdvisoryEvent(activity.CollectionEventInput{
		Collection: r.name,
		Code:       string(code),
		Message:    message,
		Err:        err,
		OccurredAt: advisory.OccurredAt,
	}))
}

// emit forwards an activity event. Hook failures never affect the operation.
func (r *reporter) emit(ctx context.Context, event activity.Event) {
	if !r.emitter.Enabled() {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.clock()
	}
	if err := r.emitter.Emit(ctx, event); err != nil {
		r.logger.DebugContext(ctx, "docstore activity hook failed",
			slog.String("verb", event.Verb), slog.Any("error", err))
	}
}
