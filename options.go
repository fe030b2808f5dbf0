package docstore

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-docstore/pkg/activity"
)

// DefaultMaxBackups is the retention applied when backups are enabled
// without an explicit limit.
const DefaultMaxBackups = 5

const instrumentationName = "github.com/goliatone/go-docstore"

// Option configures an Adapter.
type Option func(*config)

type config struct {
	encrypter Encrypter
	decrypter Decrypter

	enforceEncryption       bool
	allowPlaintextFallback  bool
	validateData            bool
	dataValidator           DataValidator
	strictPlaintext         bool
	disallowUnknownFields   bool
	structValidator         *validator.Validate
	propagateCallbackErrors bool

	createBackups bool
	maxBackups    int

	logger           *slog.Logger
	advisoryHandlers []AdvisoryHandler
	activityHooks    activity.Hooks
	activity         activity.Config
	tracer           trace.Tracer
	clock            func() time.Time
}

func defaultConfig() config {
	return config{
		validateData:  true,
		dataValidator: RequireSequence,
		maxBackups:    DefaultMaxBackups,
		logger:        slog.New(slog.DiscardHandler),
		activity:      activity.Config{Enabled: true},
		clock:         time.Now,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentationName)
	}
	return cfg
}

// WithEncrypter sets the capability applied to every payload before it is
// written.
func WithEncrypter(e Encrypter) Option {
	return func(cfg *config) {
		cfg.encrypter = e
	}
}

// WithDecrypter sets the capability applied to stored payloads on load.
func WithDecrypter(d Decrypter) Option {
	return func(cfg *config) {
		cfg.decrypter = d
	}
}

// WithCipher sets both directions from one value.
func WithCipher(c Cipher) Option {
	return func(cfg *config) {
		if c == nil {
			cfg.encrypter, cfg.decrypter = nil, nil
			return
		}
		cfg.encrypter, cfg.decrypter = c, c
	}
}

// WithEnforceEncryption makes New fail unless both cipher directions are
// configured.
func WithEnforceEncryption() Option {
	return func(cfg *config) {
		cfg.enforceEncryption = true
	}
}

// WithPlaintextFallback lets Load parse the raw bytes as plaintext JSON when
// decryption fails. Each fallback raises AdvisoryPlaintextFallback.
func WithPlaintextFallback() Option {
	return func(cfg *config) {
		cfg.allowPlaintextFallback = true
	}
}

// WithDataValidation toggles shape validation of decoded payloads.
func WithDataValidation(enabled bool) Option {
	return func(cfg *config) {
		cfg.validateData = enabled
	}
}

// WithDataValidator replaces RequireSequence. A nil validator restores it.
func WithDataValidator(v DataValidator) Option {
	return func(cfg *config) {
		if v == nil {
			v = RequireSequence
		}
		cfg.dataValidator = v
	}
}

// WithStrictPlaintext fails Load with ErrParseFailed instead of reading an
// unparsable unencrypted payload as an empty collection.
func WithStrictPlaintext() Option {
	return func(cfg *config) {
		cfg.strictPlaintext = true
	}
}

// WithDisallowUnknownFields rejects stored records carrying fields the
// record type does not declare.
func WithDisallowUnknownFields() Option {
	return func(cfg *config) {
		cfg.disallowUnknownFields = true
	}
}

// WithStructValidation checks `validate` struct tags on every record loaded
// or saved.
func WithStructValidation() Option {
	return WithStructValidator(validator.New(validator.WithRequiredStructEnabled()))
}

// WithStructValidator is WithStructValidation with a caller-owned validator,
// e.g. one with custom tags registered. Nil disables struct validation.
func WithStructValidator(v *validator.Validate) Option {
	return func(cfg *config) {
		cfg.structValidator = v
	}
}

// WithPropagateCallbackErrors makes Save return ErrCallbackFailed when the
// change callback fails instead of raising AdvisoryCallbackFailed.
func WithPropagateCallbackErrors() Option {
	return func(cfg *config) {
		cfg.propagateCallbackErrors = true
	}
}

// WithBackups snapshots the previous payload before each write and keeps at
// most max snapshots. max <= 0 keeps DefaultMaxBackups.
func WithBackups(max int) Option {
	return func(cfg *config) {
		cfg.createBackups = true
		if max > 0 {
			cfg.maxBackups = max
		}
	}
}

// WithMaxBackups changes the retention without enabling backups.
func WithMaxBackups(max int) Option {
	return func(cfg *config) {
		if max > 0 {
			cfg.maxBackups = max
		}
	}
}

// WithLogger routes advisories and diagnostics to logger. Nil discards them.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		cfg.logger = logger
	}
}

// WithAdvisoryHandler registers an additional advisory observer.
func WithAdvisoryHandler(handler AdvisoryHandler) Option {
	return func(cfg *config) {
		if handler != nil {
			cfg.advisoryHandlers = append(cfg.advisoryHandlers, handler)
		}
	}
}

// WithActivityHooks attaches activity hooks. Hooks are cloned and nil
// entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := activity.CloneHooks(hooks)
	return func(cfg *config) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel overrides the channel stamped on activity events.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.activity.Channel = channel
	}
}

// WithActivityActor stamps actor and tenant ids on activity events.
func WithActivityActor(actorID, tenantID string) Option {
	return func(cfg *config) {
		cfg.activity.ActorID = actorID
		cfg.activity.TenantID = tenantID
	}
}

// WithTracer overrides the global otel tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(cfg *config) {
		cfg.tracer = tracer
	}
}

// WithClock overrides time.Now for backup names, staging tokens and event
// timestamps.
func WithClock(clock func() time.Time) Option {
	return func(cfg *config) {
		if clock == nil {
			clock = time.Now
		}
		cfg.clock = clock
	}
}
