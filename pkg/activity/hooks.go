package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event describes a collection lifecycle occurrence fanned out to hooks.
// ObjectID carries the collection file name for docstore events.
type Event struct {
	Verb       string
	ActorID    string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Collection returns the collection name for docstore events and "" otherwise.
func (e Event) Collection() string {
	if e.ObjectType != ObjectTypeCollection {
		return ""
	}
	return e.ObjectID
}

// Code returns the advisory code carried in metadata, if any.
func (e Event) Code() string {
	code, _ := e.Metadata["code"].(string)
	return code
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// HookError reports which hook failed for which event.
type HookError struct {
	Index int
	Verb  string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("activity: hook %d on %s: %v", e.Index, e.Verb, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// ErrHookPanicked marks a hook that panicked instead of returning.
var ErrHookPanicked = errors.New("activity: hook panicked")

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify forwards the event to all hooks, returning a joined *HookError list
// if any fail. Events missing a verb, object type or object id are dropped.
// Every hook gets its own metadata copy and a panicking hook does not stop
// the others.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		delivered := normalized
		delivered.Metadata = cloneMap(normalized.Metadata)
		if err := notifySafely(ctx, hook, delivered); err != nil {
			errs = append(errs, &HookError{Index: i, Verb: normalized.Verb, Err: err})
		}
	}
	return errors.Join(errs...)
}

func notifySafely(ctx context.Context, hook ActivityHook, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanicked, r)
		}
	}()
	return hook.Notify(ctx, event)
}

// ForCollection wraps hook so it only sees events for the named collection.
func ForCollection(name string, hook ActivityHook) ActivityHook {
	name = strings.TrimSpace(name)
	return HookFunc(func(ctx context.Context, event Event) error {
		if hook == nil || event.Collection() != name {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// OnlyVerbs wraps hook so it only sees the listed verbs.
func OnlyVerbs(hook ActivityHook, verbs ...string) ActivityHook {
	allowed := make(map[string]struct{}, len(verbs))
	for _, verb := range verbs {
		allowed[normalizeVerb(verb)] = struct{}{}
	}
	return HookFunc(func(ctx context.Context, event Event) error {
		if hook == nil {
			return nil
		}
		if _, ok := allowed[event.Verb]; !ok {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// NormalizeEvent trims fields, lower-cases the verb, clones metadata and
// stamps a UTC timestamp. Events with a docstore verb and no object type are
// typed as collection events.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Verb = normalizeVerb(event.Verb)
	normalized.ActorID = strings.TrimSpace(event.ActorID)
	normalized.TenantID = strings.TrimSpace(event.TenantID)
	normalized.ObjectType = strings.TrimSpace(event.ObjectType)
	normalized.ObjectID = strings.TrimSpace(event.ObjectID)
	normalized.Channel = strings.TrimSpace(event.Channel)
	normalized.Metadata = cloneMap(event.Metadata)
	if normalized.ObjectType == "" && strings.HasPrefix(normalized.Verb, verbPrefix) {
		normalized.ObjectType = ObjectTypeCollection
	}
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	normalized.OccurredAt = normalized.OccurredAt.UTC()
	return normalized
}

func normalizeVerb(verb string) string {
	return strings.ToLower(strings.TrimSpace(verb))
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
