// Package hydrate turns stored collection payloads (a JSON array) into
// strongly typed records, one element at a time, with optional hooks around
// each element.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the element being hydrated.
type Context struct {
	Collection string
	Source     string
	Index      int
}

// PreHook lets callers rewrite a raw element before decoding.
type PreHook func(Context, json.RawMessage) (json.RawMessage, error)

// PostHook lets callers adjust or validate the hydrated record.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default JSON decoding when provided.
type CustomDecoder[T any] func(Context, json.RawMessage) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts stored payloads into typed collections.
type Decoder[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
	custom       CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding each element.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after each element is decoded.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber enables json.Decoder.UseNumber during decoding.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.UseNumber()
		})
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithCustomDecoder replaces the default JSON decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

// NewDecoder builds a Decoder from opts.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts a JSON array payload into a typed collection. Empty or null
// payloads yield an empty, non-nil collection.
func (d *Decoder[T]) Decode(ctx Context, payload []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return []T{}, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, fmt.Errorf("hydrate: payload for %q is not an array: %w", ctx.Collection, err)
	}

	out := make([]T, 0, len(elements))
	for i, element := range elements {
		elementCtx := ctx
		elementCtx.Index = i
		item, err := d.decodeElement(elementCtx, element)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (d *Decoder[T]) decodeElement(ctx Context, raw json.RawMessage) (T, error) {
	var zero T
	current := raw

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %q[%d] failed: %w", ctx.Collection, ctx.Index, err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		decoded, err := d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for %q[%d] failed: %w", ctx.Collection, ctx.Index, err)
		}
		result = decoded
	} else {
		decoder := json.NewDecoder(bytes.NewReader(current))
		for _, configure := range d.configureDec {
			if configure != nil {
				configure(decoder)
			}
		}
		if err := decoder.Decode(&result); err != nil {
			return zero, fmt.Errorf("hydrate: decode %q[%d]: %w", ctx.Collection, ctx.Index, err)
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %q[%d] failed: %w", ctx.Collection, ctx.Index, err)
		}
	}

	return result, nil
}
