package docstore

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// DataValidator inspects a decoded payload (the generic encoding/json
// representation) before it is hydrated into records.
type DataValidator func(decoded any) error

// RequireSequence accepts only JSON arrays.
func RequireSequence(decoded any) error {
	if _, ok := decoded.([]any); !ok {
		return fmt.Errorf("expected a JSON array, got %s", jsonKind(decoded))
	}
	return nil
}

// ChainValidators runs validators in order and stops at the first failure.
// Nil entries are skipped.
func ChainValidators(validators ...DataValidator) DataValidator {
	return func(decoded any) error {
		for _, v := range validators {
			if v == nil {
				continue
			}
			if err := v(decoded); err != nil {
				return err
			}
		}
		return nil
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// validateStructs runs struct tag validation on each record whose underlying
// kind is a struct. Maps and other kinds are skipped.
func validateStructs[T any](v *validator.Validate, items []T) error {
	if v == nil {
		return nil
	}
	var errs []error
	for i, item := range items {
		rv := reflect.ValueOf(item)
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				break
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			continue
		}
		if err := v.Struct(item); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
