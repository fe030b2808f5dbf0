package rules

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Builtins returns the record helpers seeded by NewBuiltinRegistry:
//
//	haskey(record, field)       field present and not null
//	lookup(record, "a.b.c")     nested value or null
//	regex(value, pattern)       value is a string matching pattern
//	isuuid(value)               value is a UUID string
//	isotime(value)              value is an RFC 3339 timestamp
//	runelen(value)              characters in a string, items in a list or object
//	oneof(value, choices...)    value equals one of choices
func Builtins() map[string]FunctionSpec {
	return map[string]FunctionSpec{
		"haskey":  {Fn: hasKey, Min: 2, Max: 2},
		"lookup":  {Fn: lookup, Min: 2, Max: 2},
		"regex":   {Fn: matchRegex, Min: 2, Max: 2},
		"isuuid":  {Fn: isUUID, Min: 1, Max: 1},
		"isotime": {Fn: isTimestamp, Min: 1, Max: 1},
		"runelen": {Fn: runeLength, Min: 1, Max: 1},
		"oneof":   {Fn: oneOf, Min: 2, Max: -1},
	}
}

func hasKey(args ...any) (any, error) {
	record, ok := args[0].(map[string]any)
	if !ok {
		return false, nil
	}
	field, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("field must be a string, got %T", args[1])
	}
	value, present := record[field]
	return present && value != nil, nil
}

func lookup(args ...any) (any, error) {
	path, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("path must be a string, got %T", args[1])
	}
	current := args[0]
	for _, segment := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, nil
		}
		current = object[segment]
	}
	return current, nil
}

var patterns sync.Map

func matchRegex(args ...any) (any, error) {
	pattern, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("pattern must be a string, got %T", args[1])
	}
	value, ok := args[0].(string)
	if !ok {
		return false, nil
	}
	compiled, ok := patterns.Load(pattern)
	if !ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled, _ = patterns.LoadOrStore(pattern, re)
	}
	return compiled.(*regexp.Regexp).MatchString(value), nil
}

func isUUID(args ...any) (any, error) {
	value, ok := args[0].(string)
	if !ok {
		return false, nil
	}
	return uuid.Validate(value) == nil, nil
}

func isTimestamp(args ...any) (any, error) {
	value, ok := args[0].(string)
	if !ok {
		return false, nil
	}
	_, err := time.Parse(time.RFC3339Nano, value)
	return err == nil, nil
}

func runeLength(args ...any) (any, error) {
	switch value := args[0].(type) {
	case string:
		return utf8.RuneCountInString(value), nil
	case []any:
		return len(value), nil
	case map[string]any:
		return len(value), nil
	case nil:
		return 0, nil
	default:
		return nil, errors.New("value has no length")
	}
}

func oneOf(args ...any) (any, error) {
	needle := normalizeScalar(args[0])
	for _, choice := range args[1:] {
		if list, ok := choice.([]any); ok && len(args) == 2 {
			for _, item := range list {
				if reflect.DeepEqual(needle, normalizeScalar(item)) {
					return true, nil
				}
			}
			return false, nil
		}
		if reflect.DeepEqual(needle, normalizeScalar(choice)) {
			return true, nil
		}
	}
	return false, nil
}

// normalizeScalar maps every numeric kind to float64 so JSON numbers compare
// equal to engine integer literals.
func normalizeScalar(value any) any {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return value
	}
}
