package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Function is a callable exposed to record rules. Arguments arrive as the
// engine's native values: JSON objects as map[string]any, arrays as []any.
type Function func(args ...any) (any, error)

// FunctionSpec is a function with its accepted argument count. Max < 0
// means any number of arguments from Min up.
type FunctionSpec struct {
	Fn  Function
	Min int
	Max int
}

func (s FunctionSpec) accepts(n int) bool {
	if n < s.Min {
		return false
	}
	return s.Max < 0 || n <= s.Max
}

func (s FunctionSpec) arity() string {
	switch {
	case s.Max < 0:
		return fmt.Sprintf("at least %d", s.Min)
	case s.Min == s.Max:
		return fmt.Sprintf("%d", s.Min)
	default:
		return fmt.Sprintf("%d to %d", s.Min, s.Max)
	}
}

var functionName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// FunctionRegistry holds the functions record rules may call, keyed by
// lower-cased identifier. Names must be valid identifiers in every engine.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]FunctionSpec
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]FunctionSpec)}
}

// NewBuiltinRegistry returns a registry seeded with the record helpers listed
// in Builtins.
func NewBuiltinRegistry() *FunctionRegistry {
	r := NewFunctionRegistry()
	for name, spec := range Builtins() {
		r.functions[name] = spec
	}
	return r
}

// Register adds a variadic function.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	return r.RegisterSpec(name, FunctionSpec{Fn: fn, Min: 0, Max: -1})
}

// RegisterSpec adds a function whose argument count is checked before every
// call. Names are unique per registry.
func (r *FunctionRegistry) RegisterSpec(name string, spec FunctionSpec) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if spec.Fn == nil {
		return fmt.Errorf("%w: %q is nil", ErrInvalidFunction, name)
	}
	if !functionName.MatchString(key) {
		return fmt.Errorf("%w: %q is not an identifier", ErrInvalidFunction, name)
	}
	if spec.Min < 0 || (spec.Max >= 0 && spec.Max < spec.Min) {
		return fmt.Errorf("%w: %q has arity %d..%d", ErrInvalidFunction, name, spec.Min, spec.Max)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]FunctionSpec)
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("%w: %q already registered", ErrInvalidFunction, name)
	}
	r.functions[key] = spec
	return nil
}

// Clone returns an independent copy; evaluators keep a clone so later
// registrations do not change compiled rules.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]FunctionSpec, len(r.functions))}
	for name, spec := range r.functions {
		clone.functions[name] = spec
	}
	return clone
}

// Call checks the argument count and runs the function registered for name.
// Function failures are prefixed with the function name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no functions configured", ErrUnknownFunction)
	}
	key := strings.ToLower(name)
	r.mu.RLock()
	spec, ok := r.functions[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	if !spec.accepts(len(args)) {
		return nil, fmt.Errorf("%w: %s takes %s arguments, got %d", ErrFunctionArity, key, spec.arity(), len(args))
	}
	out, err := spec.Fn(args...)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", key, err)
	}
	return out, nil
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
