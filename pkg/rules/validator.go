package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithCollection labels errors and log events with the collection name.
func WithCollection(name string) ValidatorOption {
	return func(v *Validator) {
		v.collection = name
	}
}

// WithMetadata exposes metadata to every expression.
func WithMetadata(metadata map[string]any) ValidatorOption {
	return func(v *Validator) {
		v.metadata = metadata
	}
}

// WithLogger records every evaluation.
func WithLogger(logger Logger) ValidatorOption {
	return func(v *Validator) {
		if logger == nil {
			logger = noopLogger{}
		}
		v.logger = logger
	}
}

// WithClock overrides the time bound to now.
func WithClock(clock func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

type compiledExpression struct {
	source string
	rule   CompiledRule
}

// Validator checks that a decoded collection is an array of objects and that
// every expression evaluates to true for every record.
type Validator struct {
	engine     string
	rules      []compiledExpression
	collection string
	metadata   map[string]any
	logger     Logger
	clock      func() time.Time
}

// NewValidator compiles expressions with evaluator. Blank expressions are
// skipped.
func NewValidator(evaluator Evaluator, expressions []string, opts ...ValidatorOption) (*Validator, error) {
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	v := &Validator{
		engine: engineName(evaluator),
		logger: noopLogger{},
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	for _, expression := range expressions {
		expression = strings.TrimSpace(expression)
		if expression == "" {
			continue
		}
		rule, err := evaluator.Compile(expression)
		if err != nil {
			return nil, wrapEvaluatorError(v.engine, err)
		}
		v.rules = append(v.rules, compiledExpression{source: expression, rule: rule})
	}
	return v, nil
}

// Validate has the docstore.DataValidator signature.
func (v *Validator) Validate(decoded any) error {
	records, ok := decoded.([]any)
	if !ok {
		return fmt.Errorf("rules: expected a JSON array, got %T", decoded)
	}
	now := v.clock()
	var errs []error
	for i, record := range records {
		if _, ok := record.(map[string]any); !ok {
			errs = append(errs, fmt.Errorf("%w: index %d is %T", ErrNotObject, i, record))
			continue
		}
		ctx := Context{
			Record:     record,
			Index:      i,
			Collection: v.collection,
			Now:        &now,
			Metadata:   v.metadata,
		}
		for _, compiled := range v.rules {
			if err := v.check(ctx, compiled); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (v *Validator) check(ctx Context, compiled compiledExpression) error {
	start := time.Now()
	result, err := compiled.rule.Evaluate(ctx)
	if err == nil {
		if passed, ok := result.(bool); !ok || !passed {
			err = wrapEvaluationError(v.engine, compiled.source, ctx, fmt.Errorf("%w: got %v", ErrRuleFailed, result))
		}
	} else {
		err = wrapEvaluationError(v.engine, compiled.source, ctx, err)
	}
	v.logger.LogEvaluation(LogEvent{
		Engine:     v.engine,
		Expr:       compiled.source,
		Collection: ctx.label(),
		Index:      ctx.Index,
		Duration:   time.Since(start),
		Err:        err,
	})
	return err
}

// RecordValidator returns a docstore.DataValidator compatible func. A compile
// failure is reported on every call.
func RecordValidator(evaluator Evaluator, expressions ...string) func(any) error {
	v, err := NewValidator(evaluator, expressions)
	if err != nil {
		return func(any) error { return err }
	}
	return v.Validate
}
