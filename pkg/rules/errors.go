package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoEvaluator is returned when a validator is built without an evaluator.
	ErrNoEvaluator = errors.New("rules: evaluator not configured")
	// ErrEmptyExpression is returned for blank expressions.
	ErrEmptyExpression = errors.New("rules: expression must not be empty")
	// ErrRuleFailed is returned when an expression does not evaluate to true.
	ErrRuleFailed = errors.New("rules: rule not satisfied")
	// ErrNotObject is returned for collection elements that are not objects.
	ErrNotObject = errors.New("rules: record is not an object")
	// ErrInvalidFunction is returned when a function cannot be registered.
	ErrInvalidFunction = errors.New("rules: invalid function")
	// ErrUnknownFunction is returned when a rule calls an unregistered function.
	ErrUnknownFunction = errors.New("rules: unknown function")
	// ErrFunctionArity is returned when a function gets the wrong number of arguments.
	ErrFunctionArity = errors.New("rules: wrong number of arguments")
)

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine     string
	Expr       string
	Collection string
	Index      int
	Err        error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("rules: %s evaluator %s collection=%s index=%d: %v",
		e.Engine, describeExpression(e.Expr), e.Collection, e.Index, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	if strings.HasPrefix(err.Error(), "rules:") {
		return err
	}
	return fmt.Errorf("rules: %s evaluator: %w", engine, err)
}

// wrapEvaluationError fills missing fields on an existing EvaluationError or
// wraps err in a new one.
func wrapEvaluationError(engine, expr string, ctx Context, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Collection == "" {
			evalErr.Collection = ctx.label()
		}
		return evalErr
	}
	return &EvaluationError{
		Engine:     engine,
		Expr:       expr,
		Collection: ctx.label(),
		Index:      ctx.Index,
		Err:        err,
	}
}
