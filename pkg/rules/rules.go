// Package rules validates stored collections with expressions. An Evaluator
// (expr, CEL or goja) runs each expression against every record and a
// Validator turns the outcome into a docstore.DataValidator.
//
// Expressions see four variables:
//
//	record    the decoded JSON object
//	index     its position in the collection
//	now       evaluation time
//	metadata  caller supplied values
//
// Registered functions are reachable through call(name, [args...]) and, for
// expr and goja, directly by name.
package rules

import "time"

// Context carries the inputs of a single evaluation.
type Context struct {
	Record     any
	Index      int
	Collection string
	Now        *time.Time
	Metadata   map[string]any
}

func (ctx Context) withDefaults() Context {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx Context) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx Context) label() string {
	if ctx.Collection == "" {
		return "unknown"
	}
	return ctx.Collection
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx Context, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx Context) (any, error)
}

func bindings(ctx Context) map[string]any {
	return map[string]any{
		"record":   ctx.Record,
		"index":    ctx.Index,
		"now":      ctx.timestamp(),
		"metadata": ctx.Metadata,
	}
}
