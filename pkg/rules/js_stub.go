//go:build !js_eval

package rules

// NewJSEvaluator is unavailable without the js_eval build tag and returns nil.
func NewJSEvaluator(opts ...JSOption) Evaluator {
	_ = applyJSOptions(opts)
	return nil
}

// JSAvailable reports whether the js_eval build tag was set.
func JSAvailable() bool { return false }
