// Package preprocess sanitizes free text and task parameter trees before they reach
// a model or tool.
//
// Invariants:
// - Every function is deterministic and free of side effects.
// - ValidateParameters preserves shape and is idempotent.
// - Malformed input passes through unchanged; nothing here panics or returns an error.
//
// Usage:
//
//	p := preprocess.ValidateParameters(params.MustFromAny(map[string]interface{}{"max_depth": "3"}))
//	q := preprocess.CleanQuery("  Hello,   World!!  ") // "hello world"
//	_, _ = p, q
package preprocess
