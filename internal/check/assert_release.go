//go:build !debug

// Package check holds invariant assertions that only fire in debug builds
// (go build -tags debug). Release builds compile them to no-ops.
package check

// Assertf is a no-op in release builds.
func Assertf(_ bool, _ string, _ ...any) {}
