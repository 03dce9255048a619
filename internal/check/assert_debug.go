//go:build debug

// Package check holds invariant assertions that only fire in debug builds
// (go build -tags debug). Release builds compile them to no-ops.
package check

import "fmt"

// Assertf panics with a formatted message if cond is false.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic("assertion failed: " + fmt.Sprintf(format, args...))
	}
}
