// Package shared provides common utilities and test helpers used across
// the BenchMD codebase. It is a home for functionality that belongs to no
// specific domain or architectural layer.
//
// The testutil subpackage provides a buffered slog handler for asserting
// on structured log output in tests. Nothing in this package may carry
// business logic or depend on other internal packages.
package shared
