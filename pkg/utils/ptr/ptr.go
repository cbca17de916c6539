// Package ptr has small helpers for pointer-typed config fields.
package ptr

// To returns a pointer to v.
func To[T any](v T) *T {
	return &v
}
