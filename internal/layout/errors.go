package layout

import "errors"

// Validation failures are detected before any iteration runs; once the loop
// starts no error can surface (numeric edge cases are clamped, not thrown).
var (
	ErrInvalidGraph         = errors.New("layout: invalid graph")
	ErrInvalidConfiguration = errors.New("layout: invalid configuration")
)
