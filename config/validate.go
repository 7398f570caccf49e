package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors so callers see every
// problem in one pass.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
