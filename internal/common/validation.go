package common

import (
	"slices"
	"strings"
)

// ValidationErrors is an ordered list of user-visible validation messages.
// errors.Is(v, ErrValidation) reports true for any non-empty list.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(v, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add appends msg unless it is empty or already listed.
func (v *ValidationErrors) Add(msg string) {
	if msg == "" || slices.Contains(*v, msg) {
		return
	}
	*v = append(*v, msg)
}

// Err returns nil for an empty list so callers can write `return errs.Err()`.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
