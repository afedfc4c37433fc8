// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package fault defines the error kinds shared by the registry, the vault and
// the remote executor. Callers wrap these sentinels with %w so that
// errors.Is works across package boundaries, and Kind maps a chain back to
// the short codes printed by the CLI.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotSpecified       = errors.New("not specified")
	ErrNotFound           = errors.New("does not exist")
	ErrInvalid            = errors.New("invalid")
	ErrAccessDenied       = errors.New("access denied")
	ErrAmbiguous          = errors.New("multiple matches")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrExecutionFailed    = errors.New("execution failed")
	ErrUnknown            = errors.New("unknown")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrNotSpecified, "not-specified"},
	{ErrNotFound, "not-exists"},
	{ErrInvalid, "invalid"},
	{ErrAccessDenied, "access-denied"},
	{ErrAmbiguous, "multiple"},
	{ErrMissingCredentials, "missing-data"},
	{ErrExecutionFailed, "execution-failed"},
}

// Kind returns the short code of the first known kind in err's chain.
// A nil error yields "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "unknown"
}

// Wrap annotates err with the operation name and kind. It returns nil for a
// nil err so it can be used directly on return paths.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// Errorf builds an error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// FieldError is a single validation problem.
type FieldError struct {
	Field   string
	Message string
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return f.Field + ": " + f.Message
}

// ValidationError collects every problem found during a validation pass.
// The zero value is ready to use.
type ValidationError struct {
	Problems []FieldError
}

// Add records a problem for field.
func (v *ValidationError) Add(field, format string, args ...any) {
	v.Problems = append(v.Problems, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Has reports whether a problem has been recorded for field.
func (v *ValidationError) Has(field string) bool {
	for _, p := range v.Problems {
		if p.Field == field {
			return true
		}
	}
	return false
}

// Err returns v when problems were recorded, nil otherwise.
func (v *ValidationError) Err() error {
	if v == nil || len(v.Problems) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Problems))
	for _, p := range v.Problems {
		parts = append(parts, p.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(v, ErrInvalid) hold.
func (v *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}
