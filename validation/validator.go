package validation

import (
	"slices"
	"strings"

	"github.com/kbukum/meetscribe/errors"
)

// FieldError is one failed rule, keyed by the client-facing field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator collects rule failures for checks that struct tags cannot
// express, such as comparisons between two fields.
type Validator struct {
	errs []FieldError
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{}
}

// Add records a failure for field.
func (v *Validator) Add(field, message string) *Validator {
	v.errs = append(v.errs, FieldError{Field: field, Message: message})
	return v
}

// Custom records message for field unless ok holds.
func (v *Validator) Custom(ok bool, field, message string) *Validator {
	if !ok {
		v.Add(field, message)
	}
	return v
}

// Required rejects blank strings.
func (v *Validator) Required(field, value string) *Validator {
	return v.Custom(strings.TrimSpace(value) != "", field, "is required")
}

// OneOf rejects a non-empty value outside allowed.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	return v.Custom(value == "" || slices.Contains(allowed, value), field,
		"must be one of: "+strings.Join(allowed, ", "))
}

// TimeWindow checks 0 <= start <= end for a pair of offsets in seconds.
func (v *Validator) TimeWindow(startField, endField string, start, end float64) *Validator {
	v.Custom(start >= 0, startField, "must not be negative")
	return v.Custom(end >= start, endField, "must not be before "+startField)
}

// HasErrors reports whether any rule failed.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// Errors returns the recorded failures in order.
func (v *Validator) Errors() []FieldError {
	return v.errs
}

// Validate returns an INVALID_INPUT AppError carrying every failure, or
// nil.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	return toAppError(v.errs)
}

// Err is Validate as a plain error, so a valid result compares equal to
// nil.
func (v *Validator) Err() error {
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func toAppError(fields []FieldError) *errors.AppError {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Field + ": " + f.Message
	}
	appErr := errors.Validation(strings.Join(parts, "; "))
	appErr.Details = map[string]any{"fields": fields}
	return appErr
}
