package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/kbukum/floq/errors"
)

// Validator collects field errors from chained checks. Checks never stop
// early, so Validate reports every problem at once.
type Validator struct {
	errors []FieldError
}

// FieldError is one failed check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func New() *Validator {
	return &Validator{}
}

// AddError records a failed check for field.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

func (v *Validator) HasErrors() bool { return len(v.errors) > 0 }

func (v *Validator) Errors() []FieldError { return v.errors }

// Validate returns nil when every check passed, otherwise an INVALID_CONFIG
// error listing each field as "field: message".
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	return toAppError(v.errors)
}

func (v *Validator) check(ok bool, field, format string, args ...any) *Validator {
	if !ok {
		v.AddError(field, fmt.Sprintf(format, args...))
	}
	return v
}

// Required fails on empty or blank strings.
func (v *Validator) Required(field, value string) *Validator {
	return v.check(strings.TrimSpace(value) != "", field, "is required")
}

func (v *Validator) PositiveDuration(field string, d time.Duration) *Validator {
	return v.check(d > 0, field, "must be a positive duration (got %s)", d)
}

func (v *Validator) Min(field string, value, minVal int) *Validator {
	return v.check(value >= minVal, field, "must be at least %d", minVal)
}

func (v *Validator) Range(field string, value, minVal, maxVal int) *Validator {
	return v.check(value >= minVal && value <= maxVal, field, "must be between %d and %d", minVal, maxVal)
}

// Regexp checks that value compiles. Empty values pass.
func (v *Validator) Regexp(field, value string) *Validator {
	if value == "" {
		return v
	}
	_, err := regexp.Compile(value)
	return v.check(err == nil, field, "must be a valid regular expression")
}

// OneOf checks value against allowed. Empty values pass; pair with Required
// when the field is mandatory.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	ok := value == "" || slices.Contains(allowed, value)
	return v.check(ok, field, "must be one of: %s", strings.Join(allowed, ", "))
}

// Custom records message when condition is false.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	return v.check(condition, field, "%s", message)
}

// Required validates a single required field.
func Required(field, value string) error {
	if err := New().Required(field, value).Validate(); err != nil {
		return err
	}
	return nil
}

func toAppError(fields []FieldError) *errors.AppError {
	messages := make([]string, len(fields))
	for i, e := range fields {
		messages[i] = e.Field + ": " + e.Message
	}
	return errors.Validation(strings.Join(messages, "; ")).
		WithDetail("fields", fields)
}
