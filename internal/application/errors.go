package application

import (
	"errors"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
	"github.com/Dimasikck/teacher-tool/internal/recurrence"
	"github.com/Dimasikck/teacher-tool/internal/scheduler"
)

var (
	// ErrNotFound is returned when the resource does not exist in the caller's owner scope.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a write collides with an existing record.
	ErrAlreadyExists = errors.New("application: already exists")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// ruleFields maps recurrence rule parts to series input fields.
var ruleFields = map[recurrence.Field]string{
	recurrence.FieldDates:    "from",
	recurrence.FieldWeekdays: "weekdays",
	recurrence.FieldTimes:    "end_time",
}

// ruleValidationError translates a rejected recurrence rule into field errors.
func ruleValidationError(err *recurrence.InvalidRuleError) *ValidationError {
	vErr := &ValidationError{}
	for _, problem := range err.Problems {
		field, ok := ruleFields[problem.Field]
		if !ok {
			field = "rule"
		}
		vErr.add(field, problem.Message)
	}
	return vErr
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	var rangeErr *scheduler.InvalidRangeError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.As(err, &rangeErr):
		return fieldError("end", "end must be after start")
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fieldError("group_id", "group does not exist")
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}
	return err
}
