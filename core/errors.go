package core

import "github.com/pkg/errors"

// FieldError ties a validation failure to the input field that caused it,
// keyed by the field's JSON name.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries per-field failures for malformed input (missing ids,
// end time not after start time, a start time in the past). It is raised
// before any mutation or notification happens.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown signals an unrecoverable integrity failure; the API error handler
// reacts to it by starting a graceful shutdown.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown checks if err (or its cause) is a shutdown error.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
