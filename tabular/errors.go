package tabular

import (
	"errors"
	"fmt"
)

// QueryError represents a failure detected while building or executing a
// query.
//
// Construction-time errors (descriptor shape, unknown fields) are returned
// from Select. Evaluation-time errors (non-numeric aggregation input,
// callback failures, steps applied to incompatible shapes) are returned from
// Execute only, never earlier - building a plan never touches data.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the offending field, when the error concerns one.
	Field string

	// Step names the offending pending operation, for evaluation errors.
	Step string

	// Err is the underlying cause, if any.
	Err error
}

// QueryErrorCode categorizes query errors.
type QueryErrorCode string

const (
	// ErrCodeDescriptorInvalid indicates a malformed selection descriptor.
	ErrCodeDescriptorInvalid QueryErrorCode = "DESCRIPTOR_INVALID"

	// ErrCodeFieldUnknown indicates a referenced field absent from the source.
	ErrCodeFieldUnknown QueryErrorCode = "FIELD_UNKNOWN"

	// ErrCodeValueInvalid indicates a value incompatible with an operation,
	// detected during evaluation (e.g. summing a non-numeric string).
	ErrCodeValueInvalid QueryErrorCode = "VALUE_INVALID"

	// ErrCodeStepInvalid indicates a pending operation applied to a result
	// shape it cannot operate on (e.g. Sum after Sum).
	ErrCodeStepInvalid QueryErrorCode = "STEP_INVALID"
)

// Error implements the error interface. The underlying cause, when present,
// is part of the message so it survives serialization boundaries that only
// carry the string (CLI error payloads, logs).
func (e *QueryError) Error() string {
	var msg string
	switch {
	case e.Field != "":
		msg = fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	case e.Step != "":
		msg = fmt.Sprintf("%s: %s (step=%s)", e.Code, e.Message, e.Step)
	default:
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsConstructionError reports whether err is a malformed-descriptor error.
// Uses errors.As to handle wrapped errors.
func IsConstructionError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Code == ErrCodeDescriptorInvalid
}

// IsFieldError reports whether err is an unknown-field error.
func IsFieldError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Code == ErrCodeFieldUnknown
}

// IsEvalError reports whether err is an evaluation-time error.
func IsEvalError(err error) bool {
	var qe *QueryError
	if !errors.As(err, &qe) {
		return false
	}
	return qe.Code == ErrCodeValueInvalid || qe.Code == ErrCodeStepInvalid
}

func newDescriptorError(format string, args ...any) *QueryError {
	return &QueryError{
		Code:    ErrCodeDescriptorInvalid,
		Message: fmt.Sprintf(format, args...),
	}
}

func newFieldError(field string) *QueryError {
	return &QueryError{
		Code:    ErrCodeFieldUnknown,
		Message: "field does not exist in source",
		Field:   field,
	}
}

func newValueError(step string, err error) *QueryError {
	return &QueryError{
		Code:    ErrCodeValueInvalid,
		Message: "value incompatible with operation",
		Step:    step,
		Err:     err,
	}
}

func newStepError(step, format string, args ...any) *QueryError {
	return &QueryError{
		Code:    ErrCodeStepInvalid,
		Message: fmt.Sprintf(format, args...),
		Step:    step,
	}
}
