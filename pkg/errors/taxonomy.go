package errors

import (
	"errors"
	"fmt"
)

// ValidationError indicates malformed or insufficient arguments. The
// session converts it into a clarifying spoken prompt; the call continues.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidation creates a ValidationError.
func NewValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError indicates missing tenant, call, or phone-number
// configuration. Fatal at session start, non-fatal mid-call.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NewNotFound creates a NotFoundError.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IntegrationError wraps a failure from an external calendar, CRM, or
// carrier call. Always non-fatal; tools degrade to their database-only
// fallback behavior.
type IntegrationError struct {
	Service string
	Err     error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s integration failed: %v", e.Service, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// NewIntegration wraps err as an IntegrationError for the named service.
func NewIntegration(service string, err error) *IntegrationError {
	return &IntegrationError{Service: service, Err: err}
}

// IsIntegration reports whether err is an IntegrationError.
func IsIntegration(err error) bool {
	var ie *IntegrationError
	return errors.As(err, &ie)
}

// PersistenceError wraps a call-record store failure. Read failures
// degrade to conservative generic responses; write failures on
// outcome-critical paths surface as a generic spoken apology.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistence wraps err as a PersistenceError for the named operation.
func NewPersistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
