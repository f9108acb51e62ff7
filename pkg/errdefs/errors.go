// Package errdefs defines the error taxonomy shared across hagglekit.
// Every failure a user action can trigger maps to one of three kinds:
// transport (an upstream AI service call failed), parse (the upstream
// body was not in the expected shape), or validation (bad user input).
package errdefs

import (
	"errors"
	"fmt"
)

// TransportError reports a failed call to an upstream service: a
// non-success status, a transport-level failure, or a timeout.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err as a TransportError for the named service.
func Transport(service string, err error) error {
	return &TransportError{Service: service, Err: err}
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ParseError reports an upstream response body that could not be
// decoded into the expected shape.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func Parse(what string, err error) error {
	return &ParseError{What: what, Err: err}
}

func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ValidationError reports rejected user input. Reason is human-readable
// and specific to the violation (file too large, wrong type, empty
// submission) so the caller can surface it verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func Validation(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
