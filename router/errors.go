package router

import (
	"errors"
	"fmt"
)

// ErrorKind tags a dispatch failure.
type ErrorKind string

const (
	ModelNotSupported     ErrorKind = "ModelNotSupported"
	ServiceUnavailable    ErrorKind = "ServiceUnavailable"
	CapabilityUnsupported ErrorKind = "CapabilityUnsupported"
	UnexpectedFailure     ErrorKind = "UnexpectedFailure"
)

// GlobalService is the service recorded on failures that happen before any
// backend was resolved.
const GlobalService = "global"

// Error is the single error type returned by the Dispatcher. Callers branch
// on Kind, Service and Operation rather than on the message.
type Error struct {
	Kind      ErrorKind
	Message   string
	Service   string
	Operation Capability
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Service, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Service, e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorKind returns the kind as a plain string. Telemetry uses it to bucket
// failures without depending on this package.
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k})
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Service == "" && t.Operation == ""
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries a dispatch error of kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func errModelNotSupported(model string, op Capability) *Error {
	return &Error{
		Kind:      ModelNotSupported,
		Message:   fmt.Sprintf("model %s is not supported by any available service", model),
		Service:   GlobalService,
		Operation: op,
	}
}

func errServiceUnavailable(backend Backend, op Capability) *Error {
	return &Error{
		Kind:      ServiceUnavailable,
		Message:   fmt.Sprintf("service %s is not configured or available", backend),
		Service:   string(backend),
		Operation: op,
	}
}

func errCapabilityUnsupported(backend Backend, op Capability) *Error {
	return &Error{
		Kind:      CapabilityUnsupported,
		Message:   fmt.Sprintf("service %s does not support %s", backend, op),
		Service:   string(backend),
		Operation: op,
	}
}

func errUnexpected(backend Backend, op Capability, cause error) *Error {
	return &Error{
		Kind:      UnexpectedFailure,
		Message:   fmt.Sprintf("unexpected error in %s operation", op),
		Service:   string(backend),
		Operation: op,
		Cause:     cause,
	}
}
