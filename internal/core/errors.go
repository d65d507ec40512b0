package core

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a DomainError independently of the transport
// that eventually reports it.
type ErrorCode int

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodeInvalidArgument
	ErrorCodeNotFound
	ErrorCodeAlreadyExists
	ErrorCodePermissionDenied
	ErrorCodeUnauthenticated
	ErrorCodeFailedPrecondition
	ErrorCodeResourceExhausted
	ErrorCodeDeadlineExceeded
	ErrorCodeUnimplemented
	ErrorCodeUnavailable
	ErrorCodeInternal
)

// DomainError is an error raised by an adapter and translated into a
// transport-neutral code. Cause keeps the original error for
// errors.Is/As.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return fmt.Sprintf("domain error (code %d)", e.Code)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// CodeOf returns the ErrorCode carried by err, or ErrorCodeUnknown.
func CodeOf(err error) ErrorCode {
	var (
		de       *DomainError
		invalid  *ErrInvalidInput
		notFound *ErrKindNotFound
		notReady *ErrNotReady
	)
	switch {
	case errors.As(err, &de):
		return de.Code
	case errors.As(err, &invalid):
		return ErrorCodeInvalidArgument
	case errors.As(err, &notFound):
		return ErrorCodeNotFound
	case errors.As(err, &notReady):
		return ErrorCodeUnavailable
	}
	return ErrorCodeUnknown
}

// ErrNotReady indicates that a required subsystem (e.g. the kind
// registry) has not been initialized yet.
type ErrNotReady struct {
	Subsystem string
}

func (e *ErrNotReady) Error() string {
	return fmt.Sprintf("%s not initialized", e.Subsystem)
}

// ErrInvalidInput indicates a domain-level input validation failure.
type ErrInvalidInput struct {
	Field   string
	Message string
}

func (e *ErrInvalidInput) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ErrKindNotFound indicates that no KindAPI is registered for the
// requested resource.
type ErrKindNotFound struct {
	Resource string
}

func (e *ErrKindNotFound) Error() string {
	return fmt.Sprintf("resource %q is not served by the cluster", e.Resource)
}

// ErrBufferOverflow is returned by StreamParser when the carried-over
// tail grows past its limit without a well-formed line completing.
var ErrBufferOverflow = errors.New("stream buffer exceeded limit without a complete event")

// ErrMalformedLine is returned by StreamParser when a complete line
// keeps failing to parse as more data arrives.
var ErrMalformedLine = errors.New("stream line is not valid JSON")
