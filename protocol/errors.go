package protocol

import (
	"errors"
	"fmt"
)

// Wire-level error codes.
const (
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInternalError        = -32603
	CodeServerError          = -32000
	CodeAuthenticationFailed = -32002
	CodeAuthorizationFailed  = -32003
)

// ErrorKind classifies failures for retry decisions and metrics.
type ErrorKind string

const (
	KindProtocolError      ErrorKind = "protocol_error"
	KindAuthentication     ErrorKind = "authentication_error"
	KindAuthorization      ErrorKind = "authorization_error"
	KindCapabilityNotFound ErrorKind = "capability_not_found"
	KindTimeout            ErrorKind = "timeout_error"
	KindResourceExhausted  ErrorKind = "resource_exhausted"
	KindAgentUnavailable   ErrorKind = "agent_unavailable"
	KindRouting            ErrorKind = "routing_error"
	KindInternal           ErrorKind = "internal_error"
)

// retryableKinds are the failure classes that may be re-enqueued locally.
var retryableKinds = map[ErrorKind]bool{
	KindTimeout:           true,
	KindAgentUnavailable:  true,
	KindResourceExhausted: true,
	KindRouting:           true,
}

// Error is the wire-visible failure carried in responses and handed to
// callers on terminal rejection.
type Error struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	Kind      ErrorKind `json:"kind"`
	Source    string    `json:"source,omitempty"`
	Retryable bool      `json:"retryable"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Message)
}

// IsRetryable reports whether this failure qualifies for local retry:
// retryable kind, explicit retryable flag, or the generic server error code.
func (e *Error) IsRetryable() bool {
	return retryableKinds[e.Kind] || e.Retryable || e.Code == CodeServerError
}

func NewError(code int, kind ErrorKind, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Kind:      kind,
		Retryable: retryableKinds[kind],
	}
}

func NewErrorf(code int, kind ErrorKind, format string, args ...any) *Error {
	return NewError(code, kind, fmt.Sprintf(format, args...))
}

// WrapError normalizes any handler failure into a protocol Error and stamps
// the local agent as its source. Handler errors that are already protocol
// errors pass through; everything else becomes an internal_error.
func WrapError(err error, source string) *Error {
	var protoErr *Error
	if errors.As(err, &protoErr) {
		if protoErr.Source == "" {
			protoErr.Source = source
		}
		return protoErr
	}

	return &Error{
		Code:    CodeInternalError,
		Message: err.Error(),
		Kind:    KindInternal,
		Source:  source,
	}
}
