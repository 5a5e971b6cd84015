// Package apperr defines the small, closed taxonomy of errors the bridge
// returns to callers. Client-facing failures on the request path (request
// translation, upstream calls, store lookups) are reported as *apperr.Error;
// the HTTP layer maps them to a status code, and any other error maps to 500.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure into one of a small set of categories suitable
// for HTTP-status mapping and client-visible error codes.
type Kind string

const (
	InvalidRequest Kind = "invalid_request"
	Unauthorized   Kind = "unauthorized"
	NotFound       Kind = "not_found"
	NotImplemented Kind = "not_implemented"
	UpstreamError  Kind = "upstream_error"
	BadGateway     Kind = "bad_gateway"
	Timeout        Kind = "timeout"
	Internal       Kind = "internal"
)

// httpStatus maps each Kind to its HTTP status code.
var httpStatus = map[Kind]int{
	InvalidRequest: 400,
	Unauthorized:   401,
	NotFound:       404,
	NotImplemented: 501,
	UpstreamError:  502,
	BadGateway:     502,
	Timeout:        504,
	Internal:       500,
}

// Error is the structured error type returned across package boundaries.
type Error struct {
	kind      Kind
	code      string
	message   string
	requestID string
	cause     error
}

// New constructs an *Error. kind is required; code and message may be empty.
func New(kind Kind, code, message string, cause error) *Error {
	if kind == "" {
		panic("apperr: kind is required")
	}
	return &Error{kind: kind, code: code, message: message, cause: cause}
}

// Wrap reclassifies an arbitrary error under kind, preserving its chain.
func Wrap(kind Kind, err error) *Error {
	return New(kind, "", err.Error(), err)
}

// WithRequestID attaches the correlation id for server-side logs and returns
// the same *Error for chaining.
func (e *Error) WithRequestID(id string) *Error {
	e.requestID = id
	return e
}

func (e *Error) Kind() Kind        { return e.kind }
func (e *Error) Code() string      { return e.code }
func (e *Error) Message() string   { return e.message }
func (e *Error) RequestID() string { return e.requestID }
func (e *Error) Unwrap() error     { return e.cause }

func (e *Error) Error() string {
	msg := e.message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if e.code != "" {
		return fmt.Sprintf("%s: %s: %s", e.kind, e.code, msg)
	}
	return fmt.Sprintf("%s: %s", e.kind, msg)
}

// FromTransport classifies a raw transport-level error: a deadline exceeded
// on the caller's own context is a Timeout, everything else is an
// unclassified upstream failure.
func FromTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return New(Timeout, "", err.Error(), err)
	}
	return New(UpstreamError, "", err.Error(), err)
}

// As returns the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// HTTPStatus returns the HTTP status code for err, defaulting to 500 when err
// is not an *Error.
func HTTPStatus(err error) int {
	ae, ok := As(err)
	if !ok {
		return 500
	}
	if s, ok := httpStatus[ae.kind]; ok {
		return s
	}
	return 500
}
