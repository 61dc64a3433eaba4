package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the service holds no graph to operate on.
// It is a valid outcome, not a failure.
var ErrNotFound = errors.New("graph not found")

// TransportError wraps a connection or HTTP-level failure. The operation that
// failed is never retried implicitly.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a stream or payload that breaks the protocol, such as
// an edge referencing an unknown node or a sequence id moving backward.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol violation: " + e.Reason
}

// ServiceError is an explicit failure reported by the service in a payload's
// result field.
type ServiceError struct {
	Result  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service error %d", e.Result)
	}
	return fmt.Sprintf("service error %d: %s", e.Result, e.Message)
}

// IsTransport reports whether err is (or wraps) a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocol reports whether err is (or wraps) a *ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
