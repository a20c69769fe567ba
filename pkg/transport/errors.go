package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportFailure marks every error caused by the channel itself
	// rather than by the registry's answer.
	ErrTransportFailure = errors.New("transport failure")

	// ErrClosed is returned when the channel has been shut down.
	ErrClosed = errors.New("channel closed")

	// ErrRejected is returned by the client helpers when the registry
	// answered with success false.
	ErrRejected = errors.New("request rejected")
)

// Error is a transport-level failure of a single request.
type Error struct {
	Type MessageType
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport failure (%s): %v", e.Type, e.Err)
}

// Unwrap lets errors.Is match both ErrTransportFailure and the cause.
func (e *Error) Unwrap() []error {
	return []error{ErrTransportFailure, e.Err}
}

func failure(t MessageType, err error) error {
	return &Error{Type: t, Err: err}
}
