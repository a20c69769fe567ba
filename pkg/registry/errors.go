package registry

import "errors"

var (
	// ErrInvalidSender is returned when a registration carries no resolvable
	// session or frame URL.
	ErrInvalidSender = errors.New("invalid sender: missing session or frame url")

	// ErrInvalidSession is returned by operations that need a session id and
	// were given an empty one.
	ErrInvalidSession = errors.New("invalid session id")

	// ErrInvalidDepth is returned when a frame reports a negative depth.
	ErrInvalidDepth = errors.New("invalid frame depth")
)
