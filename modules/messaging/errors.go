package messaging

import "errors"

var (
	// ErrDecode is returned when an inbound frame is malformed or incomplete.
	ErrDecode = errors.New("invalid frame")
	// ErrPersistence is returned when a message could not be stored.
	ErrPersistence = errors.New("failed to persist message")
	// ErrHandleClosed is returned when pushing to a connection that has gone away.
	ErrHandleClosed = errors.New("connection handle closed")
	// ErrPushTimeout is returned when a connection's outbound queue stays full.
	ErrPushTimeout = errors.New("push timed out")
)
