package bridge

import "errors"

var (
	// ErrClosed indicates the bridge has been shut down.
	ErrClosed = errors.New("bridge: closed")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("bridge: already started")
)
