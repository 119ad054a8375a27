package domain

import "errors"

// Transport and clear failure taxonomy. Callers distinguish these with
// errors.Is; everything else is treated as transient.
var (
	// ErrEndpointGone means the peer no longer exists. Permanent for the
	// calling detector instance: it must stop sending.
	ErrEndpointGone = errors.New("endpoint gone")

	// ErrTimeout means the bounded wait elapsed; the caller may retry or
	// fall through to its fallback path.
	ErrTimeout = errors.New("request timed out")

	// ErrPrimitiveFailed means the clear action failed in one execution
	// context; the clearer advances to the next context.
	ErrPrimitiveFailed = errors.New("clear primitive failed")

	// ErrStorageUnavailable means settings persistence failed; the
	// coordinator keeps operating on in-memory values.
	ErrStorageUnavailable = errors.New("settings storage unavailable")
)
