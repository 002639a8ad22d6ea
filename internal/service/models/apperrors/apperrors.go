package apperrors

import "errors"

// Error taxonomy shared across transports and services. Transport edges map
// these onto HTTP statuses; consumers use them to decide ack vs requeue.
var (
	// ErrValidation marks malformed client input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrConnect marks an unreachable broker or store after the bounded
	// retry schedule is exhausted.
	ErrConnect = errors.New("connection failed")

	// ErrChannelClosed marks a publish attempted while the broker
	// connection is down. Callers must not buffer the message.
	ErrChannelClosed = errors.New("broker channel closed")

	// ErrStore marks a failed query against the persistent store.
	ErrStore = errors.New("store operation failed")

	// ErrNotFound marks a lookup for a row that does not exist.
	ErrNotFound = errors.New("not found")
)
