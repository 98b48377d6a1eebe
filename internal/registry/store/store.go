// Package store holds the registry state: the name→owner mapping, the
// append-only registration order, and the current fee. Two implementations
// share one contract: InMemory for unit tests and single-node runs, Postgres
// for durable deployments.
//
// Registration is a two-phase mutation so the service can interleave fund
// transfers between the phases: Reserve claims the name slot, Commit makes it
// visible, Release rolls a failed attempt back. Either Commit or Release
// always follows a Reserve; nothing else may observe the intermediate state.
//
// Stores report facts through sentinel errors (sentinel.ErrAlreadyUsed,
// sentinel.ErrNotFound) and the package errors below; the service layer
// translates them into coded domain errors.
package store

import "errors"

var (
	// ErrInvalidRange rejects a page request where start >= end.
	ErrInvalidRange = errors.New("invalid range: start must be less than end")

	// ErrOutOfBounds rejects a page request reaching past the committed count.
	ErrOutOfBounds = errors.New("range out of bounds")

	// ErrFeeOutOfRange rejects a fee outside [1, MaxFee].
	ErrFeeOutOfRange = errors.New("fee out of range")
)
