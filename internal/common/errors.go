// Package common defines shared constants and sentinel errors used across
// the local synchronization layer. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Store / repository errors.
	ErrNotFound         = errors.New("not found")
	ErrCorruption       = errors.New("unexpected zero rows affected")
	ErrInvalidTableName = errors.New("invalid table name")
	ErrInvalidFieldName = errors.New("invalid field name")
	ErrMalformedDelta   = errors.New("malformed delta value")

	// Registry errors.
	ErrUnknownRepository   = errors.New("unknown repository")
	ErrDuplicateRepository = errors.New("repository already registered")

	// Session errors (precondition missing or malformed identity).
	ErrNoSession    = errors.New("no authenticated session")
	ErrInvalidToken = errors.New("invalid token")

	// Transport errors.
	ErrUnavailable  = errors.New("remote unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)
