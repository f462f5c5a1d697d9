package types

import "github.com/pkg/errors"

// Errors a transport reports for server answers that callers act on.
var (
	// ErrNotFound is returned when the server has no such identity, group or key.
	ErrNotFound = errors.New("not found")

	// ErrUnknownKeyID is returned when the server no longer holds the private
	// key a request was wrapped to.
	ErrUnknownKeyID = errors.New("invalid key identifier")

	// ErrUnauthorized is returned when the server rejects the caller's credential.
	ErrUnauthorized = errors.New("unauthorized")
)
