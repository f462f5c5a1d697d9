package request

import "github.com/pkg/errors"

var (
	// ErrStaleServerKey is returned when a request is rejected for an
	// unknown key id even after refreshing the server public key.
	ErrStaleServerKey = errors.New("server key id rejected after refresh")

	// ErrFieldNotSealed is returned by OpenFields for a field that is not a
	// sealed token.
	ErrFieldNotSealed = errors.New("field is not a sealed token")
)
