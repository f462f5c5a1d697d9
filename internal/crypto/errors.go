package crypto

import "github.com/pkg/errors"

var (
	// ErrKeyGeneration is returned when the entropy source or allocator fails
	// while producing key material. It is fatal for the operation.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrKeyUnwrap is returned when an RSA-OAEP wrapped key cannot be opened
	// with the given private key.
	ErrKeyUnwrap = errors.New("key unwrap failed")

	// ErrAuthentication is returned when an AEAD tag does not verify. Treat it
	// as tampering or a wrong key.
	ErrAuthentication = errors.New("authentication failed")

	// ErrMalformedEnvelope is returned when a token has the wrong length,
	// encoding or version.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrInvalidKey is returned for keys that cannot be parsed or are too small.
	ErrInvalidKey = errors.New("invalid key")
)
