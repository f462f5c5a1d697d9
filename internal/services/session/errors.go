package session

import (
	"github.com/pkg/errors"
)

var (
	// ErrHandshakeFailed is matched by every error returned from a failed
	// handshake. Retry with Establish; the failed ephemeral key is never reused.
	ErrHandshakeFailed = errors.New("session handshake failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
)

// HandshakeError records which handshake stage failed. It matches both
// ErrHandshakeFailed and its cause under errors.Is.
type HandshakeError struct {
	Stage string
	Err   error
}

func (e *HandshakeError) Error() string {
	return "session handshake failed at " + e.Stage + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *HandshakeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrHandshakeFailed.
func (e *HandshakeError) Is(target error) bool { return target == ErrHandshakeFailed }
