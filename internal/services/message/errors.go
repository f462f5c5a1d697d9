package message

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrRecipientKeyUnavailable means a recipient has no usable public key.
	// Nothing is sent when it is returned.
	ErrRecipientKeyUnavailable = errors.New("recipient public key unavailable")

	// ErrNoRecipients is returned when exclusion of the sender leaves nobody
	// to send to.
	ErrNoRecipients = errors.New("no recipients")

	// ErrMisrouted is returned when an envelope's receiver is not the session user.
	ErrMisrouted = errors.New("envelope addressed to another member")

	// ErrNotLoggedIn is returned when the session has no recovered private key.
	ErrNotLoggedIn = errors.New("session has no private key; log in first")
)

// RecipientKeyError names the recipient whose key was missing or unusable.
type RecipientKeyError struct {
	Recipient string
	Err       error
}

func (e *RecipientKeyError) Error() string {
	if e.Err == nil {
		return "recipient public key unavailable for " + e.Recipient
	}
	return "recipient public key unavailable for " + e.Recipient + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause, if any.
func (e *RecipientKeyError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRecipientKeyUnavailable.
func (e *RecipientKeyError) Is(target error) bool { return target == ErrRecipientKeyUnavailable }

// EnvelopeError is one received envelope that could not be opened. It has
// been acked and dropped; it is never cached or returned as a message.
type EnvelopeError struct {
	ID  string
	Err error
}

func (e EnvelopeError) Error() string { return "envelope " + e.ID + ": " + e.Err.Error() }

// Unwrap returns the underlying cause.
func (e EnvelopeError) Unwrap() error { return e.Err }

// ReceiveError lists the envelopes a Receive call dropped. errors.Is matches
// the cause of any of them.
type ReceiveError struct {
	Failed []EnvelopeError
}

func (e *ReceiveError) Error() string {
	if len(e.Failed) == 1 {
		return "dropped 1 envelope: " + e.Failed[0].Error()
	}
	return fmt.Sprintf("dropped %d envelopes, first: %s", len(e.Failed), e.Failed[0].Error())
}

// Unwrap returns every dropped envelope's error.
func (e *ReceiveError) Unwrap() []error {
	out := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f
	}
	return out
}
