package vault

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned by Recover when no record exists for the user.
	ErrNotFound = errors.New("no stored keys for user")

	// ErrKeyRecoveryFailed is returned when a record exists but cannot be
	// opened or validated. The user stays signed out.
	ErrKeyRecoveryFailed = errors.New("key recovery failed")

	// ErrInvalidKeys is returned by Store for keys that would not survive a
	// later Recover.
	ErrInvalidKeys = errors.New("invalid user keys")
)

// RecoveryError reports which part of a stored record failed to recover.
type RecoveryError struct {
	Field string
	Err   error
}

func (e *RecoveryError) Error() string {
	if e.Err == nil {
		return ErrKeyRecoveryFailed.Error() + ": " + e.Field
	}
	return ErrKeyRecoveryFailed.Error() + ": " + e.Field + ": " + e.Err.Error()
}

// Is matches ErrKeyRecoveryFailed.
func (e *RecoveryError) Is(target error) bool { return target == ErrKeyRecoveryFailed }

// Unwrap returns the underlying cause.
func (e *RecoveryError) Unwrap() error { return e.Err }
