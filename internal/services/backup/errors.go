package backup

import "github.com/pkg/errors"

var (
	// ErrNoBackup is returned by Restore when the server holds no backup.
	ErrNoBackup = errors.New("no key backup on the server")

	// ErrWrongRecoveryKey is returned when the recovery key is not the one
	// the backup was sealed to.
	ErrWrongRecoveryKey = errors.New("recovery key does not match the backup")

	// ErrNotLoggedIn is returned by Create without recovered keys.
	ErrNotLoggedIn = errors.New("not logged in")
)
