package interfaces

import (
	"context"

	domaintypes "konnect/internal/domain/types"
)

// SessionState is the lifecycle position of a KeyExchange.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateKeyRequested
	StateEstablished
	StateExpired
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateKeyRequested:
		return "key-requested"
	case StateEstablished:
		return "established"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// KeyExchange obtains and caches the session key shared with the server.
type KeyExchange interface {
	// Current returns the cached key, running a handshake if there is none.
	Current(ctx context.Context) (domaintypes.SessionKey, error)
	// Establish always runs a fresh handshake.
	Establish(ctx context.Context) (domaintypes.SessionKey, error)
	// ServerPublicKey returns the cached server public key, fetching it if needed.
	ServerPublicKey(ctx context.Context) (domaintypes.ServerPublicKey, error)
	// ForgetServerKey drops the cached server public key.
	ForgetServerKey()
	// Invalidate moves an established key to Expired.
	Invalidate()
	State() SessionState
}

// KeyVault protects a user's durable secrets at rest. Store and Recover act on
// sess.User and use sess.Exchange for the protecting key.
type KeyVault interface {
	Store(ctx context.Context, sess *Session, keys domaintypes.UserKeys) error
	Recover(ctx context.Context, sess *Session) (domaintypes.UserKeys, error)
	Exists(ctx context.Context, user domaintypes.Identity) (bool, error)
	Remove(ctx context.Context, user domaintypes.Identity) error
	ClearAll(ctx context.Context) error
}

// MessageService encrypts, sends, fetches and decrypts messages.
type MessageService interface {
	SendDirect(ctx context.Context, sess *Session, to domaintypes.Identity, plaintext []byte) error
	SendGroup(ctx context.Context, sess *Session, group domaintypes.GroupID, plaintext []byte) error
	Receive(ctx context.Context, sess *Session, limit int) ([]domaintypes.DecryptedMessage, error)
}

// RequestService seals API request bodies and opens sealed responses.
type RequestService interface {
	Do(ctx context.Context, sess *Session, path string, body any, out any) error
}

// IdentityService creates, registers and signs in durable identities.
type IdentityService interface {
	Create(ctx context.Context, sess *Session) (domaintypes.KeyPair, error)
	Replace(ctx context.Context, sess *Session) (domaintypes.KeyPair, error)
	Register(ctx context.Context, sess *Session) error
	Login(ctx context.Context, sess *Session) error
	Logout(sess *Session)
}
