package types

import "time"

// KeyPair is an RSA key pair serialised as PEM strings.
type KeyPair struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// SessionKey is the symmetric key shared with the server for one session.
// It lives in memory only.
type SessionKey struct {
	Key        []byte
	KeyID      string
	ObtainedAt time.Time
}

// ServerPublicKey is the key server's current RSA public key.
type ServerPublicKey struct {
	PublicKey string `json:"publicKey"`
	KeyID     string `json:"keyId"`
}

// Recipient pairs a member with the public key messages are wrapped to.
type Recipient struct {
	Identity  Identity `json:"identity"`
	PublicKey string   `json:"publicKey"`
}

// UserKeys are the durable secrets of a signed-in user: the private key that
// opens incoming messages and the key protecting the local message cache.
type UserKeys struct {
	PrivateKey string
	CacheKey   []byte
}
