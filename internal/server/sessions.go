package server

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"

	"konnect/internal/crypto"
	"konnect/internal/domain"
)

const sessionKeyInfo = "konnect session key|"

// SessionKeys derives the session key of every identity from one master
// secret, so a member gets the same key in every session and the vault can
// re-derive its protection key at recovery.
type SessionKeys struct {
	master []byte
}

// NewSessionKeys returns a deriver over master. An empty master is replaced
// by a random one, so keys then last only for the process lifetime.
func NewSessionKeys(master []byte) (*SessionKeys, error) {
	if len(master) == 0 {
		k, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		master = k
	}
	if len(master) < crypto.KeySize {
		return nil, errors.Wrapf(crypto.ErrInvalidKey, "master secret is %d bytes, want >= %d", len(master), crypto.KeySize)
	}
	return &SessionKeys{master: append([]byte(nil), master...)}, nil
}

// For returns the session key of who and its id. The id names the key
// without revealing it.
func (s *SessionKeys) For(who domain.Identity) ([]byte, string, error) {
	k, err := crypto.DeriveKey(s.master, sessionKeyInfo+who.String())
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(k)
	return k, "sk_" + hex.EncodeToString(sum[:6]), nil
}
