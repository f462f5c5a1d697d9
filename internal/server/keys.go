package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"konnect/internal/crypto"
	"konnect/internal/domain"
)

// DefaultRerollInterval is the minimum age of the current key before a
// rotation is allowed.
const DefaultRerollInterval = 5 * time.Minute

type serverKey struct {
	id      string
	pair    domain.KeyPair
	created time.Time
}

// KeyManager holds the server's current RSA key pair and the one before it.
// Requests wrapped to either are accepted; older ids are rejected.
type KeyManager struct {
	bits     int
	interval time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	current  *serverKey
	previous *serverKey
}

// NewKeyManager generates the first key pair.
func NewKeyManager(bits int, interval time.Duration, now func() time.Time) (*KeyManager, error) {
	if interval <= 0 {
		interval = DefaultRerollInterval
	}
	if now == nil {
		now = time.Now
	}
	km := &KeyManager{bits: bits, interval: interval, now: now}
	k, err := km.generate()
	if err != nil {
		return nil, err
	}
	km.current = k
	return km, nil
}

func (km *KeyManager) generate() (*serverKey, error) {
	kp, err := crypto.GenerateKeyPair(km.bits)
	if err != nil {
		return nil, err
	}
	return &serverKey{id: "key_" + uuid.NewString(), pair: kp, created: km.now()}, nil
}

// Current returns the public half of the current key.
func (km *KeyManager) Current() domain.ServerPublicKey {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return domain.ServerPublicKey{PublicKey: km.current.pair.PublicKey, KeyID: km.current.id}
}

// Reroll rotates the key if the current one is at least the reroll interval
// old. It reports whether a rotation happened. Concurrent callers rotate at
// most once per interval.
func (km *KeyManager) Reroll() (bool, error) {
	if !km.due() {
		return false, nil
	}
	k, err := km.generate()
	if err != nil {
		return false, err
	}
	km.mu.Lock()
	defer km.mu.Unlock()
	if km.now().Sub(km.current.created) < km.interval {
		return false, nil
	}
	km.previous, km.current = km.current, k
	return true, nil
}

func (km *KeyManager) due() bool {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.now().Sub(km.current.created) >= km.interval
}

// Rotate replaces the current key unconditionally; the old current key
// becomes the previous one.
func (km *KeyManager) Rotate() error {
	k, err := km.generate()
	if err != nil {
		return err
	}
	km.mu.Lock()
	km.previous, km.current = km.current, k
	km.mu.Unlock()
	return nil
}

// PrivateKey returns the PEM private key named by keyID, checking the current
// key first, or domain.ErrUnknownKeyID.
func (km *KeyManager) PrivateKey(keyID string) (string, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	for _, k := range []*serverKey{km.current, km.previous} {
		if k != nil && k.id == keyID {
			return k.pair.PrivateKey, nil
		}
	}
	return "", domain.ErrUnknownKeyID
}
