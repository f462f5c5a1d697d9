package crypto

import (
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// DeriveKey expands secret into a KeySize-byte key bound to info.
func DeriveKey(secret []byte, info string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.Wrap(ErrInvalidKey, "empty secret")
	}
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, errors.Wrap(ErrKeyGeneration, err.Error())
	}
	return out, nil
}
