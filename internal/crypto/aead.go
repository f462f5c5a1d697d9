package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM tag length in bytes.
	TagSize = 16
)

// Sealed is one AES-GCM encryption result, split into its parts.
type Sealed struct {
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

// GenerateKey returns a uniformly random KeySize-byte key.
func GenerateKey() ([]byte, error) {
	k := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, errors.Wrap(ErrKeyGeneration, err.Error())
	}
	return k, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "aes key is %d bytes, want %d", len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, err.Error())
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under key with a fresh random nonce. aad may be nil;
// the same aad must be given to Decrypt.
func Encrypt(key, plaintext, aad []byte) (Sealed, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Sealed{}, err
	}
	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Sealed{}, errors.Wrap(ErrKeyGeneration, err.Error())
	}
	out := gcm.Seal(nil, iv, plaintext, aad)
	split := len(out) - TagSize
	return Sealed{
		IV:         iv,
		Tag:        out[split:],
		Ciphertext: out[:split],
	}, nil
}

// Decrypt opens s under key. A tag mismatch is ErrAuthentication.
func Decrypt(s Sealed, key, aad []byte) ([]byte, error) {
	if len(s.IV) != NonceSize || len(s.Tag) != TagSize {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "iv %d bytes, tag %d bytes", len(s.IV), len(s.Tag))
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(s.Ciphertext)+TagSize)
	buf = append(buf, s.Ciphertext...)
	buf = append(buf, s.Tag...)
	pt, err := gcm.Open(nil, s.IV, buf, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return pt, nil
}

// SealToken is Encrypt followed by EncodeSealed.
func SealToken(key, plaintext, aad []byte) (string, error) {
	s, err := Encrypt(key, plaintext, aad)
	if err != nil {
		return "", err
	}
	return EncodeSealed(s), nil
}

// OpenToken is DecodeSealed followed by Decrypt.
func OpenToken(key []byte, token string, aad []byte) ([]byte, error) {
	s, err := DecodeSealed(token)
	if err != nil {
		return nil, err
	}
	return Decrypt(s, key, aad)
}
