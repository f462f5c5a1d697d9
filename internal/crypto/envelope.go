package crypto

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/pkg/errors"
)

// envelopeVersion is the leading byte of every combined envelope token.
const envelopeVersion = 1

// Envelope is a sealed payload together with the key that opens it, wrapped
// for one recipient.
type Envelope struct {
	WrappedKey []byte
	Body       Sealed
}

// B64 returns standard base64 encoding without newlines.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// UnB64 decodes standard base64, reporting ErrMalformedEnvelope on failure.
func UnB64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedEnvelope, err.Error())
	}
	return b, nil
}

// EncodeSealed renders s as base64(iv || tag || ciphertext).
func EncodeSealed(s Sealed) string {
	buf := make([]byte, 0, len(s.IV)+len(s.Tag)+len(s.Ciphertext))
	buf = append(buf, s.IV...)
	buf = append(buf, s.Tag...)
	buf = append(buf, s.Ciphertext...)
	return B64(buf)
}

// DecodeSealed parses a token made by EncodeSealed.
func DecodeSealed(token string) (Sealed, error) {
	raw, err := UnB64(token)
	if err != nil {
		return Sealed{}, err
	}
	return splitSealed(raw)
}

func splitSealed(raw []byte) (Sealed, error) {
	if len(raw) < NonceSize+TagSize {
		return Sealed{}, errors.Wrapf(ErrMalformedEnvelope, "sealed payload is %d bytes, want >= %d", len(raw), NonceSize+TagSize)
	}
	return Sealed{
		IV:         raw[:NonceSize],
		Tag:        raw[NonceSize : NonceSize+TagSize],
		Ciphertext: raw[NonceSize+TagSize:],
	}, nil
}

// EncodeEnvelope renders e as
//
//	base64(version:1 | len(wrappedKey):2 big-endian | wrappedKey | iv | tag | ciphertext)
func EncodeEnvelope(e Envelope) (string, error) {
	if len(e.WrappedKey) > 0xffff {
		return "", errors.Wrapf(ErrMalformedEnvelope, "wrapped key is %d bytes", len(e.WrappedKey))
	}
	if len(e.Body.IV) != NonceSize || len(e.Body.Tag) != TagSize {
		return "", errors.Wrap(ErrMalformedEnvelope, "body is not a sealed payload")
	}
	buf := make([]byte, 3, 3+len(e.WrappedKey)+NonceSize+TagSize+len(e.Body.Ciphertext))
	buf[0] = envelopeVersion
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(e.WrappedKey)))
	buf = append(buf, e.WrappedKey...)
	buf = append(buf, e.Body.IV...)
	buf = append(buf, e.Body.Tag...)
	buf = append(buf, e.Body.Ciphertext...)
	return B64(buf), nil
}

// DecodeEnvelope parses a token made by EncodeEnvelope. Truncated or
// over-long length prefixes are rejected, never clamped.
func DecodeEnvelope(token string) (Envelope, error) {
	raw, err := UnB64(token)
	if err != nil {
		return Envelope{}, err
	}
	if len(raw) < 3 {
		return Envelope{}, errors.Wrap(ErrMalformedEnvelope, "missing header")
	}
	if raw[0] != envelopeVersion {
		return Envelope{}, errors.Wrapf(ErrMalformedEnvelope, "unsupported version %d", raw[0])
	}
	n := int(binary.BigEndian.Uint16(raw[1:3]))
	rest := raw[3:]
	if len(rest) < n {
		return Envelope{}, errors.Wrapf(ErrMalformedEnvelope, "wrapped key length %d exceeds payload", n)
	}
	body, err := splitSealed(rest[n:])
	if err != nil {
		return Envelope{}, err
	}
	var wk []byte
	if n > 0 {
		wk = rest[:n]
	}
	return Envelope{WrappedKey: wk, Body: body}, nil
}

// SealFor encrypts plaintext under a fresh key wrapped to recipientPublicKey
// and returns the combined envelope token.
func SealFor(plaintext []byte, recipientPublicKey string) (string, error) {
	k, err := GenerateKey()
	if err != nil {
		return "", err
	}
	defer Wipe(k)
	wrapped, err := Wrap(k, recipientPublicKey)
	if err != nil {
		return "", err
	}
	body, err := Encrypt(k, plaintext, nil)
	if err != nil {
		return "", err
	}
	return EncodeEnvelope(Envelope{WrappedKey: wrapped, Body: body})
}

// OpenFrom is the inverse of SealFor.
func OpenFrom(token, ownPrivateKey string) ([]byte, error) {
	e, err := DecodeEnvelope(token)
	if err != nil {
		return nil, err
	}
	k, err := Unwrap(e.WrappedKey, ownPrivateKey)
	if err != nil {
		return nil, err
	}
	defer Wipe(k)
	return Decrypt(e.Body, k, nil)
}
