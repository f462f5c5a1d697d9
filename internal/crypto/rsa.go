package crypto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"github.com/pkg/errors"

	"konnect/internal/domain"
)

const (
	// MinRSABits is the smallest modulus accepted for generation and parsing.
	MinRSABits = 2048
	// DefaultRSABits is used when callers pass zero.
	DefaultRSABits = 2048

	pemPrivateKey    = "PRIVATE KEY"
	pemRSAPrivateKey = "RSA PRIVATE KEY"
	pemPublicKey     = "PUBLIC KEY"
)

// GenerateKeyPair returns a fresh RSA key pair as PEM strings.
//
// The private half is PKCS#8, the public half PKIX. A failing entropy source
// surfaces as ErrKeyGeneration; no weaker fallback is attempted.
func GenerateKeyPair(bits int) (domain.KeyPair, error) {
	if bits == 0 {
		bits = DefaultRSABits
	}
	if bits < MinRSABits {
		return domain.KeyPair{}, errors.Wrapf(ErrInvalidKey, "rsa modulus %d bits, want >= %d", bits, MinRSABits)
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return domain.KeyPair{}, errors.Wrap(ErrKeyGeneration, err.Error())
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return domain.KeyPair{}, errors.Wrap(ErrKeyGeneration, err.Error())
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return domain.KeyPair{}, errors.Wrap(ErrKeyGeneration, err.Error())
	}
	return domain.KeyPair{
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: pubDER})),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: der})),
	}, nil
}

// GenerateKeyPairContext runs GenerateKeyPair on a background goroutine so
// interactive callers are not blocked. If ctx ends first the pair being
// generated is discarded and ctx.Err() is returned.
func GenerateKeyPairContext(ctx context.Context, bits int) (domain.KeyPair, error) {
	type result struct {
		kp  domain.KeyPair
		err error
	}
	done := make(chan result, 1)
	go func() {
		kp, err := GenerateKeyPair(bits)
		done <- result{kp, err}
	}()
	select {
	case <-ctx.Done():
		return domain.KeyPair{}, ctx.Err()
	case r := <-done:
		return r.kp, r.err
	}
}

// ParsePublicKey decodes a PKIX (or PKCS#1) PEM public key.
func ParsePublicKey(s string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, errors.Wrap(ErrInvalidKey, "public key: no PEM block")
	}
	var pub *rsa.PublicKey
	switch block.Type {
	case pemPublicKey:
		k, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKey, err.Error())
		}
		rk, ok := k.(*rsa.PublicKey)
		if !ok {
			return nil, errors.Wrap(ErrInvalidKey, "public key is not RSA")
		}
		pub = rk
	case "RSA PUBLIC KEY":
		k, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKey, err.Error())
		}
		pub = k
	default:
		return nil, errors.Wrapf(ErrInvalidKey, "unexpected PEM type %q", block.Type)
	}
	if pub.N.BitLen() < MinRSABits {
		return nil, errors.Wrapf(ErrInvalidKey, "rsa modulus %d bits", pub.N.BitLen())
	}
	return pub, nil
}

// ParsePrivateKey decodes a PKCS#8 or PKCS#1 PEM private key.
func ParsePrivateKey(s string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, errors.Wrap(ErrInvalidKey, "private key: no PEM block")
	}
	var priv *rsa.PrivateKey
	switch block.Type {
	case pemPrivateKey:
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKey, err.Error())
		}
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.Wrap(ErrInvalidKey, "private key is not RSA")
		}
		priv = rk
	case pemRSAPrivateKey:
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKey, err.Error())
		}
		priv = k
	default:
		return nil, errors.Wrapf(ErrInvalidKey, "unexpected PEM type %q", block.Type)
	}
	if priv.N.BitLen() < MinRSABits {
		return nil, errors.Wrapf(ErrInvalidKey, "rsa modulus %d bits", priv.N.BitLen())
	}
	return priv, nil
}

// PublicKeyOf returns the PEM public half of a PEM private key.
func PublicKeyOf(privateKey string) (string, error) {
	priv, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", errors.Wrap(ErrInvalidKey, err.Error())
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: der})), nil
}

// Wrap encrypts a symmetric key to recipientPublicKey with RSA-OAEP/SHA-256.
func Wrap(symmetricKey []byte, recipientPublicKey string) ([]byte, error) {
	if len(symmetricKey) != KeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "symmetric key is %d bytes, want %d", len(symmetricKey), KeySize)
	}
	pub, err := ParsePublicKey(recipientPublicKey)
	if err != nil {
		return nil, err
	}
	out, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, symmetricKey, nil)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, err.Error())
	}
	return out, nil
}

// Unwrap opens a key produced by Wrap. Anything but a well-formed
// KeySize-byte key yields ErrKeyUnwrap.
func Unwrap(wrapped []byte, ownPrivateKey string) ([]byte, error) {
	priv, err := ParsePrivateKey(ownPrivateKey)
	if err != nil {
		return nil, err
	}
	key, err := rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
	if err != nil {
		return nil, ErrKeyUnwrap
	}
	if len(key) != KeySize {
		Wipe(key)
		return nil, errors.Wrapf(ErrKeyUnwrap, "unwrapped %d bytes", len(key))
	}
	return key, nil
}
