package crypto

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Fingerprint returns a short hex fingerprint of a PEM public key.
//
// It hashes the PKIX DER with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(publicKey string) (string, error) {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", errors.Wrap(ErrInvalidKey, err.Error())
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:10]), nil
}
