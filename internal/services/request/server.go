package request

import (
	"github.com/pkg/errors"

	"konnect/internal/crypto"
	"konnect/internal/domain"
)

// KeyLookup returns the PEM private key the server holds under keyID, or
// domain.ErrUnknownKeyID.
type KeyLookup func(keyID string) (string, error)

// OpenRequest is the server side of Seal: it unwraps the request key with
// the private key named by req.KeyID and returns the JSON body.
func OpenRequest(req domain.EncryptedRequest, lookup KeyLookup) ([]byte, error) {
	priv, err := lookup(req.KeyID)
	if err != nil {
		return nil, err
	}
	wrapped, err := crypto.UnB64(req.Key)
	if err != nil {
		return nil, err
	}
	k, err := crypto.Unwrap(wrapped, priv)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(k)
	body, err := crypto.OpenToken(k, req.Data, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open request body")
	}
	return body, nil
}

// SealResponse envelopes a JSON response body for the client public key
// carried by the request.
func SealResponse(body []byte, clientPublicKey string) (domain.EncryptedResponse, error) {
	k, err := crypto.GenerateKey()
	if err != nil {
		return domain.EncryptedResponse{}, err
	}
	defer crypto.Wipe(k)

	data, err := crypto.SealToken(k, body, nil)
	if err != nil {
		return domain.EncryptedResponse{}, err
	}
	wrapped, err := crypto.Wrap(k, clientPublicKey)
	if err != nil {
		return domain.EncryptedResponse{}, errors.Wrap(err, "wrap response key")
	}
	return domain.EncryptedResponse{Key: crypto.B64(wrapped), Data: data}, nil
}
