package types

// EncryptedRequest is the body of every sensitive API call.
type EncryptedRequest struct {
	Key       string `json:"key"`
	KeyID     string `json:"keyId"`
	Data      string `json:"data"`
	PublicKey string `json:"publicKey,omitempty"`
}

// EncryptedResponse is a response sealed to the caller's response key.
type EncryptedResponse struct {
	Key   string `json:"key"`
	KeyID string `json:"keyId,omitempty"`
	Data  string `json:"data"`
}

// KeyExchangeRequest carries the ephemeral public key of a handshake.
type KeyExchangeRequest struct {
	PublicKey string `json:"publicKey" binding:"required"`
}

// KeyExchangeResponse carries the session key wrapped to the ephemeral key.
type KeyExchangeResponse struct {
	Key   string `json:"key"`
	KeyID string `json:"keyId"`
}

// RecipientKeyRequest asks for one member's public key.
type RecipientKeyRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// RecipientKeyResponse returns one member's public key.
type RecipientKeyResponse struct {
	Key string `json:"key"`
}

// GroupKeysRequest asks for the public keys of every member of a group.
type GroupKeysRequest struct {
	GroupID GroupID `json:"groupId" binding:"required"`
}

// GroupMemberKey is one entry of a GroupKeysResponse.
type GroupMemberKey struct {
	Identity  string `json:"identity"`
	PublicKey string `json:"publicKey"`
}

// GroupKeysResponse lists the group's members and their public keys.
type GroupKeysResponse struct {
	Keys []GroupMemberKey `json:"keys"`
}

// RegisterKeyRequest publishes the caller's durable public key.
type RegisterKeyRequest struct {
	PublicKey string `json:"publicKey" binding:"required"`
}

// AckRequest drops the first Count queued envelopes.
type AckRequest struct {
	Count int `json:"count"`
}

// GroupMembersRequest replaces the member list of a group.
type GroupMembersRequest struct {
	Members []string `json:"members" binding:"required,dive,required"`
}

// ErrorResponse is the body of every non-2xx server answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
