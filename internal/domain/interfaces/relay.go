package interfaces

import (
	"context"
	"encoding/json"

	domaintypes "konnect/internal/domain/types"
)

// KeyServer is how we talk to the key server's key endpoints, all with context.
type KeyServer interface {
	ServerPublicKey(ctx context.Context) (domaintypes.ServerPublicKey, error)
	ExchangeSessionKey(
		ctx context.Context,
		ephemeralPublicKey string,
	) (domaintypes.KeyExchangeResponse, error)
	RecipientKey(ctx context.Context, identity domaintypes.Identity) (string, error)
	GroupKeys(ctx context.Context, group domaintypes.GroupID) ([]domaintypes.Recipient, error)
	RegisterPublicKey(ctx context.Context, publicKey string) error
}

// MessageTransport moves envelopes between members. Publish is all or nothing.
type MessageTransport interface {
	Publish(ctx context.Context, envelopes []domaintypes.MessageEnvelope) error
	Fetch(ctx context.Context, limit int) ([]domaintypes.MessageEnvelope, error)
	Ack(ctx context.Context, count int) error
}

// APIClient posts a JSON body to an API path and returns the raw response body.
type APIClient interface {
	Call(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// BackupStore keeps the caller's key backup on the key server.
type BackupStore interface {
	PutBackup(ctx context.Context, backup domaintypes.KeyBackup) error
	GetBackup(ctx context.Context) (domaintypes.KeyBackup, error)
}
