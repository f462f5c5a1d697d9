package interfaces

import (
	"context"

	domaintypes "konnect/internal/domain/types"
)

// KVStore is the persistent, unauthenticated key-value store on the device.
// Get reports ok=false for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// MessageCache keeps decrypted messages on the device, sealed under the
// user's cache key. Messages are filed under their receiver; List only sees
// the history of owner.
type MessageCache interface {
	Put(cacheKey []byte, msg domaintypes.DecryptedMessage) error
	List(cacheKey []byte, owner domaintypes.Identity, conversation string, limit int) ([]domaintypes.DecryptedMessage, error)
	Close() error
}
