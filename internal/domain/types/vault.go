package types

// StoredKeyPrefix starts the name of every StoredKeyRecord in the KV store.
const StoredKeyPrefix = "PrivateKey_"

// StoredKeyRecordVersion is the current record layout.
const StoredKeyRecordVersion = 1

// StoredKeyRecord is the at-rest form of a user's durable secrets. Both fields
// are sealed tokens under a key derived from the session key.
type StoredKeyRecord struct {
	V                   int    `json:"v"`
	KeyID               string `json:"key_id"`
	EncryptedPrivateKey string `json:"encrypted_private_key"`
	EncryptedCacheKey   string `json:"encrypted_cache_key"`
}

// KeyBackupVersion is the current backup layout.
const KeyBackupVersion = 1

// KeyBackup is the server-held copy of a user's durable secrets. Sealed is an
// envelope token to the user's recovery public key; the server can neither
// open it nor tell which recovery key it is for beyond RecoveryKeyHash.
type KeyBackup struct {
	V               int    `json:"v" binding:"required"`
	RecoveryKeyHash string `json:"recovery_key_hash" binding:"required,len=64,hexadecimal"`
	Sealed          string `json:"sealed" binding:"required"`
	UpdatedAt       int64  `json:"updated_at,omitempty"`
}
