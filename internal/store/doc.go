// Package store provides the on-device persistence of konnect.
//
// It contains concrete implementations of the domain storage interfaces:
//   - FileStore, a KVStore kept as one JSON file under the user's config dir
//   - RedisStore, a KVStore over a shared Redis instance
//   - BoltCache, the MessageCache of decrypted history in a bbolt database
//
// KVStore values are opaque to this package; callers seal what they put
// there. BoltCache seals every record itself under the caller's cache key.
package store
