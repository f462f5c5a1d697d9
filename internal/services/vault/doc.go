// Package vault keeps a user's durable private key and cache key on the
// device, sealed under a key derived from the current session key.
//
// Records live in the device KVStore under "PrivateKey_<type>_<id>". Each
// field is sealed separately with AES-256-GCM using the field name as
// associated data, so a field copied into the other slot does not open.
// Recovery runs a fresh key exchange and returns both secrets or neither.
package vault
