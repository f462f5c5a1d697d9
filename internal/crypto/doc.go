// Package crypto exposes the primitives behind Konnect's hybrid envelopes.
//
// Contents
//
//   - RSA-OAEP key pairs used to wrap symmetric keys (GenerateKeyPair,
//     GenerateKeyPairContext, Wrap, Unwrap)
//   - AES-256-GCM authenticated encryption (GenerateKey, Encrypt, Decrypt)
//   - The canonical token layouts for sealed payloads and wrapped-key
//     envelopes (EncodeSealed, DecodeSealed, EncodeEnvelope, DecodeEnvelope)
//   - HKDF sub-key derivation (DeriveKey)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Errors
//
// Every failure is reported through one of the sentinels in errors.go and is
// never replaced by a plaintext-shaped value. Callers match with errors.Is.
//
// # Notes
//
// Keys travel as PEM strings, matching what the key server publishes.
// Symmetric keys are raw 32-byte slices; callers should Wipe them when done.
package crypto
