// Package session establishes and tracks the session key shared with the key
// server.
//
// An Exchange moves through Uninitialized, KeyRequested, Established and
// Expired. A handshake generates an ephemeral RSA pair, sends the public half
// to the server, and unwraps the server-chosen symmetric key locally.
// Concurrent callers share one in-flight handshake. The key is held in memory
// only.
package session
