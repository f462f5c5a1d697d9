// Package request wraps API request bodies in a hybrid envelope and opens
// enveloped responses.
//
// A request body is JSON-encoded, sealed under a fresh AES-256-GCM key, and
// that key is wrapped to the server's current RSA public key. The request
// also carries the client's response public key, so the server can answer in
// the same form. A response with a "key" field is an envelope; any other
// response is returned as plain JSON.
package request
