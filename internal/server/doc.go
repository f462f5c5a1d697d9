// Package server is the konnect key server: a gin application that hands out
// its rotating RSA public key, derives per-identity session keys, keeps the
// directory of registered public keys and group memberships, and routes
// message envelopes between members.
//
// Routing tokens arrive sealed under the sender's session key. The server
// opens them to find the receiver and re-seals them under the receiver's
// session key when the envelope is fetched. Message bodies and wrapped
// message keys pass through untouched; the server cannot open them.
//
// State is kept in memory. The process is meant for development and tests.
package server
