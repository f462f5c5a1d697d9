// Package message sends and receives encrypted chat messages.
//
// A message body is sealed once under a fresh per-message key. That key is
// then wrapped to every recipient's public key, producing one envelope per
// recipient. Routing identities are sealed under the session key. Exchange
// with other members goes through the MessageTransport.
package message
