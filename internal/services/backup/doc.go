// Package backup keeps a copy of a member's durable keys on the key server.
//
// The copy is sealed to a recovery key pair generated on the device. Only the
// recovery private key, which the member keeps offline, opens it. Creating a
// new backup replaces the old one on the server, so an earlier recovery key
// stops working.
package backup
