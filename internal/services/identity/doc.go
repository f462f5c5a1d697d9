// Package identity manages the durable key pair of a community member.
//
// Create generates the RSA pair on a background goroutine together with a
// random cache key, stores both through the KeyVault and publishes the public
// half. Login recovers them into the Session; Logout wipes them again.
package identity
