// Command keyserver runs the development key server.
//
// It serves the server public key, session key exchange, the public key
// directory, group tables and message queues, all in memory. Members
// authenticate with a bearer token of the form "type:id".
//
// Configuration comes from a yaml file (-c), KONNECT_* environment variables
// and flags:
//
//	listen: 127.0.0.1:8080
//	reroll:
//	  interval: 5m
//	master:
//	  secret: <64 hex chars>
//	groups:
//	  study: [student:alice, student:bob, club:chess]
package main
