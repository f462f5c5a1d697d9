// Package commands defines the konnect CLI and wires dependencies for subcommands.
//
// Commands
//
//   - keygen        Create the durable key pair and store it in the vault
//   - register      Publish your public key to the key server
//   - login         Recover your keys from the vault and print the fingerprint
//   - send          Encrypt and send a message to one member
//   - send-group    Encrypt and send a message to every member of a group
//   - recv          Fetch and decrypt queued messages
//   - history       List cached messages of one conversation
//   - request       Send an enveloped API request
//   - seal / open   Encrypt a note to a member's public key, or open one
//   - fingerprint   Print your fingerprint, or a member's
//   - vault         Remove one stored key record, or all of them
//   - backup        Upload a key backup, or restore keys from one
//   - group set     Replace the members of a group (admin)
//
// # Implementation
//
// The root command loads configuration with viper (file, KONNECT_* env and
// flags) and builds the dependency graph before any subcommand runs. Every
// process performs its own session handshake; keys recovered from the vault
// live only in the process's Session and are wiped on exit.
package commands
