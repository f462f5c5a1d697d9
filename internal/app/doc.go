// Package app loads configuration and wires application dependencies.
//
// The client CLI gets a Wire: the relay client, session exchange, stores and
// high-level services built from Config. The key server binary gets a
// server.Server built from ServerConfig.
package app
