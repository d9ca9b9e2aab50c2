// Package app wires application dependencies for the CLI.
//
// It loads the YAML Config, builds the logger, crypto engine, transports,
// parameter source, server and client from it, and exposes them via the
// Wire struct for commands to use. RunServer ties the server, the status
// endpoint and the mDNS announcement to one context.
package app
