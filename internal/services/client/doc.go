// Package client runs the initiator side of an exchange against a server.
package client
