// Package server accepts connections and runs one responder session per
// connection in its own goroutine.
//
// Sessions share nothing mutable: each gets its own exponent and, depending
// on the ParamSource, either a private copy of an immutable group or a group
// generated just for it. A failure, timeout or panic in one session is
// logged, counted and reported through OnFailed without disturbing the
// listener or any other session. Shutdown stops accepting and waits for the
// sessions in flight.
package server
