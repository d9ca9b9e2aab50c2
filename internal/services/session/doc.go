// Package session drives one Diffie-Hellman exchange for one connection.
//
// A Session pairs a role with the crypto engine and a protocol.Machine. It
// decides what to send in reply to each inbound message, validates every
// value the peer offers, and yields the shared secret exactly once after a
// successful run. Run moves a Session over a net.Conn with per-message
// deadlines until it closes or fails.
//
// Session material never leaves the package except through SharedSecret and
// the domain.Result returned by Run. The private exponent is wiped as soon as
// the secret is computed, and all material is wiped on failure.
package session
