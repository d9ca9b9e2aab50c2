// Package store provides file-based persistence for dhke.
//
// Two kinds of file are supported:
//   - Parameter files: a Diffie-Hellman group as JSON (hex p and g), written
//     by `dhke params --out` and served by a server with params.source=file.
//   - Key files: a derived session key sealed under a passphrase with
//     scrypt and ChaCha20-Poly1305.
//
// All writes go through a temp file and an atomic rename. Nothing about a
// session's private exponent or raw shared secret is ever written.
package store
