// Package crypto implements the finite-field Diffie-Hellman primitives used
// by dhke.
//
// Contents
//
//   - Parameter generation and validation (Engine.GenerateParameters,
//     Engine.ValidateParameters) and the well-known MODP groups (Group)
//   - Private exponent generation in [2, p-2] (Engine.GenerateExponent)
//   - Modular exponentiation for public values and shared secrets
//     (Engine.ComputePublic, Engine.ComputeSharedSecret)
//   - Public value range checks (ValidatePublicValue)
//   - Session key derivation with HKDF-SHA256 (DeriveKey)
//   - Short fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// The randomness source is injected through WithRand; nothing in this
// package reads a global generator other than the crypto/rand default.
// Exponentiation relies on math/big and is not constant time.
package crypto
