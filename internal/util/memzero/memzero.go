// Package memzero clears secret material held in memory.
//
// Clearing is best-effort: the Go runtime may have copied a value before it
// is zeroed (slice growth, math/big scratch space, GC moves), and those
// copies are out of reach.
package memzero

import (
	"crypto/subtle"
	"math/big"
	"runtime"
)

// Zero overwrites b with zeros.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// Int zeroes the words backing x and resets it to 0. A nil x is ignored.
//
//go:noinline
func Int(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
	runtime.KeepAlive(words)
}
