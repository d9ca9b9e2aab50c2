package domain

import (
	"errors"
	"os"
)

// Error categories. Every failure surfaced by a session wraps exactly one of
// these so callers can branch with errors.Is.
var (
	ErrNetwork           = errors.New("network error")
	ErrTimeout           = errors.New("timeout")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrCryptoValidation  = errors.New("crypto validation failed")
	ErrParameter         = errors.New("parameter error")
	ErrRandomness        = errors.New("randomness source unavailable")
	ErrInternal          = errors.New("internal error")
)

// ErrInvalidPublicValue is returned for a public value outside [2, p-2].
var ErrInvalidPublicValue = &wrapped{msg: "invalid public value", base: ErrCryptoValidation}

// ErrSecretUnavailable is returned when the shared secret is requested before
// the key is computed, after it was already handed out, or after a failure.
var ErrSecretUnavailable = errors.New("shared secret unavailable")

type wrapped struct {
	msg  string
	base error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.base }

// Kind is the category of a failed exchange.
type Kind uint8

const (
	KindNone Kind = iota
	KindInternal
	KindNetwork
	KindTimeout
	KindProtocol
	KindCrypto
	KindParameter
	KindRandomness
)

// String returns the category name used in logs.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInternal:
		return "internal"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindCrypto:
		return "crypto"
	case KindParameter:
		return "parameter"
	case KindRandomness:
		return "randomness"
	default:
		return "unknown"
	}
}

// KindOf maps err onto its category. Errors that wrap none of the sentinels
// are internal. Deadline errors from the os package count as timeouts.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTimeout), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrProtocolViolation):
		return KindProtocol
	case errors.Is(err, ErrCryptoValidation):
		return KindCrypto
	case errors.Is(err, ErrParameter):
		return KindParameter
	case errors.Is(err, ErrRandomness):
		return KindRandomness
	default:
		return KindInternal
	}
}
