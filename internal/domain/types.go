package domain

import (
	"fmt"
	"math/big"
	"time"
)

// Role is the side a session plays in the exchange.
type Role uint8

// Roles. The initiator dials and opens with ClientHello; the responder
// accepts and chooses the group. The zero Role is invalid.
const (
	Initiator Role = iota + 1
	Responder
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Params is a Diffie-Hellman group: prime modulus P and generator G.
// Values are treated as read-only once built; sessions share them freely.
type Params struct {
	P *big.Int
	G *big.Int
}

// NewParams copies p and g into a fresh Params.
func NewParams(p, g *big.Int) Params {
	return Params{P: new(big.Int).Set(p), G: new(big.Int).Set(g)}
}

// Bits returns the bit length of the modulus.
func (p Params) Bits() int {
	if p.P == nil {
		return 0
	}
	return p.P.BitLen()
}

// Equal reports whether both groups carry the same modulus and generator.
func (p Params) Equal(o Params) bool {
	if p.P == nil || p.G == nil || o.P == nil || o.G == nil {
		return false
	}
	return p.P.Cmp(o.P) == 0 && p.G.Cmp(o.G) == 0
}

// SessionID identifies one accepted connection for lifecycle tracking.
type SessionID uint64

// String returns the hex form used in logs.
func (id SessionID) String() string { return fmt.Sprintf("%06x", uint64(id)) }

// Result is the outcome of one completed exchange.
type Result struct {
	Role   Role
	Params Params
	// Secret is the raw shared value g^(xy) mod p.
	Secret *big.Int
	// Key is Secret passed through the session key derivation.
	Key []byte
}

// Stats is a point-in-time snapshot of a server's session counters.
type Stats struct {
	Active      int               `json:"active"`
	Accepted    uint64            `json:"accepted"`
	Established uint64            `json:"established"`
	Failed      uint64            `json:"failed"`
	FailedBy    map[string]uint64 `json:"failed_by_kind,omitempty"`
	Uptime      time.Duration     `json:"uptime_ns"`
	GroupBits   int               `json:"group_bits,omitempty"`
}

// String renders the counters on one line for logs and the CLI.
func (s Stats) String() string {
	return fmt.Sprintf("active=%d accepted=%d established=%d failed=%d uptime=%s",
		s.Active, s.Accepted, s.Established, s.Failed, s.Uptime.Truncate(time.Second))
}
