package domain

import (
	"context"
	"net"
)

// ParamSource hands out the group a responder session will offer.
// Implementations must be safe for concurrent use.
type ParamSource interface {
	Params(ctx context.Context) (Params, error)
}

// Dialer opens a byte-stream connection to a peer.
type Dialer interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

// Listener accepts byte-stream connections.
type Listener interface {
	Listen(addr string) (net.Listener, error)
}
