package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"

	"dhke/internal/domain"
)

// Transport names.
const (
	TCP = "tcp"
	KCP = "kcp"
)

// DefaultDialTimeout bounds connection setup when the context has no deadline.
const DefaultDialTimeout = 10 * time.Second

// kcp tuning: nodelay, interval(ms), resend, no congestion control.
var kcpTurbo = [4]int{1, 10, 2, 1}

const (
	kcpWindow = 128
	kcpMTU    = 1400
)

// Transport listens and dials on one network kind.
type Transport struct {
	kind        string
	dialTimeout time.Duration
}

// New returns the transport named kind. An empty kind selects TCP.
func New(kind string) (*Transport, error) {
	switch kind {
	case "", TCP:
		return &Transport{kind: TCP, dialTimeout: DefaultDialTimeout}, nil
	case KCP:
		return &Transport{kind: KCP, dialTimeout: DefaultDialTimeout}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s or %s)", kind, TCP, KCP)
	}
}

// Kind returns the transport name.
func (t *Transport) Kind() string { return t.kind }

// Listen opens a listener on addr.
func (t *Transport) Listen(addr string) (net.Listener, error) {
	switch t.kind {
	case KCP:
		ln, err := kcp.ListenWithOptions(addr, nil, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: kcp listen %s: %w", domain.ErrNetwork, addr, err)
		}
		return &kcpListener{Listener: ln}, nil
	default:
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("%w: listen %s: %w", domain.ErrNetwork, addr, err)
		}
		return ln, nil
	}
}

// Dial connects to addr. The caller classifies the returned error.
func (t *Transport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	if t.kind == KCP {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := kcp.DialWithOptions(addr, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		tuneKCP(conn)
		return conn, nil
	}
	d := net.Dialer{Timeout: t.dialTimeout}
	return d.DialContext(ctx, "tcp", addr)
}

func tuneKCP(s *kcp.UDPSession) {
	s.SetStreamMode(true)
	s.SetWriteDelay(false)
	s.SetNoDelay(kcpTurbo[0], kcpTurbo[1], kcpTurbo[2], kcpTurbo[3])
	s.SetWindowSize(kcpWindow, kcpWindow)
	s.SetMtu(kcpMTU)
	s.SetACKNoDelay(true)
}

// kcpListener applies the stream tuning to every accepted session.
type kcpListener struct {
	*kcp.Listener
}

func (l *kcpListener) Accept() (net.Conn, error) {
	s, err := l.AcceptKCP()
	if err != nil {
		return nil, err
	}
	tuneKCP(s)
	return s, nil
}

var (
	_ domain.Dialer   = (*Transport)(nil)
	_ domain.Listener = (*Transport)(nil)
)
