package client_test

import (
	"context"
	"errors"
	"math/big"
	"net"
	"testing"
	"time"

	"dhke/internal/crypto"
	"dhke/internal/domain"
	"dhke/internal/protocol"
	"dhke/internal/services/client"
	"dhke/internal/services/session"
	"dhke/internal/transport"
)

type refusingDialer struct{}

func (refusingDialer) Dial(context.Context, string) (net.Conn, error) {
	return nil, errors.New("connection refused")
}

func TestExchange_DialFailure(t *testing.T) {
	c := client.New(refusingDialer{}, nil, time.Second, nil)
	if _, err := c.Exchange(context.Background(), "127.0.0.1:1"); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("want ErrNetwork, got %v", err)
	}
}

// serveOnce answers a single connection on ln with handler.
func serveOnce(t *testing.T, handler func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}()
	return ln.Addr().String()
}

func TestExchange_AgainstResponder(t *testing.T) {
	params, err := crypto.Group(2)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan domain.Result, 1)
	addr := serveOnce(t, func(conn net.Conn) {
		s, err := session.NewResponder(crypto.NewEngine(), params)
		if err != nil {
			return
		}
		res, err := session.Run(context.Background(), conn, s, session.RunOptions{Timeout: 5 * time.Second})
		if err == nil {
			done <- res
		}
	})

	tr, _ := transport.New(transport.TCP)
	got, err := client.New(tr, nil, 5*time.Second, nil).Exchange(context.Background(), addr)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	select {
	case srv := <-done:
		if srv.Secret.Cmp(got.Secret) != 0 {
			t.Fatal("secrets differ")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("responder did not finish")
	}
}

func TestExchange_SilentServerTimesOut(t *testing.T) {
	addr := serveOnce(t, func(conn net.Conn) {
		_, _ = protocol.ReadMessage(conn)
		time.Sleep(time.Second)
	})
	tr, _ := transport.New(transport.TCP)
	_, err := client.New(tr, nil, 100*time.Millisecond, nil).Exchange(context.Background(), addr)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
}

func TestExchange_RejectsSmallGroup(t *testing.T) {
	addr := serveOnce(t, func(conn net.Conn) {
		_, _ = protocol.ReadMessage(conn)
		p, _ := crypto.Group(1)
		_ = protocol.WriteMessage(conn, protocol.ServerHello{P: p.P, G: p.G})
		_, _ = protocol.ReadMessage(conn)
	})
	tr, _ := transport.New(transport.TCP)
	engine := crypto.NewEngine(crypto.WithMinBits(1024))
	_, err := client.New(tr, engine, time.Second, nil).Exchange(context.Background(), addr)
	if !errors.Is(err, domain.ErrCryptoValidation) {
		t.Fatalf("want ErrCryptoValidation, got %v", err)
	}
}

func TestExchange_RejectsOversizedGroupQuickly(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 400_000)
	huge.Add(huge, big.NewInt(1))
	addr := serveOnce(t, func(conn net.Conn) {
		_, _ = protocol.ReadMessage(conn)
		_ = protocol.WriteMessage(conn, protocol.ServerHello{P: huge, G: big.NewInt(2)})
		_, _ = protocol.ReadMessage(conn)
	})
	tr, _ := transport.New(transport.TCP)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err := client.New(tr, nil, time.Second, nil).Exchange(ctx, addr)
	if !errors.Is(err, domain.ErrCryptoValidation) {
		t.Fatalf("want ErrCryptoValidation, got %v", err)
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Fatalf("exchange took %s", d)
	}
}
