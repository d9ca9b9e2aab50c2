package server_test

import (
	"context"
	"errors"
	"math/big"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dhke/internal/crypto"
	"dhke/internal/domain"
	"dhke/internal/protocol"
	"dhke/internal/services/client"
	"dhke/internal/services/server"
	"dhke/internal/transport"
)

type harness struct {
	srv  *server.Server
	addr string
	errc chan error

	mu          sync.Mutex
	established []domain.Result
	failures    []error
}

func (h *harness) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.established)
}

func (h *harness) failureCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.failures)
}

func startServer(t *testing.T, src domain.ParamSource, tweak func(*server.Config)) *harness {
	t.Helper()
	h := &harness{errc: make(chan error, 1)}
	cfg := server.Config{
		Params:  src,
		Timeout: 2 * time.Second,
		OnEstablished: func(_ server.SessionInfo, r domain.Result) {
			h.mu.Lock()
			h.established = append(h.established, r)
			h.mu.Unlock()
		},
		OnFailed: func(_ server.SessionInfo, err error) {
			h.mu.Lock()
			h.failures = append(h.failures, err)
			h.mu.Unlock()
		},
	}
	if tweak != nil {
		tweak(&cfg)
	}
	h.srv = server.New(cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	h.addr = ln.Addr().String()
	go func() { h.errc <- h.srv.Serve(context.Background(), ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.srv.Shutdown(ctx)
		if err := <-h.errc; !errors.Is(err, server.ErrServerClosed) {
			t.Errorf("Serve returned %v", err)
		}
	})
	return h
}

func modp(t *testing.T, id int) domain.Params {
	t.Helper()
	p, err := crypto.Group(id)
	if err != nil {
		t.Fatalf("Group(%d): %v", id, err)
	}
	return p
}

func newClient() *client.Service {
	tr, _ := transport.New(transport.TCP)
	return client.New(tr, nil, 2*time.Second, nil)
}

func TestServer_ConcurrentClients(t *testing.T) {
	h := startServer(t, crypto.NewStaticSource(modp(t, 1)), nil)

	const n = 8
	results := make([]domain.Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = newClient().Exchange(context.Background(), h.addr)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("client %d: %v", i, errs[i])
		}
		k := results[i].Secret.String()
		if seen[k] {
			t.Fatalf("client %d reused a secret", i)
		}
		seen[k] = true
	}

	waitFor(t, func() bool { return h.count() == n })
	if got := h.srv.Stats().Established; got != n {
		t.Fatalf("want %d established, got %d", n, got)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.established {
		if !seen[r.Secret.String()] {
			t.Fatal("server-side secret matches no client")
		}
	}
}

func TestServer_BadClientDoesNotAffectOthers(t *testing.T) {
	h := startServer(t, crypto.NewStaticSource(modp(t, 1)), nil)

	// A peer that skips ClientHello and then stalls.
	bad, err := net.Dial("tcp", h.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer bad.Close()
	if err := protocol.WriteMessage(bad, protocol.ClientPublic{X: big.NewInt(2)}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// One that connects and says nothing at all.
	idle, err := net.Dial("tcp", h.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer idle.Close()

	if _, err := newClient().Exchange(context.Background(), h.addr); err != nil {
		t.Fatalf("good client: %v", err)
	}

	// The server records its side only after reading Done, which can land
	// after the client has returned.
	waitFor(t, func() bool {
		st := h.srv.Stats()
		return st.Established >= 1 && st.FailedBy[domain.KindProtocol.String()] >= 1
	})
	if got := h.srv.Stats().Established; got != 1 {
		t.Fatalf("want 1 established, got %d", got)
	}
}

func TestServer_TimeoutFailsOnlyThatSession(t *testing.T) {
	h := startServer(t, crypto.NewStaticSource(modp(t, 1)), func(c *server.Config) {
		c.Timeout = 100 * time.Millisecond
	})
	idle, err := net.Dial("tcp", h.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer idle.Close()

	waitFor(t, func() bool { return h.failureCount() == 1 })
	if got := h.srv.Stats().FailedBy[domain.KindTimeout.String()]; got != 1 {
		t.Fatalf("want 1 timeout, got %d", got)
	}
	h.mu.Lock()
	err = h.failures[0]
	h.mu.Unlock()
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
}

type panickySource struct{ calls int }

func (p *panickySource) Params(context.Context) (domain.Params, error) {
	p.calls++
	if p.calls == 1 {
		panic("boom")
	}
	return crypto.Group(1)
}

func TestServer_RecoversFromSessionPanic(t *testing.T) {
	h := startServer(t, &panickySource{}, func(c *server.Config) { c.MaxSessions = 1 })

	first, err := net.Dial("tcp", h.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer first.Close()
	waitFor(t, func() bool { return h.srv.Stats().FailedBy[domain.KindInternal.String()] == 1 })

	if _, err := newClient().Exchange(context.Background(), h.addr); err != nil {
		t.Fatalf("exchange after panic: %v", err)
	}
}

func TestServer_CallbackPanicCountedOnce(t *testing.T) {
	var calls atomic.Int32
	h := startServer(t, crypto.NewStaticSource(modp(t, 1)), func(c *server.Config) {
		c.OnEstablished = func(server.SessionInfo, domain.Result) {
			calls.Add(1)
			panic("callback bug")
		}
	})

	for i := 0; i < 2; i++ {
		if _, err := newClient().Exchange(context.Background(), h.addr); err != nil {
			t.Fatalf("exchange %d: %v", i, err)
		}
	}
	waitFor(t, func() bool { return calls.Load() == 2 && h.srv.Active() == 0 })
	st := h.srv.Stats()
	if st.Established != 2 || st.Failed != 0 {
		t.Fatalf("want 2 established and 0 failed, got %d and %d", st.Established, st.Failed)
	}
}

type failingSource struct{}

func (failingSource) Params(context.Context) (domain.Params, error) {
	return domain.Params{}, domain.ErrRandomness
}

func TestServer_ParamFailureSendsNothing(t *testing.T) {
	h := startServer(t, failingSource{}, nil)
	conn, err := net.Dial("tcp", h.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := protocol.ReadMessage(conn); err == nil {
		t.Fatal("server sent a message after a parameter failure")
	}
	waitFor(t, func() bool { return h.srv.Stats().FailedBy[domain.KindRandomness.String()] == 1 })
}

func TestServer_ShutdownDrainsAndStops(t *testing.T) {
	src := crypto.NewStaticSource(modp(t, 1))
	srv := server.New(server.Config{Params: src})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(context.Background(), ln) }()

	if _, err := newClient().Exchange(context.Background(), addr); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-errc; !errors.Is(err, server.ErrServerClosed) {
		t.Fatalf("want ErrServerClosed, got %v", err)
	}
	if srv.Active() != 0 {
		t.Fatalf("want no active sessions, got %d", srv.Active())
	}
	if _, err := newClient().Exchange(context.Background(), addr); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("want ErrNetwork after shutdown, got %v", err)
	}
}

func TestServer_ShutdownDeadlineCancelsSessions(t *testing.T) {
	h := startServer(t, crypto.NewStaticSource(modp(t, 1)), func(c *server.Config) {
		c.Timeout = time.Minute
	})
	idle, err := net.Dial("tcp", h.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer idle.Close()
	waitFor(t, func() bool { return h.srv.Active() == 1 })
	if got := h.srv.Sessions(); len(got) != 1 || got[0].ID == 0 {
		t.Fatalf("want one tracked session, got %+v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.srv.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
	if h.srv.Active() != 0 {
		t.Fatalf("want sessions cancelled, %d left", h.srv.Active())
	}
}

func TestServer_PerSessionParams(t *testing.T) {
	engine := crypto.NewEngine()
	h := startServer(t, crypto.NewGeneratingSource(engine, 512), func(c *server.Config) { c.Engine = engine })

	a, err := newClient().Exchange(context.Background(), h.addr)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := newClient().Exchange(context.Background(), h.addr)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.Params.Equal(b.Params) {
		t.Fatal("per-session source reused a group")
	}
	if a.Params.Bits() != 512 {
		t.Fatalf("want 512-bit group, got %d", a.Params.Bits())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
