package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"

	"dhke/internal/crypto"
	"dhke/internal/domain"
	"dhke/internal/services/session"
)

// ErrServerClosed is returned by Serve after Shutdown or context cancellation.
var ErrServerClosed = errors.New("server closed")

// SessionInfo describes one accepted connection.
type SessionInfo struct {
	ID      domain.SessionID
	Remote  string
	Started time.Time
}

// Config holds the dependencies of a Server.
type Config struct {
	// Params hands out the group for each new session. Required.
	Params domain.ParamSource
	// Engine performs the DH arithmetic. Defaults to crypto.NewEngine().
	Engine *crypto.Engine
	// Timeout bounds each read and write inside a session.
	Timeout time.Duration
	// MaxSessions caps concurrent sessions. Zero means unlimited.
	MaxSessions int
	// GroupBits is reported in Stats when the group is fixed.
	GroupBits int
	Logger    *slog.Logger

	// OnEstablished and OnFailed are called from the session goroutine.
	OnEstablished func(SessionInfo, domain.Result)
	OnFailed      func(SessionInfo, error)
}

// Server is a concurrent DH responder.
type Server struct {
	cfg     Config
	log     *slog.Logger
	started time.Time

	nextID atomic.Uint64
	slots  chan struct{}

	mu       sync.Mutex
	sessions map[domain.SessionID]SessionInfo
	ln       net.Listener
	closed   bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	accepted    atomic.Uint64
	established atomic.Uint64
	failed      atomic.Uint64
	kindMu      sync.Mutex
	failedBy    map[domain.Kind]uint64
}

// New returns a Server. It panics if cfg.Params is nil.
func New(cfg Config) *Server {
	if cfg.Params == nil {
		panic("server: nil ParamSource")
	}
	if cfg.Engine == nil {
		cfg.Engine = crypto.NewEngine()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		started:  time.Now(),
		sessions: make(map[domain.SessionID]SessionInfo),
		failedBy: make(map[domain.Kind]uint64),
	}
	if cfg.MaxSessions > 0 {
		s.slots = make(chan struct{}, cfg.MaxSessions)
	}
	return s
}

// Serve accepts connections on ln until Shutdown is called or ctx is done.
// It always closes ln and returns ErrServerClosed when stopped on purpose.
//
// Temporary accept errors are retried with exponential backoff; any other
// accept error stops the loop and is returned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	// Sessions outlive the accept loop so Shutdown can drain them.
	sessCtx, cancel := context.WithCancel(ctx)
	s.ln = ln
	s.cancel = cancel
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.closeListener() })
	defer stop()

	s.log.Info("listening", "addr", ln.Addr().String())

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0

	for {
		if !s.acquire(ctx) {
			return ErrServerClosed
		}
		conn, err := ln.Accept()
		if err != nil {
			s.release()
			if s.isClosed() || ctx.Err() != nil {
				return ErrServerClosed
			}
			if retryable(err) {
				delay := retry.NextBackOff()
				s.log.Warn("accept failed; retrying", "error", err, "delay", delay)
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return ErrServerClosed
				}
			}
			return fmt.Errorf("%w: accept: %w", domain.ErrNetwork, err)
		}
		retry.Reset()
		s.accepted.Add(1)

		info := SessionInfo{
			ID:      domain.SessionID(s.nextID.Add(1)),
			Remote:  conn.RemoteAddr().String(),
			Started: time.Now(),
		}
		if !s.track(info) {
			_ = conn.Close()
			s.release()
			return ErrServerClosed
		}
		go s.handle(sessCtx, conn, info)
	}
}

// handle runs one responder session. A panic in the exchange is recovered
// and reported as an internal failure of this session only.
func (s *Server) handle(ctx context.Context, conn net.Conn, info SessionInfo) {
	log := s.log.With("session", info.ID.String(), "remote", info.Remote)
	defer func() {
		if r := recover(); r != nil {
			log.Error("session panic", "panic", r, "stack", string(debug.Stack()))
			s.finish(info, domain.Result{}, fmt.Errorf("%w: panic: %v", domain.ErrInternal, r), log)
		}
		_ = conn.Close()
		s.untrack(info.ID)
		s.release()
		s.wg.Done()
	}()

	log.Debug("session accepted")
	res, err := s.exchange(ctx, conn, log)
	s.finish(info, res, err, log)
}

func (s *Server) exchange(ctx context.Context, conn net.Conn, log *slog.Logger) (domain.Result, error) {
	params, err := s.cfg.Params.Params(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	sess, err := session.NewResponder(s.cfg.Engine, params)
	if err != nil {
		return domain.Result{}, err
	}
	return session.Run(ctx, conn, sess, session.RunOptions{Timeout: s.cfg.Timeout, Logger: log})
}

func (s *Server) finish(info SessionInfo, res domain.Result, err error, log *slog.Logger) {
	if err != nil {
		kind := domain.KindOf(err)
		s.failed.Add(1)
		s.kindMu.Lock()
		s.failedBy[kind]++
		s.kindMu.Unlock()
		log.Warn("session failed", "kind", kind.String(), "error", err, "elapsed", time.Since(info.Started))
		if s.cfg.OnFailed != nil {
			notify(log, "OnFailed", func() { s.cfg.OnFailed(info, err) })
		}
		return
	}
	s.established.Add(1)
	log.Info("session established",
		"bits", res.Params.Bits(),
		"fingerprint", crypto.Fingerprint(res.Key),
		"elapsed", time.Since(info.Started))
	if s.cfg.OnEstablished != nil {
		notify(log, "OnEstablished", func() { s.cfg.OnEstablished(info, res) })
	}
}

// notify runs a user callback. A panic in it is logged and does not change
// how the session was counted.
func notify(log *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("callback panic", "callback", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Shutdown stops accepting and waits for in-flight sessions. When ctx ends
// first the remaining sessions are cancelled and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	_ = s.closeListener()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return ctx.Err()
	}
}

// Addr returns the listener address once Serve has started, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Active returns the number of sessions in flight.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sessions lists the sessions in flight ordered by ID.
func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, info := range s.sessions {
		out = append(out, info)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns a snapshot of the session counters.
func (s *Server) Stats() domain.Stats {
	st := domain.Stats{
		Active:      s.Active(),
		Accepted:    s.accepted.Load(),
		Established: s.established.Load(),
		Failed:      s.failed.Load(),
		Uptime:      time.Since(s.started),
		GroupBits:   s.cfg.GroupBits,
	}
	s.kindMu.Lock()
	if len(s.failedBy) > 0 {
		st.FailedBy = make(map[string]uint64, len(s.failedBy))
		for k, n := range s.failedBy {
			st.FailedBy[k.String()] = n
		}
	}
	s.kindMu.Unlock()
	return st
}

// track registers a session unless Shutdown has begun. The WaitGroup is
// only grown under mu so it cannot race with Shutdown's Wait.
func (s *Server) track(info SessionInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[info.ID] = info
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(id domain.SessionID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) closeListener() error {
	s.mu.Lock()
	ln := s.ln
	s.closed = true
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

// acquire blocks for a session slot. It reports false once ctx is done.
func (s *Server) acquire(ctx context.Context) bool {
	if s.slots == nil {
		return ctx.Err() == nil
	}
	select {
	case s.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) release() {
	if s.slots != nil {
		<-s.slots
	}
}

func retryable(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}
