package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"dhke/internal/discovery"
	"dhke/internal/services/server"
	"dhke/internal/status"
)

// shutdownGrace is how long in-flight sessions get after the server stops.
const shutdownGrace = 5 * time.Second

// RunServer builds the parameter source and serves exchanges until ctx is
// done, then drains in-flight sessions. ready, if set, is called once the
// listener is bound.
//
// Steps:
//  1. Resolve the parameter source; a generate source pays its cost here.
//  2. Listen on server.listen over the configured transport.
//  3. Start the status endpoint and mDNS announcement when configured.
//  4. Serve until ctx is done, then shut down with a grace period.
func (w *Wire) RunServer(ctx context.Context, ready func(net.Addr)) error {
	cfg := w.Config.Server

	src, bits, err := w.ParamSource(ctx)
	if err != nil {
		return err
	}
	ln, err := w.ServerTransport.Listen(cfg.Listen)
	if err != nil {
		return err
	}
	srv := w.Server(src, bits)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	statusErr := make(chan error, 1)
	if cfg.StatusListen != "" {
		sl, err := net.Listen("tcp", cfg.StatusListen)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("status listen: %w", err)
		}
		go func() { statusErr <- status.Serve(ctx, sl, srv, w.Log) }()
	}

	if cfg.Discovery.Enabled {
		ann := w.announce(ln.Addr(), bits)
		defer ann.Shutdown()
	}

	if ready != nil {
		ready(ln.Addr())
	}

	// Serve ignores ctx cancellation so that Shutdown below can drain.
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(context.WithoutCancel(ctx), ln) }()

	var (
		result error
		served bool
	)
	select {
	case result = <-serveErr:
		served = true
	case result = <-statusErr:
	case <-ctx.Done():
	}

	sctx, scancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		w.Log.Warn("shutdown grace expired", "error", err)
	}
	if !served {
		if err := <-serveErr; result == nil {
			result = err
		}
	}
	w.Log.Info("server stopped", "stats", srv.Stats().String())

	if errors.Is(result, server.ErrServerClosed) {
		return nil
	}
	return result
}

// announce registers the server over mDNS. Failure is logged and the server
// keeps running without it.
func (w *Wire) announce(addr net.Addr, bits int) *discovery.Announcement {
	cfg := w.Config.Server.Discovery
	_, ps, err := net.SplitHostPort(addr.String())
	if err != nil {
		w.Log.Warn("mDNS announcement skipped", "addr", addr.String(), "error", err)
		return nil
	}
	port, _ := strconv.Atoi(ps)
	ann, err := discovery.Announce(cfg.Instance, port, discovery.Info{
		Transport: w.ServerTransport.Kind(),
		GroupBits: bits,
	})
	if err != nil {
		w.Log.Warn("mDNS announcement failed", "error", err)
		return nil
	}
	w.Log.Info("announced over mDNS", "instance", cfg.Instance, "port", port)
	return ann
}
