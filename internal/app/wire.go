package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"dhke/internal/crypto"
	"dhke/internal/domain"
	"dhke/internal/services/client"
	"dhke/internal/services/server"
	"dhke/internal/store"
	"dhke/internal/transport"
)

// Wire bundles the logger, engine and transports built from a Config.
type Wire struct {
	Config *Config
	Log    *slog.Logger
	// Engine serves both roles. Its size policy is client.min_prime_bits and
	// client.max_prime_bits.
	Engine *crypto.Engine

	ServerTransport *transport.Transport
	ClientTransport *transport.Transport
}

// NewWire constructs the dependency graph from cfg. Logs go to logw.
func NewWire(cfg *Config, logw io.Writer) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := NewLogger(logw, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	st, err := transport.New(cfg.Server.Transport)
	if err != nil {
		return nil, err
	}
	ct, err := transport.New(cfg.Client.Transport)
	if err != nil {
		return nil, err
	}
	return &Wire{
		Config:          cfg,
		Log:             log,
		Engine: crypto.NewEngine(
			crypto.WithMinBits(cfg.Client.MinPrimeBits),
			crypto.WithMaxBits(cfg.Client.MaxPrimeBits),
		),
		ServerTransport: st,
		ClientTransport: ct,
	}, nil
}

// ParamSource builds the server's group source. bits is the fixed group
// size, or 0 when every session gets its own group.
func (w *Wire) ParamSource(ctx context.Context) (src domain.ParamSource, bits int, err error) {
	p := w.Config.Server.Params
	switch p.Source {
	case SourceGroup:
		params, err := crypto.Group(p.Group)
		if err != nil {
			return nil, 0, err
		}
		w.Log.Info("using MODP group", "group", p.Group, "bits", params.Bits())
		return crypto.NewStaticSource(params), params.Bits(), nil

	case SourceGenerate:
		w.Log.Info("generating group", "bits", p.Bits)
		params, err := crypto.NewGeneratingSource(w.Engine, p.Bits).Params(ctx)
		if err != nil {
			return nil, 0, err
		}
		w.Log.Info("group ready", "bits", params.Bits(), "generator", params.G.String())
		return crypto.NewStaticSource(params), params.Bits(), nil

	case SourcePerSession:
		w.Log.Info("generating a fresh group per session", "bits", p.Bits)
		return crypto.NewGeneratingSource(w.Engine, p.Bits), 0, nil

	case SourceFile:
		params, err := store.LoadParams(p.File)
		if err != nil {
			return nil, 0, err
		}
		check := crypto.NewEngine(crypto.WithMinBits(crypto.MinGenerateBits), crypto.WithMaxBits(0))
		if err := check.ValidateParameters(params); err != nil {
			return nil, 0, fmt.Errorf("%w: %s: %w", domain.ErrParameter, p.File, err)
		}
		w.Log.Info("loaded group", "file", p.File, "bits", params.Bits())
		return crypto.NewStaticSource(params), params.Bits(), nil
	}
	return nil, 0, fmt.Errorf("%w: unknown parameter source %q", domain.ErrParameter, p.Source)
}

// Server builds a responder server over src.
func (w *Wire) Server(src domain.ParamSource, bits int) *server.Server {
	return server.New(server.Config{
		Params:      src,
		Engine:      w.Engine,
		Timeout:     w.Config.Server.HandshakeTimeout,
		MaxSessions: w.Config.Server.MaxSessions,
		GroupBits:   bits,
		Logger:      w.Log.With("transport", w.ServerTransport.Kind()),
	})
}

// Client builds an initiator client.
func (w *Wire) Client() *client.Service {
	return client.New(w.ClientTransport, w.Engine, w.Config.Client.Timeout,
		w.Log.With("transport", w.ClientTransport.Kind()))
}
