package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"dhke/internal/crypto"
	"dhke/internal/domain"
	"dhke/internal/services/session"
)

// Service dials a responder and drives one initiator session per Exchange.
type Service struct {
	dialer  domain.Dialer
	engine  *crypto.Engine
	timeout time.Duration
	log     *slog.Logger
}

// New constructs a client Service. A nil engine uses crypto.NewEngine() and
// a nil logger discards output.
func New(dialer domain.Dialer, engine *crypto.Engine, timeout time.Duration, log *slog.Logger) *Service {
	if engine == nil {
		engine = crypto.NewEngine()
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{dialer: dialer, engine: engine, timeout: timeout, log: log}
}

// Exchange connects to addr and performs one key exchange.
//
// Steps:
//  1. Dial addr; a failed dial is a network error.
//  2. Run a fresh initiator session, validating the group the server offers.
//  3. Close the connection and return the negotiated group, secret and key.
func (s *Service) Exchange(ctx context.Context, addr string) (domain.Result, error) {
	log := s.log.With("addr", addr)

	conn, err := s.dialer.Dial(ctx, addr)
	if err != nil {
		var ne net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.As(err, &ne) && ne.Timeout() {
			return domain.Result{}, fmt.Errorf("%w: dial %s: %w", domain.ErrTimeout, addr, err)
		}
		return domain.Result{}, fmt.Errorf("%w: dial %s: %w", domain.ErrNetwork, addr, err)
	}
	defer conn.Close()
	log.Debug("connected", "remote", conn.RemoteAddr().String())

	sess := session.NewInitiator(s.engine)
	res, err := session.Run(ctx, conn, sess, session.RunOptions{Timeout: s.timeout, Logger: log})
	if err != nil {
		log.Debug("exchange failed", "kind", domain.KindOf(err).String(), "error", err)
		return domain.Result{}, err
	}
	log.Info("exchange complete", "bits", res.Params.Bits(), "fingerprint", crypto.Fingerprint(res.Key))
	return res, nil
}
