package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"dhke/internal/crypto"
	"dhke/internal/domain"
	"dhke/internal/protocol"
)

// DefaultTimeout bounds each read and write when RunOptions.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// RunOptions tunes Run.
type RunOptions struct {
	// Timeout applies to every single read and write. Negative disables it.
	Timeout time.Duration
	// Logger receives per-message debug records. Nil discards them.
	Logger *slog.Logger
}

// Run drives s over conn until the exchange closes or fails. It does not
// close conn. Cancelling ctx interrupts a blocked read or write.
//
// On success the result carries the negotiated group, the shared secret and
// the derived session key. On failure the error wraps exactly one domain
// category and s is left in protocol.StateFailed.
func Run(ctx context.Context, conn net.Conn, s *Session, opts RunOptions) (domain.Result, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log = log.With("role", s.Role().String())

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	d := driver{ctx: ctx, conn: conn, s: s, timeout: timeout, log: log}
	if err := d.loop(); err != nil {
		s.Fail(err)
		return domain.Result{}, err
	}

	secret, err := s.SharedSecret()
	if err != nil {
		return domain.Result{}, err
	}
	params := s.Params()
	key, err := crypto.DeriveKey(secret, params.P)
	if err != nil {
		return domain.Result{}, err
	}
	log.Debug("exchange complete", "bits", params.Bits(), "fingerprint", crypto.Fingerprint(key))
	return domain.Result{
		Role:   s.Role(),
		Params: domain.NewParams(params.P, params.G),
		Secret: secret,
		Key:    key,
	}, nil
}

type driver struct {
	ctx     context.Context
	conn    net.Conn
	s       *Session
	timeout time.Duration
	log     *slog.Logger
}

func (d *driver) loop() error {
	if d.s.Role() == domain.Initiator {
		hello, err := d.s.Start()
		if err != nil {
			return err
		}
		if err := d.send(hello); err != nil {
			return err
		}
	}
	for !d.s.State().Terminal() {
		msg, err := d.recv()
		if err != nil {
			return err
		}
		st, out, err := d.s.OnMessage(msg)
		if err != nil {
			return err
		}
		d.log.Debug("recv", "tag", msg.Tag().String(), "state", st.String())
		if out != nil {
			if err := d.send(out); err != nil {
				return err
			}
		}
	}
	return d.s.Err()
}

func (d *driver) send(m protocol.Message) error {
	if d.timeout > 0 {
		if err := d.conn.SetWriteDeadline(time.Now().Add(d.timeout)); err != nil {
			return d.transportErr("set write deadline", err)
		}
	}
	if err := protocol.WriteMessage(d.conn, m); err != nil {
		return d.transportErr("send "+m.Tag().String(), err)
	}
	if err := d.s.Sent(m); err != nil {
		return err
	}
	d.log.Debug("sent", "tag", m.Tag().String(), "state", d.s.State().String())
	return nil
}

func (d *driver) recv() (protocol.Message, error) {
	if d.timeout > 0 {
		if err := d.conn.SetReadDeadline(time.Now().Add(d.timeout)); err != nil {
			return nil, d.transportErr("set read deadline", err)
		}
	}
	msg, err := protocol.ReadMessage(d.conn)
	if err != nil {
		want := "message"
		if tag, ok := d.s.machine.Expected(); ok {
			want = tag.String()
		}
		return nil, d.transportErr("awaiting "+want, err)
	}
	return msg, nil
}

// transportErr maps a read or write failure onto the error taxonomy. Errors
// that already carry a category, ErrInternal included, pass through.
func (d *driver) transportErr(op string, err error) error {
	if errors.Is(err, domain.ErrInternal) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if domain.KindOf(err) != domain.KindInternal && !errors.Is(err, os.ErrDeadlineExceeded) {
		return err
	}
	if cerr := d.ctx.Err(); cerr != nil {
		if errors.Is(cerr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s: %w", domain.ErrTimeout, op, cerr)
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrNetwork, op, cerr)
	}
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %s after %s: %w", domain.ErrTimeout, op, d.timeout, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: peer closed the connection: %w", domain.ErrNetwork, op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrNetwork, op, err)
}
