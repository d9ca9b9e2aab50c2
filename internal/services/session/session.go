package session

import (
	"fmt"
	"math/big"

	"dhke/internal/crypto"
	"dhke/internal/domain"
	"dhke/internal/protocol"
	"dhke/internal/util/memzero"
)

// Session holds the mutable state of one exchange. It is owned by a single
// goroutine and is not safe for concurrent use.
type Session struct {
	engine  *crypto.Engine
	machine *protocol.Machine
	params  domain.Params

	exponent *big.Int
	public   *big.Int
	secret   *big.Int
	taken    bool
}

// NewInitiator returns a session that will open the exchange. Its group and
// exponent are settled once the peer's ServerHello has been validated.
func NewInitiator(engine *crypto.Engine) *Session {
	return &Session{
		engine:  engine,
		machine: protocol.NewMachine(domain.Initiator),
	}
}

// NewResponder returns a session that will offer params. The exponent and
// public value are generated here so a parameter or randomness failure
// surfaces before anything is written to the peer.
func NewResponder(engine *crypto.Engine, params domain.Params) (*Session, error) {
	if params.P == nil || params.G == nil {
		return nil, fmt.Errorf("%w: responder has no group", domain.ErrParameter)
	}
	s := &Session{
		engine:  engine,
		machine: protocol.NewMachine(domain.Responder),
		params:  domain.NewParams(params.P, params.G),
	}
	if err := s.generateKeyPair(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Role() domain.Role     { return s.machine.Role() }
func (s *Session) State() protocol.State { return s.machine.State() }

// Params returns the negotiated group. It is zero for an initiator until a
// valid ServerHello has arrived.
func (s *Session) Params() domain.Params { return s.params }

// Err returns the reason the session failed, or nil.
func (s *Session) Err() error { return s.machine.Err() }

// Start returns the message that opens the exchange. Only an initiator in
// Idle has one; the state changes when Sent confirms it went out.
func (s *Session) Start() (protocol.Message, error) {
	if s.Role() != domain.Initiator || s.State() != protocol.StateIdle {
		return nil, fmt.Errorf("%w: %s cannot start from %s", domain.ErrInternal, s.Role(), s.State())
	}
	return protocol.ClientHello{}, nil
}

// OnMessage applies one inbound message and returns the resulting state
// together with the reply to send, if any. Any error fails the session.
//
// Steps:
//  1. Ask the state machine whether msg is the expected next message.
//  2. Validate whatever the peer supplied: the group for ServerHello, the
//     public value for ClientPublic and ServerPublic.
//  3. Generate or compute local material and build the reply.
func (s *Session) OnMessage(msg protocol.Message) (protocol.State, protocol.Message, error) {
	if msg == nil {
		err := fmt.Errorf("%w: nil message", domain.ErrInternal)
		s.fail(err)
		return s.State(), nil, err
	}
	if _, err := s.machine.Recv(msg.Tag()); err != nil {
		s.wipe()
		return s.State(), nil, err
	}

	var (
		out protocol.Message
		err error
	)
	switch m := msg.(type) {
	case protocol.ClientHello:
		out = protocol.ServerHello{P: s.params.P, G: s.params.G}
	case protocol.ServerHello:
		out, err = s.acceptGroup(m)
	case protocol.ClientPublic:
		out, err = s.acceptPublic(m.X)
	case protocol.ServerPublic:
		_, err = s.acceptPublic(m.Y)
		out = protocol.Done{}
	case protocol.Done:
	default:
		err = fmt.Errorf("%w: unsupported message %T", domain.ErrInternal, msg)
	}
	if err != nil {
		s.fail(err)
		return s.State(), nil, err
	}
	return s.State(), out, nil
}

// Sent records that msg has been written to the peer. A responder that has
// sent ServerPublic moves straight on to waiting for Done.
func (s *Session) Sent(msg protocol.Message) error {
	if msg == nil {
		return nil
	}
	st, err := s.machine.Send(msg.Tag())
	if err != nil {
		s.wipe()
		return err
	}
	if st == protocol.StateKeyComputed && s.Role() == domain.Responder {
		if _, err := s.machine.Advance(); err != nil {
			s.wipe()
			return err
		}
	}
	return nil
}

// Fail aborts the session with err, typically a transport failure seen by
// the driver. All key material is wiped.
func (s *Session) Fail(err error) { s.fail(err) }

// SharedSecret returns the shared secret g^(xy) mod p. It succeeds once,
// only after the key has been computed; the session's own copy is wiped on
// return. A failed session reports its failure reason instead.
func (s *Session) SharedSecret() (*big.Int, error) {
	switch st := s.State(); {
	case st == protocol.StateFailed:
		return nil, fmt.Errorf("%w: %w", domain.ErrSecretUnavailable, s.Err())
	case st != protocol.StateKeyComputed && st != protocol.StateAwaitDone && st != protocol.StateClosed:
		return nil, fmt.Errorf("%w: session is in state %s", domain.ErrSecretUnavailable, st)
	}
	if s.taken || s.secret == nil {
		return nil, fmt.Errorf("%w: already retrieved", domain.ErrSecretUnavailable)
	}
	out := new(big.Int).Set(s.secret)
	memzero.Int(s.secret)
	s.secret = nil
	s.taken = true
	return out, nil
}

// acceptGroup validates the responder's group and prepares ClientPublic.
func (s *Session) acceptGroup(m protocol.ServerHello) (protocol.Message, error) {
	params := domain.Params{P: m.P, G: m.G}
	if err := s.engine.ValidateParameters(params); err != nil {
		return nil, err
	}
	s.params = domain.NewParams(m.P, m.G)
	if err := s.generateKeyPair(); err != nil {
		return nil, err
	}
	return protocol.ClientPublic{X: s.public}, nil
}

// acceptPublic validates the peer's public value, computes the secret and
// wipes the exponent. A responder answers with its own public value.
func (s *Session) acceptPublic(remote *big.Int) (protocol.Message, error) {
	secret, err := s.engine.ComputeSharedSecret(remote, s.exponent, s.params.P)
	if err != nil {
		return nil, err
	}
	s.secret = secret
	memzero.Int(s.exponent)
	s.exponent = nil
	if s.Role() == domain.Responder {
		return protocol.ServerPublic{Y: s.public}, nil
	}
	return nil, nil
}

func (s *Session) generateKeyPair() error {
	x, err := s.engine.GenerateExponent(s.params.P)
	if err != nil {
		return err
	}
	s.exponent = x
	s.public = s.engine.ComputePublic(s.params.G, x, s.params.P)
	return nil
}

func (s *Session) fail(err error) {
	s.machine.Fail(err)
	s.wipe()
}

func (s *Session) wipe() {
	if s.State() != protocol.StateFailed {
		return
	}
	memzero.Int(s.exponent)
	memzero.Int(s.secret)
	s.exponent = nil
	s.secret = nil
}
