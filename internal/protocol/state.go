package protocol

import (
	"fmt"

	"dhke/internal/domain"
)

// State is a position in the exchange sequence.
type State uint8

// Exchange states. Each role walks its own subset in order; Closed and
// Failed are terminal.
const (
	StateIdle State = iota
	StateAwaitServerHello
	StateAwaitParamsSent
	StateAwaitClientPublic
	StateAwaitOwnPublicSent
	StateAwaitServerPublic
	StateKeyComputed
	StateAwaitDone
	StateClosed
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitServerHello:
		return "AwaitServerHello"
	case StateAwaitParamsSent:
		return "AwaitParamsSent"
	case StateAwaitClientPublic:
		return "AwaitClientPublic"
	case StateAwaitOwnPublicSent:
		return "AwaitOwnPublicSent"
	case StateAwaitServerPublic:
		return "AwaitServerPublic"
	case StateKeyComputed:
		return "KeyComputed"
	case StateAwaitDone:
		return "AwaitDone"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateClosed || s == StateFailed }

type direction uint8

const (
	send direction = iota
	recv
)

func (d direction) String() string {
	if d == send {
		return "send"
	}
	return "recv"
}

// Machine tracks the ordered exchange for one role. It is not safe for
// concurrent use; a session owns exactly one.
type Machine struct {
	role  domain.Role
	state State
	err   error
}

// NewMachine returns a machine in StateIdle.
func NewMachine(role domain.Role) *Machine {
	return &Machine{role: role, state: StateIdle}
}

func (m *Machine) Role() domain.Role { return m.role }
func (m *Machine) State() State      { return m.state }

// Err returns the reason the machine failed, or nil.
func (m *Machine) Err() error { return m.err }

// Recv applies an inbound message tag. An unexpected tag fails the machine
// with an error wrapping domain.ErrProtocolViolation.
func (m *Machine) Recv(tag Tag) (State, error) {
	next, ok := m.next(recv, tag)
	if !ok {
		err := fmt.Errorf("%w: %s received in state %s", domain.ErrProtocolViolation, tag, m.state)
		m.Fail(err)
		return m.state, err
	}
	m.state = next
	return next, nil
}

// Send applies an outbound message tag. Sending out of order is a bug in
// the caller, so it fails the machine with domain.ErrInternal.
func (m *Machine) Send(tag Tag) (State, error) {
	next, ok := m.next(send, tag)
	if !ok {
		err := fmt.Errorf("%w: %s %s sent in state %s", domain.ErrInternal, m.role, tag, m.state)
		m.Fail(err)
		return m.state, err
	}
	m.state = next
	return next, nil
}

// Advance takes the responder's silent KeyComputed to AwaitDone step.
func (m *Machine) Advance() (State, error) {
	if m.role == domain.Responder && m.state == StateKeyComputed {
		m.state = StateAwaitDone
		return m.state, nil
	}
	err := fmt.Errorf("%w: no silent transition from %s", domain.ErrInternal, m.state)
	m.Fail(err)
	return m.state, err
}

// Fail moves the machine to StateFailed and records the reason. A machine
// that already closed or failed keeps its state.
func (m *Machine) Fail(err error) {
	if m.state.Terminal() {
		return
	}
	m.state = StateFailed
	m.err = err
}

// Expected returns the tag the machine will accept next from the peer, if any.
func (m *Machine) Expected() (Tag, bool) {
	for tag := TagClientHello; tag <= TagDone; tag++ {
		if _, ok := m.next(recv, tag); ok {
			return tag, true
		}
	}
	return 0, false
}

// next is the transition table. Every (role, state) pair lists its single
// legal move; everything else is rejected.
func (m *Machine) next(dir direction, tag Tag) (State, bool) {
	type move struct {
		dir  direction
		tag  Tag
		next State
	}
	var mv move
	switch m.role {
	case domain.Initiator:
		switch m.state {
		case StateIdle:
			mv = move{send, TagClientHello, StateAwaitServerHello}
		case StateAwaitServerHello:
			mv = move{recv, TagServerHello, StateAwaitOwnPublicSent}
		case StateAwaitOwnPublicSent:
			mv = move{send, TagClientPublic, StateAwaitServerPublic}
		case StateAwaitServerPublic:
			mv = move{recv, TagServerPublic, StateKeyComputed}
		case StateKeyComputed:
			mv = move{send, TagDone, StateClosed}
		default:
			return m.state, false
		}
	case domain.Responder:
		switch m.state {
		case StateIdle:
			mv = move{recv, TagClientHello, StateAwaitParamsSent}
		case StateAwaitParamsSent:
			mv = move{send, TagServerHello, StateAwaitClientPublic}
		case StateAwaitClientPublic:
			mv = move{recv, TagClientPublic, StateAwaitOwnPublicSent}
		case StateAwaitOwnPublicSent:
			mv = move{send, TagServerPublic, StateKeyComputed}
		case StateAwaitDone:
			mv = move{recv, TagDone, StateClosed}
		default:
			return m.state, false
		}
	default:
		return m.state, false
	}
	if mv.dir != dir || mv.tag != tag {
		return m.state, false
	}
	return mv.next, true
}
