package protocol

import (
	"fmt"
	"math/big"
)

// Tag is the one-byte discriminator that starts every frame.
type Tag uint8

// Message tags in exchange order. Values are fixed on the wire.
const (
	TagClientHello Tag = iota
	TagServerHello
	TagClientPublic
	TagServerPublic
	TagDone
)

// String returns the message name for the tag.
func (t Tag) String() string {
	switch t {
	case TagClientHello:
		return "ClientHello"
	case TagServerHello:
		return "ServerHello"
	case TagClientPublic:
		return "ClientPublic"
	case TagServerPublic:
		return "ServerPublic"
	case TagDone:
		return "Done"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Message is one of ClientHello, ServerHello, ClientPublic, ServerPublic
// or Done. The set is closed.
type Message interface {
	Tag() Tag
	appendPayload(b []byte) ([]byte, error)
}

// ClientHello opens the exchange.
type ClientHello struct{}

// ServerHello carries the group chosen by the responder.
type ServerHello struct {
	P *big.Int
	G *big.Int
}

// ClientPublic carries the initiator's public value X = g^x mod p.
type ClientPublic struct {
	X *big.Int
}

// ServerPublic carries the responder's public value Y = g^y mod p.
type ServerPublic struct {
	Y *big.Int
}

// Done closes a successful exchange.
type Done struct{}

func (ClientHello) Tag() Tag  { return TagClientHello }
func (ServerHello) Tag() Tag  { return TagServerHello }
func (ClientPublic) Tag() Tag { return TagClientPublic }
func (ServerPublic) Tag() Tag { return TagServerPublic }
func (Done) Tag() Tag         { return TagDone }

func (ClientHello) appendPayload(b []byte) ([]byte, error) { return b, nil }
func (Done) appendPayload(b []byte) ([]byte, error)        { return b, nil }

func (m ServerHello) appendPayload(b []byte) ([]byte, error) {
	b, err := appendInt(b, m.P)
	if err != nil {
		return nil, fmt.Errorf("ServerHello p: %w", err)
	}
	b, err = appendInt(b, m.G)
	if err != nil {
		return nil, fmt.Errorf("ServerHello g: %w", err)
	}
	return b, nil
}

func (m ClientPublic) appendPayload(b []byte) ([]byte, error) {
	b, err := appendInt(b, m.X)
	if err != nil {
		return nil, fmt.Errorf("ClientPublic X: %w", err)
	}
	return b, nil
}

func (m ServerPublic) appendPayload(b []byte) ([]byte, error) {
	b, err := appendInt(b, m.Y)
	if err != nil {
		return nil, fmt.Errorf("ServerPublic Y: %w", err)
	}
	return b, nil
}

// String summarises a ServerHello without dumping the modulus.
func (m ServerHello) String() string {
	return fmt.Sprintf("ServerHello{p: %d bits, g: %v}", bitLen(m.P), m.G)
}

func (m ClientPublic) String() string {
	return fmt.Sprintf("ClientPublic{X: %d bits}", bitLen(m.X))
}

func (m ServerPublic) String() string {
	return fmt.Sprintf("ServerPublic{Y: %d bits}", bitLen(m.Y))
}

func bitLen(x *big.Int) int {
	if x == nil {
		return 0
	}
	return x.BitLen()
}

var (
	_ Message = ClientHello{}
	_ Message = ServerHello{}
	_ Message = ClientPublic{}
	_ Message = ServerPublic{}
	_ Message = Done{}
)
