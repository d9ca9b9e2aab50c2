package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"

	"dhke/internal/domain"
)

const (
	// HeaderSize is the tag byte plus the four-byte payload length.
	HeaderSize = 5
	// MaxPayload bounds a single frame. A 2048-bit ServerHello is ~520 bytes.
	MaxPayload = 64 << 10
)

// Encode serialises m into one complete frame.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", domain.ErrInternal)
	}
	frame := make([]byte, HeaderSize, HeaderSize+64)
	frame[0] = byte(m.Tag())
	frame, err := m.appendPayload(frame)
	if err != nil {
		return nil, err
	}
	n := len(frame) - HeaderSize
	if n > MaxPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", domain.ErrInternal, n, MaxPayload)
	}
	binary.BigEndian.PutUint32(frame[1:HeaderSize], uint32(n))
	return frame, nil
}

// Decode parses exactly one frame. Trailing bytes are a protocol violation.
func Decode(frame []byte) (Message, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: short frame header", domain.ErrProtocolViolation)
	}
	n := binary.BigEndian.Uint32(frame[1:HeaderSize])
	if n > MaxPayload {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", domain.ErrProtocolViolation, n, MaxPayload)
	}
	if uint32(len(frame)-HeaderSize) != n {
		return nil, fmt.Errorf("%w: frame length mismatch", domain.ErrProtocolViolation)
	}
	return decodePayload(Tag(frame[0]), frame[HeaderSize:])
}

// ReadMessage reads one frame from r. Transport errors are returned wrapped
// so callers can classify them; malformed frames wrap ErrProtocolViolation.
func ReadMessage(r io.Reader) (Message, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	tag := Tag(hdr[0])
	if tag > TagDone {
		return nil, fmt.Errorf("%w: unknown tag %d", domain.ErrProtocolViolation, hdr[0])
	}
	n := binary.BigEndian.Uint32(hdr[1:])
	if n > MaxPayload {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", domain.ErrProtocolViolation, n, MaxPayload)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read %s payload: %w", tag, err)
	}
	return decodePayload(tag, payload)
}

// WriteMessage encodes m and writes the frame to w in a single call.
func WriteMessage(w io.Writer, m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write %s: %w", m.Tag(), err)
	}
	return nil
}

func decodePayload(tag Tag, p []byte) (Message, error) {
	d := decoder{buf: p}
	var m Message
	switch tag {
	case TagClientHello:
		m = ClientHello{}
	case TagServerHello:
		pv := d.int()
		gv := d.int()
		m = ServerHello{P: pv, G: gv}
	case TagClientPublic:
		m = ClientPublic{X: d.int()}
	case TagServerPublic:
		m = ServerPublic{Y: d.int()}
	case TagDone:
		m = Done{}
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", domain.ErrProtocolViolation, uint8(tag))
	}
	if d.err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProtocolViolation, tag, d.err)
	}
	if len(d.buf) != 0 {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", domain.ErrProtocolViolation, tag, len(d.buf))
	}
	return m, nil
}

// appendInt writes len(4) | big-endian magnitude. Negative values have no
// encoding, and zero is written with a zero length.
func appendInt(b []byte, x *big.Int) ([]byte, error) {
	if x == nil {
		return nil, fmt.Errorf("%w: nil integer", domain.ErrInternal)
	}
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative integer", domain.ErrInternal)
	}
	mag := x.Bytes()
	b = binary.BigEndian.AppendUint32(b, uint32(len(mag)))
	return append(b, mag...), nil
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) int() *big.Int {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < 4 {
		d.err = errors.New("truncated integer length")
		return nil
	}
	n := binary.BigEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	if uint64(n) > uint64(len(d.buf)) {
		d.err = errors.New("truncated integer body")
		return nil
	}
	x := new(big.Int).SetBytes(d.buf[:n])
	d.buf = d.buf[n:]
	return x
}
