package netlink

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mdlayher/netlink"
)

// Payload is what a message carries after its header. Encode writes into
// b and returns how many bytes it used. Decode is handed the bytes after
// the header of a received message and returns how many it consumed. A
// Decode error wrapping ErrIncomplete means the message didn't carry what
// the payload is after and further messages should be waited for.
type Payload interface {
	Encode(b []byte) (int, error)
	Decode(b []byte) (int, error)
}

// Netlink is a message the exchange engine can put on the wire and
// correlate responses with.
type Netlink interface {
	Type() netlink.HeaderType
	Flags() netlink.HeaderFlags

	// Sequence returns 0 until the message has been serialized once.
	Sequence() uint32

	Serialize(b []byte) (int, error)
	Deserialize(b []byte) (int, error)
}

var sequenceID atomic.Uint32

// nextSequence hands out process-wide unique sequence numbers. Zero is
// skipped on wraparound as it's what the kernel uses for notifications.
func nextSequence() uint32 {
	for {
		if seq := sequenceID.Add(1); seq != 0 {
			return seq
		}
	}
}

// Message is the generic netlink codec: a header followed by a Payload.
// The zero value is a bodiless message of type 0. A Message is not safe
// for concurrent use.
type Message struct {
	typ      netlink.HeaderType
	flags    netlink.HeaderFlags
	sequence uint32
	payload  Payload
	err      *ProtocolError
}

// NewMessage returns a message with the given header type and flags whose
// body is handled by p, which can be nil.
func NewMessage(typ netlink.HeaderType, flags netlink.HeaderFlags, p Payload) *Message {
	m := &Message{}
	m.Init(typ, flags, p)
	return m
}

// Init sets up a Message embedded in another type.
func (m *Message) Init(typ netlink.HeaderType, flags netlink.HeaderFlags, p Payload) {
	m.typ, m.flags, m.payload = typ, flags, p
}

func (m *Message) Type() netlink.HeaderType {
	return m.typ
}

func (m *Message) SetType(typ netlink.HeaderType) {
	m.typ = typ
}

func (m *Message) Flags() netlink.HeaderFlags {
	return m.flags
}

func (m *Message) SetFlags(flags netlink.HeaderFlags) {
	m.flags = flags
}

func (m *Message) Sequence() uint32 {
	return m.sequence
}

// Err returns the error carried by the last NLMSG_ERROR deserialized into
// m, if any.
func (m *Message) Err() error {
	if m.err == nil {
		return nil
	}
	return m.err
}

// Serialize writes the message into b and returns the number of bytes
// written, padding included. The sequence number is drawn on the first
// call and reused on any later one.
func (m *Message) Serialize(b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("%w: %d byte buffer can't hold a header", ErrEncode, len(b))
	}

	if m.sequence == 0 {
		m.sequence = nextSequence()
	}

	n := 0
	if m.payload != nil {
		var err error
		if n, err = m.payload.Encode(b[HeaderSize:]); err != nil {
			return 0, fmt.Errorf("%w: sequence %d: %w", ErrEncode, m.sequence, err)
		}
		if n < 0 || n > len(b)-HeaderSize {
			return 0, fmt.Errorf("%w: sequence %d: payload reported %d bytes", ErrEncode, m.sequence, n)
		}
	}

	total := Align(HeaderSize + n)
	if total > len(b) {
		return 0, fmt.Errorf("%w: sequence %d: no room for %d padding bytes", ErrEncode, m.sequence, total-HeaderSize-n)
	}
	clear(b[HeaderSize+n : total])

	putHeader(b, netlink.Header{
		Length:   uint32(total),
		Type:     m.typ,
		Flags:    m.flags,
		Sequence: m.sequence,
	})

	return total, nil
}

// Deserialize decodes the message at the start of b into m, adopting its
// type, flags and sequence. NLMSG_ERROR messages are not handed to the
// payload: their content is made available through Err. It returns the
// number of bytes the message spans in b.
func (m *Message) Deserialize(b []byte) (int, error) {
	h, ok := parseHeader(b)
	if !ok {
		return 0, fmt.Errorf("%w: truncated or malformed header in %d bytes", ErrDecode, len(b))
	}

	m.typ, m.flags, m.sequence, m.err = h.Type, h.Flags, h.Sequence, nil

	body := b[HeaderSize:h.Length]
	if h.Type == netlink.Error {
		perr, err := ParseError(h, body)
		if err != nil {
			return 0, err
		}
		m.err = perr
	} else if m.payload != nil {
		if _, err := m.payload.Decode(body); err != nil {
			if errors.Is(err, ErrIncomplete) {
				return 0, err
			}
			return 0, fmt.Errorf("%w: sequence %d: %w", ErrDecode, h.Sequence, err)
		}
	}

	return min(Align(int(h.Length)), len(b)), nil
}
