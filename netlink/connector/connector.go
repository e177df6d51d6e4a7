// Package connector implements the kernel connector bus (see
// Documentation/driver-api/connector.rst) on top of the generic netlink
// codec. Each netlink message carries one or more struct cn_msg:
//
//	0               4               8               12              16      18      20
//	+---------------+---------------+---------------+---------------+-------+-------+------
//	|      idx      |      val      |      seq      |      ack      |  len  | flags | data
//	+---------------+---------------+---------------+---------------+-------+-------+------
//
// Every field is in host byte order.
package connector

import (
	"fmt"
	"math"

	"github.com/josharian/native"
	"github.com/mdlayher/netlink"

	nl "github.com/scitags/flowd-nl/netlink"
)

// HeaderSize is the size of struct cn_msg without its data.
const HeaderSize = 20

// ID is a connector identity (i.e. struct cb_id).
type ID struct {
	Idx uint32 `yaml:"idx"`
	Val uint32 `yaml:"val"`
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Idx, id.Val)
}

// Well-known identities as defined in include/uapi/linux/connector.h.
var (
	Proc      = ID{Idx: 0x1, Val: 0x1}
	CIFS      = ID{Idx: 0x2, Val: 0x1}
	W1        = ID{Idx: 0x3, Val: 0x1}
	V86D      = ID{Idx: 0x4, Val: 0x1}
	DST       = ID{Idx: 0x6, Val: 0x1}
	DM        = ID{Idx: 0x7, Val: 0x1}
	DRBD      = ID{Idx: 0x8, Val: 0x1}
	KVP       = ID{Idx: 0x9, Val: 0x1}
	VSS       = ID{Idx: 0xA, Val: 0x1}
	idByNames = map[string]ID{
		"proc": Proc,
		"cifs": CIFS,
		"w1":   W1,
		"v86d": V86D,
		"dst":  DST,
		"dm":   DM,
		"drbd": DRBD,
		"kvp":  KVP,
		"vss":  VSS,
	}
)

// Lookup returns the well-known identity going by name.
func Lookup(name string) (ID, bool) {
	id, ok := idByNames[name]
	return id, ok
}

// header is struct cn_msg without its data.
type header struct {
	id    ID
	seq   uint32
	ack   uint32
	len   uint16
	flags uint16
}

func parseHeader(b []byte) header {
	return header{
		id: ID{
			Idx: native.Endian.Uint32(b[0:4]),
			Val: native.Endian.Uint32(b[4:8]),
		},
		seq:   native.Endian.Uint32(b[8:12]),
		ack:   native.Endian.Uint32(b[12:16]),
		len:   native.Endian.Uint16(b[16:18]),
		flags: native.Endian.Uint16(b[18:20]),
	}
}

func (h header) put(b []byte) {
	native.Endian.PutUint32(b[0:4], h.id.Idx)
	native.Endian.PutUint32(b[4:8], h.id.Val)
	native.Endian.PutUint32(b[8:12], h.seq)
	native.Endian.PutUint32(b[12:16], h.ack)
	native.Endian.PutUint16(b[16:18], h.len)
	native.Endian.PutUint16(b[18:20], h.flags)
}

// Message is a netlink message carrying a single cn_msg addressed to a
// fixed identity. Received messages are only accepted if they carry a
// cn_msg for that same identity.
type Message struct {
	nl.Message

	id    ID
	ack   uint32
	flags uint16
	body  nl.Payload
}

// New returns a connector message for id whose data is handled by body.
func New(id ID, body nl.Payload) *Message {
	m := &Message{id: id, body: body}
	m.Init(netlink.Done, 0, m)
	return m
}

func (m *Message) ID() ID {
	return m.id
}

// Acknowledge returns the ack counter of the last accepted cn_msg. It's
// echoed back on the next serialization.
func (m *Message) Acknowledge() uint32 {
	return m.ack
}

func (m *Message) SetAcknowledge(ack uint32) {
	m.ack = ack
}

// SetConnectorFlags sets the flags field of the outgoing cn_msg.
func (m *Message) SetConnectorFlags(flags uint16) {
	m.flags = flags
}

// Ingest deserializes b and reports whether it held exactly one message
// that was accepted.
func (m *Message) Ingest(b []byte) bool {
	n, err := m.Deserialize(b)
	return err == nil && n == len(b)
}

// Encode implements nl.Payload.
func (m *Message) Encode(b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("%d bytes can't hold a connector header", len(b))
	}

	n := 0
	if m.body != nil {
		var err error
		if n, err = m.body.Encode(b[HeaderSize:]); err != nil {
			return 0, fmt.Errorf("error encoding data for %s: %w", m.id, err)
		}
	}
	if n > math.MaxUint16 {
		return 0, fmt.Errorf("%d bytes of data overflow the connector length", n)
	}

	header{
		id:    m.id,
		seq:   m.Sequence(),
		ack:   m.ack,
		len:   uint16(n),
		flags: m.flags,
	}.put(b)

	return HeaderSize + n, nil
}

// Decode implements nl.Payload. It looks for the first cn_msg with data
// addressed to the message's identity, skipping over any other. Unless
// that cn_msg is whole and its data is fully taken by the body, the error
// wraps netlink.ErrIncomplete so the frame is not taken as the response.
func (m *Message) Decode(b []byte) (int, error) {
	for off := 0; off+HeaderSize <= len(b); {
		h := parseHeader(b[off:])
		end := off + HeaderSize + int(h.len)

		if h.id == m.id && h.len > 0 {
			if end > len(b) {
				return 0, fmt.Errorf("%w: %d byte message for %s overruns %d byte payload",
					nl.ErrIncomplete, h.len, m.id, len(b))
			}

			m.ack = h.ack

			if m.body != nil {
				n, err := m.body.Decode(b[off+HeaderSize : end])
				if err != nil {
					return 0, fmt.Errorf("%w: error decoding data for %s: %w", nl.ErrIncomplete, m.id, err)
				}
				if n != int(h.len) {
					return 0, fmt.Errorf("%w: data for %s: consumed %d out of %d bytes", nl.ErrIncomplete, m.id, n, h.len)
				}
			}

			return len(b), nil
		}

		off = end
	}

	return 0, fmt.Errorf("%w: no message for %s", nl.ErrIncomplete, m.id)
}
