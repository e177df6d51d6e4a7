package netlink

import (
	"fmt"

	"github.com/mdlayher/netlink"
)

// Parameters is a payload made up of a fixed family header (e.g. struct
// ifinfomsg or struct genlmsghdr) followed by netlink attributes. Outgoing
// attributes are added through Encoder. Decoding expects a header as long
// as the one Parameters was built with.
type Parameters struct {
	Header []byte

	// Attributes holds what the last Decode found after the header.
	Attributes []netlink.Attribute

	encoder *netlink.AttributeEncoder
	raw     []byte
}

func NewParameters(header []byte) *Parameters {
	return &Parameters{Header: header, encoder: netlink.NewAttributeEncoder()}
}

// Encoder returns the encoder collecting the attributes to send.
func (p *Parameters) Encoder() *netlink.AttributeEncoder {
	if p.encoder == nil {
		p.encoder = netlink.NewAttributeEncoder()
	}
	return p.encoder
}

// Decoder returns a decoder over the attributes found by the last Decode.
func (p *Parameters) Decoder() (*netlink.AttributeDecoder, error) {
	return netlink.NewAttributeDecoder(p.raw)
}

func (p *Parameters) Encode(b []byte) (int, error) {
	attrs, err := p.Encoder().Encode()
	if err != nil {
		return 0, fmt.Errorf("error encoding attributes: %w", err)
	}

	hl := Align(len(p.Header))
	if hl+len(attrs) > len(b) {
		return 0, fmt.Errorf("need %d bytes, have %d", hl+len(attrs), len(b))
	}

	copy(b, p.Header)
	clear(b[len(p.Header):hl])
	copy(b[hl:], attrs)

	return hl + len(attrs), nil
}

func (p *Parameters) Decode(b []byte) (int, error) {
	hl := Align(len(p.Header))
	if len(b) < hl {
		return 0, fmt.Errorf("%d bytes can't hold a %d byte header", len(b), len(p.Header))
	}
	copy(p.Header, b)

	attrs, err := netlink.UnmarshalAttributes(b[hl:])
	if err != nil {
		return 0, fmt.Errorf("error decoding attributes: %w", err)
	}
	p.Attributes = attrs
	p.raw = append(p.raw[:0], b[hl:]...)

	return len(b), nil
}
