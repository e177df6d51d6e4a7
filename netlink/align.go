package netlink

import (
	"github.com/josharian/native"
	"github.com/mdlayher/netlink"
)

const (
	// HeaderSize is the size of struct nlmsghdr (i.e. NLMSG_HDRLEN).
	HeaderSize = 16

	// AlignTo is NLMSG_ALIGNTO.
	AlignTo = 4

	// errorSize is the size of struct nlmsgerr: an errno plus the header
	// of the offending request.
	errorSize = 4 + HeaderSize
)

// Align rounds n up to the next netlink message boundary.
func Align(n int) int {
	return (n + AlignTo - 1) &^ (AlignTo - 1)
}

func putHeader(b []byte, h netlink.Header) {
	native.Endian.PutUint32(b[0:4], h.Length)
	native.Endian.PutUint16(b[4:6], uint16(h.Type))
	native.Endian.PutUint16(b[6:8], uint16(h.Flags))
	native.Endian.PutUint32(b[8:12], h.Sequence)
	native.Endian.PutUint32(b[12:16], h.PID)
}

// parseHeader decodes the header at the start of b and checks it
// describes a message fitting in b. This is NLMSG_OK.
func parseHeader(b []byte) (netlink.Header, bool) {
	if len(b) < HeaderSize {
		return netlink.Header{}, false
	}

	h := netlink.Header{
		Length:   native.Endian.Uint32(b[0:4]),
		Type:     netlink.HeaderType(native.Endian.Uint16(b[4:6])),
		Flags:    netlink.HeaderFlags(native.Endian.Uint16(b[6:8])),
		Sequence: native.Endian.Uint32(b[8:12]),
		PID:      native.Endian.Uint32(b[12:16]),
	}

	if h.Length < HeaderSize || uint64(h.Length) > uint64(len(b)) {
		return netlink.Header{}, false
	}

	return h, true
}
