package netlink

import (
	"errors"
	"fmt"

	"github.com/josharian/native"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

var (
	// ErrEncode signals a message could not be written: the buffer was too
	// small or the payload refused to encode.
	ErrEncode = errors.New("netlink: encode failure")

	// ErrDecode signals a truncated or malformed frame or a payload that
	// refused to decode.
	ErrDecode = errors.New("netlink: decode failure")

	// ErrIncomplete is returned by payloads when the frame they were handed
	// doesn't (yet) carry what they are waiting for. The frame is not an
	// error: the exchange simply keeps waiting for further frames.
	ErrIncomplete = errors.New("netlink: incomplete message")

	// ErrProtocol is matched by every *ProtocolError.
	ErrProtocol = errors.New("netlink: peer returned an error")

	// ErrTimeout signals no completion was observed within the caller's bound.
	ErrTimeout = errors.New("netlink: timed out")

	// ErrTransport signals a failure of the underlying socket.
	ErrTransport = errors.New("netlink: transport failure")

	// ErrUnsolicited marks frames matching no outstanding request. These are
	// logged and counted, they never reach a caller.
	ErrUnsolicited = errors.New("netlink: unsolicited message")

	// ErrClosed is a transport failure caused by the socket being closed.
	ErrClosed = fmt.Errorf("%w: socket closed", ErrTransport)
)

// ProtocolError is the content of an NLMSG_ERROR frame.
type ProtocolError struct {
	// Errno is the (positive) error the peer reported.
	Errno unix.Errno

	// Sequence is the sequence number of the NLMSG_ERROR frame.
	Sequence uint32

	// Request is the header of the offending request as echoed back.
	Request netlink.Header
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("netlink: error response to sequence %d: %v", e.Sequence, e.Errno)
}

func (e *ProtocolError) Unwrap() []error {
	return []error{ErrProtocol, e.Errno}
}

// ParseError decodes the payload of an NLMSG_ERROR frame (i.e. struct
// nlmsgerr) received with header h.
func ParseError(h netlink.Header, payload []byte) (*ProtocolError, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: error payload of %d bytes", ErrDecode, len(payload))
	}

	// The kernel stores a negated errno
	code := int64(int32(native.Endian.Uint32(payload[0:4])))
	if code < 0 {
		code = -code
	}

	perr := ProtocolError{
		Errno:    unix.Errno(uint64(code)),
		Sequence: h.Sequence,
	}

	// The echoed header is optional when NETLINK_CAP_ACK is set
	if len(payload) >= errorSize {
		perr.Request = netlink.Header{
			Length:   native.Endian.Uint32(payload[4:8]),
			Type:     netlink.HeaderType(native.Endian.Uint16(payload[8:10])),
			Flags:    netlink.HeaderFlags(native.Endian.Uint16(payload[10:12])),
			Sequence: native.Endian.Uint32(payload[12:16]),
			PID:      native.Endian.Uint32(payload[16:20]),
		}
	}

	return &perr, nil
}
