package netlink

import (
	"github.com/mdlayher/netlink"
)

// Frames walks the netlink messages packed in a buffer. The zero position
// is before the first message: call Next to move onto it.
//
//	for f := NewFrames(b); f.Next(); {
//		...
//	}
//
// Frames never copies the buffer: the slices it hands out alias it.
type Frames struct {
	data    []byte
	offset  int
	left    int
	header  netlink.Header
	valid   bool
	started bool
}

// NewFrames returns a cursor over b.
func NewFrames(b []byte) *Frames {
	return &Frames{data: b, left: len(b)}
}

// Next moves onto the next message and reports whether it is valid. Once
// a message is found to be invalid the walk is over: further calls keep
// returning false.
func (f *Frames) Next() bool {
	switch {
	case !f.started:
		f.started = true
	case f.valid:
		step := Align(int(f.header.Length))
		if step > f.left {
			step = f.left
		}
		f.offset += step
		f.left -= step
	default:
		return false
	}

	f.header, f.valid = parseHeader(f.data[f.offset:])
	return f.valid
}

// Valid reports whether the cursor sits on a complete message.
func (f *Frames) Valid() bool {
	return f.valid
}

// Remaining returns the number of bytes from the current message onwards.
// After the walk ends it is non-zero only if a malformed message stopped it.
func (f *Frames) Remaining() int {
	return f.left
}

// Header returns the header of the current message.
func (f *Frames) Header() netlink.Header {
	if !f.valid {
		return netlink.Header{}
	}
	return f.header
}

func (f *Frames) Type() netlink.HeaderType {
	return f.Header().Type
}

func (f *Frames) Flags() netlink.HeaderFlags {
	return f.Header().Flags
}

func (f *Frames) Sequence() uint32 {
	return f.Header().Sequence
}

// HeaderSize returns the size of the header of the current message.
func (f *Frames) HeaderSize() int {
	if !f.valid {
		return 0
	}
	return HeaderSize
}

// Payload returns the bytes after the header up to the declared length.
func (f *Frames) Payload() []byte {
	if !f.valid {
		return nil
	}
	return f.data[f.offset+HeaderSize : f.offset+int(f.header.Length)]
}

func (f *Frames) PayloadSize() int {
	return len(f.Payload())
}

// Raw returns the whole current message, header included.
func (f *Frames) Raw() []byte {
	if !f.valid {
		return nil
	}
	return f.data[f.offset : f.offset+int(f.header.Length)]
}

func (f *Frames) RawSize() int {
	return len(f.Raw())
}
