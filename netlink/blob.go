package netlink

import "fmt"

// Blob is an opaque payload. Decoding keeps a copy of whatever follows the
// header, alignment padding included.
type Blob struct {
	Data []byte
}

func (p *Blob) Encode(b []byte) (int, error) {
	if len(p.Data) > len(b) {
		return 0, fmt.Errorf("need %d bytes, have %d", len(p.Data), len(b))
	}
	return copy(b, p.Data), nil
}

func (p *Blob) Decode(b []byte) (int, error) {
	p.Data = append(p.Data[:0], b...)
	return len(b), nil
}
