package exchange

import (
	"errors"
	"fmt"

	"github.com/mdlayher/netlink"

	nl "github.com/scitags/flowd-nl/netlink"
)

type stray struct {
	header  netlink.Header
	payload []byte
}

// SendData implements Handler.
func (s *Socket) SendData(b []byte) int {
	s.lock.Lock()

	var e *entry
	for _, p := range s.pending {
		if p.state == Loaded {
			e = p
			break
		}
	}
	if e == nil {
		s.lock.Unlock()
		return 0
	}

	// Never retried, whatever the outcome
	e.state = Sent

	n, err := e.outbound.Serialize(b)
	if err == nil && n == 0 {
		err = fmt.Errorf("%w: empty message", nl.ErrEncode)
	}

	failed, more := false, false
	if err != nil {
		s.finish(e, Failed, err)
		s.stats.encodeErrors.Add(1)
		failed, n = true, 0

		// Nothing was written so the loop won't call us again on its own
		for _, p := range s.pending {
			if p.state == Loaded {
				more = true
				break
			}
		}
	} else {
		s.stats.sent.Add(1)
		s.stats.sentBytes.Add(uint64(n))
		if e.inbound == nil {
			s.finish(e, Processed, nil)
		} else {
			s.lastSent = e
		}
	}
	s.lock.Unlock()

	if failed {
		logger.Warn("error serializing message", "type", e.outbound.Type(), "err", err)
		e.notify()
	}
	if more {
		s.port.Trigger()
	}

	return n
}

// ReceiveData implements Handler.
func (s *Socket) ReceiveData(b []byte) int {
	s.stats.datagrams.Add(1)
	s.stats.receivedBytes.Add(uint64(len(b)))

	var (
		completed []*entry
		strays    []stray
	)

	s.lock.Lock()
	f := nl.NewFrames(b)
	for f.Next() {
		s.stats.frames.Add(1)

		e := s.match(f.Sequence())
		if e == nil {
			strays = append(strays, stray{f.Header(), f.Payload()})
			continue
		}

		if s.consume(e, f) {
			completed = append(completed, e)
		}
	}
	unsolicited := s.unsolicited
	s.lock.Unlock()

	if f.Remaining() > 0 {
		s.stats.malformed.Add(1)
		logger.Warn("dropping malformed netlink data", "bytes", f.Remaining(), "datagram", len(b))
	}

	for _, e := range completed {
		e.notify()
	}

	for _, m := range strays {
		s.stats.unsolicited.Add(1)
		if unsolicited != nil {
			unsolicited(m.header, m.payload)
			continue
		}
		logger.Debug("unhandled netlink message", "err", nl.ErrUnsolicited,
			"type", m.header.Type, "seq", m.header.Sequence, "pid", m.header.PID, "len", m.header.Length)
	}

	return len(b)
}

// SendFailed implements Handler.
func (s *Socket) SendFailed(err error) {
	s.stats.transportErrors.Add(1)

	s.lock.Lock()
	if s.lastSent != nil {
		s.lastSent.wireErr = err
	}
	s.lock.Unlock()

	logger.Warn("error writing to the socket", "err", err)
}

// StateChange implements Handler.
func (s *Socket) StateChange(state SocketState) {
	s.lock.Lock()
	s.state = state
	if state == Open {
		s.opened = true
	}
	s.lock.Unlock()

	logger.Debug("socket state change", "state", state)
}

// match returns the sent exchange waiting for a response with sequence seq.
// Must be called with the lock held.
func (s *Socket) match(seq uint32) *entry {
	for _, e := range s.pending {
		if e.state == Sent && e.inbound != nil && e.outbound.Sequence() == seq {
			return e
		}
	}
	return nil
}

// consume decodes the current frame into e and reports whether e is done.
// Must be called with the lock held.
func (s *Socket) consume(e *entry, f *nl.Frames) bool {
	if f.Type() == netlink.Error {
		perr, err := nl.ParseError(f.Header(), f.Payload())
		if err != nil {
			s.finish(e, Failed, err)
			return true
		}

		// Let the message keep hold of the error too
		if _, err := e.inbound.Deserialize(f.Raw()); err != nil {
			logger.Debug("error frame not kept by the message", "seq", f.Sequence(), "err", err)
		}

		s.finish(e, Failed, perr)
		return true
	}

	// NLMSG_DONE closing a dump only carries the dump's status: the
	// exchange is over whatever the inbound payload makes of it.
	terminator := f.Type() == netlink.Done && (e.multi || f.Flags()&netlink.Multi != 0)

	if _, err := e.inbound.Deserialize(f.Raw()); err != nil {
		if terminator {
			logger.Debug("ignoring undecodable end of dump", "seq", f.Sequence(), "err", err)
			s.finish(e, Processed, nil)
			return true
		}
		if errors.Is(err, nl.ErrIncomplete) {
			logger.Debug("message doesn't complete the exchange", "seq", f.Sequence(), "err", err)
			return false
		}
		s.finish(e, Failed, err)
		return true
	}

	if f.Type() != netlink.Done && f.Flags()&netlink.Multi != 0 {
		e.multi = true
		return false
	}

	s.finish(e, Processed, nil)
	return true
}
