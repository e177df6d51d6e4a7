package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mdlayher/netlink"

	nl "github.com/scitags/flowd-nl/netlink"
)

// Infinite disables the timeout of blocking calls.
const Infinite time.Duration = -1

var logger *slog.Logger

// Socket correlates netlink requests with their responses over a Port.
type Socket struct {
	Config

	port Port

	lock        sync.Mutex
	pending     []*entry
	queue       []*entry
	state       SocketState
	opened      bool
	closed      bool
	lastSent    *entry
	unsolicited func(netlink.Header, []byte)

	stats counters
}

// New opens a port through dial and returns a Socket driven by it.
func New(c *Config, dial Dialer) (*Socket, error) {
	if c == nil {
		c = &DefaultConfig
	}

	if c.Log {
		logger = slog.Default().With("t", "exchange")
	} else {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Socket{Config: *c}

	port, err := dial(s)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening the port: %w", nl.ErrTransport, err)
	}
	s.port = port

	return s, nil
}

// OnUnsolicited sets the function called with every message matching no
// outstanding exchange. It's called from the port's loop and the payload
// is only valid until it returns.
func (s *Socket) OnUnsolicited(fn func(h netlink.Header, payload []byte)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.unsolicited = fn
}

// Send writes msg without expecting a response. It returns as soon as msg
// has been serialized. If the loop gets no chance to do so within timeout
// msg is dropped and an error wrapping netlink.ErrTransport is returned.
func (s *Socket) Send(ctx context.Context, msg nl.Netlink, timeout time.Duration) error {
	e := newEntry(msg, nil, nil)
	if err := s.submit(e); err != nil {
		return err
	}

	if e.wait(ctx, timeout) {
		return e.err
	}

	s.lock.Lock()
	final := e.final()
	if !final {
		s.withdraw(e)
	}
	s.lock.Unlock()

	if final {
		return e.err
	}

	s.stats.timeouts.Add(1)
	return fmt.Errorf("%w: no chance to send within %s", nl.ErrTransport, timeout)
}

// Exchange writes outbound and waits for the response to be decoded into
// inbound, which can be outbound itself. Errors wrap netlink.ErrProtocol
// (the peer answered with an error), netlink.ErrEncode, netlink.ErrDecode,
// netlink.ErrTimeout or netlink.ErrTransport. Exchange must not be called
// from the port's loop: use ExchangeAsync there.
func (s *Socket) Exchange(ctx context.Context, outbound, inbound nl.Netlink, timeout time.Duration) error {
	if inbound == nil {
		return errors.New("exchange: nil inbound message")
	}

	e := newEntry(outbound, inbound, nil)
	if err := s.submit(e); err != nil {
		return err
	}

	return s.await(ctx, e, timeout)
}

// ExchangeAsync writes msg and decodes the response back into it. callback,
// which can be nil, is called exactly once with the outcome. It's called
// from the port's loop except when the Socket is closed with the exchange
// outstanding, in which case it's called from Close.
func (s *Socket) ExchangeAsync(msg nl.Netlink, callback func(ok bool)) error {
	return s.submit(newEntry(msg, msg, callback))
}

// RequestExchange appends msg to the exchange queue. Nothing is written
// until ExecuteExchangeQueue is called.
func (s *Socket) RequestExchange(msg nl.Netlink) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.admit(); err != nil {
		return err
	}
	s.queue = append(s.queue, newEntry(msg, msg, nil))

	return nil
}

// ExecuteExchangeQueue runs the queued exchanges one at a time, each bound
// by timeout. A timeout or transport failure aborts the run dropping
// whatever is left in the queue. Otherwise the result of the last exchange
// is returned.
func (s *Socket) ExecuteExchangeQueue(ctx context.Context, timeout time.Duration) error {
	var result error
	for {
		s.lock.Lock()
		if len(s.queue) == 0 {
			s.lock.Unlock()
			return result
		}
		if err := s.admit(); err != nil {
			s.lock.Unlock()
			return err
		}
		e := s.queue[0]
		s.queue = slices.Delete(s.queue, 0, 1)
		s.pending = append(s.pending, e)
		s.lock.Unlock()

		s.port.Trigger()

		result = s.await(ctx, e, timeout)
		if errors.Is(result, nl.ErrTimeout) || errors.Is(result, nl.ErrTransport) {
			s.lock.Lock()
			dropped := s.queue
			s.queue = nil
			for _, d := range dropped {
				s.finish(d, Failed, fmt.Errorf("%w: exchange queue aborted", nl.ErrTransport))
			}
			s.lock.Unlock()

			logger.Warn("aborting the exchange queue", "dropped", len(dropped), "err", result)
			return fmt.Errorf("%w: exchange queue aborted with %d exchanges left: %w", nl.ErrTransport, len(dropped), result)
		}
	}
}

// Pending returns the number of exchanges waiting to be sent or answered.
func (s *Socket) Pending() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.pending)
}

// Queued returns the number of exchanges in the exchange queue.
func (s *Socket) Queued() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.queue)
}

// Close stops the port and fails every outstanding exchange with
// netlink.ErrClosed.
func (s *Socket) Close(timeout time.Duration) error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	s.lock.Unlock()

	logger.Debug("closing the socket")
	err := s.port.Close(timeout)

	s.lock.Lock()
	outstanding := slices.Concat(s.pending, s.queue)
	for _, e := range outstanding {
		s.finish(e, Failed, nl.ErrClosed)
	}
	s.lock.Unlock()

	for _, e := range outstanding {
		e.notify()
	}

	if err != nil {
		return fmt.Errorf("error closing the port: %w", err)
	}
	return nil
}

// admit checks new exchanges can be accepted. Must be called with the lock held.
func (s *Socket) admit() error {
	if s.closed || s.state == Closing || (s.state == Closed && s.opened) {
		return nl.ErrClosed
	}
	return nil
}

func (s *Socket) submit(e *entry) error {
	s.lock.Lock()
	if err := s.admit(); err != nil {
		s.lock.Unlock()
		return err
	}
	s.pending = append(s.pending, e)
	s.lock.Unlock()

	s.port.Trigger()

	return nil
}

// await waits for e and withdraws it if it didn't complete in time.
func (s *Socket) await(ctx context.Context, e *entry, timeout time.Duration) error {
	if e.wait(ctx, timeout) {
		return e.err
	}

	s.lock.Lock()
	final := e.final()
	if !final {
		s.withdraw(e)
	}
	seq, wireErr := e.outbound.Sequence(), e.wireErr
	s.lock.Unlock()

	if final {
		return e.err
	}

	s.stats.timeouts.Add(1)

	if wireErr != nil {
		return fmt.Errorf("%w: sequence %d: %w", nl.ErrTransport, seq, wireErr)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: sequence %d: %w", nl.ErrTimeout, seq, err)
	}

	return fmt.Errorf("%w: no response to sequence %d within %s", nl.ErrTimeout, seq, timeout)
}

// withdraw drops e from whichever collection holds it. Must be called with
// the lock held.
func (s *Socket) withdraw(e *entry) {
	if i := slices.Index(s.pending, e); i >= 0 {
		s.pending = slices.Delete(s.pending, i, i+1)
	} else if i := slices.Index(s.queue, e); i >= 0 {
		s.queue = slices.Delete(s.queue, i, i+1)
	}

	if s.lastSent == e {
		s.lastSent = nil
	}
}

// finish withdraws e and releases its waiter. Callbacks are left to the
// caller so they run without the lock held.
func (s *Socket) finish(e *entry, state State, err error) {
	s.withdraw(e)

	if state == Processed {
		s.stats.processed.Add(1)
	} else {
		s.stats.failed.Add(1)
	}

	e.state, e.err = state, err
	close(e.done)
}
