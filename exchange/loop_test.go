package exchange

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/josharian/native"
	"github.com/mdlayher/netlink"

	nl "github.com/scitags/flowd-nl/netlink"
)

func init() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelError,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove time.
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			// Remove the directory from the source's filename.
			if a.Key == slog.SourceKey {
				source := a.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return a
		},
	}))
	slog.SetDefault(logger)
}

// loopPort is an in-memory Port. Whatever the handler serializes shows up
// on writes and whatever is pushed onto reads is handed to the handler,
// all from a single goroutine as a real socket loop would.
type loopPort struct {
	h Handler

	trigger chan struct{}
	reads   chan []byte
	writes  chan []byte
	done    chan struct{}
	stopped chan struct{}

	// refuse makes writes fail
	refuse atomic.Bool

	// stall keeps the loop from ever calling SendData
	stall bool
}

func newLoopPort() *loopPort {
	return &loopPort{
		trigger: make(chan struct{}, 1),
		reads:   make(chan []byte, 64),
		writes:  make(chan []byte, 64),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (p *loopPort) dial(h Handler) (Port, error) {
	p.h = h
	go p.run()
	return p, nil
}

func (p *loopPort) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *loopPort) Close(timeout time.Duration) error {
	close(p.done)
	select {
	case <-p.stopped:
		return nil
	case <-time.After(timeout):
		return errors.New("loop didn't stop")
	}
}

func (p *loopPort) run() {
	defer close(p.stopped)

	p.h.StateChange(Open)

	buf := make([]byte, 4096)
	for {
		select {
		case <-p.trigger:
			if p.stall {
				continue
			}
			for {
				n := p.h.SendData(buf)
				if n == 0 {
					break
				}
				if p.refuse.Load() {
					p.h.SendFailed(errors.New("write refused"))
					continue
				}
				p.writes <- append([]byte{}, buf[:n]...)
			}
		case b := <-p.reads:
			p.h.ReceiveData(b)
		case <-p.done:
			p.h.StateChange(Closing)
			p.h.StateChange(Closed)
			return
		}
	}
}

// peer answers every datagram written to p through respond, which returns
// the datagrams to send back.
func (p *loopPort) peer(respond func(n int, req netlink.Header, payload []byte) [][]byte) {
	go func() {
		n := 0
		for {
			select {
			case w := <-p.writes:
				n++
				f := nl.NewFrames(w)
				if !f.Next() {
					continue
				}
				for _, d := range respond(n, f.Header(), f.Payload()) {
					select {
					case p.reads <- d:
					case <-p.done:
						return
					}
				}
			case <-p.done:
				return
			}
		}
	}()
}

func newTestSocket(t *testing.T, p *loopPort) *Socket {
	t.Helper()

	s, err := New(&Config{Log: true, Timeout: 1000}, p.dial)
	if err != nil {
		t.Fatalf("error creating socket: %v", err)
	}
	t.Cleanup(func() { s.Close(time.Second) })

	return s
}

// frame builds a netlink message with the given header fields.
func frame(seq uint32, typ netlink.HeaderType, flags netlink.HeaderFlags, payload []byte) []byte {
	buf := make([]byte, nl.HeaderSize+nl.Align(len(payload)))
	n, err := nl.NewMessage(typ, flags, &nl.Blob{Data: payload}).Serialize(buf)
	if err != nil {
		panic(err)
	}
	native.Endian.PutUint32(buf[8:12], seq)
	return buf[:n]
}

func errorFrame(seq uint32, errno int32) []byte {
	payload := make([]byte, 20)
	native.Endian.PutUint32(payload, uint32(-errno))
	return frame(seq, netlink.Error, 0, payload)
}

func concat(frames ...[]byte) []byte {
	var b []byte
	for _, f := range frames {
		b = append(b, f...)
	}
	return b
}

// collector keeps every payload it's handed.
type collector struct {
	chunks [][]byte
}

func (c *collector) Encode(b []byte) (int, error) {
	return copy(b, []byte("ping")), nil
}

func (c *collector) Decode(b []byte) (int, error) {
	c.chunks = append(c.chunks, append([]byte{}, b...))
	return len(b), nil
}

// eventually polls cond for up to a second. Counters bumped after a
// waiter is released need it.
func eventually(t *testing.T, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}
