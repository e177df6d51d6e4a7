package exchange

import (
	"context"
	"time"

	nl "github.com/scitags/flowd-nl/netlink"
)

// entry is a single exchange. Its fields are guarded by the owning
// Socket's lock until done is closed.
type entry struct {
	outbound nl.Netlink

	// inbound is nil for fire-and-forget messages.
	inbound nl.Netlink

	// multi is set once part of a multi-part response has been consumed.
	multi bool

	state    State
	err      error
	wireErr  error
	callback func(ok bool)
	done     chan struct{}
}

func newEntry(outbound, inbound nl.Netlink, callback func(bool)) *entry {
	return &entry{
		outbound: outbound,
		inbound:  inbound,
		callback: callback,
		done:     make(chan struct{}),
	}
}

func (e *entry) final() bool {
	return e.state == Processed || e.state == Failed
}

// wait blocks until the entry is finalized, timeout elapses or ctx is
// done and reports whether the entry was finalized.
func (e *entry) wait(ctx context.Context, timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-e.done:
		return true
	case <-expired:
	case <-ctx.Done():
	}

	// Completion wins over a simultaneous expiry
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *entry) notify() {
	if e.callback != nil {
		e.callback(e.state == Processed)
	}
}
