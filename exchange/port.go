package exchange

import "time"

// Handler is what a Port calls into. Every method is called from the port's
// event loop and none of them blocks.
type Handler interface {
	// SendData serializes the next message into b and returns its size.
	// The loop keeps calling it until it returns 0.
	SendData(b []byte) int

	// ReceiveData processes a received datagram and returns the number of
	// bytes consumed.
	ReceiveData(b []byte) int

	// SendFailed reports the last buffer returned by SendData couldn't be
	// written.
	SendFailed(err error)

	StateChange(s SocketState)
}

// Port drives a Handler from its own event loop.
type Port interface {
	// Trigger asks the loop to call SendData. It must be safe to call from
	// any goroutine, the loop's included, and must not block.
	Trigger()

	// Close stops the loop waiting at most timeout for it to exit. Negative
	// timeouts wait forever.
	Close(timeout time.Duration) error
}

// Dialer opens a Port bound to h.
type Dialer func(h Handler) (Port, error)
