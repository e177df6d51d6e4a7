//go:build linux

// Package transport provides the event loop driving an exchange.Socket over
// an actual netlink socket.
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/scitags/flowd-nl/exchange"
)

var logger *slog.Logger

// Datagram is an exchange.Port over a netlink socket. A single goroutine
// calls into the handler while a second one blocks reading the socket.
type Datagram struct {
	Config

	conn    *netlink.Conn
	raw     syscall.RawConn
	handler exchange.Handler

	trigger  chan struct{}
	inbound  chan []byte
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// Dialer returns an exchange.Dialer opening Datagrams configured by c.
func Dialer(c *Config) exchange.Dialer {
	return func(h exchange.Handler) (exchange.Port, error) {
		return Open(c, h)
	}
}

// Open dials the netlink socket and starts the loop driving h.
func Open(c *Config, h exchange.Handler) (*Datagram, error) {
	if c == nil {
		c = &DefaultConfig
	}

	if c.Log {
		logger = slog.Default().With("t", "transport")
	} else {
		logger = slog.New(slog.DiscardHandler)
	}

	conn, err := netlink.Dial(c.Family, &netlink.Config{Groups: c.Groups})
	if err != nil {
		return nil, fmt.Errorf("could not open netlink socket: %w", err)
	}

	if c.SocketBufferSize > 0 {
		if err := conn.SetReadBuffer(c.SocketBufferSize); err != nil {
			logger.Warn("couldn't set the socket's receive buffer", "size", c.SocketBufferSize, "err", err)
		}
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not get the raw socket: %w", err)
	}

	d := &Datagram{
		Config:  *c,
		conn:    conn,
		raw:     raw,
		handler: h,
		trigger: make(chan struct{}, 1),
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	logger.Debug("opened netlink socket", "family", c.Family, "groups", c.Groups)

	go d.read()
	go d.loop()

	return d, nil
}

// Trigger implements exchange.Port.
func (d *Datagram) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Close implements exchange.Port.
func (d *Datagram) Close(timeout time.Duration) error {
	d.stopOnce.Do(func() { close(d.done) })

	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-d.stopped:
		return nil
	case <-expired:
		return fmt.Errorf("loop still running after %s", timeout)
	}
}

func (d *Datagram) loop() {
	defer close(d.stopped)

	d.handler.StateChange(exchange.Open)

	out := make([]byte, d.SendBufferSize)
	for {
		select {
		case <-d.trigger:
			d.flush(out)
		case b := <-d.inbound:
			d.handler.ReceiveData(b)
		case <-d.done:
			d.handler.StateChange(exchange.Closing)
			if err := d.conn.Close(); err != nil {
				logger.Warn("error closing the socket", "err", err)
			}
			d.handler.StateChange(exchange.Closed)
			logger.Debug("cleanly exiting the loop")
			return
		}
	}
}

// flush writes out everything the handler has to send.
func (d *Datagram) flush(out []byte) {
	for {
		n := d.handler.SendData(out)
		if n == 0 {
			return
		}
		if err := d.send(out[:n]); err != nil {
			d.handler.SendFailed(err)
		}
	}
}

func (d *Datagram) read() {
	buf := make([]byte, d.ReceiveBufferSize)
	for {
		n, err := d.recv(buf)
		if err != nil {
			select {
			case <-d.done:
				return
			default:
			}

			// The kernel dropped messages: keep reading
			if errors.Is(err, unix.ENOBUFS) {
				logger.Warn("receive buffer overrun", "err", err)
				continue
			}

			logger.Error("error reading from the socket", "err", err)
			return
		}

		b := make([]byte, n)
		copy(b, buf[:n])

		select {
		case d.inbound <- b:
		case <-d.done:
			return
		}
	}
}

func (d *Datagram) recv(b []byte) (int, error) {
	var (
		n    int
		rerr error
	)
	err := d.raw.Read(func(fd uintptr) bool {
		n, _, rerr = unix.Recvfrom(int(fd), b, 0)
		return !errors.Is(rerr, unix.EAGAIN)
	})
	if err != nil {
		return 0, err
	}
	return n, rerr
}

// send writes b to the kernel (i.e. port ID 0).
func (d *Datagram) send(b []byte) error {
	var werr error
	err := d.raw.Write(func(fd uintptr) bool {
		werr = unix.Sendto(int(fd), b, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK})
		return !errors.Is(werr, unix.EAGAIN)
	})
	if err != nil {
		return err
	}
	return werr
}
