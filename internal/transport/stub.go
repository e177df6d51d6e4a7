//go:build !linux

package transport

import (
	"errors"
	"time"

	"github.com/scitags/flowd-nl/exchange"
)

var ErrUnsupported = errors.New("netlink sockets are only available on linux")

type Datagram struct{}

func Open(c *Config, h exchange.Handler) (*Datagram, error) {
	return nil, ErrUnsupported
}

func Dialer(c *Config) exchange.Dialer {
	return func(h exchange.Handler) (exchange.Port, error) {
		return nil, ErrUnsupported
	}
}

func (d *Datagram) Trigger() {}

func (d *Datagram) Close(timeout time.Duration) error {
	return ErrUnsupported
}
