//go:build linux

package subcmd

import (
	"testing"
	"time"

	"github.com/prometheus/procfs"

	"github.com/scitags/flowd-nl/exchange"
	"github.com/scitags/flowd-nl/internal/transport"
)

func TestProtocolUsage(t *testing.T) {
	s, err := exchange.New(&exchange.Config{Log: false}, transport.Dialer(&transport.DefaultConfig))
	if err != nil {
		t.Fatalf("error opening a netlink socket: %v", err)
	}
	defer s.Close(time.Second)

	line, err := ProtocolUsage(procfs.DefaultMountPoint, "NETLINK")
	if err != nil {
		t.Fatalf("error getting netlink usage: %v", err)
	}

	// At least ours is open
	if line.Sockets < 1 {
		t.Errorf("got %d netlink sockets", line.Sockets)
	}

	if _, err := ProtocolUsage(procfs.DefaultMountPoint, "NOPE"); err == nil {
		t.Errorf("got statistics for an unknown protocol")
	}
}
