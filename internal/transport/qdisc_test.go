//go:build linux

package transport

import (
	"cmp"
	"context"
	"slices"
	"testing"
	"time"

	"github.com/florianl/go-tc"
	gocmp "github.com/google/go-cmp/cmp"
	"github.com/josharian/native"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	nl "github.com/scitags/flowd-nl/netlink"
)

// struct tcmsg
const sizeofTcMsg = 20

type qdisc struct {
	Ifindex uint32
	Handle  uint32
	Parent  uint32
	Kind    string
}

// qdiscDump collects every struct tcmsg of an RTM_GETQDISC dump.
type qdiscDump struct {
	qdiscs []qdisc
}

func (q *qdiscDump) Encode(b []byte) (int, error) { return 0, nil }

func (q *qdiscDump) Decode(b []byte) (int, error) {
	if len(b) < sizeofTcMsg {
		return len(b), nil
	}

	d := qdisc{
		Ifindex: native.Endian.Uint32(b[4:8]),
		Handle:  native.Endian.Uint32(b[8:12]),
		Parent:  native.Endian.Uint32(b[12:16]),
	}

	ad, err := netlink.NewAttributeDecoder(b[sizeofTcMsg:])
	if err != nil {
		return 0, err
	}
	for ad.Next() {
		if ad.Type() == unix.TCA_KIND {
			d.Kind = ad.String()
		}
	}
	if err := ad.Err(); err != nil {
		return 0, err
	}

	q.qdiscs = append(q.qdiscs, d)
	return len(b), nil
}

func sortQdiscs(qs []qdisc) {
	slices.SortFunc(qs, func(a, b qdisc) int {
		return cmp.Or(cmp.Compare(a.Ifindex, b.Ifindex), cmp.Compare(a.Handle, b.Handle), cmp.Compare(a.Parent, b.Parent))
	})
}

func TestQdiscDump(t *testing.T) {
	s := openRoute(t)

	var got qdiscDump
	req := nl.NewMessage(unix.RTM_GETQDISC, netlink.Request|netlink.Dump, nl.NewParameters(make([]byte, sizeofTcMsg)))
	if err := s.Exchange(context.Background(), req, nl.NewMessage(0, 0, &got), 5*time.Second); err != nil {
		t.Fatalf("error dumping qdiscs: %v", err)
	}

	tcnl, err := tc.Open(&tc.Config{})
	if err != nil {
		t.Fatalf("could not open rtnetlink socket: %v", err)
	}
	defer tcnl.Close()

	objs, err := tcnl.Qdisc().Get()
	if err != nil {
		t.Fatalf("error listing qdiscs: %v", err)
	}

	var want []qdisc
	for _, o := range objs {
		want = append(want, qdisc{Ifindex: o.Ifindex, Handle: o.Handle, Parent: o.Parent, Kind: o.Kind})
	}

	sortQdiscs(got.qdiscs)
	sortQdiscs(want)

	if diff := gocmp.Diff(want, got.qdiscs); diff != "" {
		t.Errorf("qdisc dump mismatch (-want +got):\n%s", diff)
	}
}
