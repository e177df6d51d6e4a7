// Package netlink implements the wire side of netlink exchanges: a cursor
// walking the messages packed in a received datagram and a message codec
// pairing the generic netlink header with a pluggable payload. Be sure to
// check netlink(7) for further information on the protocol as a whole.
//
// Header types and flags are the ones defined by github.com/mdlayher/netlink
// so that values built here can be handed to (and compared against) that
// library without conversion. Bear in mind every header field travels in host
// byte order: netlink never leaves the machine.
//
// Messages in a datagram are padded to NLMSG_ALIGNTO (i.e. 4 bytes) [0]. The
// length written on serialization covers that padding, which is what
// mdlayher/netlink expects too. The kernel is not that strict and will send
// back lengths leaving the padding out, so the cursor always advances by the
// aligned length of each message.
//
// 0: https://elixir.bootlin.com/linux/v6.12.4/source/include/uapi/linux/netlink.h#L99
package netlink
