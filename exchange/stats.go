package exchange

import "sync/atomic"

// Stats is a snapshot of a Socket's activity. The struct tags drive both
// the JSON rendering (through fatih/structs) and the exported metrics.
type Stats struct {
	Sent            uint64 `structs:"sent_messages" metric:"counter" help:"Messages handed to the port"`
	SentBytes       uint64 `structs:"sent_bytes" metric:"counter" help:"Bytes handed to the port"`
	Datagrams       uint64 `structs:"received_datagrams" metric:"counter" help:"Datagrams received"`
	ReceivedBytes   uint64 `structs:"received_bytes" metric:"counter" help:"Bytes received"`
	Frames          uint64 `structs:"received_frames" metric:"counter" help:"Netlink messages found in received datagrams"`
	Processed       uint64 `structs:"processed" metric:"counter" help:"Exchanges completed successfully"`
	Failed          uint64 `structs:"failed" metric:"counter" help:"Exchanges completed with an error"`
	Timeouts        uint64 `structs:"timeouts" metric:"counter" help:"Exchanges abandoned by their caller"`
	EncodeErrors    uint64 `structs:"encode_errors" metric:"counter" help:"Messages that couldn't be serialized"`
	TransportErrors uint64 `structs:"transport_errors" metric:"counter" help:"Write failures reported by the port"`
	Unsolicited     uint64 `structs:"unsolicited" metric:"counter" help:"Messages matching no outstanding exchange"`
	Malformed       uint64 `structs:"malformed" metric:"counter" help:"Datagrams with trailing malformed data"`
	Pending         uint64 `structs:"pending" metric:"gauge" help:"Exchanges waiting to be sent or answered"`
	Queued          uint64 `structs:"queued" metric:"gauge" help:"Exchanges waiting in the exchange queue"`
}

type counters struct {
	sent            atomic.Uint64
	sentBytes       atomic.Uint64
	datagrams       atomic.Uint64
	receivedBytes   atomic.Uint64
	frames          atomic.Uint64
	processed       atomic.Uint64
	failed          atomic.Uint64
	timeouts        atomic.Uint64
	encodeErrors    atomic.Uint64
	transportErrors atomic.Uint64
	unsolicited     atomic.Uint64
	malformed       atomic.Uint64
}

// Stats returns a snapshot of the socket's counters.
func (s *Socket) Stats() Stats {
	s.lock.Lock()
	pending, queued := len(s.pending), len(s.queue)
	s.lock.Unlock()

	return Stats{
		Sent:            s.stats.sent.Load(),
		SentBytes:       s.stats.sentBytes.Load(),
		Datagrams:       s.stats.datagrams.Load(),
		ReceivedBytes:   s.stats.receivedBytes.Load(),
		Frames:          s.stats.frames.Load(),
		Processed:       s.stats.processed.Load(),
		Failed:          s.stats.failed.Load(),
		Timeouts:        s.stats.timeouts.Load(),
		EncodeErrors:    s.stats.encodeErrors.Load(),
		TransportErrors: s.stats.transportErrors.Load(),
		Unsolicited:     s.stats.unsolicited.Load(),
		Malformed:       s.stats.malformed.Load(),
		Pending:         uint64(pending),
		Queued:          uint64(queued),
	}
}
