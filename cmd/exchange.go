package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/scitags/flowd-nl/exchange"
	nl "github.com/scitags/flowd-nl/netlink"
	"github.com/scitags/flowd-nl/netlink/connector"
)

func init() {
	exchangeCmd.Flags().StringVar(&identityFlag, "id", "", "well-known connector identity (e.g. proc)")
	exchangeCmd.Flags().Uint32Var(&idxFlag, "idx", 0, "connector index")
	exchangeCmd.Flags().Uint32Var(&valFlag, "val", 0, "connector value")
	exchangeCmd.Flags().StringVar(&dataFlag, "data", "", "hex-encoded payload")
	exchangeCmd.Flags().IntVar(&timeoutFlag, "timeout", 0, "timeout in ms (defaults to the configuration's)")
	exchangeCmd.Flags().IntVar(&repeatFlag, "repeat", 1, "number of exchanges to run back to back")
	exchangeCmd.Flags().BoolVar(&noReplyFlag, "no-reply", false, "don't wait for a reply")
}

var (
	identityFlag string
	idxFlag      uint32
	valFlag      uint32
	dataFlag     string
	timeoutFlag  int
	repeatFlag   int
	noReplyFlag  bool

	exchangeCmd = &cobra.Command{
		Use:   "exchange",
		Short: "Send a payload to a connector and print the reply.",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := ReadConf(confPathFlag)
			if err != nil {
				return err
			}

			id := connector.ID{Idx: idxFlag, Val: valFlag}
			if identityFlag != "" {
				var ok bool
				if id, ok = connector.Lookup(identityFlag); !ok {
					return fmt.Errorf("unknown connector identity %q", identityFlag)
				}
			}

			data, err := hex.DecodeString(dataFlag)
			if err != nil {
				return fmt.Errorf("error decoding the payload: %w", err)
			}

			timeout := conf.Exchange.Period()
			if timeoutFlag > 0 {
				timeout = time.Duration(timeoutFlag) * time.Millisecond
			}

			s, err := openSocket(conf)
			if err != nil {
				return err
			}
			defer func() {
				if err := s.Close(time.Second); err != nil {
					slog.Error("error closing the socket", "err", err)
				}
			}()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return runExchanges(ctx, s, id, data, timeout)
		},
	}
)

func runExchanges(ctx context.Context, s *exchange.Socket, id connector.ID, data []byte, timeout time.Duration) error {
	if noReplyFlag {
		for range repeatFlag {
			if err := s.Send(ctx, connector.New(id, &nl.Blob{Data: data}), timeout); err != nil {
				return fmt.Errorf("error sending to %s: %w", id, err)
			}
		}
		slog.Info("sent messages", "id", id, "count", repeatFlag)
		return nil
	}

	if repeatFlag == 1 {
		var reply nl.Blob
		in := connector.New(id, &reply)
		if err := s.Exchange(ctx, connector.New(id, &nl.Blob{Data: data}), in, timeout); err != nil {
			return fmt.Errorf("error exchanging with %s: %w", id, err)
		}
		printReply(in, reply.Data)
		return nil
	}

	// The same message carries the request out and the reply back
	msgs := make([]*connector.Message, 0, repeatFlag)
	bodies := make([]*echo, 0, repeatFlag)
	for range repeatFlag {
		body := &echo{out: data}
		msg := connector.New(id, body)
		if err := s.RequestExchange(msg); err != nil {
			return fmt.Errorf("error queueing exchange: %w", err)
		}
		msgs, bodies = append(msgs, msg), append(bodies, body)
	}

	if err := s.ExecuteExchangeQueue(ctx, timeout); err != nil {
		return fmt.Errorf("error running the exchanges with %s: %w", id, err)
	}

	for i, msg := range msgs {
		printReply(msg, bodies[i].in)
	}

	return nil
}

func printReply(msg *connector.Message, data []byte) {
	fmt.Printf("seq=%d ack=%d data=%s\n", msg.Sequence(), msg.Acknowledge(), hex.EncodeToString(data))
}

// echo sends out and keeps whatever comes back.
type echo struct {
	out, in []byte
}

func (e *echo) Encode(b []byte) (int, error) {
	if len(e.out) > len(b) {
		return 0, fmt.Errorf("need %d bytes, have %d", len(e.out), len(b))
	}
	return copy(b, e.out), nil
}

func (e *echo) Decode(b []byte) (int, error) {
	e.in = append(e.in[:0], b...)
	return len(b), nil
}
