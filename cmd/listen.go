package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/mdlayher/netlink"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/scitags/flowd-nl/exchange"
	"github.com/scitags/flowd-nl/internal/transport"
	"github.com/scitags/flowd-nl/metrics"
)

func init() {
	listenCmd.Flags().IntVar(&familyFlag, "family", -1, "netlink protocol to listen on (defaults to the configuration's)")
	listenCmd.Flags().Uint32Var(&groupsFlag, "groups", 0, "bitmask of multicast groups to join (defaults to the configuration's)")
}

var (
	familyFlag int
	groupsFlag uint32

	listenCmd = &cobra.Command{
		Use:   "listen",
		Short: "Log every message received on a netlink socket.",
		Long: "Open a netlink socket joining the given multicast groups and log every message\n" +
			"received on it. For instance, process events are on NETLINK_CONNECTOR (11) group 1,\n" +
			"which requires CAP_NET_ADMIN.",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := ReadConf(confPathFlag)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("family") {
				conf.Transport.Family = familyFlag
			}
			if cmd.Flags().Changed("groups") {
				conf.Transport.Groups = groupsFlag
			}
			slog.Debug("parsed configuration", "conf", conf)

			return listen(conf)
		},
	}
)

func openSocket(conf *Config) (*exchange.Socket, error) {
	s, err := exchange.New(conf.Exchange, transport.Dialer(conf.Transport))
	if err != nil {
		return nil, fmt.Errorf("error opening the socket: %w", err)
	}
	return s, nil
}

func listen(conf *Config) error {
	s, err := openSocket(conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(time.Second); err != nil {
			slog.Error("error closing the socket", "err", err)
		}
	}()

	s.OnUnsolicited(func(h netlink.Header, payload []byte) {
		slog.Info("got message", "type", h.Type, FlagsKey, h.Flags, "seq", h.Sequence, "pid", h.PID, PayloadKey, payload)
	})

	done := make(chan struct{})

	if conf.Metrics != nil {
		srv, err := metrics.NewServer(conf.Metrics, s)
		if err != nil {
			return fmt.Errorf("error setting up the metrics server: %w", err)
		}
		defer func() {
			if err := srv.Cleanup(); err != nil {
				slog.Error("error cleaning up the metrics server", "err", err)
			}
		}()
		go srv.Run(done)
	}

	slog.Info("listening", "family", conf.Transport.Family, "groups", conf.Transport.Groups)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, unix.SIGTERM)

	sig := <-sigChan
	slog.Info("caught signal", "signal", sig)
	close(done)

	slog.Info("exiting", "stats", s.Stats())

	return nil
}
