package subcmd

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/procfs"
	"github.com/spf13/cobra"
)

func init() {
	Sockets.Flags().StringVar(&procPath, "proc", procfs.DefaultMountPoint, "procfs mount point")
	Sockets.Flags().StringVar(&protocol, "protocol", "NETLINK", "protocol as listed in /proc/net/protocols")
}

var (
	procPath string
	protocol string

	Sockets = &cobra.Command{
		Use:   "sockets",
		Short: "Show the kernel's netlink socket usage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := ProtocolUsage(procPath, protocol)
			if err != nil {
				return err
			}

			slog.Debug("got protocol statistics", "line", line)

			fmt.Printf("protocol=%s sockets=%d memory=%d size=%d module=%s\n",
				line.Name, line.Sockets, line.Memory, line.Size, line.ModuleName)

			return nil
		},
	}
)

// ProtocolUsage returns the /proc/net/protocols line for protocol.
func ProtocolUsage(procPath, protocol string) (*procfs.NetProtocolStatLine, error) {
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, fmt.Errorf("error opening procfs at %q: %w", procPath, err)
	}

	stats, err := fs.NetProtocols()
	if err != nil {
		return nil, fmt.Errorf("error reading protocol statistics: %w", err)
	}

	line, ok := stats[protocol]
	if !ok {
		return nil, fmt.Errorf("no statistics for protocol %q", protocol)
	}

	return &line, nil
}
