package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scitags/flowd-nl/cmd/subcmd"
)

var (
	rootCmd = &cobra.Command{
		Use:   "nlx",
		Short: "Talk to the kernel over netlink.",
		Long:  "nlx sends and receives netlink messages, connector ones in particular.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, ok := logLevelMap[logLevelFlag]
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevelFlag)
			}

			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				AddSource:   level <= slog.LevelDebug,
				Level:       level,
				ReplaceAttr: logReplacements,
			})))

			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Get the built version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("built commit: %s\n", builtCommit)
		},
	}

	confPathFlag string
	logLevelFlag string
	logTimeFlag  bool
	builtCommit  = "dev"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&confPathFlag, "conf", "", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "one of debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logTimeFlag, "log-time", false, "include timestamps in log messages")

	// Disable completion please!
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add the different sub-commands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(exchangeCmd)
	rootCmd.AddCommand(subcmd.Sockets)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
