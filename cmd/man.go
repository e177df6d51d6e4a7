package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

func init() {
	manCmd.Flags().StringVar(&manDirFlag, "dir", "man", "directory to write the pages to")
	rootCmd.AddCommand(manCmd)
}

var (
	manDirFlag string

	manCmd = &cobra.Command{
		Use:    "man",
		Short:  "Generate man pages for every command.",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(manDirFlag, 0755); err != nil {
				return fmt.Errorf("error creating %q: %w", manDirFlag, err)
			}

			return doc.GenManTree(rootCmd, &doc.GenManHeader{
				Title:   "NLX",
				Section: "1",
				Source:  "nlx " + builtCommit,
			}, manDirFlag)
		},
	}
)
