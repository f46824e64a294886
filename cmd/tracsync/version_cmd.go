package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracsync/tracsync/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print tracsync version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Detailed())
		return err
	},
}
