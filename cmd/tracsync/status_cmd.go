package main

import (
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tracsync/tracsync/internal/syncsvc"
	"github.com/tracsync/tracsync/internal/tracsdk"
)

var statusCmd = &cobra.Command{
	Use:   "status [profile]",
	Short: "Show tracked files, conflicts and last sync time",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		names := cfg.ProfileNames()
		if len(args) > 0 {
			names = args[:1]
		}

		client, err := tracsdk.New(&cfg.Trac)
		if err != nil {
			return err
		}
		svc := syncsvc.New(client, cfg.MaxParallelRequests, slog.Default())

		for _, name := range names {
			profile, err := cfg.Profile(name)
			if err != nil {
				return err
			}
			if err := resolveProfilePaths(profile); err != nil {
				return err
			}
			status, err := svc.Status(profile)
			if err != nil {
				return err
			}

			lastSync := "never"
			if status.LastSync != nil {
				lastSync = humanize.Time(*status.LastSync)
			}
			conflicts := green("0")
			if status.Conflicts > 0 {
				conflicts = red(status.Conflicts)
			}
			cmd.Printf("%s: %d tracked files, %s conflicts, last sync %s\n",
				cyan(status.Profile), status.TrackedFiles, conflicts, lastSync)
		}
		return nil
	},
}
