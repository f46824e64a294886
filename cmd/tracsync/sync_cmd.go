package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracsync/tracsync/internal/sync"
	"github.com/tracsync/tracsync/internal/syncsvc"
	"github.com/tracsync/tracsync/internal/tracsdk"
)

var syncCmd = &cobra.Command{
	Use:   "sync [profile]",
	Short: "Run one reconciliation pass for a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		profileName := ""
		if len(args) > 0 {
			profileName = args[0]
		}
		profile, err := cfg.Profile(profileName)
		if err != nil {
			return err
		}
		if err := resolveProfilePaths(profile); err != nil {
			return err
		}

		if strategy, _ := cmd.Flags().GetString("strategy"); strategy != "" {
			profile.ConflictStrategy = strategy
			if err := profile.Validate(); err != nil {
				return err
			}
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		client, err := tracsdk.New(&cfg.Trac)
		if err != nil {
			return err
		}

		svc := syncsvc.New(client, cfg.MaxParallelRequests, slog.Default())
		result, err := svc.Run(cmd.Context(), profile, dryRun)
		if err != nil {
			return err
		}

		printReport(cmd, result)
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("dry-run", false, "classify and resolve without writing anything")
	syncCmd.Flags().String("strategy", "", "override the profile's conflict strategy for this run")
}

func printReport(cmd *cobra.Command, result *syncsvc.RunResult) {
	report := result.Report

	line := fmt.Sprintf("%s pushed, %s pulled, %s conflicts, %d skipped",
		green(report.Pushed()), cyan(report.Pulled()), yellow(report.Conflicts()), report.Skipped())
	if report.DryRun {
		line = yellow("[dry-run] ") + line
	}
	cmd.Printf("%s in %s\n", line, report.Duration().Round(time.Millisecond))

	for _, failed := range report.Errors() {
		cmd.Printf("%s %s: %s\n", red("error"), failed.LocalPath, failed.Error)
	}

	for _, res := range report.Results {
		if res.Warning != "" {
			cmd.Printf("%s %s: %s\n", yellow("warning"), res.LocalPath, res.Warning)
		}
	}

	for _, id := range result.TicketsFiled {
		cmd.Printf("%s filed ticket #%d\n", yellow("conflict"), id)
	}

	if len(result.PendingConflicts) > 0 {
		cmd.Printf("\n%s %d unresolved conflicts:\n", yellow("!"), len(result.PendingConflicts))
		for _, conflict := range result.PendingConflicts {
			printConflict(cmd, conflict)
		}
		cmd.Println("resolve the files by hand, or rerun with --strategy local-wins | remote-wins | markers")
	}
}

func printConflict(cmd *cobra.Command, conflict *sync.ConflictInfo) {
	cmd.Printf("\n%s %s <-> %s\n", yellow("conflict"), conflict.LocalPath, conflict.WikiPage)
	if !conflict.HasBase {
		cmd.Println("  (no common ancestor available)")
	}
	if conflict.Diff != "" {
		cmd.Print(conflict.Diff)
	}
}
