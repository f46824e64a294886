package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tracsync/tracsync/internal/config"
	"github.com/tracsync/tracsync/internal/sync"
	"github.com/tracsync/tracsync/internal/utils"
	"github.com/tracsync/tracsync/internal/version"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "tracsync",
	Short:         "Sync a local markdown tree with a Trac wiki",
	Version:       version.Detailed(),
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default: ./.tracsync/config.yml, then ~/.config/tracsync/config.yml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	viper.SetEnvPrefix("TRACSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(syncCmd, statusCmd, validateCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and wires the slog default to its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if viper.IsSet("log_level") {
		level = viper.GetString("log_level")
	}
	setupLogging(level)
	return cfg, nil
}

// resolveProfilePaths expands ~ and relative paths before a run.
func resolveProfilePaths(profile *sync.Profile) error {
	source, err := utils.ResolvePath(profile.Source)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}
	profile.Source = source

	stateDir, err := utils.ResolvePath(profile.StateDir)
	if err != nil {
		return fmt.Errorf("resolve state dir: %w", err)
	}
	profile.StateDir = stateDir
	return nil
}

func setupLogging(level string) {
	slogLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: "15:04:05",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))
}
