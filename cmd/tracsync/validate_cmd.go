package main

import (
	"github.com/spf13/cobra"

	"github.com/tracsync/tracsync/internal/tracsdk"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file and probe the Trac RPC endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		cmd.Printf("%s config %s: %d profiles\n", green("ok"), cfg.Path, len(cfg.Sync))

		client, err := tracsdk.New(&cfg.Trac)
		if err != nil {
			return err
		}
		apiVersion, err := client.Validate(cmd.Context())
		if err != nil {
			cmd.Printf("%s rpc endpoint %s unreachable: %v\n", red("fail"), cfg.Trac.URL, err)
			return err
		}
		cmd.Printf("%s rpc endpoint %s (api %s)\n", green("ok"), cfg.Trac.URL, apiVersion)
		return nil
	},
}
