package cli

import (
	"github.com/spf13/cobra"

	"github.com/speedrun-hq/cyclerunner/pkg/config"
	"github.com/speedrun-hq/cyclerunner/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
}

// NewRootCommand creates the root command for the cyclerunner CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cyclerunner",
		Short: "cyclerunner - automated testnet activity bot",
		Long: `Runs a playlist of on-chain actions (faucet claims, swaps, liquidity,
staking and reward claims) from a single account, pass after pass.`,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewOnceCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

// loadConfig reads the configuration and builds the logger it describes
func loadConfig(opts *RootOptions) (*config.Config, logger.Logger, error) {
	cfg, err := config.LoadConfig(opts.EnvFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level), nil
}
