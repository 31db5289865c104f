package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/speedrun-hq/cyclerunner/pkg/service"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and RPC connectivity",
		Long: `Load the configuration and playlist, connect to the RPC endpoint and compare
every configured token with its contract. Sends no transactions.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), rootOpts, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runCheck(ctx context.Context, opts *RootOptions, out io.Writer) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx = contextOrBackground(ctx)

	svc, err := service.NewService(ctx, cfg, log)
	if err != nil {
		return err
	}

	report, err := svc.Check(ctx)
	if err != nil {
		return err
	}
	writeCheckReport(out, report)
	return nil
}

func writeCheckReport(out io.Writer, report *service.CheckReport) {
	fmt.Fprintf(out, "address:      %s\n", report.Address.Hex())
	fmt.Fprintf(out, "chain id:     %s\n", report.ChainID)
	fmt.Fprintf(out, "latest block: %d\n", report.LatestBlock)
	fmt.Fprintf(out, "steps:        %d\n", report.Steps)
	for _, token := range report.Tokens {
		if token.Err != nil {
			fmt.Fprintf(out, "  %-14s %s warning: %v\n", token.Symbol, token.Address.Hex(), token.Err)
			continue
		}
		fmt.Fprintf(out, "  %-14s %s balance %s\n", token.Symbol, token.Address.Hex(), token.Balance)
	}
}
