package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/speedrun-hq/cyclerunner/pkg/service"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the playlist continuously until interrupted",
		Long: `Run the configured playlist pass after pass. Each step is followed by its
delay, each pass by the inter-cycle delay. Stops on SIGINT or SIGTERM.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), rootOpts)
		},
	}

	return cmd
}

func runRun(ctx context.Context, opts *RootOptions) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(contextOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.NewService(ctx, cfg, log)
	if err != nil {
		return err
	}

	log.Info("Starting the cycle runner with %d playlist steps...", len(cfg.Playlist.Steps))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	log.Info("Received termination signal, shut down gracefully")
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
