package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/speedrun-hq/cyclerunner/pkg/scheduler"
	"github.com/speedrun-hq/cyclerunner/pkg/service"
)

// NewOnceCommand creates the once command.
func NewOnceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "once",
		Short:        "Run a single playlist pass and exit",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), rootOpts, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runOnce(ctx context.Context, opts *RootOptions, out io.Writer) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.NewService(ctx, cfg, log)
	if err != nil {
		return err
	}

	report := svc.RunOnce(ctx)
	writePassReport(out, report)

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d actions failed", report.Failed, len(report.Steps))
	}
	return nil
}

func writePassReport(out io.Writer, report scheduler.PassReport) {
	fmt.Fprintf(out, "cycle %d pass %d (%s)\n", report.Cycle, report.Pass, report.CycleID)
	for i, step := range report.Steps {
		switch {
		case step.Skipped:
			fmt.Fprintf(out, "  %d. %-14s skipped\n", i+1, step.Action)
		case step.Success:
			fmt.Fprintf(out, "  %d. %-14s ok (%d tx)\n", i+1, step.Action, step.Result.Submitted())
		default:
			fmt.Fprintf(out, "  %d. %-14s failed: %s\n", i+1, step.Action, step.Error)
		}
	}
	fmt.Fprintf(out, "%d succeeded, %d failed, %d skipped\n", report.Succeeded, report.Failed, report.Skipped)
}
