package cli

import (
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newScheduleCommand() *cobra.Command {
	var expr string
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline repeatedly on a cron schedule",
		Long: `Run the pipeline on a cron schedule until interrupted.

Because every stage skips work whose output already exists, a scheduled run
only does something when templates, parameters or warehouse state changed
since the previous tick.`,
		Example: `  # Refresh every night at 02:00
  warepipe schedule --cron "0 2 * * *" --param threshold=100 --download`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchedule(cmd, expr, opts)
		},
	}

	cmd.Flags().StringVar(&expr, "cron", "", "cron expression (standard 5-field syntax)")
	cmd.Flags().BoolVar(&opts.Extract, "extract", false, "extract output tables to the bucket")
	cmd.Flags().BoolVar(&opts.Download, "download", false, "download extract files (implies --extract)")
	_ = cmd.MarkFlagRequired("cron")

	return cmd
}

func runSchedule(cmd *cobra.Command, expr string, opts *runOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := getConfig(ctx)
	logger := getLogger(ctx)

	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		report, err := executeRun(ctx, cfg, logger, opts)
		if err != nil {
			logger.Error("scheduled run failed", "error", err)
			return
		}
		logger.Info("scheduled run finished",
			"run_id", report.RunID,
			"templates", len(report.Results),
			"failed", report.Failed())
	})
	if err != nil {
		return err
	}

	logger.Info("scheduler started", "cron", expr)
	c.Start()
	<-ctx.Done()

	logger.Info("scheduler stopping")
	<-c.Stop().Done()
	return nil
}
