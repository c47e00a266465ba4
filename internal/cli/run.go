package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/warepipe/internal/config"
	"github.com/leapstack-labs/warepipe/internal/pipeline"
	"github.com/leapstack-labs/warepipe/internal/resolve"
	"github.com/leapstack-labs/warepipe/internal/warehouse"
)

// runOptions holds the run-only flags; everything else comes from config.
type runOptions struct {
	Extract  bool
	Download bool
	Force    bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute all templates in dependency order",
		Long: `Execute every template, creating one output table per template.

Templates whose output table already exists are skipped. With --extract the
tables are also exported to the configured bucket, and with --download the
extract files are copied to the download directory, each stage again skipping
work that is already done.`,
		Example: `  # Create all output tables
  warepipe run --param threshold=100

  # Also extract to GCS and download locally
  warepipe run --param threshold=100 --download

  # Re-run queries even when the output tables exist
  warepipe run --param threshold=100 --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Extract, "extract", false, "extract output tables to the bucket")
	cmd.Flags().BoolVar(&opts.Download, "download", false, "download extract files (implies --extract)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "execute queries even when output tables exist")

	return cmd
}

func runRun(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	cfg := getConfig(ctx)
	logger := getLogger(ctx)

	report, err := executeRun(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}

	renderReport(cmd.OutOrStdout(), report)
	if report.Failed() {
		return fmt.Errorf("run %s finished with failures", report.RunID)
	}
	return nil
}

// executeRun wires the warehouse client into a pipeline and runs it. It is
// shared by the run and schedule commands.
func executeRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts *runOptions) (*pipeline.Report, error) {
	if err := cfg.ValidateWarehouse(); err != nil {
		return nil, err
	}
	if (opts.Extract || opts.Download) && cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for --extract and --download (set it in %s, %sBUCKET or --bucket)", config.FileName, config.EnvPrefix)
	}

	templates, err := loadTemplates(cfg)
	if err != nil {
		return nil, err
	}

	client, err := warehouse.New(ctx, warehouse.Config{
		Project: cfg.Project,
		Dataset: cfg.Dataset,
		Bucket:  cfg.Bucket,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	namer := resolve.Namer{
		Project: cfg.Project,
		Dataset: cfg.Dataset,
		HashLen: cfg.HashLength,
	}

	p := pipeline.New(client, client, namer, logger)
	return p.Run(ctx, templates, pipeline.Options{
		Params:       cfg.Params,
		Extract:      opts.Extract || opts.Download,
		Download:     opts.Download,
		Force:        opts.Force,
		DownloadDir:  cfg.DownloadDir,
		ObjectPrefix: cfg.ObjectPrefix,
		Expiration:   cfg.Expiration(),
		Concurrency:  cfg.Concurrency,
	})
}
