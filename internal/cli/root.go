// Package cli provides the warepipe command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/warepipe/internal/config"
	"github.com/leapstack-labs/warepipe/internal/template"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var cfgFile string

type configKey struct{}
type loggerKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "warepipe",
		Short: "Warepipe - SQL template pipeline for BigQuery",
		Long: `Warepipe executes interdependent SQL templates against BigQuery.

It reads .sql templates from a directory, infers the dependency order from
{template.full_name} references, and creates one output table per template.
Table names carry a hash of the resolved SQL, so re-running with unchanged
templates and parameters is a no-op. Outputs can optionally be extracted to
Cloud Storage and downloaded locally, with the same skip-if-done behavior.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./warepipe.yaml, searched upward)")
	pf.String("templates-dir", "", "directory containing .sql templates")
	pf.String("project", "", "BigQuery project id")
	pf.String("dataset", "", "BigQuery dataset for output tables")
	pf.String("bucket", "", "Cloud Storage bucket for extracts")
	pf.String("object-prefix", "", "object name prefix for extracts within the bucket")
	pf.String("download-dir", "", "local directory for downloaded extracts")
	pf.Int("hash-length", config.DefaultHashLength, "length of the content hash in table names")
	pf.Int("expiration-days", config.DefaultExpirationDays, "output table time-to-live in days")
	pf.Int("concurrency", config.DefaultConcurrency, "max independent templates executing at once")
	pf.StringArrayP("param", "p", nil, "template parameter as key=value (repeatable)")
	pf.BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newDAGCommand())
	rootCmd.AddCommand(newScheduleCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	cfg, _ := config.Load("", nil)
	return cfg
}

func getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

func loadTemplates(cfg *config.Config) ([]*template.Template, error) {
	templates, err := template.LoadDir(cfg.TemplatesDir)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("no .sql templates found in %s", cfg.TemplatesDir)
	}
	return templates, nil
}
