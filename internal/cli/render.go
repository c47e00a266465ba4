package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/warepipe/internal/pipeline"
	"github.com/leapstack-labs/warepipe/internal/resolve"
)

func newRenderCommand() *cobra.Command {
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "render [template...]",
		Short: "Resolve templates and show the tables they would create",
		Long: `Resolve parameters and references without touching the warehouse.

Shows each template's output table name, which is a pure function of the
resolved SQL. Pass template names to limit the output, or --sql to print the
fully resolved statements.`,
		Example: `  # Show the table every template would create
  warepipe render --param threshold=100

  # Print one template's resolved SQL
  warepipe render main_colors --param threshold=100 --sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args, showSQL)
		},
	}

	cmd.Flags().BoolVar(&showSQL, "sql", false, "print resolved SQL statements")

	return cmd
}

func runRender(cmd *cobra.Command, args []string, showSQL bool) error {
	cfg := getConfig(cmd.Context())

	templates, err := loadTemplates(cfg)
	if err != nil {
		return err
	}

	namer := resolve.Namer{
		Project: cfg.Project,
		Dataset: cfg.Dataset,
		HashLen: cfg.HashLength,
	}
	plan, err := pipeline.NewPlan(templates, cfg.Params, namer)
	if err != nil {
		return err
	}

	selected := make(map[string]bool, len(args))
	for _, name := range args {
		if plan.Graph.Template(name) == nil {
			return fmt.Errorf("unknown template %q", name)
		}
		selected[name] = true
	}

	w := cmd.OutOrStdout()
	if showSQL {
		for _, name := range plan.Order {
			if len(selected) > 0 && !selected[name] {
				continue
			}
			if planErr := plan.Errs[name]; planErr != nil {
				return planErr
			}
			r := plan.Resolved[name]
			fmt.Fprintf(w, "-- %s -> %s\n%s\n\n", name, r.FullName, r.Text)
		}
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Template", "Table"})

	var firstErr error
	for i, name := range plan.Order {
		if len(selected) > 0 && !selected[name] {
			continue
		}
		if planErr := plan.Errs[name]; planErr != nil {
			t.AppendRow(table.Row{i + 1, name, "error: " + planErr.Error()})
			if firstErr == nil {
				firstErr = planErr
			}
			continue
		}
		t.AppendRow(table.Row{i + 1, name, plan.Resolved[name].FullName})
	}
	t.Render()
	return firstErr
}
