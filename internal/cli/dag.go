package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/warepipe/internal/dag"
)

func newDAGCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dag",
		Short: "Show the template dependency graph",
		Long: `Print the dependency graph inferred from {template.full_name} references,
grouped by execution level. Templates in the same level are independent of
each other and may execute concurrently.`,
		RunE: runDAG,
	}
}

func runDAG(cmd *cobra.Command, _ []string) error {
	cfg := getConfig(cmd.Context())

	templates, err := loadTemplates(cfg)
	if err != nil {
		return err
	}

	graph, err := dag.Build(templates)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d templates, %d dependencies\n\n", graph.Len(), graph.EdgeCount())

	for i, level := range graph.Levels() {
		fmt.Fprintf(w, "Level %d:\n", i+1)
		for _, name := range level {
			parents := graph.Parents(name)
			if len(parents) == 0 {
				fmt.Fprintf(w, "  %s\n", name)
				continue
			}
			fmt.Fprintf(w, "  %s <- %s\n", name, strings.Join(parents, ", "))
		}
	}
	return nil
}
