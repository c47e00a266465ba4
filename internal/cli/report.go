package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/warepipe/internal/pipeline"
)

// renderReport prints the per-template outcome of a run.
func renderReport(w io.Writer, report *pipeline.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Template", "Table", "Status", "Note"})

	var failed int
	for _, res := range report.Results {
		note := ""
		switch {
		case res.Err != nil:
			note = res.Err.Error()
			failed++
		case res.ExecuteSkipped && res.ExtractSkipped:
			note = "up to date"
		case res.ExecuteSkipped:
			note = "table existed"
		}
		t.AppendRow(table.Row{res.Name, res.FullName, res.Status, note})
	}
	t.Render()

	fmt.Fprintf(w, "Run %s: %d templates, %d failed, %s\n",
		report.RunID, len(report.Results), failed, report.Elapsed.Round(time.Millisecond))
}
