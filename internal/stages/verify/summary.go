package verify

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// writeSummary renders the human-readable verification summary.
func writeSummary(tree artifacts.Tree, report Report, discrepancies []Discrepancy) error {
	return persist.AtomicWrite(tree.VerifySummaryPath(), func(w io.Writer) error {
		return renderSummary(w, report, discrepancies)
	})
}

func renderSummary(w io.Writer, report Report, discrepancies []Discrepancy) error {
	_, err := fmt.Fprintf(w, "# Verification Summary\n\nTarget: %s\nStatus: **%s**\n\n",
		report.Target, report.Status)
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Component", "Status", "Checks", "Warnings", "Errors"})

	for _, component := range report.Components {
		tw.AppendRow(table.Row{
			component.Component,
			component.Status,
			len(component.Checks),
			len(component.Warnings),
			len(component.Errors),
		})
	}

	tw.RenderMarkdown()

	if len(discrepancies) == 0 {
		_, err = fmt.Fprintln(w, "\nNo discrepancies found.")

		return err
	}

	_, err = fmt.Fprintf(w, "\n## Discrepancies (%d)\n\n", len(discrepancies))
	if err != nil {
		return err
	}

	for _, d := range discrepancies {
		_, err = fmt.Fprintf(w, "- **%s** / %s (%s): expected %v, found %v\n",
			d.Component, d.Check, d.Severity, d.Expected, d.Actual)
		if err != nil {
			return err
		}
	}

	return nil
}
