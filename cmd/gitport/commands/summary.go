package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/gitport/internal/batch"
	"github.com/Sumatoshi-tech/gitport/internal/pipeline"
)

// printRunSummary renders one pipeline run for the operator.
func printRunSummary(w io.Writer, result pipeline.Result) {
	fmt.Fprintf(w, "\n%s  %s → %s  (%s)\n",
		statusBadge(result.Status),
		result.GitLabProject,
		result.GitHubTarget,
		result.RunID)

	if len(result.Stages) == 0 {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Stage", "Status", "Attempts", "Duration", "Detail"})

	for _, stage := range result.Stages {
		tw.AppendRow(table.Row{
			stage.Stage,
			stage.Status,
			stage.Attempts,
			stage.FinishedAt.Sub(stage.StartedAt).Round(time.Second),
			stage.Error,
		})
	}

	tw.Render()

	if result.FailedAtAgent != "" {
		fmt.Fprintf(w, "failed at: %s\n", result.FailedAtAgent)
	}
}

// printBatchSummary renders a whole-batch outcome.
func printBatchSummary(w io.Writer, result batch.Result) {
	fmt.Fprintf(w, "\n%s  %s projects, %s ok, %s failed (limit %d, took %s)\n",
		statusBadge(result.Status),
		humanize.Comma(int64(result.TotalProjects)),
		humanize.Comma(int64(result.Successful)),
		humanize.Comma(int64(result.Failed)),
		result.ParallelLimit,
		result.FinishedAt.Sub(result.StartedAt).Round(time.Second))

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Project", "Status", "Failed At", "Error"})

	for _, outcome := range result.Results {
		tw.AppendRow(table.Row{
			outcome.Project,
			outcome.Result.Status,
			outcome.Result.FailedAtAgent,
			outcome.Error,
		})
	}

	tw.Render()
}

func statusBadge(status string) string {
	switch status {
	case pipeline.StatusSuccess:
		return color.New(color.FgGreen, color.Bold).Sprint("OK")
	case pipeline.StatusPartial, batch.StatusPartialSuccess:
		return color.New(color.FgYellow, color.Bold).Sprint("PARTIAL")
	default:
		return color.New(color.FgRed, color.Bold).Sprint("FAILED")
	}
}
