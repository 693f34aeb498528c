package commands

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/internal/batch"
	"github.com/Sumatoshi-tech/gitport/internal/config"
	"github.com/Sumatoshi-tech/gitport/internal/pipeline"
)

func TestExitCodeMapping(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitPartial, ExitCode(ErrPartial))
	assert.Equal(t, ExitPartial, ExitCode(fmt.Errorf("wrapped: %w", ErrPartial)))
	assert.Equal(t, ExitFailed, ExitCode(fmt.Errorf("%w: stage export", ErrFailed)))
	assert.Equal(t, ExitBadInput, ExitCode(fmt.Errorf("%w: no token", ErrBadInput)))
	assert.Equal(t, ExitBadInput, ExitCode(errors.New("unknown flag: --frob")))
}

func TestParseInputs(t *testing.T) {
	t.Parallel()

	inputs, err := parseInputs([]string{"DEPLOY_KEY=abc", "API_TOKEN=x=y"})
	require.NoError(t, err)
	assert.Equal(t, "abc", inputs["DEPLOY_KEY"])
	// Values may contain '='; only the first one splits.
	assert.Equal(t, "x=y", inputs["API_TOKEN"])

	_, err = parseInputs([]string{"NOVALUE"})
	require.ErrorIs(t, err, ErrBadInput)

	_, err = parseInputs([]string{"=value"})
	require.ErrorIs(t, err, ErrBadInput)

	inputs, err = parseInputs(nil)
	require.NoError(t, err)
	assert.Nil(t, inputs)
}

func TestStatusErr(t *testing.T) {
	t.Parallel()

	assert.NoError(t, statusErr(pipeline.StatusSuccess, nil))
	assert.ErrorIs(t, statusErr(pipeline.StatusPartial, nil), ErrPartial)
	assert.ErrorIs(t, statusErr(pipeline.StatusFailed, nil), ErrFailed)
	assert.ErrorIs(t, statusErr(pipeline.StatusFailed, errors.New("stage export: boom")), ErrFailed)
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.GitLab.ProjectPath = "group/old"
	cfg.GitHub.Org = "old-org"

	applyOverrides(&cfg, &GlobalFlags{
		Project:   "group/widget",
		Org:       "acme",
		Artifacts: "/tmp/artifacts",
		RunID:     "run-7",
	})

	assert.Equal(t, "group/widget", cfg.GitLab.ProjectPath)
	assert.Equal(t, "acme", cfg.GitHub.Org)
	assert.Equal(t, "/tmp/artifacts", cfg.Artifacts.Root)
	assert.Equal(t, "run-7", cfg.RunID)
}

func TestPrintRunSummary(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	result := pipeline.Result{
		RunID:         "run-1",
		Mode:          pipeline.ModeFull,
		GitLabProject: "group/widget",
		GitHubTarget:  "acme/widget",
		Status:        pipeline.StatusFailed,
		FailedAtAgent: "apply",
		Stages: []pipeline.StageResult{
			{Stage: "discovery", Status: pipeline.StatusSuccess, Attempts: 1, StartedAt: now, FinishedAt: now.Add(time.Second)},
			{Stage: "apply", Status: pipeline.StatusFailed, Attempts: 2, Error: "3 of 10 actions failed", StartedAt: now, FinishedAt: now.Add(time.Minute)},
		},
	}

	var buf bytes.Buffer

	printRunSummary(&buf, result)

	out := buf.String()
	assert.Contains(t, out, "group/widget")
	assert.Contains(t, out, "acme/widget")
	assert.Contains(t, out, "apply")
	assert.Contains(t, out, "3 of 10 actions failed")
	assert.Contains(t, out, "failed at: apply")
}

func TestPrintBatchSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	printBatchSummary(&buf, batch.Result{
		Status:        batch.StatusPartialSuccess,
		TotalProjects: 2,
		Successful:    1,
		Failed:        1,
		ParallelLimit: 5,
		Results: []batch.Outcome{
			{Project: "group/a", Result: pipeline.Result{Status: pipeline.StatusSuccess}},
			{Project: "group/b", Result: pipeline.Result{Status: pipeline.StatusFailed, FailedAtAgent: "export"}, Error: "stage export: boom"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "group/a")
	assert.Contains(t, out, "group/b")
	assert.Contains(t, out, "export")
	assert.Contains(t, out, "boom")
}
