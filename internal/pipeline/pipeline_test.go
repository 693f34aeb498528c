package pipeline_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/config"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/pipeline"
	"github.com/Sumatoshi-tech/gitport/internal/stages/apply"
	"github.com/Sumatoshi-tech/gitport/internal/stages/discovery"
	"github.com/Sumatoshi-tech/gitport/internal/stages/export"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
	"github.com/Sumatoshi-tech/gitport/internal/stages/transform"
	"github.com/Sumatoshi-tech/gitport/internal/stages/verify"
)

// recorder tracks stage invocation order across all fakes.
type recorder struct {
	calls []string
}

func (r *recorder) record(name string) {
	r.calls = append(r.calls, name)
}

type fakeDiscovery struct {
	rec *recorder
	err error
}

func (f *fakeDiscovery) Run(_ context.Context, _ artifacts.Tree, _, projectPath string) (discovery.Output, error) {
	f.rec.record("discovery")

	if f.err != nil {
		return discovery.Output{}, f.err
	}

	return discovery.Output{
		Projects: []gitlab.Project{{ID: 42, PathWithNamespace: projectPath}},
	}, nil
}

type fakeExport struct {
	rec    *recorder
	errs   []error
	calls  int
	resume bool
	status string
}

func (f *fakeExport) Run(_ context.Context, _ artifacts.Tree, _ gitlab.Project, resume bool) (export.Manifest, error) {
	f.rec.record("export")
	f.resume = resume

	f.calls++
	if len(f.errs) >= f.calls && f.errs[f.calls-1] != nil {
		return export.Manifest{}, f.errs[f.calls-1]
	}

	status := f.status
	if status == "" {
		status = export.StatusCompleted
	}

	return export.Manifest{Status: status}, nil
}

type fakeTransform struct {
	rec *recorder
	err error
}

func (f *fakeTransform) Run(context.Context, artifacts.Tree, gitlab.Project) (transform.Output, error) {
	f.rec.record("transform")

	if f.err != nil {
		return transform.Output{}, f.err
	}

	return transform.Output{
		Gaps: []transform.Gap{{Component: "ci_cd", Construct: "include", Severity: transform.SeverityWarning}},
	}, nil
}

type fakePlan struct {
	rec *recorder
}

func (f *fakePlan) Run(context.Context, artifacts.Tree, gitlab.Project) (plan.Plan, error) {
	f.rec.record("plan")

	return plan.Plan{
		Version: plan.Version,
		Summary: plan.Summary{Total: 2, ByType: map[string]int{"repo_create": 1, "label_create": 1}},
	}, nil
}

type fakeApply struct {
	rec    *recorder
	opts   apply.Options
	status string
}

func (f *fakeApply) Run(_ context.Context, _ artifacts.Tree, _ plan.Plan, opts apply.Options) (apply.Report, error) {
	f.rec.record("apply")
	f.opts = opts

	status := f.status
	if status == "" {
		status = apply.StatusSuccess
	}

	return apply.Report{Status: status, Total: 2, Failed: failedFor(status)}, nil
}

func failedFor(status string) int {
	if status == apply.StatusFailed {
		return 2
	}

	return 0
}

type fakeVerify struct {
	rec    *recorder
	status string
}

func (f *fakeVerify) Run(context.Context, artifacts.Tree) (verify.Report, error) {
	f.rec.record("verify")

	status := f.status
	if status == "" {
		status = verify.StatusSuccess
	}

	return verify.Report{Status: status}, nil
}

type fakeResolver struct {
	rec *recorder
}

func (f *fakeResolver) ProjectByPath(_ context.Context, path string) (gitlab.Project, error) {
	f.rec.record("resolve")

	return gitlab.Project{ID: 42, PathWithNamespace: path}, nil
}

type harness struct {
	rec       *recorder
	discovery *fakeDiscovery
	export    *fakeExport
	transform *fakeTransform
	plan      *fakePlan
	apply     *fakeApply
	verify    *fakeVerify
	resolver  *fakeResolver
	pipe      *pipeline.Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	rec := &recorder{}
	h := &harness{
		rec:       rec,
		discovery: &fakeDiscovery{rec: rec},
		export:    &fakeExport{rec: rec},
		transform: &fakeTransform{rec: rec},
		plan:      &fakePlan{rec: rec},
		apply:     &fakeApply{rec: rec},
		verify:    &fakeVerify{rec: rec},
		resolver:  &fakeResolver{rec: rec},
	}

	h.pipe = &pipeline.Pipeline{
		Discovery:  h.discovery,
		Export:     h.export,
		Transform:  h.transform,
		Plan:       h.plan,
		Apply:      h.apply,
		Verify:     h.verify,
		Resolver:   h.resolver,
		Tree:       artifacts.Tree{Root: t.TempDir()},
		RetryDelay: time.Millisecond,
		Config: config.Config{
			RunID: "run-1",
			GitLab: config.GitLabConfig{
				ProjectPath: "group/widget",
			},
			GitHub: config.GitHubConfig{
				Org: "acme",
			},
		},
	}

	return h
}

func TestSequenceForCoversEveryMode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		mode pipeline.Mode
		want []string
	}{
		{pipeline.ModeDiscoverOnly, []string{"discovery"}},
		{pipeline.ModeExportOnly, []string{"discovery", "export"}},
		{pipeline.ModeTransformOnly, []string{"discovery", "export", "transform"}},
		{pipeline.ModePlanOnly, []string{"discovery", "export", "transform", "plan"}},
		{pipeline.ModeDryRun, []string{"discovery", "export", "transform", "plan", "apply"}},
		{pipeline.ModeApply, []string{"discovery", "export", "transform", "plan", "apply"}},
		{pipeline.ModeVerify, []string{"verify"}},
		{pipeline.ModeFull, []string{"discovery", "export", "transform", "plan", "apply", "verify"}},
		{pipeline.ModeSingleProject, []string{"export", "transform", "plan"}},
	}

	for _, tc := range cases {
		sequence, err := pipeline.SequenceFor(tc.mode)
		require.NoError(t, err, tc.mode)
		assert.Equal(t, tc.want, sequence, tc.mode)
	}

	_, err := pipeline.SequenceFor(pipeline.Mode("TIME_TRAVEL"))
	require.ErrorIs(t, err, pipeline.ErrUnknownMode)
}

func TestTargetUsesLastPathSegment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "acme/widget", pipeline.Target("acme", "group/sub/widget"))
	assert.Equal(t, "acme/widget", pipeline.Target("acme", "widget"))
}

func TestRunFullModeSequencesAllStages(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	result, err := h.pipe.Run(context.Background(), pipeline.ModeFull, "")
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.Equal(t, "acme/widget", result.GitHubTarget)
	assert.Equal(t,
		[]string{"discovery", "export", "transform", "plan", "apply", "verify"},
		h.rec.calls)

	require.Len(t, result.Stages, 6)

	for _, stage := range result.Stages {
		assert.Equal(t, pipeline.StatusSuccess, stage.Status, stage.Stage)
	}

	require.NotNil(t, result.Context)
	assert.Len(t, result.Context.DiscoveredProjects, 1)
	assert.Len(t, result.Context.ConversionGaps, 1)
	assert.NotNil(t, result.Context.Plan)
	assert.NotNil(t, result.Context.ApplyResults)
	assert.NotNil(t, result.Context.VerifyResults)
	assert.Equal(t, map[string]int{"repo_create": 1, "label_create": 1}, result.Context.ExpectedState)

	_, statErr := os.Stat(h.pipe.Tree.RunReportPath())
	require.NoError(t, statErr)
}

func TestRunStopsOnStageFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.transform.err = errors.New("conversion exploded")

	result, err := h.pipe.Run(context.Background(), pipeline.ModeFull, "")
	require.Error(t, err)

	assert.Equal(t, pipeline.StatusFailed, result.Status)
	assert.Equal(t, "transform", result.FailedAtAgent)
	assert.NotContains(t, h.rec.calls, "plan")
	assert.NotContains(t, h.rec.calls, "apply")

	last := result.Stages[len(result.Stages)-1]
	assert.Equal(t, "transform", last.Stage)
	assert.Equal(t, pipeline.StatusFailed, last.Status)
	assert.Contains(t, last.Error, "conversion exploded")
	assert.False(t, last.FinishedAt.IsZero())
}

func TestRunRetriesFailedStage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.export.errs = []error{errors.New("flaky network"), nil}

	result, err := h.pipe.Run(context.Background(), pipeline.ModeExportOnly, "")
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.Equal(t, 2, h.export.calls)
	assert.Equal(t, 2, result.Stages[1].Attempts)
}

func TestRunResumeFromSlicesSequence(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	result, err := h.pipe.Run(context.Background(), pipeline.ModeFull, "transform")
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.NotContains(t, h.rec.calls, "discovery")
	assert.NotContains(t, h.rec.calls, "export")
	// Transform needs a project, so the resolver fills the gap left by
	// the skipped discovery stage.
	assert.Equal(t, "resolve", h.rec.calls[0])
	assert.Contains(t, h.rec.calls, "transform")
}

func TestRunSingleProjectResolvesDirectly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.pipe.Config.Export.Resume = true

	result, err := h.pipe.Run(context.Background(), pipeline.ModeSingleProject, "")
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.Equal(t, []string{"resolve", "export", "transform", "plan"}, h.rec.calls)
	assert.True(t, h.export.resume)
}

func TestRunDryRunModeSetsDryRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.pipe.Run(context.Background(), pipeline.ModeDryRun, "")
	require.NoError(t, err)

	assert.True(t, h.apply.opts.DryRun)
}

func TestRunApplyModeKeepsDryRunOff(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.pipe.Inputs = map[string]string{"DEPLOY_KEY": "value"}

	_, err := h.pipe.Run(context.Background(), pipeline.ModeApply, "")
	require.NoError(t, err)

	assert.False(t, h.apply.opts.DryRun)
	assert.Equal(t, "value", h.apply.opts.Inputs["DEPLOY_KEY"])
}

func TestRunFailedApplyReportStopsWithoutRetry(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.apply.status = apply.StatusFailed

	result, err := h.pipe.Run(context.Background(), pipeline.ModeFull, "")
	require.Error(t, err)

	assert.Equal(t, pipeline.StatusFailed, result.Status)
	assert.Equal(t, "apply", result.FailedAtAgent)
	assert.NotContains(t, h.rec.calls, "verify")

	last := result.Stages[len(result.Stages)-1]
	assert.Equal(t, 1, last.Attempts)
}

func TestRunPartialStagesYieldPartialResult(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.export.status = export.StatusPartial

	result, err := h.pipe.Run(context.Background(), pipeline.ModeExportOnly, "")
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusPartial, result.Status)
}

func TestRunCallbacksFireAroundEveryStage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	var before, after []string

	h.pipe.StageCallback = func(stage string) { before = append(before, stage) }
	h.pipe.CompleteCallback = func(stage string, result pipeline.StageResult) {
		after = append(after, stage+":"+result.Status)
	}

	_, err := h.pipe.Run(context.Background(), pipeline.ModePlanOnly, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"discovery", "export", "transform", "plan"}, before)
	assert.Equal(t,
		[]string{"discovery:success", "export:success", "transform:success", "plan:success"},
		after)
}

func TestRunUnknownModeFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	result, err := h.pipe.Run(context.Background(), pipeline.Mode("SIDEWAYS"), "")
	require.ErrorIs(t, err, pipeline.ErrUnknownMode)
	assert.Equal(t, pipeline.StatusFailed, result.Status)
	assert.Empty(t, h.rec.calls)
}
