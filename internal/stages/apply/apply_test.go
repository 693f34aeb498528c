package apply_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/forge"
	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/stages/apply"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// fakeForge records every destination write and lets tests inject
// failures per method name.
type fakeForge struct {
	mu    sync.Mutex
	calls []string

	fail       map[string]error
	repoExists bool
	releases   map[string]github.Release

	secrets map[string]string
}

func newFakeForge() *fakeForge {
	return &fakeForge{
		fail:     map[string]error{},
		releases: map[string]github.Release{},
		secrets:  map[string]string{},
	}
}

func (f *fakeForge) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)

	return f.fail[call]
}

func (f *fakeForge) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.calls))
	copy(out, f.calls)

	return out
}

func (f *fakeForge) count(call string) int {
	n := 0

	for _, c := range f.recorded() {
		if c == call {
			n++
		}
	}

	return n
}

func (f *fakeForge) CreateRepo(_ context.Context, req github.NewRepo) (github.Repo, error) {
	if err := f.record("CreateRepo"); err != nil {
		return github.Repo{}, err
	}

	return github.Repo{
		Name:     req.Name,
		FullName: "acme/" + req.Name,
		HTMLURL:  "https://github.com/acme/" + req.Name,
	}, nil
}

func (f *fakeForge) RepoExists(context.Context, string) (bool, error) {
	return f.repoExists, nil
}

func (f *fakeForge) UpdateRepo(_ context.Context, _ string, _ github.RepoSettings) error {
	return f.record("UpdateRepo")
}

func (f *fakeForge) DeleteRepo(context.Context, string) error {
	return f.record("DeleteRepo")
}

func (f *fakeForge) CreateLabel(_ context.Context, _ string, _ github.Label) error {
	return f.record("CreateLabel")
}

func (f *fakeForge) DeleteLabel(context.Context, string, string) error {
	return f.record("DeleteLabel")
}

func (f *fakeForge) CreateMilestone(_ context.Context, _ string, m github.Milestone) (github.Milestone, error) {
	if err := f.record("CreateMilestone"); err != nil {
		return github.Milestone{}, err
	}

	m.Number = 7

	return m, nil
}

func (f *fakeForge) DeleteMilestone(context.Context, string, int) error {
	return f.record("DeleteMilestone")
}

func (f *fakeForge) CreateIssue(_ context.Context, _ string, issue github.NewIssue) (github.Issue, error) {
	if err := f.record("CreateIssue"); err != nil {
		return github.Issue{}, err
	}

	return github.Issue{Number: 11, Title: issue.Title}, nil
}

func (f *fakeForge) CloseIssue(context.Context, string, int) error {
	return f.record("CloseIssue")
}

func (f *fakeForge) CreateIssueComment(context.Context, string, int, string) error {
	return f.record("CreateIssueComment")
}

func (f *fakeForge) CreatePull(_ context.Context, _ string, pull github.NewPull) (github.Pull, error) {
	if err := f.record("CreatePull"); err != nil {
		return github.Pull{}, err
	}

	return github.Pull{Number: 21, Title: pull.Title}, nil
}

func (f *fakeForge) ClosePull(context.Context, string, int) error {
	return f.record("ClosePull")
}

func (f *fakeForge) CreateRelease(_ context.Context, _ string, release github.NewRelease) (github.Release, error) {
	if err := f.record("CreateRelease"); err != nil {
		return github.Release{}, err
	}

	created := github.Release{ID: 31, TagName: release.TagName}
	f.mu.Lock()
	f.releases[release.TagName] = created
	f.mu.Unlock()

	return created, nil
}

func (f *fakeForge) DeleteRelease(context.Context, string, int64) error {
	return f.record("DeleteRelease")
}

func (f *fakeForge) ReleaseByTag(_ context.Context, _ string, tag string) (github.Release, error) {
	f.mu.Lock()
	release, ok := f.releases[tag]
	f.mu.Unlock()

	if !ok {
		return github.Release{}, &forge.Error{Category: forge.CategoryNotFound, Code: 404, Message: "no release"}
	}

	return release, nil
}

func (f *fakeForge) UploadReleaseAsset(context.Context, string, string, string) (github.ReleaseAsset, error) {
	if err := f.record("UploadReleaseAsset"); err != nil {
		return github.ReleaseAsset{}, err
	}

	return github.ReleaseAsset{ID: 41, Name: "asset"}, nil
}

func (f *fakeForge) DeleteReleaseAsset(context.Context, string, int64) error {
	return f.record("DeleteReleaseAsset")
}

func (f *fakeForge) CreateEnvironment(context.Context, string, string) error {
	return f.record("CreateEnvironment")
}

func (f *fakeForge) DeleteEnvironment(context.Context, string, string) error {
	return f.record("DeleteEnvironment")
}

func (f *fakeForge) SetRepoSecret(_ context.Context, _, name, value string) error {
	if err := f.record("SetRepoSecret"); err != nil {
		return err
	}

	f.mu.Lock()
	f.secrets[name] = value
	f.mu.Unlock()

	return nil
}

func (f *fakeForge) SetEnvironmentSecret(_ context.Context, _, _, name, value string) error {
	if err := f.record("SetEnvironmentSecret"); err != nil {
		return err
	}

	f.mu.Lock()
	f.secrets[name] = value
	f.mu.Unlock()

	return nil
}

func (f *fakeForge) DeleteRepoSecret(context.Context, string, string) error {
	return f.record("DeleteRepoSecret")
}

func (f *fakeForge) DeleteEnvironmentSecret(context.Context, string, string, string) error {
	return f.record("DeleteEnvironmentSecret")
}

func (f *fakeForge) SetVariable(context.Context, string, string, string) error {
	return f.record("SetVariable")
}

func (f *fakeForge) DeleteVariable(context.Context, string, string) error {
	return f.record("DeleteVariable")
}

func (f *fakeForge) CreateWebhook(_ context.Context, _ string, _ github.NewWebhook) (github.Webhook, error) {
	if err := f.record("CreateWebhook"); err != nil {
		return github.Webhook{}, err
	}

	return github.Webhook{ID: 51}, nil
}

func (f *fakeForge) UpdateWebhook(context.Context, string, int64, github.NewWebhook) error {
	return f.record("UpdateWebhook")
}

func (f *fakeForge) DeleteWebhook(context.Context, string, int64) error {
	return f.record("DeleteWebhook")
}

func (f *fakeForge) SetBranchProtection(context.Context, string, string, github.BranchProtection) error {
	return f.record("SetBranchProtection")
}

func (f *fakeForge) DeleteBranchProtection(context.Context, string, string) error {
	return f.record("DeleteBranchProtection")
}

func (f *fakeForge) AddCollaborator(context.Context, string, string, string) error {
	return f.record("AddCollaborator")
}

func (f *fakeForge) RemoveCollaborator(context.Context, string, string) error {
	return f.record("RemoveCollaborator")
}

func (f *fakeForge) CreateTeam(_ context.Context, name string) (github.Team, error) {
	if err := f.record("CreateTeam"); err != nil {
		return github.Team{}, err
	}

	return github.Team{ID: 61, Name: name, Slug: name}, nil
}

func (f *fakeForge) DeleteTeam(context.Context, string) error {
	return f.record("DeleteTeam")
}

func (f *fakeForge) CommitFile(context.Context, string, string, string, string, []byte) (string, error) {
	if err := f.record("CommitFile"); err != nil {
		return "", err
	}

	return "abc123", nil
}

type fakePusher struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakePusher) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, call)
}

func (p *fakePusher) CloneFromBundle(context.Context, string, string) error {
	p.record("CloneFromBundle")

	return nil
}

func (p *fakePusher) PushMirror(context.Context, string, string) error {
	p.record("PushMirror")

	return nil
}

func (p *fakePusher) PushWiki(context.Context, string, string) error {
	p.record("PushWiki")

	return nil
}

func testAction(t *testing.T, id int, kind plan.ActionType, params any, deps ...int) plan.Action {
	t.Helper()

	raw, err := json.Marshal(params)
	require.NoError(t, err)

	return plan.Action{
		ID:             id,
		Type:           kind,
		Parameters:     raw,
		Dependencies:   deps,
		IdempotencyKey: fmt.Sprintf("%s:%d", kind, id),
		Reversible:     plan.Reversible(kind),
	}
}

func testPlan(actions []plan.Action, phases []plan.Phase) plan.Plan {
	return plan.Plan{
		Version:       plan.Version,
		RunID:         "run-1",
		GitLabProject: "group/widget",
		GitHubTarget:  "acme/widget",
		Summary:       plan.Summary{Total: len(actions)},
		Actions:       actions,
		Phases:        phases,
	}
}

func testPhase(name string, parallel bool, ids ...int) plan.Phase {
	return plan.Phase{Name: name, Actions: ids, ParallelSafe: parallel}
}

func newStage(f *fakeForge) *apply.Stage {
	return &apply.Stage{Forge: f, Pusher: &fakePusher{}}
}

func TestRunExecutesMinimalPlan(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	tree := artifacts.Tree{Root: t.TempDir()}

	p := testPlan(
		[]plan.Action{
			testAction(t, 1, plan.ActionRepoCreate, plan.RepoCreateParams{Name: "widget", DefaultBranch: "main"}),
			testAction(t, 2, plan.ActionLabelCreate, plan.LabelCreateParams{Name: "bug", Color: "d73a4a"}, 1),
		},
		[]plan.Phase{testPhase("repository", false, 1, 2)},
	)

	report, err := newStage(f).Run(context.Background(), tree, p, apply.Options{})
	require.NoError(t, err)

	assert.Equal(t, apply.StatusSuccess, report.Status)
	assert.Equal(t, 2, report.Successful)
	assert.Zero(t, report.Failed)
	assert.InDelta(t, 1.0, report.SuccessRate, 0.001)
	assert.Equal(t, []string{"CreateRepo", "CreateLabel"}, f.recorded())

	var persisted apply.Report

	require.NoError(t, persist.ReadJSON(tree.ApplyReportPath(), &persisted))
	assert.Equal(t, report.Status, persisted.Status)
	assert.Len(t, persisted.Results, 2)

	_, statErr := os.Stat(tree.ExecutedActionsPath())
	assert.NoError(t, statErr)

	_, statErr = os.Stat(tree.IDMappingsPath())
	assert.NoError(t, statErr)
}

func TestRunDependencyNotMet(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	f.fail["CreateRepo"] = &forge.Error{Category: forge.CategoryValidation, Code: 422, Message: "name taken"}

	tree := artifacts.Tree{Root: t.TempDir()}

	p := testPlan(
		[]plan.Action{
			testAction(t, 1, plan.ActionRepoCreate, plan.RepoCreateParams{Name: "widget"}),
			testAction(t, 2, plan.ActionLabelCreate, plan.LabelCreateParams{Name: "bug"}, 1),
		},
		[]plan.Phase{testPhase("repository", false, 1, 2)},
	)

	report, err := newStage(f).Run(context.Background(), tree, p, apply.Options{})
	require.NoError(t, err)

	assert.Equal(t, apply.StatusFailed, report.Status)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, "Dependencies not met", report.Results[1].Error)
	assert.Zero(t, f.count("CreateLabel"))
}

func TestRunUnknownActionType(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	tree := artifacts.Tree{Root: t.TempDir()}

	bogus := plan.Action{
		ID:             1,
		Type:           plan.ActionType("time_travel"),
		Parameters:     json.RawMessage(`{}`),
		IdempotencyKey: "time_travel:1",
	}

	p := testPlan([]plan.Action{bogus}, []plan.Phase{testPhase("repository", false, 1)})

	report, err := newStage(f).Run(context.Background(), tree, p, apply.Options{})
	require.NoError(t, err)

	assert.Equal(t, apply.StatusFailed, report.Status)
	require.Len(t, report.Results, 1)
	assert.Contains(t, report.Results[0].Error, "Unknown action type")
	assert.Empty(t, f.recorded())
}

func TestRunIdempotencyShortCircuit(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	tree := artifacts.Tree{Root: t.TempDir()}

	first := testAction(t, 1, plan.ActionLabelCreate, plan.LabelCreateParams{Name: "bug"})
	duplicate := testAction(t, 2, plan.ActionLabelCreate, plan.LabelCreateParams{Name: "bug"})
	duplicate.IdempotencyKey = first.IdempotencyKey

	p := testPlan(
		[]plan.Action{first, duplicate},
		[]plan.Phase{testPhase("metadata", false, 1, 2)},
	)

	report, err := newStage(f).Run(context.Background(), tree, p, apply.Options{})
	require.NoError(t, err)

	assert.Equal(t, apply.StatusSuccess, report.Status)
	assert.Equal(t, 1, f.count("CreateLabel"))
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[1].Skipped)
}

func TestRunSecretRequiresOperatorInput(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	tree := artifacts.Tree{Root: t.TempDir()}

	p := testPlan(
		[]plan.Action{
			testAction(t, 1, plan.ActionSecretSet, plan.SecretSetParams{
				Name:  "DEPLOY_KEY",
				Value: plan.UserInputValue,
				Scope: "repository",
			}),
		},
		[]plan.Phase{testPhase("ci", false, 1)},
	)

	report, err := newStage(f).Run(context.Background(), tree, p, apply.Options{})
	require.NoError(t, err)

	assert.Equal(t, apply.StatusFailed, report.Status)
	assert.Zero(t, f.count("SetRepoSecret"))
}

func TestRunSecretUsesProvidedInput(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	tree := artifacts.Tree{Root: t.TempDir()}

	p := testPlan(
		[]plan.Action{
			testAction(t, 1, plan.ActionSecretSet, plan.SecretSetParams{
				Name:  "DEPLOY_KEY",
				Value: plan.UserInputValue,
				Scope: "repository",
			}),
		},
		[]plan.Phase{testPhase("ci", false, 1)},
	)

	opts := apply.Options{Inputs: map[string]string{"DEPLOY_KEY": "s3cret-value"}}

	report, err := newStage(f).Run(context.Background(), tree, p, opts)
	require.NoError(t, err)

	assert.Equal(t, apply.StatusSuccess, report.Status)
	assert.Equal(t, "s3cret-value", f.secrets["DEPLOY_KEY"])

	// The secret value must never surface in the persisted report.
	raw, readErr := os.ReadFile(tree.ApplyReportPath())
	require.NoError(t, readErr)
	assert.NotContains(t, string(raw), "s3cret-value")
}

func TestRunSkipIfFlag(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	tree := artifacts.Tree{Root: t.TempDir()}

	gated := testAction(t, 1, plan.ActionPackagePublish, plan.PackagePublishParams{Name: "pkg", Version: "1.0.0"})
	gated.SkipIf = "registry_transfer_disabled"

	p := testPlan([]plan.Action{gated}, []plan.Phase{testPhase("packages", false, 1)})

	report, err := newStage(f).Run(context.Background(), tree, p, apply.Options{})
	require.NoError(t, err)

	assert.Equal(t, apply.StatusSuccess, report.Status)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Skipped)
	assert.Equal(t, 1, report.Skipped)
}

func TestRunDryRunAggregatesOutcomes(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	tree := artifacts.Tree{Root: t.TempDir()}

	p := testPlan(
		[]plan.Action{
			testAction(t, 1, plan.ActionRepoCreate, plan.RepoCreateParams{Name: "widget"}),
			testAction(t, 2, plan.ActionSecretSet, plan.SecretSetParams{
				Name:  "DEPLOY_KEY",
				Value: plan.UserInputValue,
				Scope: "repository",
			}),
			testAction(t, 3, plan.ActionPackagePublish, plan.PackagePublishParams{Name: "pkg", Version: "1.0.0"}),
		},
		[]plan.Phase{
			testPhase("repository", false, 1),
			testPhase("ci", false, 2),
			testPhase("packages", false, 3),
		},
	)

	report, err := newStage(f).Run(context.Background(), tree, p, apply.Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Simulation["would_create"])
	assert.Equal(t, 1, report.Simulation["would_fail"])
	assert.Equal(t, 1, report.Simulation["would_skip"])
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "DEPLOY_KEY")

	// Simulation never writes to the destination or the execution record.
	assert.Empty(t, f.recorded())

	_, statErr := os.Stat(tree.DryRunReportPath())
	assert.NoError(t, statErr)

	_, statErr = os.Stat(tree.ExecutedActionsPath())
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunParallelPhaseKeepsCommentAfterIssue(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	tree := artifacts.Tree{Root: t.TempDir()}

	p := testPlan(
		[]plan.Action{
			testAction(t, 1, plan.ActionIssueCreate, plan.IssueCreateParams{
				GitLabIssueIID: 5,
				Title:          "Crash on resize",
				State:          "opened",
			}),
			testAction(t, 2, plan.ActionIssueCommentAdd, plan.IssueCommentAddParams{
				GitLabIssueIID: 5,
				Index:          0,
				Body:           "Reproduced on 1.2",
			}, 1),
		},
		[]plan.Phase{testPhase("issue_import", true, 1, 2)},
	)

	stage := newStage(f)
	stage.PhaseWorkers = 4

	report, err := stage.Run(context.Background(), tree, p, apply.Options{})
	require.NoError(t, err)

	assert.Equal(t, apply.StatusSuccess, report.Status)
	assert.Equal(t, []string{"CreateIssue", "CreateIssueComment"}, f.recorded())
	assert.Equal(t, int64(11), report.IDMappings["issue"]["5"])
}

func TestRunResumeSkipsPriorActions(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	tree := artifacts.Tree{Root: t.TempDir()}

	prior := []apply.Result{
		{
			Success:        true,
			ActionID:       1,
			ActionType:     string(plan.ActionRepoCreate),
			IdempotencyKey: "repo_create:1",
			Reversible:     true,
		},
	}
	require.NoError(t, persist.WriteJSON(tree.ExecutedActionsPath(), prior))

	p := testPlan(
		[]plan.Action{
			testAction(t, 1, plan.ActionRepoCreate, plan.RepoCreateParams{Name: "widget"}),
			testAction(t, 2, plan.ActionLabelCreate, plan.LabelCreateParams{Name: "bug"}, 1),
		},
		[]plan.Phase{testPhase("repository", false, 1, 2)},
	)

	report, err := newStage(f).Run(context.Background(), tree, p, apply.Options{ResumeFromActionID: 2})
	require.NoError(t, err)

	assert.Equal(t, apply.StatusSuccess, report.Status)
	assert.Zero(t, f.count("CreateRepo"))
	assert.Equal(t, 1, f.count("CreateLabel"))
}

func TestRunRepoPushUsesBundle(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	pusher := &fakePusher{}
	tree := artifacts.Tree{Root: t.TempDir()}

	p := testPlan(
		[]plan.Action{
			testAction(t, 1, plan.ActionRepoCreate, plan.RepoCreateParams{Name: "widget"}),
			testAction(t, 2, plan.ActionRepoPush, plan.RepoPushParams{BundlePath: "/tmp/widget.bundle"}, 1),
		},
		[]plan.Phase{testPhase("repository", false, 1, 2)},
	)

	stage := &apply.Stage{Forge: f, Pusher: pusher}

	report, err := stage.Run(context.Background(), tree, p, apply.Options{})
	require.NoError(t, err)

	assert.Equal(t, apply.StatusSuccess, report.Status)
	assert.Equal(t, []string{"CloneFromBundle", "PushMirror"}, pusher.calls)
}

func TestRollbackReversesExecutedActions(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	tree := artifacts.Tree{Root: t.TempDir()}

	p := testPlan(
		[]plan.Action{
			testAction(t, 1, plan.ActionRepoCreate, plan.RepoCreateParams{Name: "widget"}),
			testAction(t, 2, plan.ActionLabelCreate, plan.LabelCreateParams{Name: "bug"}, 1),
			testAction(t, 3, plan.ActionIssueCreate, plan.IssueCreateParams{GitLabIssueIID: 5, Title: "Crash"}, 1),
			testAction(t, 4, plan.ActionWorkflowCommit, plan.WorkflowCommitParams{Name: "ci", Path: ".github/workflows/ci.yml"}, 1),
		},
		[]plan.Phase{testPhase("repository", false, 1, 2, 3, 4)},
	)
	require.NoError(t, persist.WriteJSON(tree.PlanPath(), p))

	executed := []apply.Result{
		{Success: true, ActionID: 1, ActionType: "repo_create", Reversible: true, RollbackData: map[string]any{"repo": "widget"}},
		{Success: true, ActionID: 2, ActionType: "label_create", Reversible: true, RollbackData: map[string]any{"name": "bug"}},
		{Success: true, ActionID: 3, ActionType: "issue_create", Reversible: true, RollbackData: map[string]any{"number": 11}},
		{Success: true, ActionID: 4, ActionType: "workflow_commit", Reversible: false},
	}
	require.NoError(t, persist.WriteJSON(tree.ExecutedActionsPath(), executed))

	report, err := newStage(f).Rollback(context.Background(), tree)
	require.NoError(t, err)

	assert.Equal(t, apply.StatusSuccess, report.Status)
	assert.Equal(t, 3, report.RolledBack)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)

	// Reverse order: the issue is closed with a tombstone before the
	// label and repository are removed.
	assert.Equal(t,
		[]string{"CloseIssue", "CreateIssueComment", "DeleteLabel", "DeleteRepo"},
		f.recorded())

	var persisted apply.RollbackReport

	require.NoError(t, persist.ReadJSON(tree.RollbackReportPath(), &persisted))
	assert.Equal(t, report.RolledBack, persisted.RolledBack)
}

func TestRollbackCountsFailures(t *testing.T) {
	t.Parallel()

	f := newFakeForge()
	f.fail["DeleteLabel"] = &forge.Error{Category: forge.CategoryServer, Code: 500, Message: "boom"}

	tree := artifacts.Tree{Root: t.TempDir()}

	p := testPlan(
		[]plan.Action{
			testAction(t, 1, plan.ActionRepoCreate, plan.RepoCreateParams{Name: "widget"}),
			testAction(t, 2, plan.ActionLabelCreate, plan.LabelCreateParams{Name: "bug"}, 1),
		},
		[]plan.Phase{testPhase("repository", false, 1, 2)},
	)
	require.NoError(t, persist.WriteJSON(tree.PlanPath(), p))

	executed := []apply.Result{
		{Success: true, ActionID: 1, ActionType: "repo_create", Reversible: true, RollbackData: map[string]any{"repo": "widget"}},
		{Success: true, ActionID: 2, ActionType: "label_create", Reversible: true, RollbackData: map[string]any{"name": "bug"}},
	}
	require.NoError(t, persist.WriteJSON(tree.ExecutedActionsPath(), executed))

	report, err := newStage(f).Rollback(context.Background(), tree)
	require.NoError(t, err)

	assert.Equal(t, apply.StatusPartial, report.Status)
	assert.Equal(t, 1, report.RolledBack)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "label_create")
}
