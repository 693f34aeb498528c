package verify_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/config"
	"github.com/Sumatoshi-tech/gitport/internal/forge"
	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/stages/discovery"
	"github.com/Sumatoshi-tech/gitport/internal/stages/transform"
	"github.com/Sumatoshi-tech/gitport/internal/stages/verify"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// fakeReader serves canned destination state.
type fakeReader struct {
	repo github.Repo

	branches int
	tags     int
	commits  int
	issues   int
	pulls    int
	releases int

	labels       []github.Label
	milestones   []github.Milestone
	webhooks     []github.Webhook
	environments []github.Environment
	secrets      []github.SecretMeta
	variables    []github.Variable
	workflows    []github.Workflow

	files map[string][]byte

	releaseTags map[string]bool
	protections map[string]bool
}

func (f *fakeReader) GetRepo(context.Context, string) (github.Repo, error) {
	return f.repo, nil
}

func (f *fakeReader) BranchCount(context.Context, string) (int, error) { return f.branches, nil }
func (f *fakeReader) TagCount(context.Context, string) (int, error)    { return f.tags, nil }

func (f *fakeReader) CommitCount(context.Context, string, string) (int, error) {
	return f.commits, nil
}

func (f *fakeReader) IssueCount(context.Context, string) (int, error)   { return f.issues, nil }
func (f *fakeReader) PullCount(context.Context, string) (int, error)    { return f.pulls, nil }
func (f *fakeReader) ReleaseCount(context.Context, string) (int, error) { return f.releases, nil }

func (f *fakeReader) ReleaseByTag(_ context.Context, _, tag string) (github.Release, error) {
	if !f.releaseTags[tag] {
		return github.Release{}, &forge.Error{Category: forge.CategoryNotFound, Code: 404, Message: "no release"}
	}

	return github.Release{TagName: tag}, nil
}

func (f *fakeReader) Labels(context.Context, string) ([]github.Label, error) {
	return f.labels, nil
}

func (f *fakeReader) Milestones(context.Context, string) ([]github.Milestone, error) {
	return f.milestones, nil
}

func (f *fakeReader) Webhooks(context.Context, string) ([]github.Webhook, error) {
	return f.webhooks, nil
}

func (f *fakeReader) Environments(context.Context, string) ([]github.Environment, error) {
	return f.environments, nil
}

func (f *fakeReader) SecretNames(context.Context, string) ([]github.SecretMeta, error) {
	return f.secrets, nil
}

func (f *fakeReader) Variables(context.Context, string) ([]github.Variable, error) {
	return f.variables, nil
}

func (f *fakeReader) Workflows(context.Context, string) ([]github.Workflow, error) {
	return f.workflows, nil
}

func (f *fakeReader) BranchProtectionFor(_ context.Context, _, branch string) (github.BranchProtection, error) {
	if !f.protections[branch] {
		return github.BranchProtection{}, &forge.Error{Category: forge.CategoryNotFound, Code: 404, Message: "no protection"}
	}

	return github.BranchProtection{}, nil
}

func (f *fakeReader) FileContent(_ context.Context, _, path, _ string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, &forge.Error{Category: forge.CategoryNotFound, Code: 404, Message: "no file"}
	}

	return content, nil
}

// seedArtifacts writes a minimal consistent artifact tree: one branch
// inventory, three transformed issues, one workflow, one release.
func seedArtifacts(t *testing.T, tree artifacts.Tree) {
	t.Helper()

	discovered := discovery.Output{
		Inventories: []discovery.Inventory{{
			ProjectPath: "group/widget",
			Components: map[string]discovery.Component{
				discovery.ComponentRepository: {
					Enabled: true,
					Counts:  map[string]int{"branches": 2, "tags": 1, "commits": 40},
					HasData: true,
				},
			},
		}},
	}
	require.NoError(t, persist.WriteJSON(tree.InventoryPath(), discovered))

	issues := []transform.Issue{
		{SourceIID: 1, Title: "a"}, {SourceIID: 2, Title: "b"}, {SourceIID: 3, Title: "c"},
	}
	require.NoError(t, persist.WriteJSON(tree.TransformedIssuesPath(), issues))

	mrs := []transform.MergeRequest{{SourceIID: 1, Title: "mr"}}
	require.NoError(t, persist.WriteJSON(tree.TransformedMRsPath(), mrs))

	labels := []transform.Label{{Name: "bug", Color: "d73a4a"}}
	require.NoError(t, persist.WriteJSON(tree.TransformedLabelsPath(), labels))

	require.NoError(t, os.MkdirAll(tree.WorkflowsDir(), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(tree.WorkflowsDir(), "ci.yml"),
		[]byte("name: ci\non: push\n"), 0o644))
}

func matchingReader() *fakeReader {
	return &fakeReader{
		repo:      github.Repo{FullName: "acme/widget", DefaultBranch: "main", HasWiki: true},
		branches:  2,
		tags:      1,
		commits:   40,
		issues:    3,
		pulls:     1,
		labels:    []github.Label{{Name: "bug"}},
		workflows: []github.Workflow{{Name: "ci", Path: ".github/workflows/ci.yml"}},
		files: map[string][]byte{
			".github/workflows/ci.yml": []byte("name: ci\non: push\n"),
		},
		releaseTags: map[string]bool{},
		protections: map[string]bool{},
	}
}

func newStage(reader *fakeReader) *verify.Stage {
	return &verify.Stage{
		Reader: reader,
		Repo:   "widget",
		Config: config.VerifyConfig{Tolerance: 0.05},
	}
}

func TestRunAllComponentsMatch(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedArtifacts(t, tree)

	report, err := newStage(matchingReader()).Run(context.Background(), tree)
	require.NoError(t, err)

	assert.Equal(t, verify.StatusSuccess, report.Status)
	require.Len(t, report.Components, 9)

	for _, component := range report.Components {
		assert.NotEqual(t, verify.StatusFailed, component.Status, component.Component)
	}

	var statuses map[string]string

	require.NoError(t, persist.ReadJSON(tree.ComponentStatusPath(), &statuses))
	assert.Equal(t, verify.StatusSuccess, statuses["repository"])

	var discrepancies []verify.Discrepancy

	require.NoError(t, persist.ReadJSON(tree.DiscrepanciesPath(), &discrepancies))
	assert.Empty(t, discrepancies)

	summary, readErr := os.ReadFile(tree.VerifySummaryPath())
	require.NoError(t, readErr)
	assert.Contains(t, string(summary), "SUCCESS")
}

func TestRunMissWithinToleranceWarns(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedArtifacts(t, tree)

	reader := matchingReader()
	reader.commits = 39

	report, err := newStage(reader).Run(context.Background(), tree)
	require.NoError(t, err)

	assert.Equal(t, verify.StatusPartial, report.Status)

	repository := findComponent(t, report, "repository")
	assert.Equal(t, verify.StatusPartial, repository.Status)
	assert.NotEmpty(t, repository.Warnings)
	assert.Empty(t, repository.Errors)
}

func TestRunMissAboveToleranceFails(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedArtifacts(t, tree)

	reader := matchingReader()
	reader.issues = 0

	report, err := newStage(reader).Run(context.Background(), tree)
	require.NoError(t, err)

	assert.Equal(t, verify.StatusFailed, report.Status)

	issues := findComponent(t, report, "issues")
	assert.Equal(t, verify.StatusFailed, issues.Status)
	assert.NotEmpty(t, issues.Errors)

	var discrepancies []verify.Discrepancy

	require.NoError(t, persist.ReadJSON(tree.DiscrepanciesPath(), &discrepancies))
	require.NotEmpty(t, discrepancies)
	assert.Equal(t, "issues", discrepancies[0].Component)
	assert.Equal(t, verify.CheckError, discrepancies[0].Severity)
}

func TestRunWorkflowDriftWarns(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedArtifacts(t, tree)

	reader := matchingReader()
	reader.files[".github/workflows/ci.yml"] = []byte("name: ci\non: pull_request\n")

	report, err := newStage(reader).Run(context.Background(), tree)
	require.NoError(t, err)

	ci := findComponent(t, report, "ci_cd")
	assert.Equal(t, verify.StatusPartial, ci.Status)

	found := false

	for _, warning := range ci.Warnings {
		if strings.Contains(warning, "ci.yml") && strings.Contains(warning, "differs") {
			found = true
		}
	}

	assert.True(t, found, "expected a drift warning for ci.yml")
}

func TestRunComponentToleranceOverride(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedArtifacts(t, tree)

	reader := matchingReader()
	reader.issues = 2

	stage := newStage(reader)
	stage.Config.ComponentTolerance = map[string]float64{"issues": 0.5}

	report, err := stage.Run(context.Background(), tree)
	require.NoError(t, err)

	issues := findComponent(t, report, "issues")
	assert.Equal(t, verify.StatusPartial, issues.Status)
	assert.Empty(t, issues.Errors)
}

func findComponent(t *testing.T, report verify.Report, name string) verify.ComponentResult {
	t.Helper()

	for _, component := range report.Components {
		if component.Component == name {
			return component
		}
	}

	t.Fatalf("component %s not in report", name)

	return verify.ComponentResult{}
}
