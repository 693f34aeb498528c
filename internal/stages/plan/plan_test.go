package plan_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/stages/export"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
	"github.com/Sumatoshi-tech/gitport/internal/stages/transform"
)

func writeJSON(t *testing.T, path string, value any) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	data, err := json.Marshal(value)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testProject() gitlab.Project {
	return gitlab.Project{ID: 7, PathWithNamespace: "group/proj", DefaultBranch: "main"}
}

func testStage() *plan.Stage {
	return &plan.Stage{Org: "acme", Repo: "proj", RunID: "run-1"}
}

// seedFullTree writes export and transform artifacts covering every
// plan component.
func seedFullTree(t *testing.T, tree artifacts.Tree) {
	t.Helper()

	writeJSON(t, tree.ProjectSettingsPath(), export.ProjectSettings{
		Description:   "demo project",
		Visibility:    "private",
		DefaultBranch: "main",
		IssuesEnabled: true,
		WikiEnabled:   true,
	})

	writeJSON(t, tree.UserMappingPath(), transform.UserMapping{
		Mappings: []transform.UserMatch{
			{SourceUsername: "alice", DestinationLogin: "alice", Confidence: "high", Method: "email"},
		},
		Stats: transform.UserMappingStats{Total: 1, Mapped: 1},
	})

	writeJSON(t, tree.TransformedIssuesPath(), []transform.Issue{
		{
			SourceIID: 7,
			Title:     "Crash on start",
			Body:      "body",
			State:     "open",
			Labels:    []string{"bug"},
			Milestone: "v1.0",
			Comments:  []transform.Comment{{Body: "first"}, {Body: "second"}},
		},
	})

	writeJSON(t, tree.TransformedMRsPath(), []transform.MergeRequest{
		{
			SourceIID:    2,
			Title:        "Add deploy",
			Body:         "body",
			State:        "closed",
			SourceBranch: "feat",
			TargetBranch: "main",
			Merged:       true,
			Labels:       []string{"bug"},
			Comments:     []transform.Comment{{Body: "lgtm"}},
		},
	})

	writeJSON(t, tree.TransformedLabelsPath(), []transform.Label{
		{Name: "bug", Color: "d9534f"},
	})
	writeJSON(t, tree.TransformedMilestonesPath(), []transform.Milestone{
		{Title: "v1.0", State: "open", DueOn: "2026-09-30"},
	})

	writeJSON(t, tree.ProtectionRulesPath(), transform.ProtectionRules{
		Branches: []transform.BranchRule{{
			Branch: "main",
			RequiredStatusChecks: transform.StatusCheckRequirement{
				Strict:   true,
				Contexts: []string{"build"},
			},
			EnforceAdmins: true,
		}},
		Tags: []transform.TagRule{{Pattern: "v*"}},
	})

	writeJSON(t, tree.TransformedWebhooksPath(), []transform.Webhook{
		{URL: "https://hooks.example/ci", Events: []string{"push"}, SecretRequired: true, SSLVerify: true},
		{URL: "https://hooks.example/open", Events: []string{"push"}},
	})

	writeRaw(t, tree.CodeownersPath(), "# Generated from source approval rules.\n* @alice @acme/platform\n")
	writeRaw(t, filepath.Join(tree.WorkflowsDir(), "ci.yml"), "name: CI\n")
	writeRaw(t, tree.GapsPath(), "[]")
	writeRaw(t, tree.GapsMarkdownPath(), "# Conversion Gaps\n")
	writeRaw(t, tree.RegistryScriptPath(), "#!/usr/bin/env bash\n")

	releases := []gitlab.Release{{TagName: "v1.0.0", Name: "First"}}
	releases[0].Assets.Links = []gitlab.ReleaseAssetLink{
		{Name: "report.pdf", URL: "https://example.com/report.pdf", LocalPath: "v1.0.0/report.pdf"},
	}
	writeJSON(t, tree.ReleasesPath(), releases)

	writeJSON(t, tree.PackagesPath(), []gitlab.Package{
		{ID: 1, Name: "app", Version: "1.0.0", PackageType: "generic"},
	})

	writeJSON(t, tree.VariablesPath(), []gitlab.Variable{
		{Key: "DATABASE_URL", Masked: true, EnvironmentScope: "production"},
		{Key: "REGION", Value: "eu-west-1", EnvironmentScope: "*"},
	})
	writeJSON(t, tree.EnvironmentsPath(), []gitlab.Environment{{ID: 1, Name: "production"}})
	writeJSON(t, tree.SchedulesPath(), []gitlab.Schedule{
		{ID: 1, Description: "nightly", Cron: "0 2 * * *", Ref: "main", Active: true},
	})

	writeJSON(t, tree.MembersPath(), []gitlab.Member{
		{ID: 1, Username: "alice", Name: "Alice Doe", AccessLevel: 40},
		{ID: 5, Username: "ghost", AccessLevel: 30},
	})
	writeRaw(t, tree.ApprovalRulesPath(),
		`[{"id":1,"name":"Maintainers","approvals_required":2,"groups":[{"full_path":"group/platform"}]}]`)

	writeRaw(t, filepath.Join(tree.WikiRepoPath(), "HEAD"), "ref: refs/heads/main\n")
	writeRaw(t, tree.LFSSentinelPath(), "lfs\n")
	writeRaw(t, filepath.Join(tree.IssueAttachmentsDir(), "abc_diagram.png"), "png")
	writeRaw(t, tree.BundlePath(), "bundle")
}

func actionsOfType(p plan.Plan, kind plan.ActionType) []plan.Action {
	var matches []plan.Action

	for _, action := range p.Actions {
		if action.Type == kind {
			matches = append(matches, action)
		}
	}

	return matches
}

func oneAction(t *testing.T, p plan.Plan, kind plan.ActionType) plan.Action {
	t.Helper()

	matches := actionsOfType(p, kind)
	require.Len(t, matches, 1, "expected exactly one %s", kind)

	return matches[0]
}

func decodeParams(t *testing.T, action plan.Action) map[string]any {
	t.Helper()

	params := map[string]any{}
	require.NoError(t, json.Unmarshal(action.Parameters, &params))

	return params
}

func TestRunBuildsMinimalPlan(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}

	p, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	assert.Equal(t, "1.0", p.Version)
	assert.Equal(t, "group/proj", p.GitLabProject)
	assert.Equal(t, "acme/proj", p.GitHubTarget)

	types := make([]plan.ActionType, 0, len(p.Actions))
	for _, action := range p.Actions {
		types = append(types, action.Type)
	}

	assert.Equal(t, []plan.ActionType{plan.ActionRepoCreate, plan.ActionRepoPush, plan.ActionRepoConfigure}, types)

	assert.True(t, p.Validation.AllDepsResolvable)
	assert.True(t, p.Validation.NoCycles)
	assert.True(t, p.Validation.RequiredInputsIdentified)
	assert.Empty(t, p.UserInputsRequired)

	loaded, loadErr := plan.Load(tree.PlanPath())
	require.NoError(t, loadErr)
	assert.Equal(t, p.Summary.Total, loaded.Summary.Total)
}

func TestRunWiresDependencies(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedFullTree(t, tree)

	p, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	repoCreate := oneAction(t, p, plan.ActionRepoCreate)
	repoPush := oneAction(t, p, plan.ActionRepoPush)
	assert.Contains(t, repoPush.Dependencies, repoCreate.ID)

	workflow := oneAction(t, p, plan.ActionWorkflowCommit)
	assert.Contains(t, workflow.Dependencies, repoPush.ID)

	label := oneAction(t, p, plan.ActionLabelCreate)
	milestone := oneAction(t, p, plan.ActionMilestoneCreate)

	issue := oneAction(t, p, plan.ActionIssueCreate)
	assert.Contains(t, issue.Dependencies, repoCreate.ID)
	assert.Contains(t, issue.Dependencies, label.ID)
	assert.Contains(t, issue.Dependencies, milestone.ID)

	comments := actionsOfType(p, plan.ActionIssueCommentAdd)
	require.Len(t, comments, 2)

	for _, comment := range comments {
		assert.Contains(t, comment.Dependencies, issue.ID)
	}

	pr := oneAction(t, p, plan.ActionPRCreate)
	assert.Contains(t, pr.Dependencies, repoPush.ID)
	assert.Contains(t, pr.Dependencies, label.ID)

	release := oneAction(t, p, plan.ActionReleaseCreate)
	asset := oneAction(t, p, plan.ActionReleaseAssetUpload)
	assert.Contains(t, asset.Dependencies, release.ID)

	protections := actionsOfType(p, plan.ActionProtectionSet)
	require.Len(t, protections, 2, "one branch rule and one tag pattern")

	for _, protection := range protections {
		params := decodeParams(t, protection)
		if params["branch"] == "main" {
			assert.Contains(t, protection.Dependencies, workflow.ID)
		}
	}

	lfs := oneAction(t, p, plan.ActionLFSConfigure)
	assert.Contains(t, lfs.Dependencies, repoPush.ID)

	oneAction(t, p, plan.ActionWikiPush)

	pkg := oneAction(t, p, plan.ActionPackagePublish)
	assert.Equal(t, "registry_transfer_disabled", pkg.SkipIf)

	collaborator := oneAction(t, p, plan.ActionCollaboratorAdd)
	params := decodeParams(t, collaborator)
	assert.Equal(t, "alice", params["name"])
	assert.Equal(t, "maintain", params["permission"])

	team := oneAction(t, p, plan.ActionTeamCreate)
	assert.Equal(t, "platform", decodeParams(t, team)["name"])

	codeowners := oneAction(t, p, plan.ActionCodeownersCommit)
	assert.Contains(t, codeowners.Dependencies, team.ID)

	hooks := actionsOfType(p, plan.ActionWebhookCreate)
	require.Len(t, hooks, 2)

	configure := oneAction(t, p, plan.ActionWebhookConfigure)
	assert.True(t, configure.RequiresUserInput)
	assert.Contains(t, configure.Dependencies, hooks[0].ID)

	// Every dependency precedes its dependent in plan order.
	position := map[int]int{}
	for i, action := range p.Actions {
		position[action.ID] = i
	}

	for _, action := range p.Actions {
		for _, dep := range action.Dependencies {
			assert.Less(t, position[dep], position[action.ID],
				"action %d must come after dependency %d", action.ID, dep)
		}
	}
}

func TestRunAssemblesPhases(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedFullTree(t, tree)

	p, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	lastOrder := 0
	byName := map[string]plan.Phase{}

	for _, phase := range p.Phases {
		assert.Greater(t, phase.Order, lastOrder, "phase order must increase")
		lastOrder = phase.Order
		byName[phase.Name] = phase
		assert.NotEmpty(t, phase.Actions)
	}

	assert.True(t, byName["issue_import"].ParallelSafe)
	assert.True(t, byName["pr_import"].ParallelSafe)
	assert.False(t, byName["foundation"].ParallelSafe)
}

func TestRunIdempotencyKeysAreDeterministic(t *testing.T) {
	t.Parallel()

	keyPattern := regexp.MustCompile(`^[a-z_]+-[a-z0-9._-]+-[0-9a-f]{8}$`)

	runOnce := func() plan.Plan {
		tree := artifacts.Tree{Root: t.TempDir()}
		seedFullTree(t, tree)

		p, err := testStage().Run(context.Background(), tree, testProject())
		require.NoError(t, err)

		return p
	}

	first := runOnce()
	second := runOnce()

	require.Equal(t, len(first.Actions), len(second.Actions))

	seen := map[string]bool{}

	for i := range first.Actions {
		key := first.Actions[i].IdempotencyKey
		assert.Equal(t, key, second.Actions[i].IdempotencyKey)
		assert.Regexp(t, keyPattern, key)
		assert.False(t, seen[key], "duplicate idempotency key %s", key)
		seen[key] = true
	}
}

func TestRunWebhookKeyFallsBackToActionID(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedFullTree(t, tree)

	p, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	for _, hook := range actionsOfType(p, plan.ActionWebhookCreate) {
		assert.True(t, strings.HasPrefix(hook.IdempotencyKey, fmt.Sprintf("webhook_create-%d-", hook.ID)),
			"key %s should embed the action id", hook.IdempotencyKey)
	}
}

func TestRunSurfacesMaskedVariable(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedFullTree(t, tree)

	p, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	environment := oneAction(t, p, plan.ActionEnvironmentCreate)

	secrets := actionsOfType(p, plan.ActionSecretSet)
	require.Len(t, secrets, 1)

	secret := secrets[0]
	assert.True(t, secret.RequiresUserInput)
	assert.Contains(t, secret.Dependencies, environment.ID)

	params := decodeParams(t, secret)
	assert.Equal(t, "DATABASE_URL", params["name"])
	assert.Equal(t, "${USER_INPUT_REQUIRED}", params["value"])
	assert.Equal(t, "environment", params["scope"])
	assert.Equal(t, "production", params["environment"])

	variable := oneAction(t, p, plan.ActionVariableSet)
	assert.Equal(t, "eu-west-1", decodeParams(t, variable)["value"])

	var saved []plan.UserInput

	data, readErr := os.ReadFile(tree.UserInputsPath())
	require.NoError(t, readErr)
	require.NoError(t, json.Unmarshal(data, &saved))

	foundSecret := false

	for _, input := range saved {
		if input.Type == "secret_value" && input.Key == "DATABASE_URL" {
			foundSecret = true

			assert.Equal(t, "environment", input.Scope)
			assert.Equal(t, "production", input.Environment)
			assert.True(t, input.Required)
		}
	}

	assert.True(t, foundSecret, "masked variable must appear in user_inputs_required.json")
}

func TestRunWritesPlanFiles(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedFullTree(t, tree)

	p, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	var stats plan.Stats

	data, readErr := os.ReadFile(tree.PlanStatsPath())
	require.NoError(t, readErr)
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, p.Summary.Total, stats.TotalActions)
	assert.Positive(t, stats.ParallelSafeActions)
	assert.Positive(t, stats.ReversibleActions)

	var graph plan.GraphExport

	data, readErr = os.ReadFile(tree.DependencyGraphPath())
	require.NoError(t, readErr)
	require.NoError(t, json.Unmarshal(data, &graph))
	assert.Equal(t, p.Summary.Total, graph.Nodes)
	assert.Contains(t, graph.Graphviz, "digraph")
	assert.Contains(t, graph.Graphviz, "repo_create")
}
