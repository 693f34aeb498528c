package transform_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/stages/export"
	"github.com/Sumatoshi-tech/gitport/internal/stages/transform"
)

const uploadPath = "/uploads/0123456789abcdef0123456789abcdef/diagram.png"

const localAttachment = "issues/attachments/0123456789abcdef0123456789abcdef_diagram.png"

const ciFixture = `stages:
  - build
  - test
  - deploy

variables:
  IMAGE: $CI_REGISTRY_IMAGE

build:
  stage: build
  image: $CI_REGISTRY_IMAGE/builder
  script:
    - docker build -t $CI_REGISTRY_IMAGE .
  artifacts:
    paths:
      - dist/

test:
  stage: test
  script:
    - go test ./...
  rules:
    - if: $CI_COMMIT_BRANCH

deploy:
  stage: deploy
  when: manual
  script:
    - ./deploy.sh
`

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

func seedExportTree(t *testing.T, tree artifacts.Tree) {
	t.Helper()

	writeJSON(t, tree.MembersPath(), []gitlab.Member{
		{ID: 1, Username: "alice", Name: "Alice Doe", Email: "alice@example.com"},
		{ID: 2, Username: "bob", Name: "Bob Jones"},
		{ID: 3, Username: "carol", Name: "Q"},
		{ID: 4, Username: "dave", Name: "Dave Moss"},
		{ID: 5, Username: "ghost", Name: "Zzz Qqq"},
		{ID: 6, Username: "erin", Email: "erin@corp.example"},
	})

	created := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

	writeJSON(t, tree.IssuesPath(), []export.ExportedIssue{
		{
			Issue: gitlab.Issue{
				IID:         1,
				Title:       "Crash on start",
				Description: "See ![diag](" + uploadPath + ") cc @bob fixes !2",
				State:       "opened",
				Labels:      []string{"bug"},
				Milestone:   &gitlab.Milestone{Title: "v1.0"},
				Author:      gitlab.User{Username: "alice", Email: "alice@example.com"},
				Assignees:   []gitlab.User{{Username: "bob", Name: "Bob Jones"}},
				CreatedAt:   created,
			},
			Notes: []gitlab.Note{
				{ID: 10, Body: "changed the description", System: true, Author: gitlab.User{Username: "alice"}, CreatedAt: created},
				{ID: 11, Body: "Ping @ghost", Author: gitlab.User{Username: "carol", Name: "Q"}, CreatedAt: created.Add(time.Hour)},
			},
		},
	})
	writeJSON(t, tree.IssueAttachmentMetaPath(), map[string]string{uploadPath: localAttachment})

	writeJSON(t, tree.MergeRequestsPath(), []export.ExportedMergeRequest{
		{
			MergeRequest: gitlab.MergeRequest{
				IID:          2,
				Title:        "Add deploy script",
				Description:  "Closes #1, reviewed by @dave",
				State:        "merged",
				SourceBranch: "feat",
				TargetBranch: "main",
				Author:       gitlab.User{Username: "bob", Name: "Bob Jones"},
				CreatedAt:    created,
			},
			Discussions: []gitlab.Discussion{
				{ID: "d1", Notes: []gitlab.Note{
					{ID: 20, Body: "LGTM", Author: gitlab.User{Username: "alice", Email: "alice@example.com"}, CreatedAt: created},
				}},
			},
		},
	})

	writeJSON(t, tree.SourceLabelsPath(), []gitlab.Label{
		{Name: "bug", Color: "#d9534f", Description: "broken"},
	})
	writeJSON(t, tree.SourceMilestonesPath(), []gitlab.Milestone{
		{Title: "v1.0", State: "active", DueDate: "2026-09-30"},
	})

	writeJSON(t, tree.ProtectedBranchesPath(), []gitlab.ProtectedBranch{
		{
			Name:                      "main",
			PushAccessLevels:          []gitlab.AccessLevel{{AccessLevel: 40, UserID: 42}},
			CodeOwnerApprovalRequired: true,
		},
	})
	writeJSON(t, tree.ProtectedTagsPath(), []gitlab.ProtectedTag{{Name: "v*"}})
	writeRaw(t, tree.ApprovalRulesPath(),
		`[{"id":1,"name":"Maintainers","approvals_required":2,"users":[{"username":"alice"}],"groups":[{"full_path":"group/platform"}]}]`)

	writeJSON(t, tree.WebhooksPath(), []gitlab.Webhook{
		{URL: "https://hooks.example/ci", PushEvents: true, PipelineEvents: true, EnableSSLVerification: true},
		{URL: "https://hooks.example/idle"},
	})

	writeJSON(t, tree.PackagesPath(), []gitlab.Package{
		{ID: 1, Name: "app", Version: "1.0.0", PackageType: "generic"},
	})

	writeRaw(t, tree.CIConfigPath(), ciFixture)
	writeRaw(t, tree.LFSSentinelPath(), "lfs\n")
}

func testStage() *transform.Stage {
	return &transform.Stage{
		Org:  "acme",
		Repo: "proj",
		OrgMembers: []github.OrgMember{
			{ID: 1, Login: "alice", Name: "Alice Doe", Email: "alice@example.com"},
			{ID: 2, Login: "bob-gh", Name: "Bob Jones"},
			{ID: 3, Login: "carolx", Name: "Carol"},
			{ID: 4, Login: "erin"},
		},
		ManualUserMappings: map[string]string{"dave": "dmoss"},
		SourceRegistryHost: "registry.gitlab.com",
	}
}

func testProject() gitlab.Project {
	return gitlab.Project{
		ID:                7,
		PathWithNamespace: "group/proj",
		DefaultBranch:     "main",
	}
}

func hasGap(gaps []transform.Gap, construct string) bool {
	for _, gap := range gaps {
		if gap.Construct == construct {
			return true
		}
	}

	return false
}

func TestRunProducesTransformArtifacts(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedExportTree(t, tree)

	out, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	require.Len(t, out.Issues, 1)

	issue := out.Issues[0]
	assert.Equal(t, int64(1), issue.SourceIID)
	assert.Equal(t, "open", issue.State)
	assert.Contains(t, issue.Body, "*Originally created by @alice on 2026-01-10*")
	assert.Contains(t, issue.Body, localAttachment)
	assert.Contains(t, issue.Body, "cc @bob-gh")
	assert.Contains(t, issue.Body, "fixes #2")
	assert.Equal(t, []string{"bob-gh"}, issue.Assignees)
	assert.Equal(t, "v1.0", issue.Milestone)

	require.Len(t, issue.Comments, 1, "system notes must not become comments")
	assert.Contains(t, issue.Comments[0].Body, "@carolx")

	require.Len(t, out.MergeRequests, 1)

	mr := out.MergeRequests[0]
	assert.True(t, mr.Merged)
	assert.Equal(t, "closed", mr.State)
	assert.Contains(t, mr.Body, "@dmoss")
	require.Len(t, mr.Comments, 1)

	require.Len(t, out.Labels, 1)
	assert.Equal(t, "d9534f", out.Labels[0].Color)

	require.Len(t, out.Milestones, 1)
	assert.Equal(t, "open", out.Milestones[0].State)
	assert.Equal(t, "2026-09-30", out.Milestones[0].DueOn)

	require.Len(t, out.Webhooks, 2)
	assert.Equal(t, []string{"push", "workflow_run", "check_suite"}, out.Webhooks[0].Events)
	assert.Equal(t, []string{"push"}, out.Webhooks[1].Events)
	assert.True(t, hasGap(out.Gaps, "event_selection"))

	for _, name := range []string{
		tree.UserMappingPath(),
		tree.TransformedIssuesPath(),
		tree.TransformedMRsPath(),
		tree.TransformedLabelsPath(),
		tree.TransformedMilestonesPath(),
		tree.ProtectionRulesPath(),
		tree.TransformedWebhooksPath(),
		tree.GapsPath(),
		tree.GapsMarkdownPath(),
		filepath.Join(tree.WorkflowsDir(), "ci.yml"),
	} {
		_, statErr := os.Stat(name)
		assert.NoError(t, statErr, name)
	}
}

func TestRunConvertsCIPipeline(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedExportTree(t, tree)

	out, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	require.Len(t, out.Workflows, 1)

	workflow := out.Workflows[0]
	assert.Equal(t, "ci.yml", workflow.FileName)
	assert.Equal(t, []string{"build", "test", "deploy"}, workflow.Jobs)

	assert.Contains(t, workflow.Content, "actions/checkout@v4")
	assert.Contains(t, workflow.Content, "actions/upload-artifact@v4")
	assert.Contains(t, workflow.Content, "ghcr.io/acme/proj/builder")
	assert.Contains(t, workflow.Content, "docker build -t ghcr.io/acme/proj .")
	assert.Contains(t, workflow.Content, "workflow_dispatch")
	assert.NotContains(t, workflow.Content, "$CI_REGISTRY_IMAGE")

	assert.True(t, hasGap(out.Gaps, "run_conditions"))
	assert.True(t, hasGap(out.Gaps, "manual_job"))

	onDisk, readErr := os.ReadFile(filepath.Join(tree.WorkflowsDir(), "ci.yml"))
	require.NoError(t, readErr)
	assert.Equal(t, workflow.Content, string(onDisk))
}

func TestRunConvertsProtections(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedExportTree(t, tree)

	out, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	require.Len(t, out.Protections.Branches, 1)

	rule := out.Protections.Branches[0]
	assert.Equal(t, "main", rule.Branch)
	assert.Equal(t, 2, rule.RequiredReviews.RequiredApprovingReviewCount)
	assert.True(t, rule.RequiredReviews.RequireCodeOwnerReviews)
	assert.True(t, rule.RequiredStatusChecks.Strict)
	assert.Equal(t, []string{"build", "test", "deploy"}, rule.RequiredStatusChecks.Contexts)
	assert.False(t, rule.AllowForcePushes)
	assert.False(t, rule.AllowDeletions)
	assert.True(t, rule.EnforceAdmins)

	require.Len(t, out.Protections.Tags, 1)
	assert.Equal(t, "v*", out.Protections.Tags[0].Pattern)

	assert.True(t, hasGap(out.Gaps, "per_user_push_restrictions"))

	assert.Equal(t, "# Generated from source approval rules.\n* @alice @acme/platform\n", out.Codeowners)

	owners, readErr := os.ReadFile(tree.CodeownersPath())
	require.NoError(t, readErr)
	assert.Equal(t, out.Codeowners, string(owners))
}

func TestRunRecordsExportGaps(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedExportTree(t, tree)

	out, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	assert.True(t, hasGap(out.Gaps, "registry_binaries"))
	assert.True(t, hasGap(out.Gaps, "lfs_objects"))
	assert.True(t, hasGap(out.Gaps, "unmapped_user"))

	script, readErr := os.ReadFile(tree.RegistryScriptPath())
	require.NoError(t, readErr)
	assert.Contains(t, string(script), `SRC_IMAGE="registry.gitlab.com/group/proj"`)
	assert.Contains(t, string(script), `DEST_IMAGE="ghcr.io/acme/proj"`)

	info, statErr := os.Stat(tree.RegistryScriptPath())
	require.NoError(t, statErr)
	assert.NotZero(t, info.Mode()&0o100, "migration script must be executable")
}

func TestRunBuildsUserMapping(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	seedExportTree(t, tree)

	out, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	byUser := map[string]transform.UserMatch{}
	for _, match := range out.UserMapping.Mappings {
		byUser[match.SourceUsername] = match
	}

	assert.Equal(t, "alice", byUser["alice"].DestinationLogin)
	assert.Equal(t, "email", byUser["alice"].Method)
	assert.Equal(t, transform.ConfidenceHigh, byUser["alice"].Confidence)

	assert.Equal(t, "bob-gh", byUser["bob"].DestinationLogin)
	assert.Equal(t, "name", byUser["bob"].Method)

	assert.Equal(t, "carolx", byUser["carol"].DestinationLogin)
	assert.Equal(t, "fuzzy", byUser["carol"].Method)
	assert.Equal(t, transform.ConfidenceLow, byUser["carol"].Confidence)

	assert.Equal(t, "erin", byUser["erin"].DestinationLogin)
	assert.Equal(t, "username", byUser["erin"].Method)

	assert.Equal(t, "dmoss", byUser["dave"].DestinationLogin)
	assert.True(t, byUser["dave"].IsManual)

	assert.Equal(t, []string{"ghost"}, out.UserMapping.Unmapped)

	saved := transform.UserMapping{}

	data, readErr := os.ReadFile(tree.UserMappingPath())
	require.NoError(t, readErr)
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, out.UserMapping.Stats.Total, saved.Stats.Total)
}

func TestMapUsersPriority(t *testing.T) {
	t.Parallel()

	members := []github.OrgMember{
		{Login: "primary", Email: "p@example.com", Name: "Pat Primary"},
		{Login: "pat-primary", Name: "Pat Other"},
	}

	// Email outranks a matching username.
	mapping := transform.MapUsers([]gitlab.User{
		{Username: "pat-primary", Email: "p@example.com"},
	}, members, nil)
	require.Len(t, mapping.Mappings, 1)
	assert.Equal(t, "primary", mapping.Mappings[0].DestinationLogin)
	assert.Equal(t, "email", mapping.Mappings[0].Method)

	// Manual overrides outrank everything.
	mapping = transform.MapUsers([]gitlab.User{
		{Username: "pat-primary", Email: "p@example.com"},
	}, members, map[string]string{"pat-primary": "override"})
	require.Len(t, mapping.Mappings, 1)
	assert.Equal(t, "override", mapping.Mappings[0].DestinationLogin)
	assert.True(t, mapping.Mappings[0].IsManual)

	// Duplicate source users collapse to one mapping.
	mapping = transform.MapUsers([]gitlab.User{
		{Username: "pat-primary"},
		{Username: "pat-primary"},
	}, members, nil)
	assert.Len(t, mapping.Mappings, 1)
	assert.Equal(t, 1, mapping.Stats.Total)
}

func TestRunReportsSourceOnlyWebhookEvents(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}
	writeRaw(t, tree.WebhooksPath(),
		`[{"url":"https://hooks.example/ci-jobs","job_events":true},`+
			`{"url":"https://hooks.example/mixed","push_events":true,"deployment_events":true,"confidential_note_events":true}]`)

	out, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	require.Len(t, out.Webhooks, 2)

	jobsOnly := out.Webhooks[0]
	assert.Equal(t, []string{"push"}, jobsOnly.Events, "no translatable events defaults to push")
	assert.Equal(t, []string{"job_events"}, jobsOnly.UnmappedEvents)

	mixed := out.Webhooks[1]
	assert.Equal(t, []string{"push"}, mixed.Events)
	assert.Equal(t, []string{"deployment_events", "confidential_note_events"}, mixed.UnmappedEvents)

	assert.True(t, hasGap(out.Gaps, "unmapped_events"))
	assert.True(t, hasGap(out.Gaps, "event_selection"))
}

func TestRunOnEmptyExportTree(t *testing.T) {
	t.Parallel()

	tree := artifacts.Tree{Root: t.TempDir()}

	out, err := testStage().Run(context.Background(), tree, testProject())
	require.NoError(t, err)

	assert.Empty(t, out.Issues)
	assert.Empty(t, out.Workflows)
	assert.Empty(t, out.Gaps)

	md, readErr := os.ReadFile(tree.GapsMarkdownPath())
	require.NoError(t, readErr)
	assert.Contains(t, string(md), "No conversion gaps detected.")

	_, statErr := os.Stat(tree.CodeownersPath())
	assert.True(t, os.IsNotExist(statErr), "no CODEOWNERS without approval rules")
}
