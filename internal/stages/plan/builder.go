package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/stages/export"
	"github.com/Sumatoshi-tech/gitport/internal/stages/transform"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// archivePrefix is where preservation commits land in the repository.
const archivePrefix = "migration-archive"

// skipRegistryTransfer gates package_publish actions; image and package
// bits never move automatically.
const skipRegistryTransfer = "registry_transfer_disabled"

// workflowFile is one converted workflow read back from the transform
// tree.
type workflowFile struct {
	name    string
	content string
}

// inputs bundles everything the builder reads from the artifact tree.
type inputs struct {
	settings      export.ProjectSettings
	userMapping   transform.UserMapping
	issues        []transform.Issue
	mergeRequests []transform.MergeRequest
	labels        []transform.Label
	milestones    []transform.Milestone
	protections   transform.ProtectionRules
	webhooks      []transform.Webhook
	codeowners    string
	workflows     []workflowFile

	releases      []gitlab.Release
	packages      []gitlab.Package
	variables     []gitlab.Variable
	environments  []gitlab.Environment
	schedules     []gitlab.Schedule
	members       []gitlab.Member
	approvalRules []gitlab.ApprovalRule

	hasWiki          bool
	hasLFS           bool
	issueAttachments bool
	mrAttachments    bool
}

func readInputs(tree artifacts.Tree) (inputs, error) {
	var in inputs

	reads := []struct {
		path string
		into any
	}{
		{tree.ProjectSettingsPath(), &in.settings},
		{tree.UserMappingPath(), &in.userMapping},
		{tree.TransformedIssuesPath(), &in.issues},
		{tree.TransformedMRsPath(), &in.mergeRequests},
		{tree.TransformedLabelsPath(), &in.labels},
		{tree.TransformedMilestonesPath(), &in.milestones},
		{tree.ProtectionRulesPath(), &in.protections},
		{tree.TransformedWebhooksPath(), &in.webhooks},
		{tree.ReleasesPath(), &in.releases},
		{tree.PackagesPath(), &in.packages},
		{tree.VariablesPath(), &in.variables},
		{tree.EnvironmentsPath(), &in.environments},
		{tree.SchedulesPath(), &in.schedules},
		{tree.MembersPath(), &in.members},
		{tree.ApprovalRulesPath(), &in.approvalRules},
	}

	for _, read := range reads {
		err := persist.ReadJSON(read.path, read.into)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return in, fmt.Errorf("read %s: %w", filepath.Base(read.path), err)
		}
	}

	owners, ownersErr := os.ReadFile(tree.CodeownersPath())
	if ownersErr == nil {
		in.codeowners = string(owners)
	}

	entries, dirErr := os.ReadDir(tree.WorkflowsDir())
	if dirErr == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}

			content, readErr := os.ReadFile(filepath.Join(tree.WorkflowsDir(), entry.Name()))
			if readErr != nil {
				return in, fmt.Errorf("read workflow %s: %w", entry.Name(), readErr)
			}

			in.workflows = append(in.workflows, workflowFile{name: entry.Name(), content: string(content)})
		}
	}

	in.hasWiki = dirExists(tree.WikiRepoPath())
	in.hasLFS = fileExists(tree.LFSSentinelPath())
	in.issueAttachments = dirHasFiles(tree.IssueAttachmentsDir())
	in.mrAttachments = dirHasFiles(tree.MRAttachmentsDir())

	return in, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

func dirHasFiles(path string) bool {
	entries, err := os.ReadDir(path)

	return err == nil && len(entries) > 0
}

// builder accumulates actions with sequential ids and deterministic
// idempotency keys.
type builder struct {
	tree          artifacts.Tree
	project       gitlab.Project
	org           string
	repo          string
	defaultBranch string

	actions []Action
	inputs  []UserInput
}

// addOpts carries the optional parts of one action.
type addOpts struct {
	deps          []int
	extra         string
	requiresInput bool
	skipIf        string
}

func (b *builder) add(kind ActionType, component, description string, params any, opts addOpts) int {
	raw, err := json.Marshal(params)
	if err != nil {
		// Params are plain structs; a marshal failure is a programming
		// error surfaced at validation time via empty parameters.
		raw = []byte("{}")
	}

	id := len(b.actions) + 1
	entity := entityFromParams(raw, id)

	deps := opts.deps
	if deps == nil {
		deps = []int{}
	}

	b.actions = append(b.actions, Action{
		ID:                id,
		Type:              kind,
		Component:         component,
		Phase:             phaseForKind[kind],
		Description:       description,
		Parameters:        raw,
		Dependencies:      deps,
		IdempotencyKey:    idempotencyKey(b.project.ID, kind, entity, opts.extra),
		DryRunSafe:        true,
		Reversible:        Reversible(kind),
		EstimatedDuration: estimatedSeconds[kind],
		RequiresUserInput: opts.requiresInput,
		SkipIf:            opts.skipIf,
	})

	return id
}

// build wires every action and its dependencies per component.
func (b *builder) build(in inputs) {
	repoCreate := b.add(ActionRepoCreate, "repository",
		fmt.Sprintf("Create repository %s/%s", b.org, b.repo),
		RepoCreateParams{
			Name:          b.repo,
			Description:   in.settings.Description,
			Private:       in.settings.Visibility != "public",
			DefaultBranch: b.defaultBranch,
		}, addOpts{})

	repoPush := b.add(ActionRepoPush, "repository",
		"Push exported git bundle with all refs",
		RepoPushParams{Branch: b.defaultBranch, BundlePath: b.tree.BundlePath()},
		addOpts{deps: []int{repoCreate}})

	b.add(ActionRepoConfigure, "repository",
		"Apply project-level settings",
		RepoConfigureParams{
			Name:          b.repo,
			HasIssues:     in.settings.IssuesEnabled,
			HasWiki:       in.settings.WikiEnabled,
			Archived:      in.settings.Archived,
			DefaultBranch: b.defaultBranch,
		}, addOpts{deps: []int{repoCreate}})

	if in.hasLFS {
		b.add(ActionLFSConfigure, "repository",
			"Record LFS usage; objects require a manual lfs push",
			LFSConfigureParams{Name: b.repo},
			addOpts{deps: []int{repoPush}})
	}

	workflowIDs := b.buildCISetup(in, repoCreate, repoPush)
	labelIDs, milestoneIDs := b.buildIssueSetup(in, repoCreate)
	b.buildIssueImport(in, repoCreate, labelIDs, milestoneIDs)
	b.buildPRImport(in, repoPush, labelIDs)

	if in.hasWiki {
		b.add(ActionWikiPush, "wiki",
			"Push exported wiki clone to the destination wiki",
			WikiPushParams{Name: "wiki", WikiRepoPath: b.tree.WikiRepoPath()},
			addOpts{deps: []int{repoCreate}})
	}

	b.buildReleaseImport(in, repoPush)
	b.buildPackageImport(in, repoCreate)
	b.buildGovernance(in, repoCreate, repoPush, workflowIDs)
	b.buildIntegrations(in, repoCreate)
	b.buildPreservation(in, repoPush)
}

func (b *builder) buildCISetup(in inputs, repoCreate, repoPush int) []int {
	var workflowIDs []int

	for _, workflow := range in.workflows {
		id := b.add(ActionWorkflowCommit, "ci_cd",
			fmt.Sprintf("Commit workflow %s", workflow.name),
			WorkflowCommitParams{
				Name:    workflow.name,
				Path:    ".github/workflows/" + workflow.name,
				Content: workflow.content,
				Branch:  b.defaultBranch,
			}, addOpts{deps: []int{repoPush}})

		workflowIDs = append(workflowIDs, id)
	}

	envIDs := map[string]int{}

	for _, env := range in.environments {
		envIDs[env.Name] = b.add(ActionEnvironmentCreate, "ci_cd",
			fmt.Sprintf("Create environment %s", env.Name),
			EnvironmentCreateParams{Name: env.Name},
			addOpts{deps: []int{repoCreate}})
	}

	for _, variable := range in.variables {
		b.addVariable(variable, repoCreate, envIDs)
	}

	for _, schedule := range in.schedules {
		name := schedule.Description
		if name == "" {
			name = fmt.Sprintf("schedule-%d", schedule.ID)
		}

		b.add(ActionScheduleCreate, "ci_cd",
			fmt.Sprintf("Commit scheduled workflow for %q", name),
			ScheduleCreateParams{Name: name, Cron: schedule.Cron, Ref: schedule.Ref, Active: schedule.Active},
			addOpts{deps: []int{repoPush}})
	}

	return workflowIDs
}

// addVariable routes one source variable: masked values become secrets
// the operator must fill in, protected values become secrets with the
// exported value, the rest become plain variables.
func (b *builder) addVariable(variable gitlab.Variable, repoCreate int, envIDs map[string]int) {
	scope := "repository"
	environment := ""
	deps := []int{repoCreate}

	if envID, ok := envIDs[variable.EnvironmentScope]; ok && variable.EnvironmentScope != "*" {
		scope = "environment"
		environment = variable.EnvironmentScope
		deps = []int{envID}
	}

	if variable.Masked {
		b.inputs = append(b.inputs, UserInput{
			Type:        "secret_value",
			Key:         variable.Key,
			Scope:       scope,
			Environment: environment,
			Reason:      "source variable is masked; its value is not exportable",
			Required:    true,
		})

		b.add(ActionSecretSet, "ci_cd",
			fmt.Sprintf("Set secret %s (value required from operator)", variable.Key),
			SecretSetParams{Name: variable.Key, Value: UserInputValue, Scope: scope, Environment: environment},
			addOpts{deps: deps, requiresInput: true})

		return
	}

	if variable.Protected {
		b.add(ActionSecretSet, "ci_cd",
			fmt.Sprintf("Set secret %s", variable.Key),
			SecretSetParams{Name: variable.Key, Value: variable.Value, Scope: scope, Environment: environment},
			addOpts{deps: deps})

		return
	}

	b.add(ActionVariableSet, "ci_cd",
		fmt.Sprintf("Set variable %s", variable.Key),
		VariableSetParams{Name: variable.Key, Value: variable.Value},
		addOpts{deps: deps})
}

func (b *builder) buildIssueSetup(in inputs, repoCreate int) (map[string]int, map[string]int) {
	labelIDs := map[string]int{}
	milestoneIDs := map[string]int{}

	for _, label := range in.labels {
		labelIDs[label.Name] = b.add(ActionLabelCreate, "issues",
			fmt.Sprintf("Create label %s", label.Name),
			LabelCreateParams{Name: label.Name, Color: label.Color, Description: label.Description},
			addOpts{deps: []int{repoCreate}})
	}

	for _, milestone := range in.milestones {
		milestoneIDs[milestone.Title] = b.add(ActionMilestoneCreate, "issues",
			fmt.Sprintf("Create milestone %s", milestone.Title),
			MilestoneCreateParams{Title: milestone.Title, State: milestone.State, Description: milestone.Description, DueOn: milestone.DueOn},
			addOpts{deps: []int{repoCreate}})
	}

	return labelIDs, milestoneIDs
}

func (b *builder) buildIssueImport(in inputs, repoCreate int, labelIDs, milestoneIDs map[string]int) {
	for _, issue := range in.issues {
		deps := []int{repoCreate}

		for _, label := range issue.Labels {
			if id, ok := labelIDs[label]; ok {
				deps = append(deps, id)
			}
		}

		if id, ok := milestoneIDs[issue.Milestone]; ok {
			deps = append(deps, id)
		}

		issueID := b.add(ActionIssueCreate, "issues",
			fmt.Sprintf("Create issue from source #%d: %s", issue.SourceIID, issue.Title),
			IssueCreateParams{
				GitLabIssueIID: issue.SourceIID,
				Title:          issue.Title,
				Body:           issue.Body,
				State:          issue.State,
				Labels:         issue.Labels,
				Milestone:      issue.Milestone,
				Assignees:      issue.Assignees,
			}, addOpts{deps: deps})

		for i, comment := range issue.Comments {
			b.add(ActionIssueCommentAdd, "issues",
				fmt.Sprintf("Add comment %d to issue %d", i+1, issue.SourceIID),
				IssueCommentAddParams{GitLabIssueIID: issue.SourceIID, Index: i + 1, Body: comment.Body},
				addOpts{deps: []int{issueID}, extra: fmt.Sprintf("comment-%d", i+1)})
		}
	}
}

func (b *builder) buildPRImport(in inputs, repoPush int, labelIDs map[string]int) {
	for _, mr := range in.mergeRequests {
		deps := []int{repoPush}

		for _, label := range mr.Labels {
			if id, ok := labelIDs[label]; ok {
				deps = append(deps, id)
			}
		}

		prID := b.add(ActionPRCreate, "pull_requests",
			fmt.Sprintf("Create pull request from source !%d: %s", mr.SourceIID, mr.Title),
			PRCreateParams{
				GitLabMRIID: mr.SourceIID,
				Title:       mr.Title,
				Body:        mr.Body,
				Head:        mr.SourceBranch,
				Base:        mr.TargetBranch,
				State:       mr.State,
				Draft:       mr.Draft,
				Merged:      mr.Merged,
				Labels:      mr.Labels,
			}, addOpts{deps: deps})

		for i, comment := range mr.Comments {
			b.add(ActionPRCommentAdd, "pull_requests",
				fmt.Sprintf("Add comment %d to pull request %d", i+1, mr.SourceIID),
				PRCommentAddParams{GitLabMRIID: mr.SourceIID, Index: i + 1, Body: comment.Body},
				addOpts{deps: []int{prID}, extra: fmt.Sprintf("comment-%d", i+1)})
		}
	}
}

func (b *builder) buildReleaseImport(in inputs, repoPush int) {
	for _, release := range in.releases {
		releaseID := b.add(ActionReleaseCreate, "releases",
			fmt.Sprintf("Create release %s", release.TagName),
			ReleaseCreateParams{TagName: release.TagName, Name: release.Name, Body: release.Description},
			addOpts{deps: []int{repoPush}})

		for _, link := range release.Assets.Links {
			if link.LocalPath == "" {
				continue
			}

			b.add(ActionReleaseAssetUpload, "releases",
				fmt.Sprintf("Upload asset %s to release %s", link.Name, release.TagName),
				ReleaseAssetUploadParams{
					TagName:   release.TagName,
					AssetName: link.Name,
					LocalPath: filepath.Join(b.tree.ReleasesDir(), link.LocalPath),
				}, addOpts{deps: []int{releaseID}, extra: link.Name})
		}
	}
}

func (b *builder) buildPackageImport(in inputs, repoCreate int) {
	for _, pkg := range in.packages {
		b.add(ActionPackagePublish, "packages",
			fmt.Sprintf("Publish package %s@%s (manual registry transfer)", pkg.Name, pkg.Version),
			PackagePublishParams{Name: pkg.Name, Version: pkg.Version, PackageType: pkg.PackageType},
			addOpts{deps: []int{repoCreate}, skipIf: skipRegistryTransfer, extra: pkg.Version})
	}
}

func (b *builder) buildGovernance(in inputs, repoCreate, repoPush int, workflowIDs []int) {
	protectionDeps := append([]int{repoPush}, workflowIDs...)

	for _, rule := range in.protections.Branches {
		b.add(ActionProtectionSet, "settings",
			fmt.Sprintf("Protect branch %s", rule.Branch),
			rule, addOpts{deps: protectionDeps})
	}

	for _, tag := range in.protections.Tags {
		b.add(ActionProtectionSet, "settings",
			fmt.Sprintf("Protect tag pattern %s", tag.Pattern),
			TagProtectionParams{Name: tag.Pattern, Scope: "tag"},
			addOpts{deps: []int{repoPush}})
	}

	for _, member := range in.members {
		login, ok := in.userMapping.Login(member.Username)
		if !ok {
			continue
		}

		b.add(ActionCollaboratorAdd, "settings",
			fmt.Sprintf("Add collaborator %s", login),
			CollaboratorAddParams{Name: login, Permission: permissionFor(member.AccessLevel)},
			addOpts{deps: []int{repoCreate}})
	}

	teamIDs := b.buildTeams(in, repoCreate)

	if in.codeowners != "" {
		deps := append([]int{repoPush}, teamIDs...)

		b.add(ActionCodeownersCommit, "settings",
			"Commit generated CODEOWNERS",
			CodeownersCommitParams{
				Name:    "CODEOWNERS",
				Path:    ".github/CODEOWNERS",
				Content: in.codeowners,
				Branch:  b.defaultBranch,
			}, addOpts{deps: deps})
	}
}

func (b *builder) buildTeams(in inputs, repoCreate int) []int {
	seen := map[string]bool{}

	var teamIDs []int

	for _, rule := range in.approvalRules {
		for _, group := range rule.Groups {
			team := filepath.Base(group.FullPath)
			if team == "" || team == "." || seen[team] {
				continue
			}

			seen[team] = true

			teamIDs = append(teamIDs, b.add(ActionTeamCreate, "settings",
				fmt.Sprintf("Create team %s for approval rule %q", team, rule.Name),
				TeamCreateParams{Name: team},
				addOpts{deps: []int{repoCreate}}))
		}
	}

	return teamIDs
}

// permissionFor maps source access levels onto destination roles.
func permissionFor(accessLevel int) string {
	switch {
	case accessLevel >= 50:
		return "admin"
	case accessLevel >= 40:
		return "maintain"
	case accessLevel >= 30:
		return "push"
	default:
		return "pull"
	}
}

func (b *builder) buildIntegrations(in inputs, repoCreate int) {
	for _, hook := range in.webhooks {
		hookID := b.add(ActionWebhookCreate, "webhooks",
			fmt.Sprintf("Create webhook for %s", hook.URL),
			WebhookCreateParams{URL: hook.URL, Events: hook.Events, SSLVerify: hook.SSLVerify},
			addOpts{deps: []int{repoCreate}})

		if hook.SecretRequired {
			b.inputs = append(b.inputs, UserInput{
				Type:     "webhook_secret",
				Key:      hook.URL,
				Scope:    "webhook",
				Reason:   "source webhook carried a token that cannot be exported",
				Required: true,
			})

			b.add(ActionWebhookConfigure, "webhooks",
				fmt.Sprintf("Set secret on webhook for %s", hook.URL),
				WebhookConfigureParams{URL: hook.URL, Secret: UserInputValue},
				addOpts{deps: []int{hookID}, requiresInput: true, extra: "secret"})

			continue
		}

		b.inputs = append(b.inputs, UserInput{
			Type:     "webhook_secret",
			Key:      hook.URL,
			Scope:    "webhook",
			Reason:   "no source token; a random secret can be generated",
			Required: false,
			Fallback: "generate_random",
		})
	}
}

func (b *builder) buildPreservation(in inputs, repoPush int) {
	files := []struct {
		path string
		name string
	}{
		{b.tree.GapsPath(), "conversion_gaps.json"},
		{b.tree.GapsMarkdownPath(), "conversion_gaps.md"},
		{b.tree.RegistryScriptPath(), "registry_migration.sh"},
		{b.tree.UserMappingPath(), "user_mapping.json"},
		{b.tree.PipelineHistoryArchivePath(), "pipeline_history.json.lz4"},
	}

	for _, file := range files {
		if !fileExists(file.path) {
			continue
		}

		b.add(ActionArtifactCommit, "preservation",
			fmt.Sprintf("Commit %s to the migration archive", file.name),
			ArtifactCommitParams{
				Name:       file.name,
				SourcePath: file.path,
				DestPath:   archivePrefix + "/" + file.name,
				Branch:     b.defaultBranch,
			}, addOpts{deps: []int{repoPush}})
	}

	if in.issueAttachments {
		b.add(ActionAttachmentsCommit, "preservation",
			"Commit issue attachments to the migration archive",
			AttachmentsCommitParams{
				Name:      "issue-attachments",
				SourceDir: b.tree.IssueAttachmentsDir(),
				DestPath:  archivePrefix + "/issues/attachments",
				Branch:    b.defaultBranch,
			}, addOpts{deps: []int{repoPush}})
	}

	if in.mrAttachments {
		b.add(ActionAttachmentsCommit, "preservation",
			"Commit merge request attachments to the migration archive",
			AttachmentsCommitParams{
				Name:      "mr-attachments",
				SourceDir: b.tree.MRAttachmentsDir(),
				DestPath:  archivePrefix + "/merge_requests/attachments",
				Branch:    b.defaultBranch,
			}, addOpts{deps: []int{repoPush}, extra: "merge_requests"})
	}
}
