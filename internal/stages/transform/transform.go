// Package transform converts exported source artifacts into
// destination-ready form: workflows, rewritten content, user and event
// mappings, protection rules, and the conversion gap report.
package transform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/stages/export"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// Stage converts one project's export tree into transform artifacts.
type Stage struct {
	Logger *slog.Logger

	// Org and Repo name the destination target.
	Org  string
	Repo string

	// OrgMembers is the destination member list used for user mapping.
	OrgMembers []github.OrgMember

	// ManualUserMappings override automatic matching per source username.
	ManualUserMappings map[string]string

	// SourceRegistryHost is the source container registry, e.g.
	// registry.gitlab.com.
	SourceRegistryHost string
}

// Output is everything the plan stage consumes.
type Output struct {
	UserMapping   UserMapping     `json:"user_mapping"`
	Workflows     []Workflow      `json:"workflows"`
	Issues        []Issue         `json:"issues"`
	MergeRequests []MergeRequest  `json:"merge_requests"`
	Labels        []Label         `json:"labels"`
	Milestones    []Milestone     `json:"milestones"`
	Protections   ProtectionRules `json:"protections"`
	Webhooks      []Webhook       `json:"webhooks"`
	Codeowners    string          `json:"codeowners,omitempty"`
	Gaps          []Gap           `json:"gaps"`
}

// CIJobs returns the converted CI job names across all workflows.
func (o Output) CIJobs() []string {
	var jobs []string

	for _, workflow := range o.Workflows {
		jobs = append(jobs, workflow.Jobs...)
	}

	return jobs
}

// Run converts the export tree, writing every transform artifact and
// returning the combined output.
func (s *Stage) Run(ctx context.Context, tree artifacts.Tree, project gitlab.Project) (Output, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mkdirErr := os.MkdirAll(tree.TransformDir(), 0o755)
	if mkdirErr != nil {
		return Output{}, fmt.Errorf("create transform dir: %w", mkdirErr)
	}

	in, readErr := s.readInputs(tree)
	if readErr != nil {
		return Output{}, readErr
	}

	gaps := &GapSet{}
	out := Output{}

	out.UserMapping = MapUsers(collectSourceUsers(in), s.OrgMembers, s.ManualUserMappings)

	logger.Info("user mapping built",
		"total", out.UserMapping.Stats.Total,
		"mapped", out.UserMapping.Stats.Mapped)

	for _, username := range out.UserMapping.Unmapped {
		gaps.Addf("users", "unmapped_user", SeverityInfo,
			"source user %s has no destination mapping; content keeps the source reference", username)
	}

	registry := &registryRewriter{
		sourceImage: s.SourceRegistryHost + "/" + project.PathWithNamespace,
		destImage:   "ghcr.io/" + s.Org + "/" + s.Repo,
	}

	if ctx.Err() != nil {
		return out, ctx.Err()
	}

	workflowErr := s.convertWorkflows(tree, project, in, registry, gaps, &out)
	if workflowErr != nil {
		return out, workflowErr
	}

	contentRewriter := &rewriter{
		users:       out.UserMapping,
		attachments: mergeMappings(in.issueAttachments, in.mrAttachments),
	}

	out.Issues = contentRewriter.rewriteIssues(in.issues)
	out.MergeRequests = contentRewriter.rewriteMergeRequests(in.mergeRequests)
	out.Labels = convertLabels(in.labels)
	out.Milestones = convertMilestones(in.milestones)
	out.Protections = convertProtections(in.protectedBranches, in.protectedTags, in.approvalRules, out.CIJobs(), gaps)
	out.Codeowners = buildCodeowners(in.approvalRules, s.Org, out.UserMapping, gaps)
	out.Webhooks = convertWebhooks(in.webhooks, gaps)

	s.recordExportGaps(in, gaps)

	out.Gaps = gaps.Gaps()

	writeErr := s.writeOutputs(tree, registry, out)
	if writeErr != nil {
		return out, writeErr
	}

	gapErr := gaps.WriteReports(tree)
	if gapErr != nil {
		return out, gapErr
	}

	logger.Info("transform finished",
		"issues", len(out.Issues),
		"merge_requests", len(out.MergeRequests),
		"workflows", len(out.Workflows),
		"gaps", len(out.Gaps))

	return out, nil
}

// inputs bundles everything read from the export tree.
type inputs struct {
	issues            []export.ExportedIssue
	mergeRequests     []export.ExportedMergeRequest
	issueAttachments  map[string]string
	mrAttachments     map[string]string
	labels            []gitlab.Label
	milestones        []gitlab.Milestone
	members           []gitlab.Member
	protectedBranches []gitlab.ProtectedBranch
	protectedTags     []gitlab.ProtectedTag
	approvalRules     []gitlab.ApprovalRule
	webhooks          []gitlab.Webhook
	packages          []gitlab.Package
	ciConfig          []byte
	hasLFS            bool
}

func (s *Stage) readInputs(tree artifacts.Tree) (inputs, error) {
	in := inputs{
		issueAttachments: map[string]string{},
		mrAttachments:    map[string]string{},
	}

	reads := []struct {
		path string
		into any
	}{
		{tree.IssuesPath(), &in.issues},
		{tree.MergeRequestsPath(), &in.mergeRequests},
		{tree.IssueAttachmentMetaPath(), &in.issueAttachments},
		{tree.MRAttachmentMetaPath(), &in.mrAttachments},
		{tree.SourceLabelsPath(), &in.labels},
		{tree.SourceMilestonesPath(), &in.milestones},
		{tree.MembersPath(), &in.members},
		{tree.ProtectedBranchesPath(), &in.protectedBranches},
		{tree.ProtectedTagsPath(), &in.protectedTags},
		{tree.ApprovalRulesPath(), &in.approvalRules},
		{tree.WebhooksPath(), &in.webhooks},
		{tree.PackagesPath(), &in.packages},
	}

	for _, read := range reads {
		err := persist.ReadJSON(read.path, read.into)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return in, fmt.Errorf("read %s: %w", filepath.Base(read.path), err)
		}
	}

	ciConfig, ciErr := os.ReadFile(tree.CIConfigPath())
	if ciErr == nil {
		in.ciConfig = ciConfig
	}

	_, lfsErr := os.Stat(tree.LFSSentinelPath())
	in.hasLFS = lfsErr == nil

	return in, nil
}

// collectSourceUsers gathers every distinct user referenced by the
// export: members, authors, assignees, and note authors.
func collectSourceUsers(in inputs) []gitlab.User {
	var users []gitlab.User

	seen := map[string]bool{}

	add := func(user gitlab.User) {
		if user.Username == "" || seen[user.Username] {
			return
		}

		seen[user.Username] = true

		users = append(users, user)
	}

	for _, member := range in.members {
		add(gitlab.User{ID: member.ID, Username: member.Username, Name: member.Name, Email: member.Email})
	}

	for _, item := range in.issues {
		add(item.Issue.Author)

		for _, assignee := range item.Issue.Assignees {
			add(assignee)
		}

		for _, note := range item.Notes {
			add(note.Author)
		}
	}

	for _, item := range in.mergeRequests {
		add(item.MergeRequest.Author)

		for _, assignee := range item.MergeRequest.Assignees {
			add(assignee)
		}

		for _, discussion := range item.Discussions {
			for _, note := range discussion.Notes {
				add(note.Author)
			}
		}
	}

	return users
}

func (s *Stage) convertWorkflows(tree artifacts.Tree, project gitlab.Project, in inputs, registry *registryRewriter, gaps *GapSet, out *Output) error {
	if in.ciConfig == nil {
		return nil
	}

	converter := &ciConverter{
		defaultBranch: project.DefaultBranch,
		registry:      registry,
	}

	workflow, err := converter.convert(in.ciConfig, gaps)
	if err != nil {
		gaps.Addf("ci_cd", "parse_error", SeverityBlocking, "ci config did not parse: %s", err)

		return nil
	}

	mkdirErr := os.MkdirAll(tree.WorkflowsDir(), 0o755)
	if mkdirErr != nil {
		return fmt.Errorf("create workflows dir: %w", mkdirErr)
	}

	writeErr := os.WriteFile(filepath.Join(tree.WorkflowsDir(), workflow.FileName), []byte(workflow.Content), 0o644)
	if writeErr != nil {
		return fmt.Errorf("write workflow %s: %w", workflow.FileName, writeErr)
	}

	out.Workflows = append(out.Workflows, workflow)

	return nil
}

// recordExportGaps surfaces source features the destination cannot
// receive directly.
func (s *Stage) recordExportGaps(in inputs, gaps *GapSet) {
	if len(in.packages) > 0 {
		gaps.Addf("packages", "registry_binaries", SeverityWarning,
			"%d package(s) exported as metadata only; publish binaries to the destination registry manually", len(in.packages))
	}

	if in.hasLFS {
		gaps.Add(Gap{
			Component:  "repository",
			Construct:  "lfs_objects",
			Severity:   SeverityWarning,
			Detail:     "repository uses LFS; the bundle carries pointers only",
			Suggestion: "Run `git lfs fetch --all` in the mirror and `git lfs push --all` after the repository push.",
		})
	}

	for _, rule := range in.approvalRules {
		if rule.Name == "" || len(rule.Users)+len(rule.Groups) > 0 {
			continue
		}

		gaps.Addf("protections", "approval_rule", SeverityInfo,
			"approval rule %q names no users or groups; only its count transfers", rule.Name)
	}
}

func (s *Stage) writeOutputs(tree artifacts.Tree, registry *registryRewriter, out Output) error {
	writes := []struct {
		path string
		data any
	}{
		{tree.UserMappingPath(), out.UserMapping},
		{tree.TransformedIssuesPath(), out.Issues},
		{tree.TransformedMRsPath(), out.MergeRequests},
		{tree.TransformedLabelsPath(), out.Labels},
		{tree.TransformedMilestonesPath(), out.Milestones},
		{tree.ProtectionRulesPath(), out.Protections},
		{tree.TransformedWebhooksPath(), out.Webhooks},
	}

	for _, write := range writes {
		err := persist.WriteJSON(write.path, write.data)
		if err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(write.path), err)
		}
	}

	if out.Codeowners != "" {
		err := os.WriteFile(tree.CodeownersPath(), []byte(out.Codeowners), 0o644)
		if err != nil {
			return fmt.Errorf("write codeowners: %w", err)
		}
	}

	scriptErr := os.WriteFile(tree.RegistryScriptPath(), []byte(registry.migrationScript()), 0o755)
	if scriptErr != nil {
		return fmt.Errorf("write registry script: %w", scriptErr)
	}

	return nil
}

func mergeMappings(maps ...map[string]string) map[string]string {
	merged := map[string]string{}

	for _, m := range maps {
		for key, value := range m {
			merged[key] = value
		}
	}

	return merged
}
