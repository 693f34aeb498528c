package plan

import "github.com/Sumatoshi-tech/gitport/internal/stages/transform"

// Typed parameter records, one per action kind. Field names double as
// the entity-identifier keys the idempotency key derives from.

// RepoCreateParams creates the destination repository.
type RepoCreateParams struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
}

// RepoPushParams pushes the exported bundle.
type RepoPushParams struct {
	Branch     string `json:"branch"`
	BundlePath string `json:"bundle_path"`
}

// RepoConfigureParams applies project-level toggles.
type RepoConfigureParams struct {
	Name          string `json:"name"`
	HasIssues     bool   `json:"has_issues"`
	HasWiki       bool   `json:"has_wiki"`
	Archived      bool   `json:"archived"`
	DefaultBranch string `json:"default_branch"`
}

// LFSConfigureParams marks the repository for a manual LFS object sync.
type LFSConfigureParams struct {
	Name string `json:"name"`
}

// WorkflowCommitParams commits one converted workflow file.
type WorkflowCommitParams struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
}

// EnvironmentCreateParams creates a deployment environment.
type EnvironmentCreateParams struct {
	Name string `json:"name"`
}

// SecretSetParams sets a repository or environment secret.
type SecretSetParams struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Scope       string `json:"scope"`
	Environment string `json:"environment,omitempty"`
}

// VariableSetParams sets a plain actions variable.
type VariableSetParams struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ScheduleCreateParams commits a cron-triggered workflow stub.
type ScheduleCreateParams struct {
	Name   string `json:"name"`
	Cron   string `json:"cron"`
	Ref    string `json:"ref"`
	Active bool   `json:"active"`
}

// LabelCreateParams creates one label.
type LabelCreateParams struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// MilestoneCreateParams creates one milestone.
type MilestoneCreateParams struct {
	Title       string `json:"title"`
	State       string `json:"state"`
	Description string `json:"description,omitempty"`
	DueOn       string `json:"due_on,omitempty"`
}

// IssueCreateParams creates one migrated issue.
type IssueCreateParams struct {
	GitLabIssueIID int64    `json:"gitlab_issue_iid"`
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	State          string   `json:"state"`
	Labels         []string `json:"labels,omitempty"`
	Milestone      string   `json:"milestone,omitempty"`
	Assignees      []string `json:"assignees,omitempty"`
}

// IssueCommentAddParams appends one migrated issue comment.
type IssueCommentAddParams struct {
	GitLabIssueIID int64  `json:"gitlab_issue_iid"`
	Index          int    `json:"index"`
	Body           string `json:"body"`
}

// PRCreateParams creates one migrated pull request.
type PRCreateParams struct {
	GitLabMRIID int64    `json:"gitlab_mr_iid"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Head        string   `json:"head"`
	Base        string   `json:"base"`
	State       string   `json:"state"`
	Draft       bool     `json:"draft"`
	Merged      bool     `json:"merged"`
	Labels      []string `json:"labels,omitempty"`
}

// PRCommentAddParams appends one migrated pull request comment.
type PRCommentAddParams struct {
	GitLabMRIID int64  `json:"gitlab_mr_iid"`
	Index       int    `json:"index"`
	Body        string `json:"body"`
}

// WikiPushParams pushes the exported wiki clone.
type WikiPushParams struct {
	Name         string `json:"name"`
	WikiRepoPath string `json:"wiki_repo_path"`
}

// WikiCommitParams seeds a wiki page directly when no wiki clone
// exists but content must be preserved.
type WikiCommitParams struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ReleaseCreateParams creates one release.
type ReleaseCreateParams struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name,omitempty"`
	Body    string `json:"body,omitempty"`
}

// ReleaseAssetUploadParams uploads one downloaded release asset.
type ReleaseAssetUploadParams struct {
	TagName   string `json:"tag_name"`
	AssetName string `json:"asset_name"`
	LocalPath string `json:"local_path"`
}

// PackagePublishParams describes a package that must be re-published
// manually; the action is skip-gated by default.
type PackagePublishParams struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	PackageType string `json:"package_type"`
}

// TagProtectionParams protects a tag pattern.
type TagProtectionParams struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

// CollaboratorAddParams invites one mapped member.
type CollaboratorAddParams struct {
	Name       string `json:"name"`
	Permission string `json:"permission"`
}

// TeamCreateParams creates an org team referenced by CODEOWNERS.
type TeamCreateParams struct {
	Name string `json:"name"`
}

// CodeownersCommitParams commits the generated CODEOWNERS file.
type CodeownersCommitParams struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
}

// WebhookCreateParams creates one translated webhook.
type WebhookCreateParams struct {
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	Secret    string   `json:"secret,omitempty"`
	SSLVerify bool     `json:"ssl_verify"`
}

// WebhookConfigureParams sets the secret on an already created hook.
type WebhookConfigureParams struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

// ArtifactCommitParams commits one preservation file to the migration
// archive directory.
type ArtifactCommitParams struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
	DestPath   string `json:"dest_path"`
	Branch     string `json:"branch"`
}

// AttachmentsCommitParams commits a whole attachments directory.
type AttachmentsCommitParams struct {
	Name      string `json:"name"`
	SourceDir string `json:"source_dir"`
	DestPath  string `json:"dest_path"`
	Branch    string `json:"branch"`
}

// ProtectionParams wraps a converted branch rule; the embedded branch
// field is the entity identifier.
type ProtectionParams = transform.BranchRule
