package github

import "time"

// Repo is a destination repository.
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	CloneURL      string `json:"clone_url"`
	Archived      bool   `json:"archived"`

	HasIssues   bool `json:"has_issues"`
	HasWiki     bool `json:"has_wiki"`
	HasProjects bool `json:"has_projects"`
}

// NewRepo is the repository creation request.
type NewRepo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
	HasIssues   bool   `json:"has_issues"`
	HasWiki     bool   `json:"has_wiki"`
	AutoInit    bool   `json:"auto_init"`
}

// RepoSettings is the repository update request.
type RepoSettings struct {
	Description   *string `json:"description,omitempty"`
	DefaultBranch *string `json:"default_branch,omitempty"`
	Private       *bool   `json:"private,omitempty"`
	HasIssues     *bool   `json:"has_issues,omitempty"`
	HasWiki       *bool   `json:"has_wiki,omitempty"`
	Archived      *bool   `json:"archived,omitempty"`
}

// Label is an issue label.
type Label struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// Milestone is a repository milestone.
type Milestone struct {
	Number      int    `json:"number,omitempty"`
	Title       string `json:"title"`
	State       string `json:"state,omitempty"`
	Description string `json:"description,omitempty"`
	DueOn       string `json:"due_on,omitempty"`
}

// NewIssue is the issue creation request.
type NewIssue struct {
	Title     string   `json:"title"`
	Body      string   `json:"body,omitempty"`
	Labels    []string `json:"labels,omitempty"`
	Milestone int      `json:"milestone,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// Issue is a created issue.
type Issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

// NewPull is the pull request creation request.
type NewPull struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Draft bool   `json:"draft,omitempty"`
}

// Pull is a created pull request.
type Pull struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

// NewRelease is the release creation request.
type NewRelease struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name,omitempty"`
	Body       string `json:"body,omitempty"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// Release is a created release.
type Release struct {
	ID        int64  `json:"id"`
	TagName   string `json:"tag_name"`
	Name      string `json:"name"`
	UploadURL string `json:"upload_url"`
	HTMLURL   string `json:"html_url"`
}

// ReleaseAsset is an uploaded release asset.
type ReleaseAsset struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Environment is a deployment environment.
type Environment struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PublicKey is the sealed-box key secrets are encrypted against.
type PublicKey struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"`
}

// SecretMeta is secret metadata; values are never readable.
type SecretMeta struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Variable is an actions variable.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WebhookConfig is the delivery configuration of a webhook.
type WebhookConfig struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Secret      string `json:"secret,omitempty"`
	InsecureSSL string `json:"insecure_ssl"`
}

// NewWebhook is the webhook creation request.
type NewWebhook struct {
	Name   string        `json:"name"`
	Active bool          `json:"active"`
	Events []string      `json:"events,omitempty"`
	Config WebhookConfig `json:"config"`
}

// Webhook is a created webhook.
type Webhook struct {
	ID     int64         `json:"id"`
	Active bool          `json:"active"`
	Events []string      `json:"events"`
	Config WebhookConfig `json:"config"`
}

// RequiredReviews is the pull request review part of branch protection.
type RequiredReviews struct {
	RequiredApprovingReviewCount int  `json:"required_approving_review_count"`
	RequireCodeOwnerReviews      bool `json:"require_code_owner_reviews"`
}

// RequiredChecks is the status check part of branch protection.
type RequiredChecks struct {
	Strict   bool     `json:"strict"`
	Contexts []string `json:"contexts"`
}

// BranchProtection is the protection update request. The API requires
// every top-level field to be present, null meaning unset.
type BranchProtection struct {
	RequiredStatusChecks       *RequiredChecks  `json:"required_status_checks"`
	EnforceAdmins              bool             `json:"enforce_admins"`
	RequiredPullRequestReviews *RequiredReviews `json:"required_pull_request_reviews"`
	Restrictions               *struct{}        `json:"restrictions"`
	AllowForcePushes           bool             `json:"allow_force_pushes"`
	AllowDeletions             bool             `json:"allow_deletions"`
}

// DeployKey is a repository deploy key.
type DeployKey struct {
	ID       int64  `json:"id,omitempty"`
	Title    string `json:"title"`
	Key      string `json:"key"`
	ReadOnly bool   `json:"read_only"`
}

// Collaborator is a repository collaborator.
type Collaborator struct {
	Login    string `json:"login"`
	RoleName string `json:"role_name,omitempty"`
}

// Team is an organization team.
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// OrgMember is one member of the destination organization.
type OrgMember struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Workflow is an actions workflow.
type Workflow struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	State string `json:"state"`
}

// Branch is a repository branch.
type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}

// Tag is a repository tag.
type Tag struct {
	Name string `json:"name"`
}
