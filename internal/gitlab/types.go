package gitlab

import "time"

// Project is a GitLab project as returned by the projects API.
type Project struct {
	ID                int64      `json:"id"`
	PathWithNamespace string     `json:"path_with_namespace"`
	Path              string     `json:"path"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	DefaultBranch     string     `json:"default_branch"`
	Visibility        string     `json:"visibility"`
	HTTPURLToRepo     string     `json:"http_url_to_repo"`
	Archived          bool       `json:"archived"`
	StarCount         int        `json:"star_count"`
	LastActivityAt    *time.Time `json:"last_activity_at"`

	IssuesEnabled        bool `json:"issues_enabled"`
	MergeRequestsEnabled bool `json:"merge_requests_enabled"`
	WikiEnabled          bool `json:"wiki_enabled"`
	JobsEnabled          bool `json:"jobs_enabled"`
	LFSEnabled           bool `json:"lfs_enabled"`
	PackagesEnabled      bool `json:"packages_enabled"`
	ContainerRegistry    bool `json:"container_registry_enabled"`
}

// Branch is a repository branch.
type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	Default   bool   `json:"default"`
}

// Tag is a repository tag.
type Tag struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// User identifies a GitLab account referenced from entities.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	State    string `json:"state,omitempty"`
}

// Issue is a GitLab issue with its core metadata.
type Issue struct {
	IID         int64      `json:"iid"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	State       string     `json:"state"`
	Labels      []string   `json:"labels"`
	Milestone   *Milestone `json:"milestone"`
	Author      User       `json:"author"`
	Assignees   []User     `json:"assignees"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at"`
	DueDate     string     `json:"due_date"`
	Confidential bool      `json:"confidential"`
	UserNotesCount int     `json:"user_notes_count"`
}

// Note is a comment on an issue or merge request.
type Note struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	Author    User      `json:"author"`
	System    bool      `json:"system"`
	CreatedAt time.Time `json:"created_at"`
}

// Discussion is a threaded group of merge request notes.
type Discussion struct {
	ID    string `json:"id"`
	Notes []Note `json:"notes"`
}

// MergeRequest is a GitLab merge request.
type MergeRequest struct {
	IID          int64      `json:"iid"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	State        string     `json:"state"`
	SourceBranch string     `json:"source_branch"`
	TargetBranch string     `json:"target_branch"`
	Labels       []string   `json:"labels"`
	Milestone    *Milestone `json:"milestone"`
	Author       User       `json:"author"`
	Assignees    []User     `json:"assignees"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	MergedAt     *time.Time `json:"merged_at"`
	ClosedAt     *time.Time `json:"closed_at"`
	Draft        bool       `json:"draft"`
	SHA          string     `json:"sha"`
}

// Approvals records merge request approval state.
type Approvals struct {
	ApprovalsRequired int    `json:"approvals_required"`
	ApprovalsLeft     int    `json:"approvals_left"`
	ApprovedBy        []struct {
		User User `json:"user"`
	} `json:"approved_by"`
}

// Milestone is a GitLab milestone.
type Milestone struct {
	ID          int64  `json:"id"`
	IID         int64  `json:"iid"`
	Title       string `json:"title"`
	Description string `json:"description"`
	State       string `json:"state"`
	DueDate     string `json:"due_date"`
}

// Label is a project label.
type Label struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// Release is a GitLab release with its asset links.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Assets      struct {
		Links []ReleaseAssetLink `json:"links"`
	} `json:"assets"`
}

// ReleaseAssetLink is a downloadable release asset.
type ReleaseAssetLink struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	// LocalPath is filled by export after downloading the asset.
	LocalPath string `json:"local_path,omitempty"`
}

// Package is a registry package's metadata.
type Package struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	PackageType string `json:"package_type"`
}

// Webhook is a project hook. The token is write-only in the API and is
// masked before the hook touches disk.
type Webhook struct {
	ID                  int64  `json:"id"`
	URL                 string `json:"url"`
	Token               string `json:"token,omitempty"`
	PushEvents          bool   `json:"push_events"`
	TagPushEvents       bool   `json:"tag_push_events"`
	IssuesEvents        bool   `json:"issues_events"`
	MergeRequestsEvents bool   `json:"merge_requests_events"`
	NoteEvents          bool   `json:"note_events"`
	PipelineEvents      bool   `json:"pipeline_events"`
	WikiPageEvents      bool   `json:"wiki_page_events"`
	ReleasesEvents      bool   `json:"releases_events"`
	// Events below exist only on the source side; they are kept so
	// transform can report them instead of dropping them at decode.
	JobEvents                bool `json:"job_events"`
	DeploymentEvents         bool `json:"deployment_events"`
	ConfidentialIssuesEvents bool `json:"confidential_issues_events"`
	ConfidentialNoteEvents   bool `json:"confidential_note_events"`
	EnableSSLVerification    bool `json:"enable_ssl_verification"`
}

// Schedule is a pipeline schedule.
type Schedule struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Cron        string `json:"cron"`
	Ref         string `json:"ref"`
	Active      bool   `json:"active"`
}

// Environment is a CI/CD environment.
type Environment struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ExternalURL string `json:"external_url"`
	State       string `json:"state"`
}

// Variable is a CI/CD variable. Values of masked variables are not
// returned by the API and surface as user-input requirements downstream.
type Variable struct {
	Key              string `json:"key"`
	Value            string `json:"value,omitempty"`
	Masked           bool   `json:"masked"`
	Protected        bool   `json:"protected"`
	EnvironmentScope string `json:"environment_scope"`
	VariableType     string `json:"variable_type"`
}

// ProtectedBranch is a branch protection rule.
type ProtectedBranch struct {
	Name             string        `json:"name"`
	PushAccessLevels []AccessLevel `json:"push_access_levels"`
	MergeAccessLevels []AccessLevel `json:"merge_access_levels"`
	UnprotectAccessLevels []AccessLevel `json:"unprotect_access_levels"`
	AllowForcePush   bool          `json:"allow_force_push"`
	CodeOwnerApprovalRequired bool `json:"code_owner_approval_required"`
}

// AccessLevel is one access grant within a protection rule.
type AccessLevel struct {
	AccessLevel            int    `json:"access_level"`
	AccessLevelDescription string `json:"access_level_description"`
	UserID                 int64  `json:"user_id,omitempty"`
	GroupID                int64  `json:"group_id,omitempty"`
}

// ProtectedTag is a tag protection rule.
type ProtectedTag struct {
	Name string `json:"name"`
	CreateAccessLevels []AccessLevel `json:"create_access_levels"`
}

// DeployKey is a repository deploy key. The private part never leaves
// the source; the public key plus metadata is exported with masking.
type DeployKey struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Key     string `json:"key"`
	CanPush bool   `json:"can_push"`
}

// Member is a project or group member.
type Member struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	AccessLevel int    `json:"access_level"`
}

// ApprovalRule is a merge request approval rule.
type ApprovalRule struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	ApprovalsRequired int    `json:"approvals_required"`
	Users             []User `json:"users"`
	Groups            []struct {
		FullPath string `json:"full_path"`
	} `json:"groups"`
}

// Pipeline is one CI pipeline record.
type Pipeline struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	Ref       string    `json:"ref"`
	SHA       string    `json:"sha"`
	CreatedAt time.Time `json:"created_at"`
}
