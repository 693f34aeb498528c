// Package apply executes a migration plan against the destination
// forge: dependency-gated, idempotent, resumable at action granularity,
// with dry-run simulation and compensating rollback.
package apply

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// Forge is the destination write surface actions execute against.
// *github.Client satisfies it; tests substitute a recording fake.
type Forge interface {
	CreateRepo(ctx context.Context, req github.NewRepo) (github.Repo, error)
	RepoExists(ctx context.Context, repo string) (bool, error)
	UpdateRepo(ctx context.Context, repo string, settings github.RepoSettings) error
	DeleteRepo(ctx context.Context, repo string) error

	CreateLabel(ctx context.Context, repo string, label github.Label) error
	DeleteLabel(ctx context.Context, repo, name string) error
	CreateMilestone(ctx context.Context, repo string, milestone github.Milestone) (github.Milestone, error)
	DeleteMilestone(ctx context.Context, repo string, number int) error
	CreateIssue(ctx context.Context, repo string, issue github.NewIssue) (github.Issue, error)
	CloseIssue(ctx context.Context, repo string, number int) error
	CreateIssueComment(ctx context.Context, repo string, number int, body string) error
	CreatePull(ctx context.Context, repo string, pull github.NewPull) (github.Pull, error)
	ClosePull(ctx context.Context, repo string, number int) error

	CreateRelease(ctx context.Context, repo string, release github.NewRelease) (github.Release, error)
	DeleteRelease(ctx context.Context, repo string, releaseID int64) error
	ReleaseByTag(ctx context.Context, repo, tag string) (github.Release, error)
	UploadReleaseAsset(ctx context.Context, uploadURL, assetName, localPath string) (github.ReleaseAsset, error)
	DeleteReleaseAsset(ctx context.Context, repo string, assetID int64) error

	CreateEnvironment(ctx context.Context, repo, name string) error
	DeleteEnvironment(ctx context.Context, repo, name string) error
	SetRepoSecret(ctx context.Context, repo, name, value string) error
	SetEnvironmentSecret(ctx context.Context, repo, environment, name, value string) error
	DeleteRepoSecret(ctx context.Context, repo, name string) error
	DeleteEnvironmentSecret(ctx context.Context, repo, environment, name string) error
	SetVariable(ctx context.Context, repo, name, value string) error
	DeleteVariable(ctx context.Context, repo, name string) error

	CreateWebhook(ctx context.Context, repo string, req github.NewWebhook) (github.Webhook, error)
	UpdateWebhook(ctx context.Context, repo string, hookID int64, req github.NewWebhook) error
	DeleteWebhook(ctx context.Context, repo string, hookID int64) error
	SetBranchProtection(ctx context.Context, repo, branch string, protection github.BranchProtection) error
	DeleteBranchProtection(ctx context.Context, repo, branch string) error
	AddCollaborator(ctx context.Context, repo, username, permission string) error
	RemoveCollaborator(ctx context.Context, repo, username string) error
	CreateTeam(ctx context.Context, name string) (github.Team, error)
	DeleteTeam(ctx context.Context, slug string) error

	CommitFile(ctx context.Context, repo, path, branch, message string, content []byte) (string, error)
}

var _ Forge = (*github.Client)(nil)

// Pusher runs the git subprocess side of apply.
// *github.PushRunner satisfies it.
type Pusher interface {
	CloneFromBundle(ctx context.Context, bundlePath, destDir string) error
	PushMirror(ctx context.Context, mirrorDir, repoURL string) error
	PushWiki(ctx context.Context, wikiDir, wikiURL string) error
}

var _ Pusher = (*github.PushRunner)(nil)

// ErrUserInputMissing indicates a required operator value was not
// provided before apply.
var ErrUserInputMissing = errors.New("required user input missing")

// Context is the shared execution state handed to every action.
type Context struct {
	Forge  Forge
	Pusher Pusher

	Org           string
	Repo          string
	DefaultBranch string

	DryRun bool

	// Inputs holds operator-supplied values keyed by the user-input key
	// from the plan (secret name or webhook URL). Values never land in
	// outputs, rollback data, or logs.
	Inputs map[string]string

	// Flags drives skip_if predicates.
	Flags map[string]bool

	IDs *IDMappings

	Logger *slog.Logger
}

// RepoURL is the HTTPS clone URL of the destination repository.
func (c *Context) RepoURL() string {
	return "https://github.com/" + c.Org + "/" + c.Repo + ".git"
}

// WikiURL is the HTTPS clone URL of the destination wiki.
func (c *Context) WikiURL() string {
	return "https://github.com/" + c.Org + "/" + c.Repo + ".wiki.git"
}

// resolveInput substitutes the user-input placeholder with the
// operator-provided value for key.
func (c *Context) resolveInput(key, value string) (string, error) {
	if value != userInputValue {
		return value, nil
	}

	if provided, ok := c.Inputs[key]; ok && provided != "" {
		return provided, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUserInputMissing, key)
}

// IDMappings is the entity-kind → source-id → destination-id table
// shared by all actions of one project. Safe for concurrent use in
// parallel-safe phases.
type IDMappings struct {
	mu    sync.Mutex
	table map[string]map[string]int64
}

// NewIDMappings creates an empty mapping table.
func NewIDMappings() *IDMappings {
	return &IDMappings{table: map[string]map[string]int64{}}
}

// LoadIDMappings reads a previously persisted table, returning an empty
// one when the file does not exist.
func LoadIDMappings(path string) (*IDMappings, error) {
	m := NewIDMappings()

	err := persist.ReadJSON(path, &m.table)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read id mappings: %w", err)
	}

	if m.table == nil {
		m.table = map[string]map[string]int64{}
	}

	return m, nil
}

// Set records one source→destination id pair.
func (m *IDMappings) Set(kind, source string, dest int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.table[kind] == nil {
		m.table[kind] = map[string]int64{}
	}

	m.table[kind][source] = dest
}

// Get looks up the destination id for a source entity.
func (m *IDMappings) Get(kind, source string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dest, ok := m.table[kind][source]

	return dest, ok
}

// Snapshot returns a deep copy of the table for persistence.
func (m *IDMappings) Snapshot() map[string]map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]map[string]int64, len(m.table))

	for kind, entries := range m.table {
		copied := make(map[string]int64, len(entries))
		for source, dest := range entries {
			copied[source] = dest
		}

		out[kind] = copied
	}

	return out
}
