package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sumatoshi-tech/gitport/internal/forge"
)

// CreateRepo creates a repository under the configured owner. The
// org endpoint is tried first; a 404 means the owner is a user account
// and the user endpoint is used instead.
func (c *Client) CreateRepo(ctx context.Context, req NewRepo) (Repo, error) {
	var repo Repo

	err := c.doJSON(ctx, http.MethodPost, "orgs/"+c.owner+"/repos", req, &repo)
	if err == nil {
		return repo, nil
	}

	if statusCode(err) != http.StatusNotFound {
		return Repo{}, err
	}

	userErr := c.doJSON(ctx, http.MethodPost, "user/repos", req, &repo)
	if userErr != nil {
		return Repo{}, userErr
	}

	return repo, nil
}

// GetRepo fetches a repository.
func (c *Client) GetRepo(ctx context.Context, repo string) (Repo, error) {
	var out Repo

	err := c.doJSON(ctx, http.MethodGet, c.repoPath(repo), nil, &out)
	if err != nil {
		return Repo{}, err
	}

	return out, nil
}

// RepoExists probes whether the repository already exists.
func (c *Client) RepoExists(ctx context.Context, repo string) (bool, error) {
	_, err := c.GetRepo(ctx, repo)
	if err == nil {
		return true, nil
	}

	if forge.AsError(forgeName, err).Category == forge.CategoryNotFound {
		return false, nil
	}

	return false, err
}

// UpdateRepo patches repository settings.
func (c *Client) UpdateRepo(ctx context.Context, repo string, settings RepoSettings) error {
	return c.doJSON(ctx, http.MethodPatch, c.repoPath(repo), settings, nil)
}

// DeleteRepo removes a repository. Used only by rollback.
func (c *Client) DeleteRepo(ctx context.Context, repo string) error {
	return c.doJSON(ctx, http.MethodDelete, c.repoPath(repo), nil, nil)
}

// AddCollaborator invites a user to the repository with a permission
// of pull, push, maintain, or admin.
func (c *Client) AddCollaborator(ctx context.Context, repo, username, permission string) error {
	payload := map[string]string{"permission": permission}

	return c.doJSON(ctx, http.MethodPut, c.repoPath(repo)+"/collaborators/"+username, payload, nil)
}

// RemoveCollaborator revokes a collaborator. Used only by rollback.
func (c *Client) RemoveCollaborator(ctx context.Context, repo, username string) error {
	return c.doJSON(ctx, http.MethodDelete, c.repoPath(repo)+"/collaborators/"+username, nil, nil)
}

// CreateWebhook registers a repository webhook.
func (c *Client) CreateWebhook(ctx context.Context, repo string, req NewWebhook) (Webhook, error) {
	var hook Webhook

	err := c.doJSON(ctx, http.MethodPost, c.repoPath(repo)+"/hooks", req, &hook)
	if err != nil {
		return Webhook{}, err
	}

	return hook, nil
}

// UpdateWebhook patches the configuration of an existing webhook.
func (c *Client) UpdateWebhook(ctx context.Context, repo string, hookID int64, req NewWebhook) error {
	return c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("%s/hooks/%d", c.repoPath(repo), hookID), req, nil)
}

// DeleteWebhook removes a webhook. Used only by rollback.
func (c *Client) DeleteWebhook(ctx context.Context, repo string, hookID int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/hooks/%d", c.repoPath(repo), hookID), nil, nil)
}

// SetBranchProtection applies a protection rule to one branch.
func (c *Client) SetBranchProtection(ctx context.Context, repo, branch string, protection BranchProtection) error {
	path := c.repoPath(repo) + "/branches/" + url.PathEscape(branch) + "/protection"

	return c.doJSON(ctx, http.MethodPut, path, protection, nil)
}

// DeleteBranchProtection clears a protection rule. Used only by rollback.
func (c *Client) DeleteBranchProtection(ctx context.Context, repo, branch string) error {
	path := c.repoPath(repo) + "/branches/" + url.PathEscape(branch) + "/protection"

	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// BranchProtectionFor reads the protection rule of one branch.
func (c *Client) BranchProtectionFor(ctx context.Context, repo, branch string) (BranchProtection, error) {
	path := c.repoPath(repo) + "/branches/" + url.PathEscape(branch) + "/protection"

	var out struct {
		RequiredStatusChecks       *RequiredChecks  `json:"required_status_checks"`
		RequiredPullRequestReviews *RequiredReviews `json:"required_pull_request_reviews"`
		EnforceAdmins              struct {
			Enabled bool `json:"enabled"`
		} `json:"enforce_admins"`
		AllowForcePushes struct {
			Enabled bool `json:"enabled"`
		} `json:"allow_force_pushes"`
		AllowDeletions struct {
			Enabled bool `json:"enabled"`
		} `json:"allow_deletions"`
	}

	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return BranchProtection{}, err
	}

	return BranchProtection{
		RequiredStatusChecks:       out.RequiredStatusChecks,
		RequiredPullRequestReviews: out.RequiredPullRequestReviews,
		EnforceAdmins:              out.EnforceAdmins.Enabled,
		AllowForcePushes:           out.AllowForcePushes.Enabled,
		AllowDeletions:             out.AllowDeletions.Enabled,
	}, nil
}

// CreateDeployKey registers a read-only or read-write deploy key.
func (c *Client) CreateDeployKey(ctx context.Context, repo string, key DeployKey) (DeployKey, error) {
	var out DeployKey

	err := c.doJSON(ctx, http.MethodPost, c.repoPath(repo)+"/keys", key, &out)
	if err != nil {
		return DeployKey{}, err
	}

	return out, nil
}

// CommitFile creates or updates one file through the contents API.
// Existing files are located first so the update carries their sha.
// Returns the commit sha.
func (c *Client) CommitFile(ctx context.Context, repo, path, branch, message string, content []byte) (string, error) {
	contentsPath := c.repoPath(repo) + "/contents/" + escapeFilePath(path)

	payload := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
	}
	if branch != "" {
		payload["branch"] = branch
	}

	sha, shaErr := c.fileSHA(ctx, contentsPath, branch)
	if shaErr != nil {
		return "", shaErr
	}

	if sha != "" {
		payload["sha"] = sha
	}

	var out struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}

	err := c.doJSON(ctx, http.MethodPut, contentsPath, payload, &out)
	if err != nil {
		return "", err
	}

	return out.Commit.SHA, nil
}

// fileSHA returns the blob sha of an existing file, empty when absent.
func (c *Client) fileSHA(ctx context.Context, contentsPath, branch string) (string, error) {
	probePath := contentsPath
	if branch != "" {
		probePath += "?ref=" + url.QueryEscape(branch)
	}

	var existing struct {
		SHA string `json:"sha"`
	}

	err := c.doJSON(ctx, http.MethodGet, probePath, nil, &existing)
	if err == nil {
		return existing.SHA, nil
	}

	if forge.AsError(forgeName, err).Category == forge.CategoryNotFound {
		return "", nil
	}

	return "", err
}

// escapeFilePath escapes each segment of a repository file path while
// keeping the separators.
func escapeFilePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return strings.Join(segments, "/")
}
