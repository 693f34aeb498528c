package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// BranchCount returns the number of branches via the Link cursor.
func (c *Client) BranchCount(ctx context.Context, repo string) (int, error) {
	return c.pageCount(ctx, c.repoPath(repo)+"/branches")
}

// TagCount returns the number of tags via the Link cursor.
func (c *Client) TagCount(ctx context.Context, repo string) (int, error) {
	return c.pageCount(ctx, c.repoPath(repo)+"/tags")
}

// CommitCount returns the number of commits on a ref via the Link cursor.
func (c *Client) CommitCount(ctx context.Context, repo, ref string) (int, error) {
	path := c.repoPath(repo) + "/commits"
	if ref != "" {
		path += "?sha=" + url.QueryEscape(ref)
	}

	return c.pageCount(ctx, path)
}

// IssueCount returns the number of issues in any state. The issues
// list includes pull requests, so their count is subtracted.
func (c *Client) IssueCount(ctx context.Context, repo string) (int, error) {
	combined, err := c.pageCount(ctx, c.repoPath(repo)+"/issues?state=all")
	if err != nil {
		return 0, err
	}

	pulls, pullErr := c.PullCount(ctx, repo)
	if pullErr != nil {
		return 0, pullErr
	}

	return combined - pulls, nil
}

// PullCount returns the number of pull requests in any state.
func (c *Client) PullCount(ctx context.Context, repo string) (int, error) {
	return c.pageCount(ctx, c.repoPath(repo)+"/pulls?state=all")
}

// ReleaseCount returns the number of releases.
func (c *Client) ReleaseCount(ctx context.Context, repo string) (int, error) {
	return c.pageCount(ctx, c.repoPath(repo)+"/releases")
}

// Labels lists every label.
func (c *Client) Labels(ctx context.Context, repo string) ([]Label, error) {
	return listAll[Label](ctx, c, c.repoPath(repo)+"/labels")
}

// Milestones lists every milestone in any state.
func (c *Client) Milestones(ctx context.Context, repo string) ([]Milestone, error) {
	return listAll[Milestone](ctx, c, c.repoPath(repo)+"/milestones?state=all")
}

// Branches lists every branch.
func (c *Client) Branches(ctx context.Context, repo string) ([]Branch, error) {
	return listAll[Branch](ctx, c, c.repoPath(repo)+"/branches")
}

// Webhooks lists every webhook.
func (c *Client) Webhooks(ctx context.Context, repo string) ([]Webhook, error) {
	return listAll[Webhook](ctx, c, c.repoPath(repo)+"/hooks")
}

// Collaborators lists direct collaborators.
func (c *Client) Collaborators(ctx context.Context, repo string) ([]Collaborator, error) {
	return listAll[Collaborator](ctx, c, c.repoPath(repo)+"/collaborators?affiliation=direct")
}

// Environments lists deployment environments.
func (c *Client) Environments(ctx context.Context, repo string) ([]Environment, error) {
	var out struct {
		Environments []Environment `json:"environments"`
	}

	err := c.doJSON(ctx, http.MethodGet, c.repoPath(repo)+"/environments", nil, &out)
	if err != nil {
		return nil, err
	}

	return out.Environments, nil
}

// SecretNames lists repo-level secret metadata. Values are unreadable.
func (c *Client) SecretNames(ctx context.Context, repo string) ([]SecretMeta, error) {
	var out struct {
		Secrets []SecretMeta `json:"secrets"`
	}

	err := c.doJSON(ctx, http.MethodGet, c.repoPath(repo)+"/actions/secrets", nil, &out)
	if err != nil {
		return nil, err
	}

	return out.Secrets, nil
}

// Variables lists actions variables with their values.
func (c *Client) Variables(ctx context.Context, repo string) ([]Variable, error) {
	var out struct {
		Variables []Variable `json:"variables"`
	}

	err := c.doJSON(ctx, http.MethodGet, c.repoPath(repo)+"/actions/variables", nil, &out)
	if err != nil {
		return nil, err
	}

	return out.Variables, nil
}

// Workflows lists actions workflows.
func (c *Client) Workflows(ctx context.Context, repo string) ([]Workflow, error) {
	var out struct {
		Workflows []Workflow `json:"workflows"`
	}

	err := c.doJSON(ctx, http.MethodGet, c.repoPath(repo)+"/actions/workflows", nil, &out)
	if err != nil {
		return nil, err
	}

	return out.Workflows, nil
}

// FileContent reads one repository file at a ref, decoding the base64
// payload the contents API returns.
func (c *Client) FileContent(ctx context.Context, repo, path, ref string) ([]byte, error) {
	contentsPath := c.repoPath(repo) + "/contents/" + escapeFilePath(path)
	if ref != "" {
		contentsPath += "?ref=" + url.QueryEscape(ref)
	}

	var out struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}

	err := c.doJSON(ctx, http.MethodGet, contentsPath, nil, &out)
	if err != nil {
		return nil, err
	}

	if out.Encoding != "base64" {
		return []byte(out.Content), nil
	}

	// The contents API wraps base64 payloads in newlines.
	content, decodeErr := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.Content, "\n", ""))
	if decodeErr != nil {
		return nil, fmt.Errorf("decode file %s: %w", path, decodeErr)
	}

	return content, nil
}
