package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CreateLabel creates one label.
func (c *Client) CreateLabel(ctx context.Context, repo string, label Label) error {
	return c.doJSON(ctx, http.MethodPost, c.repoPath(repo)+"/labels", label, nil)
}

// DeleteLabel removes a label. Used only by rollback.
func (c *Client) DeleteLabel(ctx context.Context, repo, name string) error {
	return c.doJSON(ctx, http.MethodDelete, c.repoPath(repo)+"/labels/"+url.PathEscape(name), nil, nil)
}

// CreateMilestone creates one milestone and returns its number.
func (c *Client) CreateMilestone(ctx context.Context, repo string, milestone Milestone) (Milestone, error) {
	var out Milestone

	err := c.doJSON(ctx, http.MethodPost, c.repoPath(repo)+"/milestones", milestone, &out)
	if err != nil {
		return Milestone{}, err
	}

	return out, nil
}

// DeleteMilestone removes a milestone. Used only by rollback.
func (c *Client) DeleteMilestone(ctx context.Context, repo string, number int) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/milestones/%d", c.repoPath(repo), number), nil, nil)
}

// CreateIssue creates one issue.
func (c *Client) CreateIssue(ctx context.Context, repo string, issue NewIssue) (Issue, error) {
	var out Issue

	err := c.doJSON(ctx, http.MethodPost, c.repoPath(repo)+"/issues", issue, &out)
	if err != nil {
		return Issue{}, err
	}

	return out, nil
}

// CloseIssue transitions an issue to the closed state.
func (c *Client) CloseIssue(ctx context.Context, repo string, number int) error {
	payload := map[string]string{"state": "closed"}

	return c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("%s/issues/%d", c.repoPath(repo), number), payload, nil)
}

// CreateIssueComment adds a comment to an issue or pull request.
func (c *Client) CreateIssueComment(ctx context.Context, repo string, number int, body string) error {
	payload := map[string]string{"body": body}

	return c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/issues/%d/comments", c.repoPath(repo), number), payload, nil)
}

// CreatePull opens a pull request between two existing branches.
func (c *Client) CreatePull(ctx context.Context, repo string, pull NewPull) (Pull, error) {
	var out Pull

	err := c.doJSON(ctx, http.MethodPost, c.repoPath(repo)+"/pulls", pull, &out)
	if err != nil {
		return Pull{}, err
	}

	return out, nil
}

// ClosePull transitions a pull request to the closed state.
func (c *Client) ClosePull(ctx context.Context, repo string, number int) error {
	payload := map[string]string{"state": "closed"}

	return c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("%s/pulls/%d", c.repoPath(repo), number), payload, nil)
}

// OrgMembers lists every member of the destination organization with
// profile name and public email, for user mapping.
func (c *Client) OrgMembers(ctx context.Context) ([]OrgMember, error) {
	members, err := listAll[OrgMember](ctx, c, "orgs/"+c.owner+"/members")
	if err != nil {
		return nil, err
	}

	// The members list carries logins only; profiles fill in the rest.
	for i := range members {
		var profile OrgMember

		profileErr := c.doJSON(ctx, http.MethodGet, "users/"+members[i].Login, nil, &profile)
		if profileErr != nil {
			continue
		}

		members[i].Name = profile.Name
		members[i].Email = profile.Email
	}

	return members, nil
}
