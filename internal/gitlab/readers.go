package gitlab

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// GroupProjects streams every project in a group, including subgroups.
func (c *Client) GroupProjects(ctx context.Context, groupPath string, fn func(Project) error) error {
	query := url.Values{"include_subgroups": {"true"}, "archived": {"false"}}
	path := "/groups/" + url.PathEscape(groupPath) + "/projects"

	return each(ctx, c, path, query, fn)
}

// ProjectByPath fetches a single project by its full path.
func (c *Client) ProjectByPath(ctx context.Context, projectPath string) (Project, error) {
	return getJSON[Project](ctx, c, "/projects/"+url.PathEscape(projectPath), nil)
}

// Branches lists every branch of a project.
func (c *Client) Branches(ctx context.Context, projectID int64) ([]Branch, error) {
	return collect[Branch](ctx, c, projectPath(projectID)+"/repository/branches", nil)
}

// Tags lists every tag of a project.
func (c *Client) Tags(ctx context.Context, projectID int64) ([]Tag, error) {
	return collect[Tag](ctx, c, projectPath(projectID)+"/repository/tags", nil)
}

// CommitCount returns the total number of commits on the default branch.
func (c *Client) CommitCount(ctx context.Context, projectID int64) (int, error) {
	return c.count(ctx, projectPath(projectID)+"/repository/commits", nil)
}

// IssueCount returns the total number of issues.
func (c *Client) IssueCount(ctx context.Context, projectID int64) (int, error) {
	return c.count(ctx, projectPath(projectID)+"/issues", nil)
}

// MergeRequestCount returns the total number of merge requests.
func (c *Client) MergeRequestCount(ctx context.Context, projectID int64) (int, error) {
	return c.count(ctx, projectPath(projectID)+"/merge_requests", nil)
}

// EachIssue streams issues ordered by iid ascending, starting strictly
// after the given iid. The zero cursor streams from the beginning.
func (c *Client) EachIssue(ctx context.Context, projectID int64, afterIID int64, fn func(Issue) error) error {
	query := url.Values{
		"order_by": {"created_at"},
		"sort":     {"asc"},
		"scope":    {"all"},
	}

	return each(ctx, c, projectPath(projectID)+"/issues", query, func(issue Issue) error {
		if issue.IID <= afterIID {
			return nil
		}

		return fn(issue)
	})
}

// IssueNotes lists the notes of one issue.
func (c *Client) IssueNotes(ctx context.Context, projectID, issueIID int64) ([]Note, error) {
	path := fmt.Sprintf("%s/issues/%d/notes", projectPath(projectID), issueIID)
	query := url.Values{"sort": {"asc"}, "order_by": {"created_at"}}

	return collect[Note](ctx, c, path, query)
}

// EachMergeRequest streams merge requests ordered by creation,
// starting strictly after the given iid.
func (c *Client) EachMergeRequest(ctx context.Context, projectID int64, afterIID int64, fn func(MergeRequest) error) error {
	query := url.Values{
		"order_by": {"created_at"},
		"sort":     {"asc"},
		"scope":    {"all"},
	}

	return each(ctx, c, projectPath(projectID)+"/merge_requests", query, func(mr MergeRequest) error {
		if mr.IID <= afterIID {
			return nil
		}

		return fn(mr)
	})
}

// MergeRequestDiscussions lists the discussions of one merge request.
func (c *Client) MergeRequestDiscussions(ctx context.Context, projectID, mrIID int64) ([]Discussion, error) {
	path := fmt.Sprintf("%s/merge_requests/%d/discussions", projectPath(projectID), mrIID)

	return collect[Discussion](ctx, c, path, nil)
}

// MergeRequestApprovals fetches approval state for one merge request.
func (c *Client) MergeRequestApprovals(ctx context.Context, projectID, mrIID int64) (Approvals, error) {
	path := fmt.Sprintf("%s/merge_requests/%d/approvals", projectPath(projectID), mrIID)

	return getJSON[Approvals](ctx, c, path, nil)
}

// ApprovalRules lists project-level merge request approval rules.
func (c *Client) ApprovalRules(ctx context.Context, projectID int64) ([]ApprovalRule, error) {
	return collect[ApprovalRule](ctx, c, projectPath(projectID)+"/approval_rules", nil)
}

// Labels lists project labels.
func (c *Client) Labels(ctx context.Context, projectID int64) ([]Label, error) {
	return collect[Label](ctx, c, projectPath(projectID)+"/labels", nil)
}

// Milestones lists project milestones.
func (c *Client) Milestones(ctx context.Context, projectID int64) ([]Milestone, error) {
	return collect[Milestone](ctx, c, projectPath(projectID)+"/milestones", nil)
}

// Releases lists project releases with asset links.
func (c *Client) Releases(ctx context.Context, projectID int64) ([]Release, error) {
	return collect[Release](ctx, c, projectPath(projectID)+"/releases", nil)
}

// Packages lists registry package metadata.
func (c *Client) Packages(ctx context.Context, projectID int64) ([]Package, error) {
	return collect[Package](ctx, c, projectPath(projectID)+"/packages", nil)
}

// Webhooks lists project hooks.
func (c *Client) Webhooks(ctx context.Context, projectID int64) ([]Webhook, error) {
	return collect[Webhook](ctx, c, projectPath(projectID)+"/hooks", nil)
}

// Schedules lists pipeline schedules.
func (c *Client) Schedules(ctx context.Context, projectID int64) ([]Schedule, error) {
	return collect[Schedule](ctx, c, projectPath(projectID)+"/pipeline_schedules", nil)
}

// Environments lists CI/CD environments.
func (c *Client) Environments(ctx context.Context, projectID int64) ([]Environment, error) {
	return collect[Environment](ctx, c, projectPath(projectID)+"/environments", nil)
}

// Variables lists CI/CD variables. Masked variables come back without
// values; callers must treat them as user-input requirements.
func (c *Client) Variables(ctx context.Context, projectID int64) ([]Variable, error) {
	variables, err := collect[Variable](ctx, c, projectPath(projectID)+"/variables", nil)
	if err != nil {
		return nil, err
	}

	for i := range variables {
		if variables[i].Masked {
			variables[i].Value = ""
		}
	}

	return variables, nil
}

// ProtectedBranches lists branch protection rules.
func (c *Client) ProtectedBranches(ctx context.Context, projectID int64) ([]ProtectedBranch, error) {
	return collect[ProtectedBranch](ctx, c, projectPath(projectID)+"/protected_branches", nil)
}

// ProtectedTags lists tag protection rules.
func (c *Client) ProtectedTags(ctx context.Context, projectID int64) ([]ProtectedTag, error) {
	return collect[ProtectedTag](ctx, c, projectPath(projectID)+"/protected_tags", nil)
}

// DeployKeys lists repository deploy keys.
func (c *Client) DeployKeys(ctx context.Context, projectID int64) ([]DeployKey, error) {
	return collect[DeployKey](ctx, c, projectPath(projectID)+"/deploy_keys", nil)
}

// Members lists direct and inherited project members.
func (c *Client) Members(ctx context.Context, projectID int64) ([]Member, error) {
	return collect[Member](ctx, c, projectPath(projectID)+"/members/all", nil)
}

// Pipelines lists up to limit recent pipelines, newest first.
func (c *Client) Pipelines(ctx context.Context, projectID int64, limit int) ([]Pipeline, error) {
	pipelines, err := collect[Pipeline](ctx, c, projectPath(projectID)+"/pipelines", url.Values{
		"order_by": {"id"},
		"sort":     {"desc"},
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(pipelines) > limit {
		pipelines = pipelines[:limit]
	}

	return pipelines, nil
}

// fileResponse is the repository files API envelope.
type fileResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// FileContent reads a repository file at a ref, decoding the base64
// payload the API returns.
func (c *Client) FileContent(ctx context.Context, projectID int64, path, ref string) ([]byte, error) {
	apiPath := projectPath(projectID) + "/repository/files/" + url.PathEscape(path)
	query := url.Values{"ref": {ref}}

	file, err := getJSON[fileResponse](ctx, c, apiPath, query)
	if err != nil {
		return nil, err
	}

	if file.Encoding != "base64" {
		return []byte(file.Content), nil
	}

	content, decodeErr := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if decodeErr != nil {
		return nil, fmt.Errorf("decode file %s: %w", path, decodeErr)
	}

	return content, nil
}

// HasFile probes whether a repository file exists at a ref.
func (c *Client) HasFile(ctx context.Context, projectID int64, path, ref string) bool {
	_, err := c.FileContent(ctx, projectID, path, ref)

	return err == nil
}

// LFSPointerProbe reports whether the repository tracks files with LFS,
// detected via .gitattributes mentioning the lfs filter.
func (c *Client) LFSPointerProbe(ctx context.Context, projectID int64, ref string) bool {
	content, err := c.FileContent(ctx, projectID, ".gitattributes", ref)
	if err != nil {
		return false
	}

	return containsLFSFilter(content)
}

func containsLFSFilter(attributes []byte) bool {
	return strings.Contains(string(attributes), "filter=lfs")
}

// WikiPageCount returns the number of wiki pages, zero when the wiki is
// disabled or empty.
func (c *Client) WikiPageCount(ctx context.Context, projectID int64) (int, error) {
	pages, err := collect[struct {
		Slug string `json:"slug"`
	}](ctx, c, projectPath(projectID)+"/wikis", nil)
	if err != nil {
		return 0, err
	}

	return len(pages), nil
}
