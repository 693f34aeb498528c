package transform

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/stages/export"
)

// Comment is a rewritten issue or pull request comment.
type Comment struct {
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue is a destination-ready issue with rewritten content.
type Issue struct {
	SourceIID int64     `json:"source_iid"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	Labels    []string  `json:"labels,omitempty"`
	Milestone string    `json:"milestone,omitempty"`
	Assignees []string  `json:"assignees,omitempty"`
	Comments  []Comment `json:"comments,omitempty"`
}

// MergeRequest is a destination-ready pull request with rewritten
// content.
type MergeRequest struct {
	SourceIID    int64     `json:"source_iid"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	State        string    `json:"state"`
	SourceBranch string    `json:"source_branch"`
	TargetBranch string    `json:"target_branch"`
	Labels       []string  `json:"labels,omitempty"`
	Milestone    string    `json:"milestone,omitempty"`
	Draft        bool      `json:"draft"`
	Merged       bool      `json:"merged"`
	Comments     []Comment `json:"comments,omitempty"`
}

var (
	// mentionPattern matches @username references.
	mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9][a-zA-Z0-9_.-]*)`)
	// mrRefPattern matches !123 merge request references.
	mrRefPattern = regexp.MustCompile(`(^|[\s(])!(\d+)\b`)
)

// rewriter converts source markdown bodies into destination form using
// the user mapping and the exported attachment path table.
type rewriter struct {
	users       UserMapping
	attachments map[string]string
}

// body rewrites attachments, mentions, and cross-references.
func (r *rewriter) body(text string) string {
	for original, local := range r.attachments {
		text = strings.ReplaceAll(text, original, local)
	}

	text = mentionPattern.ReplaceAllStringFunc(text, func(mention string) string {
		username := strings.TrimPrefix(mention, "@")
		if login, ok := r.users.Login(username); ok {
			return "@" + login
		}

		return mention
	})

	// Merge request references use issue syntax on the destination.
	text = mrRefPattern.ReplaceAllString(text, "${1}#${2}")

	return text
}

// attribution builds the provenance line prepended to migrated content.
func (r *rewriter) attribution(verb string, author gitlab.User, at time.Time) string {
	who := "`" + author.Username + "`"
	if login, ok := r.users.Login(author.Username); ok {
		who = "@" + login
	}

	return fmt.Sprintf("*Originally %s by %s on %s*", verb, who, at.Format("2006-01-02"))
}

// mapState converts source item state to the destination open/closed
// pair.
func mapState(state string) string {
	switch state {
	case "opened", "active", "open":
		return "open"
	default:
		return "closed"
	}
}

// rewriteIssues converts exported issues, inlining non-system notes as
// comments with their own attribution.
func (r *rewriter) rewriteIssues(exported []export.ExportedIssue) []Issue {
	issues := make([]Issue, 0, len(exported))

	for _, item := range exported {
		src := item.Issue

		issue := Issue{
			SourceIID: src.IID,
			Title:     src.Title,
			Body:      r.attribution("created", src.Author, src.CreatedAt) + "\n\n" + r.body(src.Description),
			State:     mapState(src.State),
			Labels:    src.Labels,
		}

		if src.Milestone != nil {
			issue.Milestone = src.Milestone.Title
		}

		for _, assignee := range src.Assignees {
			if login, ok := r.users.Login(assignee.Username); ok {
				issue.Assignees = append(issue.Assignees, login)
			}
		}

		for _, note := range item.Notes {
			if note.System {
				continue
			}

			issue.Comments = append(issue.Comments, Comment{
				Body:      r.attribution("commented", note.Author, note.CreatedAt) + "\n\n" + r.body(note.Body),
				CreatedAt: note.CreatedAt,
			})
		}

		issues = append(issues, issue)
	}

	return issues
}

// rewriteMergeRequests converts exported merge requests with their
// discussion notes flattened into comments.
func (r *rewriter) rewriteMergeRequests(exported []export.ExportedMergeRequest) []MergeRequest {
	mergeRequests := make([]MergeRequest, 0, len(exported))

	for _, item := range exported {
		src := item.MergeRequest

		mr := MergeRequest{
			SourceIID:    src.IID,
			Title:        src.Title,
			Body:         r.attribution("created", src.Author, src.CreatedAt) + "\n\n" + r.body(src.Description),
			State:        mapState(src.State),
			SourceBranch: src.SourceBranch,
			TargetBranch: src.TargetBranch,
			Labels:       src.Labels,
			Draft:        src.Draft,
			Merged:       src.State == "merged" || src.MergedAt != nil,
		}

		if src.Milestone != nil {
			mr.Milestone = src.Milestone.Title
		}

		for _, discussion := range item.Discussions {
			for _, note := range discussion.Notes {
				if note.System {
					continue
				}

				mr.Comments = append(mr.Comments, Comment{
					Body:      r.attribution("commented", note.Author, note.CreatedAt) + "\n\n" + r.body(note.Body),
					CreatedAt: note.CreatedAt,
				})
			}
		}

		mergeRequests = append(mergeRequests, mr)
	}

	return mergeRequests
}
