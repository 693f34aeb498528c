package export

import (
	"context"
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/checkpoint"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// ExportedIssue is one issue with its notes inlined.
type ExportedIssue struct {
	Issue gitlab.Issue  `json:"issue"`
	Notes []gitlab.Note `json:"notes"`
}

// ExportedMergeRequest is one merge request with discussions and
// approval state inlined.
type ExportedMergeRequest struct {
	MergeRequest gitlab.MergeRequest `json:"merge_request"`
	Discussions  []gitlab.Discussion `json:"discussions"`
	Approvals    gitlab.Approvals    `json:"approvals"`
}

// exportIssues streams issues with notes, downloading referenced
// attachments and flushing progress every CheckpointEvery items.
func (s *Stage) exportIssues(ctx context.Context, tree artifacts.Tree, project gitlab.Project, cp *checkpoint.Checkpoint) (int, []string, error) {
	mkdirErr := os.MkdirAll(tree.IssueAttachmentsDir(), 0o755)
	if mkdirErr != nil {
		return 0, nil, fmt.Errorf("create issues dir: %w", mkdirErr)
	}

	labels, labelsErr := s.GitLab.Labels(ctx, project.ID)
	if labelsErr != nil {
		return 0, nil, labelsErr
	}

	labelsWriteErr := persist.WriteJSON(tree.SourceLabelsPath(), labels)
	if labelsWriteErr != nil {
		return 0, nil, fmt.Errorf("write labels: %w", labelsWriteErr)
	}

	milestones, milestonesErr := s.GitLab.Milestones(ctx, project.ID)
	if milestonesErr != nil {
		return 0, nil, milestonesErr
	}

	milestonesWriteErr := persist.WriteJSON(tree.SourceMilestonesPath(), milestones)
	if milestonesWriteErr != nil {
		return 0, nil, fmt.Errorf("write milestones: %w", milestonesWriteErr)
	}

	var issues []ExportedIssue

	downloader := newAttachmentDownloader(s.GitLab, project.PathWithNamespace,
		tree.IssueAttachmentsDir(), "issues/attachments", s.Download, s.Logger)

	afterIID := int64(0)
	processed := 0

	if cp.ShouldResume(ComponentIssues) {
		afterIID = cp.LastProcessedItem(ComponentIssues)
		processed = cp.Entry(ComponentIssues).ProcessedCount

		// Items persisted before the interruption are kept as-is.
		_ = persist.ReadJSON(tree.IssuesPath(), &issues)
		_ = persist.ReadJSON(tree.IssueAttachmentMetaPath(), &downloader.mapping)
	}

	if !project.IssuesEnabled {
		writeErr := s.flushIssues(tree, issues, downloader)

		return 0, nil, writeErr
	}

	flush := func(lastIID int64) error {
		flushErr := s.flushIssues(tree, issues, downloader)
		if flushErr != nil {
			return flushErr
		}

		return cp.UpdateProgress(ComponentIssues, processed, lastIID)
	}

	err := s.GitLab.EachIssue(ctx, project.ID, afterIID, func(issue gitlab.Issue) error {
		notes, notesErr := s.GitLab.IssueNotes(ctx, project.ID, issue.IID)
		if notesErr != nil {
			return notesErr
		}

		downloader.fetch(ctx, issue.Description)

		for _, note := range notes {
			downloader.fetch(ctx, note.Body)
		}

		issues = append(issues, ExportedIssue{Issue: issue, Notes: notes})
		processed++

		if processed%s.CheckpointEvery == 0 {
			flushErr := flush(issue.IID)
			if flushErr != nil {
				return flushErr
			}
		}

		return ctx.Err()
	})
	if err != nil {
		// Keep whatever landed so resume continues after it.
		if len(issues) > 0 {
			_ = flush(issues[len(issues)-1].Issue.IID)
		}

		return len(issues), downloader.warnings, err
	}

	writeErr := s.flushIssues(tree, issues, downloader)
	if writeErr != nil {
		return len(issues), downloader.warnings, writeErr
	}

	return len(issues), downloader.warnings, nil
}

func (s *Stage) flushIssues(tree artifacts.Tree, issues []ExportedIssue, downloader *attachmentDownloader) error {
	if issues == nil {
		issues = []ExportedIssue{}
	}

	writeErr := persist.WriteJSON(tree.IssuesPath(), issues)
	if writeErr != nil {
		return fmt.Errorf("write issues: %w", writeErr)
	}

	metaErr := persist.WriteJSON(tree.IssueAttachmentMetaPath(), downloader.mapping)
	if metaErr != nil {
		return fmt.Errorf("write issue attachment metadata: %w", metaErr)
	}

	return nil
}

// exportMergeRequests applies the same streaming and attachment
// discipline to merge requests, with approvals captured per item.
func (s *Stage) exportMergeRequests(ctx context.Context, tree artifacts.Tree, project gitlab.Project, cp *checkpoint.Checkpoint) (int, []string, error) {
	mkdirErr := os.MkdirAll(tree.MRAttachmentsDir(), 0o755)
	if mkdirErr != nil {
		return 0, nil, fmt.Errorf("create merge_requests dir: %w", mkdirErr)
	}

	var mergeRequests []ExportedMergeRequest

	downloader := newAttachmentDownloader(s.GitLab, project.PathWithNamespace,
		tree.MRAttachmentsDir(), "merge_requests/attachments", s.Download, s.Logger)

	afterIID := int64(0)
	processed := 0

	if cp.ShouldResume(ComponentMergeRequests) {
		afterIID = cp.LastProcessedItem(ComponentMergeRequests)
		processed = cp.Entry(ComponentMergeRequests).ProcessedCount

		_ = persist.ReadJSON(tree.MergeRequestsPath(), &mergeRequests)
		_ = persist.ReadJSON(tree.MRAttachmentMetaPath(), &downloader.mapping)
	}

	if !project.MergeRequestsEnabled {
		writeErr := s.flushMergeRequests(tree, mergeRequests, downloader)

		return 0, nil, writeErr
	}

	flush := func(lastIID int64) error {
		flushErr := s.flushMergeRequests(tree, mergeRequests, downloader)
		if flushErr != nil {
			return flushErr
		}

		return cp.UpdateProgress(ComponentMergeRequests, processed, lastIID)
	}

	err := s.GitLab.EachMergeRequest(ctx, project.ID, afterIID, func(mr gitlab.MergeRequest) error {
		discussions, discErr := s.GitLab.MergeRequestDiscussions(ctx, project.ID, mr.IID)
		if discErr != nil {
			return discErr
		}

		approvals, apprErr := s.GitLab.MergeRequestApprovals(ctx, project.ID, mr.IID)
		if apprErr != nil {
			approvals = gitlab.Approvals{}
		}

		downloader.fetch(ctx, mr.Description)

		for _, discussion := range discussions {
			for _, note := range discussion.Notes {
				downloader.fetch(ctx, note.Body)
			}
		}

		mergeRequests = append(mergeRequests, ExportedMergeRequest{
			MergeRequest: mr,
			Discussions:  discussions,
			Approvals:    approvals,
		})
		processed++

		if processed%s.CheckpointEvery == 0 {
			flushErr := flush(mr.IID)
			if flushErr != nil {
				return flushErr
			}
		}

		return ctx.Err()
	})
	if err != nil {
		if len(mergeRequests) > 0 {
			_ = flush(mergeRequests[len(mergeRequests)-1].MergeRequest.IID)
		}

		return len(mergeRequests), downloader.warnings, err
	}

	writeErr := s.flushMergeRequests(tree, mergeRequests, downloader)
	if writeErr != nil {
		return len(mergeRequests), downloader.warnings, writeErr
	}

	return len(mergeRequests), downloader.warnings, nil
}

func (s *Stage) flushMergeRequests(tree artifacts.Tree, mergeRequests []ExportedMergeRequest, downloader *attachmentDownloader) error {
	if mergeRequests == nil {
		mergeRequests = []ExportedMergeRequest{}
	}

	writeErr := persist.WriteJSON(tree.MergeRequestsPath(), mergeRequests)
	if writeErr != nil {
		return fmt.Errorf("write merge requests: %w", writeErr)
	}

	metaErr := persist.WriteJSON(tree.MRAttachmentMetaPath(), downloader.mapping)
	if metaErr != nil {
		return fmt.Errorf("write mr attachment metadata: %w", metaErr)
	}

	return nil
}
