package apply

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
)

// Id-mapping kinds written by the import handlers.
const (
	mappingIssue     = "issue"
	mappingMR        = "merge_request"
	mappingMilestone = "milestone"
	mappingRelease   = "release"
	mappingWebhook   = "webhook"
)

// tombstoneComment marks issues and pull requests closed by a rollback.
const tombstoneComment = "This item was created by an automated migration that has since been rolled back."

type labelCreate struct {
	params plan.LabelCreateParams
}

func newLabelCreate(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.LabelCreateParams](action)
	if err != nil {
		return nil, err
	}

	return &labelCreate{params: params}, nil
}

func (h *labelCreate) Execute(ctx context.Context, run *Context) (Outcome, error) {
	err := run.Forge.CreateLabel(ctx, run.Repo, github.Label{
		Name:        h.params.Name,
		Color:       h.params.Color,
		Description: h.params.Description,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Outputs:      map[string]any{"label": h.params.Name},
		RollbackData: map[string]any{"name": h.params.Name},
	}, nil
}

func (h *labelCreate) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *labelCreate) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	name, ok := stringFrom(data, "name")
	if !ok {
		name = h.params.Name
	}

	return run.Forge.DeleteLabel(ctx, run.Repo, name)
}

type milestoneCreate struct {
	params plan.MilestoneCreateParams
}

func newMilestoneCreate(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.MilestoneCreateParams](action)
	if err != nil {
		return nil, err
	}

	return &milestoneCreate{params: params}, nil
}

func (h *milestoneCreate) Execute(ctx context.Context, run *Context) (Outcome, error) {
	milestone, err := run.Forge.CreateMilestone(ctx, run.Repo, github.Milestone{
		Title:       h.params.Title,
		State:       h.params.State,
		Description: h.params.Description,
		DueOn:       h.params.DueOn,
	})
	if err != nil {
		return Outcome{}, err
	}

	run.IDs.Set(mappingMilestone, h.params.Title, int64(milestone.Number))

	return Outcome{
		Outputs:      map[string]any{"number": milestone.Number},
		RollbackData: map[string]any{"number": milestone.Number},
	}, nil
}

func (h *milestoneCreate) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *milestoneCreate) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	number, ok := intFrom(data, "number")
	if !ok {
		return fmt.Errorf("milestone rollback: no number recorded")
	}

	return run.Forge.DeleteMilestone(ctx, run.Repo, int(number))
}

type issueCreate struct {
	params plan.IssueCreateParams
}

func newIssueCreate(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.IssueCreateParams](action)
	if err != nil {
		return nil, err
	}

	return &issueCreate{params: params}, nil
}

func (h *issueCreate) Execute(ctx context.Context, run *Context) (Outcome, error) {
	milestoneNumber := 0
	if h.params.Milestone != "" {
		if number, ok := run.IDs.Get(mappingMilestone, h.params.Milestone); ok {
			milestoneNumber = int(number)
		}
	}

	issue, err := run.Forge.CreateIssue(ctx, run.Repo, github.NewIssue{
		Title:     h.params.Title,
		Body:      h.params.Body,
		Labels:    h.params.Labels,
		Milestone: milestoneNumber,
		Assignees: h.params.Assignees,
	})
	if err != nil {
		return Outcome{}, err
	}

	run.IDs.Set(mappingIssue, strconv.FormatInt(h.params.GitLabIssueIID, 10), int64(issue.Number))

	if h.params.State == "closed" {
		closeErr := run.Forge.CloseIssue(ctx, run.Repo, issue.Number)
		if closeErr != nil {
			return Outcome{}, closeErr
		}
	}

	return Outcome{
		Outputs:      map[string]any{"number": issue.Number, "html_url": issue.HTMLURL},
		RollbackData: map[string]any{"number": issue.Number},
	}, nil
}

func (h *issueCreate) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

// Rollback closes the issue and leaves a tombstone; migrated issues are
// never deleted.
func (h *issueCreate) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	number, ok := intFrom(data, "number")
	if !ok {
		return fmt.Errorf("issue rollback: no number recorded")
	}

	closeErr := run.Forge.CloseIssue(ctx, run.Repo, int(number))
	if closeErr != nil {
		return closeErr
	}

	return run.Forge.CreateIssueComment(ctx, run.Repo, int(number), tombstoneComment)
}

type issueCommentAdd struct {
	nonReversible

	params plan.IssueCommentAddParams
}

func newIssueCommentAdd(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.IssueCommentAddParams](action)
	if err != nil {
		return nil, err
	}

	return &issueCommentAdd{params: params}, nil
}

func (h *issueCommentAdd) Execute(ctx context.Context, run *Context) (Outcome, error) {
	source := strconv.FormatInt(h.params.GitLabIssueIID, 10)

	number, ok := run.IDs.Get(mappingIssue, source)
	if !ok {
		return Outcome{}, fmt.Errorf("no destination issue mapped for source #%s", source)
	}

	err := run.Forge.CreateIssueComment(ctx, run.Repo, int(number), h.params.Body)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Outputs: map[string]any{"issue": number, "index": h.params.Index}}, nil
}

func (h *issueCommentAdd) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

type prCreate struct {
	params plan.PRCreateParams
}

func newPRCreate(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.PRCreateParams](action)
	if err != nil {
		return nil, err
	}

	return &prCreate{params: params}, nil
}

func (h *prCreate) Execute(ctx context.Context, run *Context) (Outcome, error) {
	pull, err := run.Forge.CreatePull(ctx, run.Repo, github.NewPull{
		Title: h.params.Title,
		Body:  h.params.Body,
		Head:  h.params.Head,
		Base:  h.params.Base,
		Draft: h.params.Draft,
	})
	if err != nil {
		return Outcome{}, err
	}

	run.IDs.Set(mappingMR, strconv.FormatInt(h.params.GitLabMRIID, 10), int64(pull.Number))

	outputs := map[string]any{"number": pull.Number, "html_url": pull.HTMLURL}

	// Merged source MRs arrive with their commits already in the pushed
	// history; the destination PR is closed to reflect terminal state.
	if h.params.Merged || h.params.State == "closed" || h.params.State == "merged" {
		closeErr := run.Forge.ClosePull(ctx, run.Repo, pull.Number)
		if closeErr != nil {
			return Outcome{}, closeErr
		}

		outputs["closed"] = true
	}

	return Outcome{
		Outputs:      outputs,
		RollbackData: map[string]any{"number": pull.Number},
	}, nil
}

func (h *prCreate) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *prCreate) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	number, ok := intFrom(data, "number")
	if !ok {
		return fmt.Errorf("pull request rollback: no number recorded")
	}

	closeErr := run.Forge.ClosePull(ctx, run.Repo, int(number))
	if closeErr != nil {
		return closeErr
	}

	return run.Forge.CreateIssueComment(ctx, run.Repo, int(number), tombstoneComment)
}

type prCommentAdd struct {
	nonReversible

	params plan.PRCommentAddParams
}

func newPRCommentAdd(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.PRCommentAddParams](action)
	if err != nil {
		return nil, err
	}

	return &prCommentAdd{params: params}, nil
}

func (h *prCommentAdd) Execute(ctx context.Context, run *Context) (Outcome, error) {
	source := strconv.FormatInt(h.params.GitLabMRIID, 10)

	number, ok := run.IDs.Get(mappingMR, source)
	if !ok {
		return Outcome{}, fmt.Errorf("no destination pull request mapped for source !%s", source)
	}

	err := run.Forge.CreateIssueComment(ctx, run.Repo, int(number), h.params.Body)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Outputs: map[string]any{"pull_request": number, "index": h.params.Index}}, nil
}

func (h *prCommentAdd) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}
