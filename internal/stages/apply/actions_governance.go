package apply

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
)

// newProtectionSet routes on scope: branch rules carry the converted
// rule record, tag patterns carry {name, scope: "tag"}.
func newProtectionSet(action plan.Action) (Handler, error) {
	var probe plan.TagProtectionParams
	if err := json.Unmarshal(action.Parameters, &probe); err == nil && probe.Scope == "tag" {
		return &tagProtect{params: probe}, nil
	}

	params, err := decodeParams[plan.ProtectionParams](action)
	if err != nil {
		return nil, err
	}

	return &branchProtect{params: params}, nil
}

type branchProtect struct {
	params plan.ProtectionParams
}

func (h *branchProtect) Execute(ctx context.Context, run *Context) (Outcome, error) {
	contexts := h.params.RequiredStatusChecks.Contexts
	if contexts == nil {
		contexts = []string{}
	}

	protection := github.BranchProtection{
		RequiredStatusChecks: &github.RequiredChecks{
			Strict:   h.params.RequiredStatusChecks.Strict,
			Contexts: contexts,
		},
		EnforceAdmins: h.params.EnforceAdmins,
		RequiredPullRequestReviews: &github.RequiredReviews{
			RequiredApprovingReviewCount: h.params.RequiredReviews.RequiredApprovingReviewCount,
			RequireCodeOwnerReviews:      h.params.RequiredReviews.RequireCodeOwnerReviews,
		},
		AllowForcePushes: h.params.AllowForcePushes,
		AllowDeletions:   h.params.AllowDeletions,
	}

	err := run.Forge.SetBranchProtection(ctx, run.Repo, h.params.Branch, protection)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Outputs:      map[string]any{"branch": h.params.Branch},
		RollbackData: map[string]any{"branch": h.params.Branch},
	}, nil
}

func (h *branchProtect) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldUpdate}, nil
}

func (h *branchProtect) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	branch, ok := stringFrom(data, "branch")
	if !ok {
		branch = h.params.Branch
	}

	return run.Forge.DeleteBranchProtection(ctx, run.Repo, branch)
}

type tagProtect struct {
	params plan.TagProtectionParams
}

// Execute records the manual step: tag protection maps onto repository
// rulesets, which have no stable write surface here.
func (h *tagProtect) Execute(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Outputs: map[string]any{
		"pattern": h.params.Name,
		"note":    "create a tag ruleset for this pattern manually",
	}}, nil
}

func (h *tagProtect) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldSkip}, nil
}

func (h *tagProtect) Rollback(_ context.Context, _ *Context, _ map[string]any) error {
	// Nothing was written.
	return nil
}

type collaboratorAdd struct {
	params plan.CollaboratorAddParams
}

func newCollaboratorAdd(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.CollaboratorAddParams](action)
	if err != nil {
		return nil, err
	}

	return &collaboratorAdd{params: params}, nil
}

func (h *collaboratorAdd) Execute(ctx context.Context, run *Context) (Outcome, error) {
	err := run.Forge.AddCollaborator(ctx, run.Repo, h.params.Name, h.params.Permission)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Outputs:      map[string]any{"login": h.params.Name, "permission": h.params.Permission},
		RollbackData: map[string]any{"login": h.params.Name},
	}, nil
}

func (h *collaboratorAdd) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *collaboratorAdd) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	login, ok := stringFrom(data, "login")
	if !ok {
		login = h.params.Name
	}

	return run.Forge.RemoveCollaborator(ctx, run.Repo, login)
}

type teamCreate struct {
	params plan.TeamCreateParams
}

func newTeamCreate(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.TeamCreateParams](action)
	if err != nil {
		return nil, err
	}

	return &teamCreate{params: params}, nil
}

func (h *teamCreate) Execute(ctx context.Context, run *Context) (Outcome, error) {
	team, err := run.Forge.CreateTeam(ctx, h.params.Name)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Outputs:      map[string]any{"slug": team.Slug, "team_id": team.ID},
		RollbackData: map[string]any{"slug": team.Slug},
	}, nil
}

func (h *teamCreate) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *teamCreate) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	slug, ok := stringFrom(data, "slug")
	if !ok {
		slug = h.params.Name
	}

	return run.Forge.DeleteTeam(ctx, slug)
}

type codeownersCommit struct {
	nonReversible

	params plan.CodeownersCommitParams
}

func newCodeownersCommit(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.CodeownersCommitParams](action)
	if err != nil {
		return nil, err
	}

	return &codeownersCommit{params: params}, nil
}

func (h *codeownersCommit) Execute(ctx context.Context, run *Context) (Outcome, error) {
	sha, err := run.Forge.CommitFile(ctx, run.Repo, h.params.Path, h.params.Branch,
		"Add CODEOWNERS generated from source approval rules", []byte(h.params.Content))
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Outputs: map[string]any{"path": h.params.Path, "sha": sha}}, nil
}

func (h *codeownersCommit) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

type webhookCreate struct {
	params plan.WebhookCreateParams
}

func newWebhookCreate(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.WebhookCreateParams](action)
	if err != nil {
		return nil, err
	}

	return &webhookCreate{params: params}, nil
}

func (h *webhookCreate) Execute(ctx context.Context, run *Context) (Outcome, error) {
	secret := h.params.Secret
	if secret == "" {
		if provided, ok := run.Inputs[h.params.URL]; ok && provided != "" {
			secret = provided
		} else {
			generated, genErr := randomSecret()
			if genErr != nil {
				return Outcome{}, genErr
			}

			secret = generated
		}
	}

	insecure := "1"
	if h.params.SSLVerify {
		insecure = "0"
	}

	hook, err := run.Forge.CreateWebhook(ctx, run.Repo, github.NewWebhook{
		Name:   "web",
		Active: true,
		Events: h.params.Events,
		Config: github.WebhookConfig{
			URL:         h.params.URL,
			ContentType: "json",
			Secret:      secret,
			InsecureSSL: insecure,
		},
	})
	if err != nil {
		return Outcome{}, err
	}

	run.IDs.Set(mappingWebhook, h.params.URL, hook.ID)

	return Outcome{
		Outputs:      map[string]any{"hook_id": hook.ID, "url": h.params.URL},
		RollbackData: map[string]any{"hook_id": hook.ID},
	}, nil
}

func (h *webhookCreate) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *webhookCreate) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	hookID, ok := intFrom(data, "hook_id")
	if !ok {
		return fmt.Errorf("webhook rollback: no hook id recorded")
	}

	return run.Forge.DeleteWebhook(ctx, run.Repo, hookID)
}

type webhookConfigure struct {
	params plan.WebhookConfigureParams
}

func newWebhookConfigure(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.WebhookConfigureParams](action)
	if err != nil {
		return nil, err
	}

	return &webhookConfigure{params: params}, nil
}

func (h *webhookConfigure) Execute(ctx context.Context, run *Context) (Outcome, error) {
	secret, inputErr := run.resolveInput(h.params.URL, h.params.Secret)
	if inputErr != nil {
		return Outcome{}, inputErr
	}

	hookID, ok := run.IDs.Get(mappingWebhook, h.params.URL)
	if !ok {
		return Outcome{}, fmt.Errorf("no destination webhook mapped for %s", h.params.URL)
	}

	err := run.Forge.UpdateWebhook(ctx, run.Repo, hookID, github.NewWebhook{
		Name:   "web",
		Active: true,
		Config: github.WebhookConfig{
			URL:         h.params.URL,
			ContentType: "json",
			Secret:      secret,
		},
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Outputs: map[string]any{"hook_id": hookID}}, nil
}

func (h *webhookConfigure) Simulate(_ context.Context, run *Context) (Outcome, error) {
	_, inputErr := run.resolveInput(h.params.URL, h.params.Secret)
	if inputErr != nil {
		return Outcome{
			Simulation: SimWouldFail,
			Outputs:    map[string]any{"reason": "operator secret required for webhook " + h.params.URL},
		}, nil
	}

	return Outcome{Simulation: SimWouldUpdate}, nil
}

// Rollback clears nothing; the created hook is removed by the
// webhook_create rollback.
func (h *webhookConfigure) Rollback(_ context.Context, _ *Context, _ map[string]any) error {
	return nil
}

// randomSecret generates a webhook secret when the source carried none.
func randomSecret() (string, error) {
	buf := make([]byte, 32)

	_, err := rand.Read(buf)
	if err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
