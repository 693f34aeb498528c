package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
)

type repoCreate struct {
	params plan.RepoCreateParams
}

func newRepoCreate(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.RepoCreateParams](action)
	if err != nil {
		return nil, err
	}

	return &repoCreate{params: params}, nil
}

func (h *repoCreate) Execute(ctx context.Context, run *Context) (Outcome, error) {
	repo, err := run.Forge.CreateRepo(ctx, github.NewRepo{
		Name:        h.params.Name,
		Description: h.params.Description,
		Private:     h.params.Private,
		HasIssues:   true,
		HasWiki:     true,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Outputs:      map[string]any{"full_name": repo.FullName, "html_url": repo.HTMLURL},
		RollbackData: map[string]any{"repo": h.params.Name},
	}, nil
}

func (h *repoCreate) CheckIdempotency(ctx context.Context, run *Context) (Outcome, bool, error) {
	exists, err := run.Forge.RepoExists(ctx, h.params.Name)
	if err != nil || !exists {
		return Outcome{}, false, err
	}

	return Outcome{
		Outputs:      map[string]any{"existing": true},
		RollbackData: map[string]any{"repo": h.params.Name},
	}, true, nil
}

func (h *repoCreate) Simulate(ctx context.Context, run *Context) (Outcome, error) {
	exists, err := run.Forge.RepoExists(ctx, h.params.Name)
	if err != nil {
		return Outcome{}, err
	}

	if exists {
		return Outcome{
			Simulation: SimWouldSkip,
			Outputs:    map[string]any{"reason": "repository already exists"},
		}, nil
	}

	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *repoCreate) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	name, ok := stringFrom(data, "repo")
	if !ok {
		name = h.params.Name
	}

	return run.Forge.DeleteRepo(ctx, name)
}

type repoPush struct {
	nonReversible

	params plan.RepoPushParams
}

func newRepoPush(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.RepoPushParams](action)
	if err != nil {
		return nil, err
	}

	return &repoPush{params: params}, nil
}

func (h *repoPush) Execute(ctx context.Context, run *Context) (Outcome, error) {
	dir, tmpErr := os.MkdirTemp("", "gitport-push-*")
	if tmpErr != nil {
		return Outcome{}, fmt.Errorf("create push workspace: %w", tmpErr)
	}
	defer os.RemoveAll(dir)

	mirror := filepath.Join(dir, "mirror.git")

	cloneErr := run.Pusher.CloneFromBundle(ctx, h.params.BundlePath, mirror)
	if cloneErr != nil {
		return Outcome{}, cloneErr
	}

	pushErr := run.Pusher.PushMirror(ctx, mirror, run.RepoURL())
	if pushErr != nil {
		return Outcome{}, pushErr
	}

	return Outcome{Outputs: map[string]any{"bundle": h.params.BundlePath}}, nil
}

func (h *repoPush) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	info, err := os.Stat(h.params.BundlePath)
	if err != nil || info.IsDir() {
		return Outcome{
			Simulation: SimWouldFail,
			Outputs:    map[string]any{"reason": "git bundle not found at " + h.params.BundlePath},
		}, nil
	}

	return Outcome{Simulation: SimWouldExecute}, nil
}

type repoConfigure struct {
	nonReversible

	params plan.RepoConfigureParams
}

func newRepoConfigure(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.RepoConfigureParams](action)
	if err != nil {
		return nil, err
	}

	return &repoConfigure{params: params}, nil
}

func (h *repoConfigure) Execute(ctx context.Context, run *Context) (Outcome, error) {
	settings := github.RepoSettings{
		HasIssues:     &h.params.HasIssues,
		HasWiki:       &h.params.HasWiki,
		DefaultBranch: &h.params.DefaultBranch,
	}

	// Archiving happens last so it never blocks the remaining writes.
	if h.params.Archived {
		settings.Archived = &h.params.Archived
	}

	err := run.Forge.UpdateRepo(ctx, h.params.Name, settings)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Outputs: map[string]any{"default_branch": h.params.DefaultBranch}}, nil
}

func (h *repoConfigure) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldUpdate}, nil
}

type lfsConfigure struct {
	nonReversible

	params plan.LFSConfigureParams
}

func newLFSConfigure(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.LFSConfigureParams](action)
	if err != nil {
		return nil, err
	}

	return &lfsConfigure{params: params}, nil
}

// Execute records the manual step: LFS object bits do not travel inside
// a git bundle, so the operator must push them from the source clone.
func (h *lfsConfigure) Execute(_ context.Context, run *Context) (Outcome, error) {
	return Outcome{Outputs: map[string]any{
		"repo": h.params.Name,
		"note": "run 'git lfs fetch --all' on the source clone, then 'git lfs push --all " + run.RepoURL() + "'",
	}}, nil
}

func (h *lfsConfigure) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldExecute}, nil
}
