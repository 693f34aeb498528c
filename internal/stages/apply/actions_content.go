package apply

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/gitport/internal/forge"
	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
)

type wikiPush struct {
	nonReversible

	params plan.WikiPushParams
}

func newWikiPush(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.WikiPushParams](action)
	if err != nil {
		return nil, err
	}

	return &wikiPush{params: params}, nil
}

func (h *wikiPush) Execute(ctx context.Context, run *Context) (Outcome, error) {
	err := run.Pusher.PushWiki(ctx, h.params.WikiRepoPath, run.WikiURL())
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Outputs: map[string]any{"wiki": run.WikiURL()}}, nil
}

func (h *wikiPush) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	info, err := os.Stat(h.params.WikiRepoPath)
	if err != nil || !info.IsDir() {
		return Outcome{
			Simulation: SimWouldFail,
			Outputs:    map[string]any{"reason": "wiki clone not found at " + h.params.WikiRepoPath},
		}, nil
	}

	return Outcome{Simulation: SimWouldExecute}, nil
}

type wikiCommit struct {
	nonReversible

	params plan.WikiCommitParams
}

func newWikiCommit(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.WikiCommitParams](action)
	if err != nil {
		return nil, err
	}

	return &wikiCommit{params: params}, nil
}

// Execute preserves a single wiki page inside the migration archive of
// the main repository; the destination wiki has no write API.
func (h *wikiCommit) Execute(ctx context.Context, run *Context) (Outcome, error) {
	path := "migration-archive/wiki/" + h.params.Name

	sha, err := run.Forge.CommitFile(ctx, run.Repo, path, run.DefaultBranch,
		"Preserve wiki page "+h.params.Name, []byte(h.params.Content))
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Outputs: map[string]any{"path": path, "sha": sha}}, nil
}

func (h *wikiCommit) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

type releaseCreate struct {
	params plan.ReleaseCreateParams
}

func newReleaseCreate(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.ReleaseCreateParams](action)
	if err != nil {
		return nil, err
	}

	return &releaseCreate{params: params}, nil
}

func (h *releaseCreate) Execute(ctx context.Context, run *Context) (Outcome, error) {
	release, err := run.Forge.CreateRelease(ctx, run.Repo, github.NewRelease{
		TagName: h.params.TagName,
		Name:    h.params.Name,
		Body:    h.params.Body,
	})
	if err != nil {
		return Outcome{}, err
	}

	run.IDs.Set(mappingRelease, h.params.TagName, release.ID)

	return Outcome{
		Outputs:      map[string]any{"release_id": release.ID, "html_url": release.HTMLURL},
		RollbackData: map[string]any{"release_id": release.ID},
	}, nil
}

func (h *releaseCreate) CheckIdempotency(ctx context.Context, run *Context) (Outcome, bool, error) {
	release, err := run.Forge.ReleaseByTag(ctx, run.Repo, h.params.TagName)
	if err != nil {
		if isNotFound(err) {
			return Outcome{}, false, nil
		}

		return Outcome{}, false, err
	}

	run.IDs.Set(mappingRelease, h.params.TagName, release.ID)

	return Outcome{
		Outputs:      map[string]any{"existing": true, "release_id": release.ID},
		RollbackData: map[string]any{"release_id": release.ID},
	}, true, nil
}

func (h *releaseCreate) Simulate(ctx context.Context, run *Context) (Outcome, error) {
	_, err := run.Forge.ReleaseByTag(ctx, run.Repo, h.params.TagName)
	if err == nil {
		return Outcome{
			Simulation: SimWouldSkip,
			Outputs:    map[string]any{"reason": "release for tag " + h.params.TagName + " already exists"},
		}, nil
	}

	if isNotFound(err) {
		return Outcome{Simulation: SimWouldCreate}, nil
	}

	return Outcome{}, err
}

func (h *releaseCreate) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	releaseID, ok := intFrom(data, "release_id")
	if !ok {
		return fmt.Errorf("release rollback: no release id recorded")
	}

	return run.Forge.DeleteRelease(ctx, run.Repo, releaseID)
}

type releaseAssetUpload struct {
	params plan.ReleaseAssetUploadParams
}

func newReleaseAssetUpload(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.ReleaseAssetUploadParams](action)
	if err != nil {
		return nil, err
	}

	return &releaseAssetUpload{params: params}, nil
}

func (h *releaseAssetUpload) Execute(ctx context.Context, run *Context) (Outcome, error) {
	release, lookupErr := run.Forge.ReleaseByTag(ctx, run.Repo, h.params.TagName)
	if lookupErr != nil {
		return Outcome{}, lookupErr
	}

	asset, err := run.Forge.UploadReleaseAsset(ctx, release.UploadURL, h.params.AssetName, h.params.LocalPath)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Outputs:      map[string]any{"asset_id": asset.ID, "name": asset.Name, "size": asset.Size},
		RollbackData: map[string]any{"asset_id": asset.ID},
	}, nil
}

func (h *releaseAssetUpload) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	info, err := os.Stat(h.params.LocalPath)
	if err != nil || info.IsDir() {
		return Outcome{
			Simulation: SimWouldFail,
			Outputs:    map[string]any{"reason": "downloaded asset not found at " + h.params.LocalPath},
		}, nil
	}

	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *releaseAssetUpload) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	assetID, ok := intFrom(data, "asset_id")
	if !ok {
		return fmt.Errorf("asset rollback: no asset id recorded")
	}

	return run.Forge.DeleteReleaseAsset(ctx, run.Repo, assetID)
}

type packagePublish struct {
	nonReversible

	params plan.PackagePublishParams
}

func newPackagePublish(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.PackagePublishParams](action)
	if err != nil {
		return nil, err
	}

	return &packagePublish{params: params}, nil
}

// Execute records the manual step. Package registry bits never move
// automatically; the emitted registry script covers container images.
func (h *packagePublish) Execute(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Outputs: map[string]any{
		"package": h.params.Name,
		"version": h.params.Version,
		"type":    h.params.PackageType,
		"note":    "re-publish manually; registry contents are not transferred",
	}}, nil
}

func (h *packagePublish) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldSkip}, nil
}

// isNotFound reports whether a forge failure means the entity is absent.
func isNotFound(err error) bool {
	var fe *forge.Error
	if errors.As(err, &fe) {
		return fe.Category == forge.CategoryNotFound
	}

	return false
}
