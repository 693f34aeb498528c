package apply

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
)

type artifactCommit struct {
	nonReversible

	params plan.ArtifactCommitParams
}

func newArtifactCommit(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.ArtifactCommitParams](action)
	if err != nil {
		return nil, err
	}

	return &artifactCommit{params: params}, nil
}

func (h *artifactCommit) Execute(ctx context.Context, run *Context) (Outcome, error) {
	content, readErr := os.ReadFile(h.params.SourcePath)
	if readErr != nil {
		return Outcome{}, fmt.Errorf("read artifact: %w", readErr)
	}

	sha, err := run.Forge.CommitFile(ctx, run.Repo, h.params.DestPath, h.params.Branch,
		"Preserve "+h.params.Name+" from the migration", content)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Outputs: map[string]any{"path": h.params.DestPath, "sha": sha}}, nil
}

func (h *artifactCommit) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	info, err := os.Stat(h.params.SourcePath)
	if err != nil || info.IsDir() {
		return Outcome{
			Simulation: SimWouldFail,
			Outputs:    map[string]any{"reason": "artifact not found at " + h.params.SourcePath},
		}, nil
	}

	return Outcome{Simulation: SimWouldCreate}, nil
}

type attachmentsCommit struct {
	nonReversible

	params plan.AttachmentsCommitParams
}

func newAttachmentsCommit(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.AttachmentsCommitParams](action)
	if err != nil {
		return nil, err
	}

	return &attachmentsCommit{params: params}, nil
}

func (h *attachmentsCommit) Execute(ctx context.Context, run *Context) (Outcome, error) {
	committed := 0

	walkErr := filepath.WalkDir(h.params.SourceDir, func(file string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		content, readErr := os.ReadFile(file)
		if readErr != nil {
			return fmt.Errorf("read attachment: %w", readErr)
		}

		rel, relErr := filepath.Rel(h.params.SourceDir, file)
		if relErr != nil {
			return fmt.Errorf("resolve attachment path: %w", relErr)
		}

		dest := path.Join(h.params.DestPath, filepath.ToSlash(rel))

		_, commitErr := run.Forge.CommitFile(ctx, run.Repo, dest, h.params.Branch,
			"Preserve migrated attachment "+entry.Name(), content)
		if commitErr != nil {
			return commitErr
		}

		committed++

		return nil
	})
	if walkErr != nil {
		return Outcome{}, walkErr
	}

	return Outcome{Outputs: map[string]any{"files": committed, "path": h.params.DestPath}}, nil
}

func (h *attachmentsCommit) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	count := 0

	filepath.WalkDir(h.params.SourceDir, func(_ string, entry fs.DirEntry, err error) error {
		if err == nil && !entry.IsDir() {
			count++
		}

		return nil
	})

	if count == 0 {
		return Outcome{Simulation: SimWouldSkip}, nil
	}

	return Outcome{
		Simulation: SimWouldCreate,
		Outputs:    map[string]any{"files": count},
	}, nil
}
