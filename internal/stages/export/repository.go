package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/checkpoint"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
)

// lfsSentinelContent explains why the sentinel exists.
const lfsSentinelContent = "LFS usage detected via .gitattributes. Fetch objects with `git lfs fetch --all` before pushing.\n"

// exportRepository mirrors the repository, writes the full-ref bundle,
// and records submodule and LFS facts.
func (s *Stage) exportRepository(ctx context.Context, tree artifacts.Tree, project gitlab.Project, _ *checkpoint.Checkpoint) (int, []string, error) {
	mkdirErr := os.MkdirAll(tree.RepositoryDir(), 0o755)
	if mkdirErr != nil {
		return 0, nil, fmt.Errorf("create repository dir: %w", mkdirErr)
	}

	mirrorDir := filepath.Join(tree.RepositoryDir(), "mirror.git")

	// A stale mirror from an interrupted run blocks git clone.
	removeErr := os.RemoveAll(mirrorDir)
	if removeErr != nil {
		return 0, nil, fmt.Errorf("clear stale mirror: %w", removeErr)
	}

	cloneErr := s.Git.CloneMirror(ctx, project.HTTPURLToRepo, mirrorDir)
	if cloneErr != nil {
		return 0, nil, cloneErr
	}

	defer os.RemoveAll(mirrorDir)

	bundleErr := s.Git.CreateBundle(ctx, mirrorDir, tree.BundlePath())
	if bundleErr != nil {
		return 0, nil, bundleErr
	}

	var warnings []string

	submodules, submoduleErr := s.GitLab.FileContent(ctx, project.ID, ".gitmodules", project.DefaultBranch)
	if submoduleErr == nil {
		writeErr := os.WriteFile(tree.SubmodulesPath(), submodules, 0o644)
		if writeErr != nil {
			warnings = append(warnings, fmt.Sprintf("submodules: %s", writeErr))
		}
	}

	if s.GitLab.LFSPointerProbe(ctx, project.ID, project.DefaultBranch) {
		sentinelErr := writeSentinel(tree.LFSSentinelPath(), lfsSentinelContent)
		if sentinelErr != nil {
			warnings = append(warnings, fmt.Sprintf("lfs sentinel: %s", sentinelErr))
		}
	}

	return 1, warnings, nil
}

// writeSentinel writes a small marker file, creating its directory.
func writeSentinel(path, content string) error {
	mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755)
	if mkdirErr != nil {
		return mkdirErr
	}

	return os.WriteFile(path, []byte(content), 0o644)
}
