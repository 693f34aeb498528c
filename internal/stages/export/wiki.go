package export

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/checkpoint"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
)

const (
	wikiDisabledContent = "Wiki is disabled on the source project. Nothing to migrate.\n"
	wikiEmptyContent    = "Wiki repository exists but contains no pages. Nothing to migrate.\n"
)

// exportWiki clones the wiki repository, or writes a sentinel file
// naming why there is nothing to clone.
func (s *Stage) exportWiki(ctx context.Context, tree artifacts.Tree, project gitlab.Project, _ *checkpoint.Checkpoint) (int, []string, error) {
	mkdirErr := os.MkdirAll(tree.WikiDir(), 0o755)
	if mkdirErr != nil {
		return 0, nil, fmt.Errorf("create wiki dir: %w", mkdirErr)
	}

	if !project.WikiEnabled {
		return 0, nil, writeSentinel(tree.WikiDisabledPath(), wikiDisabledContent)
	}

	// A stale partial clone blocks git clone.
	removeErr := os.RemoveAll(tree.WikiRepoPath())
	if removeErr != nil {
		return 0, nil, fmt.Errorf("clear stale wiki clone: %w", removeErr)
	}

	cloneErr := s.Git.CloneWiki(ctx, project.HTTPURLToRepo, tree.WikiRepoPath())

	switch {
	case cloneErr == nil:
		return 1, nil, nil
	case errors.Is(cloneErr, gitlab.ErrWikiMissing), errors.Is(cloneErr, gitlab.ErrWikiEmpty):
		_ = os.RemoveAll(tree.WikiRepoPath())

		return 0, nil, writeSentinel(tree.WikiEmptyPath(), wikiEmptyContent)
	default:
		return 0, nil, cloneErr
	}
}
