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

// exportPackages captures package registry metadata only. Binary
// artifacts stay in the source registry; transform emits a migration
// script for them.
func (s *Stage) exportPackages(ctx context.Context, tree artifacts.Tree, project gitlab.Project, _ *checkpoint.Checkpoint) (int, []string, error) {
	mkdirErr := os.MkdirAll(tree.PackagesDir(), 0o755)
	if mkdirErr != nil {
		return 0, nil, fmt.Errorf("create packages dir: %w", mkdirErr)
	}

	packages := []gitlab.Package{}

	if project.PackagesEnabled {
		var err error

		packages, err = s.GitLab.Packages(ctx, project.ID)
		if err != nil {
			return 0, nil, err
		}
	}

	writeErr := persist.WriteJSON(tree.PackagesPath(), packages)
	if writeErr != nil {
		return 0, nil, fmt.Errorf("write packages: %w", writeErr)
	}

	var warnings []string
	if len(packages) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d packages exported as metadata only; binaries remain in the source registry", len(packages)))
	}

	return len(packages), warnings, nil
}
