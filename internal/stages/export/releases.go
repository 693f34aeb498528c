package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/checkpoint"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// exportReleases captures release metadata and downloads each asset
// link. Asset failures degrade to warnings so the release records
// themselves always land.
func (s *Stage) exportReleases(ctx context.Context, tree artifacts.Tree, project gitlab.Project, _ *checkpoint.Checkpoint) (int, []string, error) {
	mkdirErr := os.MkdirAll(tree.ReleasesDir(), 0o755)
	if mkdirErr != nil {
		return 0, nil, fmt.Errorf("create releases dir: %w", mkdirErr)
	}

	releases, err := s.GitLab.Releases(ctx, project.ID)
	if err != nil {
		return 0, nil, err
	}

	var warnings []string

	for i := range releases {
		release := &releases[i]

		tagDir := unsafeFilenameChars.ReplaceAllString(release.TagName, "_")

		for j := range release.Assets.Links {
			link := &release.Assets.Links[j]

			localName := unsafeFilenameChars.ReplaceAllString(link.Name, "_")
			destPath := tree.ReleaseAssetPath(tagDir, localName)

			assetMkdirErr := os.MkdirAll(filepath.Dir(destPath), 0o755)
			if assetMkdirErr != nil {
				warnings = append(warnings, fmt.Sprintf("asset %s: %s", link.Name, assetMkdirErr))

				continue
			}

			_, dlErr := s.GitLab.DownloadURL(ctx, link.URL, destPath, s.Download)
			if dlErr != nil {
				warnings = append(warnings, fmt.Sprintf("asset %s (release %s): %s", link.Name, release.TagName, dlErr))

				continue
			}

			relPath, relErr := filepath.Rel(tree.ReleasesDir(), destPath)
			if relErr != nil {
				relPath = destPath
			}

			link.LocalPath = relPath
		}
	}

	writeErr := persist.WriteJSON(tree.ReleasesPath(), releases)
	if writeErr != nil {
		return 0, warnings, fmt.Errorf("write releases: %w", writeErr)
	}

	return len(releases), warnings, nil
}
