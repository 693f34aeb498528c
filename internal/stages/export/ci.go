package export

import (
	"context"
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/checkpoint"
	"github.com/Sumatoshi-tech/gitport/internal/forge"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// exportCI captures the CI config, variables metadata, environments,
// schedules, and recent pipeline history.
func (s *Stage) exportCI(ctx context.Context, tree artifacts.Tree, project gitlab.Project, _ *checkpoint.Checkpoint) (int, []string, error) {
	mkdirErr := os.MkdirAll(tree.CIDir(), 0o755)
	if mkdirErr != nil {
		return 0, nil, fmt.Errorf("create ci dir: %w", mkdirErr)
	}

	items := 0

	var warnings []string

	ciConfig, ciErr := s.GitLab.FileContent(ctx, project.ID, ".gitlab-ci.yml", project.DefaultBranch)

	switch {
	case ciErr == nil:
		writeErr := os.WriteFile(tree.CIConfigPath(), ciConfig, 0o644)
		if writeErr != nil {
			return items, warnings, fmt.Errorf("write ci config: %w", writeErr)
		}

		items++
	case forge.AsError("GitLab", ciErr).Category != forge.CategoryNotFound:
		return items, warnings, ciErr
	}

	variables, varErr := s.GitLab.Variables(ctx, project.ID)
	if varErr != nil {
		return items, warnings, varErr
	}

	writeErr := persist.WriteJSON(tree.VariablesPath(), variables)
	if writeErr != nil {
		return items, warnings, fmt.Errorf("write variables: %w", writeErr)
	}

	items += len(variables)

	environments, envErr := s.GitLab.Environments(ctx, project.ID)
	if envErr != nil {
		return items, warnings, envErr
	}

	writeErr = persist.WriteJSON(tree.EnvironmentsPath(), environments)
	if writeErr != nil {
		return items, warnings, fmt.Errorf("write environments: %w", writeErr)
	}

	items += len(environments)

	schedules, schedErr := s.GitLab.Schedules(ctx, project.ID)
	if schedErr != nil {
		return items, warnings, schedErr
	}

	writeErr = persist.WriteJSON(tree.SchedulesPath(), schedules)
	if writeErr != nil {
		return items, warnings, fmt.Errorf("write schedules: %w", writeErr)
	}

	items += len(schedules)

	pipelines, pipeErr := s.GitLab.Pipelines(ctx, project.ID, s.PipelineHistoryLimit)
	if pipeErr != nil {
		warnings = append(warnings, fmt.Sprintf("pipeline history: %s", pipeErr))

		return items, warnings, nil
	}

	writeErr = persist.WriteJSON(tree.PipelineHistoryPath(), pipelines)
	if writeErr != nil {
		return items, warnings, fmt.Errorf("write pipeline history: %w", writeErr)
	}

	archiveErr := compressFile(tree.PipelineHistoryPath(), tree.PipelineHistoryArchivePath())
	if archiveErr != nil {
		warnings = append(warnings, fmt.Sprintf("pipeline history archive: %s", archiveErr))
	}

	items += len(pipelines)

	return items, warnings, nil
}
