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

// maskedSecret replaces secret material before it touches disk.
const maskedSecret = "***"

// ProjectSettings is the subset of project toggles the plan stage maps
// onto destination repository settings.
type ProjectSettings struct {
	Description          string `json:"description"`
	Visibility           string `json:"visibility"`
	DefaultBranch        string `json:"default_branch"`
	Archived             bool   `json:"archived"`
	IssuesEnabled        bool   `json:"issues_enabled"`
	MergeRequestsEnabled bool   `json:"merge_requests_enabled"`
	WikiEnabled          bool   `json:"wiki_enabled"`
	LFSEnabled           bool   `json:"lfs_enabled"`
	PackagesEnabled      bool   `json:"packages_enabled"`
	ContainerRegistry    bool   `json:"container_registry_enabled"`
}

// exportSettings captures governance state: protections, members,
// webhooks, deploy keys, and project toggles. Webhook tokens and deploy
// key material are masked before persisting.
func (s *Stage) exportSettings(ctx context.Context, tree artifacts.Tree, project gitlab.Project, _ *checkpoint.Checkpoint) (int, []string, error) {
	mkdirErr := os.MkdirAll(tree.SettingsDir(), 0o755)
	if mkdirErr != nil {
		return 0, nil, fmt.Errorf("create settings dir: %w", mkdirErr)
	}

	items := 0

	branches, err := s.GitLab.ProtectedBranches(ctx, project.ID)
	if err != nil {
		return items, nil, err
	}

	writeErr := persist.WriteJSON(tree.ProtectedBranchesPath(), branches)
	if writeErr != nil {
		return items, nil, fmt.Errorf("write protected branches: %w", writeErr)
	}

	items += len(branches)

	tags, err := s.GitLab.ProtectedTags(ctx, project.ID)
	if err != nil {
		return items, nil, err
	}

	writeErr = persist.WriteJSON(tree.ProtectedTagsPath(), tags)
	if writeErr != nil {
		return items, nil, fmt.Errorf("write protected tags: %w", writeErr)
	}

	items += len(tags)

	members, err := s.GitLab.Members(ctx, project.ID)
	if err != nil {
		return items, nil, err
	}

	writeErr = persist.WriteJSON(tree.MembersPath(), members)
	if writeErr != nil {
		return items, nil, fmt.Errorf("write members: %w", writeErr)
	}

	items += len(members)

	webhooks, err := s.GitLab.Webhooks(ctx, project.ID)
	if err != nil {
		return items, nil, err
	}

	for i := range webhooks {
		if webhooks[i].Token != "" {
			webhooks[i].Token = maskedSecret
		}
	}

	writeErr = persist.WriteJSON(tree.WebhooksPath(), webhooks)
	if writeErr != nil {
		return items, nil, fmt.Errorf("write webhooks: %w", writeErr)
	}

	items += len(webhooks)

	keys, err := s.GitLab.DeployKeys(ctx, project.ID)
	if err != nil {
		return items, nil, err
	}

	// Downstream only needs key metadata; the material itself is masked.
	for i := range keys {
		keys[i].Key = maskedSecret
	}

	writeErr = persist.WriteJSON(tree.DeployKeysPath(), keys)
	if writeErr != nil {
		return items, nil, fmt.Errorf("write deploy keys: %w", writeErr)
	}

	items += len(keys)

	rules, rulesErr := s.GitLab.ApprovalRules(ctx, project.ID)
	if rulesErr != nil {
		// Approval rules live behind a paid tier on some instances.
		rules = []gitlab.ApprovalRule{}
	}

	writeErr = persist.WriteJSON(tree.ApprovalRulesPath(), rules)
	if writeErr != nil {
		return items, nil, fmt.Errorf("write approval rules: %w", writeErr)
	}

	items += len(rules)

	settings := ProjectSettings{
		Description:          project.Description,
		Visibility:           project.Visibility,
		DefaultBranch:        project.DefaultBranch,
		Archived:             project.Archived,
		IssuesEnabled:        project.IssuesEnabled,
		MergeRequestsEnabled: project.MergeRequestsEnabled,
		WikiEnabled:          project.WikiEnabled,
		LFSEnabled:           project.LFSEnabled,
		PackagesEnabled:      project.PackagesEnabled,
		ContainerRegistry:    project.ContainerRegistry,
	}

	writeErr = persist.WriteJSON(tree.ProjectSettingsPath(), settings)
	if writeErr != nil {
		return items, nil, fmt.Errorf("write project settings: %w", writeErr)
	}

	items++

	return items, nil, nil
}
