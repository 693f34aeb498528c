// Package discovery inventories source projects: which components hold
// data, how much, and how hard the migration will be.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// Component keys of the inventory map. Every inventory carries all of
// them, enabled or not.
const (
	ComponentRepository         = "repository"
	ComponentCICD               = "ci_cd"
	ComponentIssues             = "issues"
	ComponentMergeRequests      = "merge_requests"
	ComponentWiki               = "wiki"
	ComponentReleases           = "releases"
	ComponentPackages           = "packages"
	ComponentWebhooks           = "webhooks"
	ComponentSchedules          = "schedules"
	ComponentLFS                = "lfs"
	ComponentEnvironments       = "environments"
	ComponentProtectedResources = "protected_resources"
	ComponentDeployKeys         = "deploy_keys"
	ComponentVariables          = "variables"
)

// ComponentKeys is the fixed inventory key set in stable order.
var ComponentKeys = []string{
	ComponentRepository, ComponentCICD, ComponentIssues, ComponentMergeRequests,
	ComponentWiki, ComponentReleases, ComponentPackages, ComponentWebhooks,
	ComponentSchedules, ComponentLFS, ComponentEnvironments,
	ComponentProtectedResources, ComponentDeployKeys, ComponentVariables,
}

// Complexity levels of the readiness assessment.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// Component describes one inventoried component.
type Component struct {
	Enabled bool           `json:"enabled"`
	Counts  map[string]int `json:"counts,omitempty"`
	HasData bool           `json:"has_data"`
	Error   string         `json:"error,omitempty"`
}

// Readiness is the migration readiness assessment of one project.
type Readiness struct {
	Complexity     string   `json:"complexity"`
	Blockers       []string `json:"blockers"`
	Notes          []string `json:"notes"`
	Recommendation string   `json:"recommendation"`
}

// Inventory is the discovery output for one project.
type Inventory struct {
	ProjectID   int64                `json:"project_id"`
	ProjectPath string               `json:"project_path"`
	Name        string               `json:"name"`
	Visibility  string               `json:"visibility"`
	Components  map[string]Component `json:"components"`
	Readiness   Readiness            `json:"readiness"`
}

// Output is the discovery stage result.
type Output struct {
	Projects    []gitlab.Project `json:"projects"`
	Inventories []Inventory      `json:"inventories"`
}

// Stage discovers projects and builds inventories.
type Stage struct {
	GitLab *gitlab.Client
	Logger *slog.Logger
}

// NewStage creates a discovery stage.
func NewStage(client *gitlab.Client, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}

	return &Stage{GitLab: client, Logger: logger}
}

// Run discovers either every project of a group or a single project,
// inventories each, and writes the inventory artifact.
func (s *Stage) Run(ctx context.Context, tree artifacts.Tree, groupPath, projectPath string) (Output, error) {
	var out Output

	if projectPath != "" {
		project, err := s.GitLab.ProjectByPath(ctx, projectPath)
		if err != nil {
			return out, fmt.Errorf("discover project: %w", err)
		}

		out.Projects = append(out.Projects, project)
	} else {
		err := s.GitLab.GroupProjects(ctx, groupPath, func(project gitlab.Project) error {
			out.Projects = append(out.Projects, project)

			return nil
		})
		if err != nil {
			return out, fmt.Errorf("discover group: %w", err)
		}
	}

	for _, project := range out.Projects {
		inventory := s.inventory(ctx, project)
		out.Inventories = append(out.Inventories, inventory)

		s.Logger.Info("project inventoried",
			"project", project.PathWithNamespace,
			"complexity", inventory.Readiness.Complexity,
			"blockers", len(inventory.Readiness.Blockers))
	}

	writeErr := persist.WriteJSON(tree.InventoryPath(), out)
	if writeErr != nil {
		return out, fmt.Errorf("write inventory: %w", writeErr)
	}

	return out, nil
}

// inventory probes every component of one project. Per-component
// failures are recorded, never fatal.
func (s *Stage) inventory(ctx context.Context, project gitlab.Project) Inventory {
	components := make(map[string]Component, len(ComponentKeys))
	for _, key := range ComponentKeys {
		components[key] = Component{}
	}

	components[ComponentRepository] = s.repositoryComponent(ctx, project)
	components[ComponentCICD] = s.ciComponent(ctx, project)
	components[ComponentIssues] = probeCount(project.IssuesEnabled, "issues",
		func() (int, error) { return s.GitLab.IssueCount(ctx, project.ID) })
	components[ComponentMergeRequests] = probeCount(project.MergeRequestsEnabled, "merge_requests",
		func() (int, error) { return s.GitLab.MergeRequestCount(ctx, project.ID) })
	components[ComponentWiki] = s.wikiComponent(ctx, project)
	components[ComponentReleases] = probeCount(true, "releases",
		func() (int, error) { return lenOf(s.GitLab.Releases(ctx, project.ID)) })
	components[ComponentPackages] = probeCount(project.PackagesEnabled, "packages",
		func() (int, error) { return lenOf(s.GitLab.Packages(ctx, project.ID)) })
	components[ComponentWebhooks] = probeCount(true, "webhooks",
		func() (int, error) { return lenOf(s.GitLab.Webhooks(ctx, project.ID)) })
	components[ComponentSchedules] = probeCount(project.JobsEnabled, "schedules",
		func() (int, error) { return lenOf(s.GitLab.Schedules(ctx, project.ID)) })
	components[ComponentLFS] = s.lfsComponent(ctx, project)
	components[ComponentEnvironments] = probeCount(project.JobsEnabled, "environments",
		func() (int, error) { return lenOf(s.GitLab.Environments(ctx, project.ID)) })
	components[ComponentProtectedResources] = s.protectedComponent(ctx, project)
	components[ComponentDeployKeys] = probeCount(true, "deploy_keys",
		func() (int, error) { return lenOf(s.GitLab.DeployKeys(ctx, project.ID)) })
	components[ComponentVariables] = s.variablesComponent(ctx, project)

	return Inventory{
		ProjectID:   project.ID,
		ProjectPath: project.PathWithNamespace,
		Name:        project.Name,
		Visibility:  project.Visibility,
		Components:  components,
		Readiness:   assess(components),
	}
}

func (s *Stage) repositoryComponent(ctx context.Context, project gitlab.Project) Component {
	branches, err := s.GitLab.Branches(ctx, project.ID)
	if err != nil {
		return Component{Enabled: true, Error: err.Error()}
	}

	tags, tagErr := s.GitLab.Tags(ctx, project.ID)
	if tagErr != nil {
		return Component{Enabled: true, Error: tagErr.Error()}
	}

	commits, commitErr := s.GitLab.CommitCount(ctx, project.ID)
	if commitErr != nil {
		commits = 0
	}

	counts := map[string]int{
		"branches": len(branches),
		"tags":     len(tags),
		"commits":  commits,
	}

	return Component{Enabled: true, Counts: counts, HasData: commits > 0 || len(branches) > 0}
}

func (s *Stage) ciComponent(ctx context.Context, project gitlab.Project) Component {
	if !project.JobsEnabled {
		return Component{}
	}

	hasCI := s.GitLab.HasFile(ctx, project.ID, ".gitlab-ci.yml", project.DefaultBranch)

	return Component{
		Enabled: true,
		Counts:  map[string]int{"ci_files": boolCount(hasCI)},
		HasData: hasCI,
	}
}

func (s *Stage) wikiComponent(ctx context.Context, project gitlab.Project) Component {
	if !project.WikiEnabled {
		return Component{}
	}

	pages, err := s.GitLab.WikiPageCount(ctx, project.ID)
	if err != nil {
		return Component{Enabled: true, Error: err.Error()}
	}

	return Component{Enabled: true, Counts: map[string]int{"pages": pages}, HasData: pages > 0}
}

func (s *Stage) lfsComponent(ctx context.Context, project gitlab.Project) Component {
	if !project.LFSEnabled {
		return Component{}
	}

	detected := s.GitLab.LFSPointerProbe(ctx, project.ID, project.DefaultBranch)

	return Component{Enabled: true, HasData: detected}
}

func (s *Stage) protectedComponent(ctx context.Context, project gitlab.Project) Component {
	branches, err := s.GitLab.ProtectedBranches(ctx, project.ID)
	if err != nil {
		return Component{Enabled: true, Error: err.Error()}
	}

	tags, tagErr := s.GitLab.ProtectedTags(ctx, project.ID)
	if tagErr != nil {
		return Component{Enabled: true, Error: tagErr.Error()}
	}

	counts := map[string]int{"branches": len(branches), "tags": len(tags)}

	return Component{Enabled: true, Counts: counts, HasData: len(branches)+len(tags) > 0}
}

func (s *Stage) variablesComponent(ctx context.Context, project gitlab.Project) Component {
	if !project.JobsEnabled {
		return Component{}
	}

	variables, err := s.GitLab.Variables(ctx, project.ID)
	if err != nil {
		return Component{Enabled: true, Error: err.Error()}
	}

	masked := 0

	for _, variable := range variables {
		if variable.Masked {
			masked++
		}
	}

	counts := map[string]int{"variables": len(variables), "masked": masked}

	return Component{Enabled: true, Counts: counts, HasData: len(variables) > 0}
}

// probeCount inventories a component whose size comes from a single
// count or list endpoint.
func probeCount(enabled bool, name string, count func() (int, error)) Component {
	if !enabled {
		return Component{}
	}

	n, err := count()
	if err != nil {
		return Component{Enabled: true, Error: err.Error()}
	}

	return Component{Enabled: true, Counts: map[string]int{name: n}, HasData: n > 0}
}

func lenOf[T any](items []T, err error) (int, error) {
	if err != nil {
		return 0, err
	}

	return len(items), nil
}

func boolCount(b bool) int {
	if b {
		return 1
	}

	return 0
}
