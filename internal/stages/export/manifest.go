package export

import "time"

// Component names of the export control list. Every run writes all of
// them into the manifest with a terminal status.
const (
	ComponentRepository    = "repository"
	ComponentCICD          = "ci_cd"
	ComponentIssues        = "issues"
	ComponentMergeRequests = "merge_requests"
	ComponentWiki          = "wiki"
	ComponentReleases      = "releases"
	ComponentPackages      = "packages"
	ComponentSettings      = "settings"
)

// Components is the export order. Repository first so later components
// can assume the clone happened.
var Components = []string{
	ComponentRepository, ComponentCICD, ComponentIssues, ComponentMergeRequests,
	ComponentWiki, ComponentReleases, ComponentPackages, ComponentSettings,
}

// Terminal component statuses.
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Overall manifest statuses.
const (
	OverallSuccess = "success"
	OverallPartial = "partial"
	OverallFailed  = "failed"
)

// ComponentResult is one component's terminal record in the manifest.
type ComponentResult struct {
	Status   string   `json:"status"`
	Items    int      `json:"items"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Manifest enumerates every component with its terminal status.
type Manifest struct {
	ProjectID   int64                      `json:"project_id"`
	ProjectPath string                     `json:"project_path"`
	Status      string                     `json:"status"`
	Components  map[string]ComponentResult `json:"components"`
	StartedAt   time.Time                  `json:"started_at"`
	FinishedAt  time.Time                  `json:"finished_at"`
}

// overall derives the manifest status from component results.
func (m *Manifest) overall() string {
	completed := 0

	for _, result := range m.Components {
		if result.Status != StatusFailed {
			completed++
		}
	}

	switch completed {
	case len(m.Components):
		return OverallSuccess
	case 0:
		return OverallFailed
	default:
		return OverallPartial
	}
}
