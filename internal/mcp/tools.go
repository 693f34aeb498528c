package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/pipeline"
	"github.com/Sumatoshi-tech/gitport/internal/stages/apply"
	"github.com/Sumatoshi-tech/gitport/internal/stages/export"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
	"github.com/Sumatoshi-tech/gitport/internal/stages/transform"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// Tool name constants.
const (
	ToolNameStatus      = "migration_status"
	ToolNamePlanSummary = "plan_summary"
	ToolNameGaps        = "conversion_gaps"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyProject indicates the project parameter is empty.
	ErrEmptyProject = errors.New("project parameter is required and must not be empty")
	// ErrBadSeverity indicates an unknown severity filter.
	ErrBadSeverity = errors.New("severity must be one of info, warning, blocking")
	// ErrNoPlan indicates the project has no plan artifact yet.
	ErrNoPlan = errors.New("no plan found; run the plan stage first")
)

// StatusInput is the input schema for the migration_status tool.
type StatusInput struct {
	Project string `json:"project" jsonschema:"source project path, e.g. group/widget"`
}

// PlanSummaryInput is the input schema for the plan_summary tool.
type PlanSummaryInput struct {
	Project string `json:"project" jsonschema:"source project path, e.g. group/widget"`
}

// GapsInput is the input schema for the conversion_gaps tool.
type GapsInput struct {
	Project  string `json:"project"            jsonschema:"source project path, e.g. group/widget"`
	Severity string `json:"severity,omitempty" jsonschema:"optional severity filter: info, warning or blocking"`
}

// MigrationStatus is the migration_status tool output.
type MigrationStatus struct {
	Project          string            `json:"project"`
	Run              *pipeline.Result  `json:"run,omitempty"`
	ExportStatus     string            `json:"export_status,omitempty"`
	ApplyStatus      string            `json:"apply_status,omitempty"`
	ActionsApplied   int               `json:"actions_applied,omitempty"`
	ActionsFailed    int               `json:"actions_failed,omitempty"`
	VerifyComponents map[string]string `json:"verify_components,omitempty"`
}

// PlanSummary is the plan_summary tool output.
type PlanSummary struct {
	GitLabProject      string           `json:"gitlab_project"`
	GitHubTarget       string           `json:"github_target"`
	Summary            plan.Summary     `json:"summary"`
	Phases             []string         `json:"phases"`
	UserInputsRequired []plan.UserInput `json:"user_inputs_required,omitempty"`
}

// GapReport is the conversion_gaps tool output.
type GapReport struct {
	Project string          `json:"project"`
	Total   int             `json:"total"`
	Gaps    []transform.Gap `json:"gaps"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) handleStatus(_ context.Context, _ *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Project == "" {
		return errorResult(ErrEmptyProject)
	}

	tree := artifacts.ProjectTree(s.root, input.Project)
	status := MigrationStatus{Project: input.Project}

	var run pipeline.Result

	found, err := readArtifact(tree.RunReportPath(), &run)
	if err != nil {
		return errorResult(err)
	}

	if found {
		status.Run = &run
	}

	var manifest export.Manifest

	found, err = readArtifact(tree.ManifestPath(), &manifest)
	if err != nil {
		return errorResult(err)
	}

	if found {
		status.ExportStatus = manifest.Status
	}

	var report apply.Report

	found, err = readArtifact(tree.ApplyReportPath(), &report)
	if err != nil {
		return errorResult(err)
	}

	if found {
		status.ApplyStatus = report.Status
		status.ActionsApplied = report.Successful
		status.ActionsFailed = report.Failed
	}

	var components map[string]string

	found, err = readArtifact(tree.ComponentStatusPath(), &components)
	if err != nil {
		return errorResult(err)
	}

	if found {
		status.VerifyComponents = components
	}

	return jsonResult(status)
}

func (s *Server) handlePlanSummary(_ context.Context, _ *mcpsdk.CallToolRequest, input PlanSummaryInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Project == "" {
		return errorResult(ErrEmptyProject)
	}

	tree := artifacts.ProjectTree(s.root, input.Project)

	loaded, err := plan.Load(tree.PlanPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errorResult(ErrNoPlan)
		}

		return errorResult(err)
	}

	phases := make([]string, 0, len(loaded.Phases))
	for _, phase := range loaded.Phases {
		phases = append(phases, phase.Name)
	}

	return jsonResult(PlanSummary{
		GitLabProject:      loaded.GitLabProject,
		GitHubTarget:       loaded.GitHubTarget,
		Summary:            loaded.Summary,
		Phases:             phases,
		UserInputsRequired: loaded.UserInputsRequired,
	})
}

func (s *Server) handleGaps(_ context.Context, _ *mcpsdk.CallToolRequest, input GapsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Project == "" {
		return errorResult(ErrEmptyProject)
	}

	severity := transform.Severity(input.Severity)

	switch severity {
	case "", transform.SeverityInfo, transform.SeverityWarning, transform.SeverityBlocking:
	default:
		return errorResult(ErrBadSeverity)
	}

	tree := artifacts.ProjectTree(s.root, input.Project)

	var gaps []transform.Gap

	if _, err := readArtifact(tree.GapsPath(), &gaps); err != nil {
		return errorResult(err)
	}

	if severity != "" {
		filtered := gaps[:0]

		for _, gap := range gaps {
			if gap.Severity == severity {
				filtered = append(filtered, gap)
			}
		}

		gaps = filtered
	}

	if gaps == nil {
		gaps = []transform.Gap{}
	}

	return jsonResult(GapReport{Project: input.Project, Total: len(gaps), Gaps: gaps})
}

// readArtifact reads a JSON artifact, reporting whether it exists.
func readArtifact(path string, into any) (bool, error) {
	err := persist.ReadJSON(path, into)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("read artifact: %w", err)
	}

	return true, nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
