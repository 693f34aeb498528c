// Package pipeline sequences the migration stages for one project and
// carries the shared context between them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/config"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/observability"
	"github.com/Sumatoshi-tech/gitport/internal/stages/apply"
	"github.com/Sumatoshi-tech/gitport/internal/stages/discovery"
	"github.com/Sumatoshi-tech/gitport/internal/stages/export"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
	"github.com/Sumatoshi-tech/gitport/internal/stages/transform"
	"github.com/Sumatoshi-tech/gitport/internal/stages/verify"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

const tracerName = "gitport/pipeline"

// Mode selects which stages a run executes.
type Mode string

const (
	ModeDiscoverOnly  Mode = "DISCOVER_ONLY"
	ModeExportOnly    Mode = "EXPORT_ONLY"
	ModeTransformOnly Mode = "TRANSFORM_ONLY"
	ModePlanOnly      Mode = "PLAN_ONLY"
	ModeDryRun        Mode = "DRY_RUN"
	ModeApply         Mode = "APPLY"
	ModeVerify        Mode = "VERIFY"
	ModeFull          Mode = "FULL"
	ModeSingleProject Mode = "SINGLE_PROJECT"
)

// Stage names, also the resume_from vocabulary.
const (
	StageDiscovery = "discovery"
	StageExport    = "export"
	StageTransform = "transform"
	StagePlan      = "plan"
	StageApply     = "apply"
	StageVerify    = "verify"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// DefaultStageRetries is how many extra attempts a failed stage gets.
const DefaultStageRetries = 1

// DefaultRetryDelay separates stage attempts.
const DefaultRetryDelay = 2 * time.Second

// ErrUnknownMode reports a mode outside the sequence table.
var ErrUnknownMode = errors.New("pipeline: unknown mode")

// SequenceFor maps a mode to its stage sequence.
func SequenceFor(mode Mode) ([]string, error) {
	switch mode {
	case ModeDiscoverOnly:
		return []string{StageDiscovery}, nil
	case ModeExportOnly:
		return []string{StageDiscovery, StageExport}, nil
	case ModeTransformOnly:
		return []string{StageDiscovery, StageExport, StageTransform}, nil
	case ModePlanOnly:
		return []string{StageDiscovery, StageExport, StageTransform, StagePlan}, nil
	case ModeDryRun, ModeApply:
		return []string{StageDiscovery, StageExport, StageTransform, StagePlan, StageApply}, nil
	case ModeVerify:
		return []string{StageVerify}, nil
	case ModeFull:
		return []string{StageDiscovery, StageExport, StageTransform, StagePlan, StageApply, StageVerify}, nil
	case ModeSingleProject:
		return []string{StageExport, StageTransform, StagePlan}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}

// Target derives the destination repository from the source project
// path: the organization plus the last path segment.
func Target(org, projectPath string) string {
	return org + "/" + RepoName(projectPath)
}

// RepoName is the last segment of a source project path.
func RepoName(projectPath string) string {
	if idx := strings.LastIndex(projectPath, "/"); idx >= 0 {
		return projectPath[idx+1:]
	}

	return projectPath
}

// DiscoveryRunner is the discovery stage surface the pipeline needs.
type DiscoveryRunner interface {
	Run(ctx context.Context, tree artifacts.Tree, groupPath, projectPath string) (discovery.Output, error)
}

// ExportRunner is the export stage surface.
type ExportRunner interface {
	Run(ctx context.Context, tree artifacts.Tree, project gitlab.Project, resume bool) (export.Manifest, error)
}

// TransformRunner is the transform stage surface.
type TransformRunner interface {
	Run(ctx context.Context, tree artifacts.Tree, project gitlab.Project) (transform.Output, error)
}

// PlanRunner is the plan stage surface.
type PlanRunner interface {
	Run(ctx context.Context, tree artifacts.Tree, project gitlab.Project) (plan.Plan, error)
}

// ApplyRunner is the apply stage surface.
type ApplyRunner interface {
	Run(ctx context.Context, tree artifacts.Tree, p plan.Plan, opts apply.Options) (apply.Report, error)
}

// VerifyRunner is the verify stage surface.
type VerifyRunner interface {
	Run(ctx context.Context, tree artifacts.Tree) (verify.Report, error)
}

// ProjectResolver fetches the source project when the sequence skips
// discovery.
type ProjectResolver interface {
	ProjectByPath(ctx context.Context, path string) (gitlab.Project, error)
}

var (
	_ DiscoveryRunner = (*discovery.Stage)(nil)
	_ ExportRunner    = (*export.Stage)(nil)
	_ TransformRunner = (*transform.Stage)(nil)
	_ PlanRunner      = (*plan.Stage)(nil)
	_ ApplyRunner     = (*apply.Stage)(nil)
	_ VerifyRunner    = (*verify.Stage)(nil)
	_ ProjectResolver = (*gitlab.Client)(nil)
)

// Context is the key→value state carried across stages. Each field is
// written once by its producing stage and read-only afterwards.
type Context struct {
	DiscoveredProjects []gitlab.Project      `json:"discovered_projects,omitempty"`
	Inventories        []discovery.Inventory `json:"inventory,omitempty"`
	ExportData         *export.Manifest      `json:"export_data,omitempty"`
	TransformData      *transform.Output     `json:"transform_data,omitempty"`
	ConversionGaps     []transform.Gap       `json:"conversion_gaps,omitempty"`
	Plan               *plan.Plan            `json:"plan,omitempty"`
	ExpectedState      map[string]int        `json:"expected_state,omitempty"`
	ApplyResults       *apply.Report         `json:"apply_results,omitempty"`
	VerifyResults      *verify.Report        `json:"verify_results,omitempty"`
}

// StageResult is the outcome of one stage invocation.
type StageResult struct {
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Result is the terminal outcome of a pipeline run.
type Result struct {
	RunID         string        `json:"run_id"`
	Mode          Mode          `json:"mode"`
	GitLabProject string        `json:"gitlab_project"`
	GitHubTarget  string        `json:"github_target"`
	Status        string        `json:"status"`
	FailedAtAgent string        `json:"failed_at_agent,omitempty"`
	Stages        []StageResult `json:"stages"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`

	// Context is the final shared state; it stays in memory for
	// collaborators and out of the persisted report.
	Context *Context `json:"-"`
}

// Pipeline holds one instance of each stage and runs them in mode
// order for a single project.
type Pipeline struct {
	Logger *slog.Logger

	Discovery DiscoveryRunner
	Export    ExportRunner
	Transform TransformRunner
	Plan      PlanRunner
	Apply     ApplyRunner
	Verify    VerifyRunner

	// Resolver supplies the project when the sequence starts past
	// discovery. Optional when discovery always runs first.
	Resolver ProjectResolver

	Tree   artifacts.Tree
	Config config.Config

	// Inputs and Flags pass through to apply.
	Inputs             map[string]string
	Flags              map[string]bool
	ResumeFromActionID int

	// StageRetries is the number of extra attempts per failed stage.
	// Negative disables retries; zero means DefaultStageRetries.
	StageRetries int

	// RetryDelay separates stage attempts. Zero means DefaultRetryDelay.
	RetryDelay time.Duration

	// StageCallback fires before a stage starts, CompleteCallback after
	// it finishes. Both optional, used for progress display.
	StageCallback    func(stage string)
	CompleteCallback func(stage string, result StageResult)

	Metrics *observability.Metrics
	Tracer  trace.Tracer

	// sleep is the injection point for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Run executes the stage sequence for mode. A non-empty resumeFrom
// that names a stage in the sequence slices the sequence to start
// there. The returned error is non-nil only for setup failures and
// hard stage errors; a failed stage is also reflected in the result.
func (p *Pipeline) Run(ctx context.Context, mode Mode, resumeFrom string) (Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := Result{
		RunID:         p.Config.RunID,
		Mode:          mode,
		GitLabProject: p.Config.GitLab.ProjectPath,
		GitHubTarget:  Target(p.Config.GitHub.Org, p.Config.GitLab.ProjectPath),
		StartedAt:     time.Now().UTC(),
		Context:       &Context{},
	}

	sequence, seqErr := SequenceFor(mode)
	if seqErr != nil {
		result.Status = StatusFailed
		result.FinishedAt = time.Now().UTC()

		return result, seqErr
	}

	if resumeFrom != "" {
		sequence = sliceFrom(sequence, resumeFrom, logger)
	}

	tracer := p.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("run_id", p.Config.RunID),
		attribute.String("project", p.Config.GitLab.ProjectPath),
	))
	defer span.End()

	logger.Info("pipeline started",
		"mode", mode,
		"run_id", p.Config.RunID,
		"stages", sequence)

	for _, name := range sequence {
		if p.StageCallback != nil {
			p.StageCallback(name)
		}

		stageResult := p.runStage(ctx, logger, name, mode, result.Context)
		result.Stages = append(result.Stages, stageResult)

		if p.Metrics != nil {
			p.Metrics.RecordStage(ctx, name, stageResult.Status,
				stageResult.FinishedAt.Sub(stageResult.StartedAt))
		}

		if p.CompleteCallback != nil {
			p.CompleteCallback(name, stageResult)
		}

		if stageResult.Status == StatusFailed {
			result.Status = StatusFailed
			result.FailedAtAgent = name
			result.FinishedAt = time.Now().UTC()

			logger.Error("pipeline stopped",
				"failed_at", name,
				"error", stageResult.Error)

			p.writeReport(logger, result)

			if stageResult.Error != "" {
				return result, fmt.Errorf("stage %s: %s", name, stageResult.Error)
			}

			return result, fmt.Errorf("stage %s failed", name)
		}
	}

	result.Status = overallStatus(result.Stages)
	result.FinishedAt = time.Now().UTC()

	logger.Info("pipeline finished",
		"status", result.Status,
		"duration", result.FinishedAt.Sub(result.StartedAt).Round(time.Second).String())

	p.writeReport(logger, result)

	return result, nil
}

// runStage invokes one stage with bounded retry.
func (p *Pipeline) runStage(ctx context.Context, logger *slog.Logger, name string, mode Mode, shared *Context) StageResult {
	stageResult := StageResult{Stage: name, StartedAt: time.Now().UTC()}

	attempts := p.StageRetries
	switch {
	case attempts == 0:
		attempts = DefaultStageRetries + 1
	case attempts < 0:
		attempts = 1
	default:
		attempts++
	}

	delay := p.RetryDelay
	if delay == 0 {
		delay = DefaultRetryDelay
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		stageResult.Attempts = attempt

		status, detail, err := p.invoke(ctx, name, mode, shared)
		if err == nil {
			// A stage that ran to completion is never retried, even
			// when its own report came back failed.
			stageResult.Status = status
			stageResult.Error = detail
			stageResult.FinishedAt = time.Now().UTC()

			return stageResult
		}

		lastErr = err

		if ctx.Err() != nil {
			break
		}

		if attempt < attempts {
			logger.Warn("stage failed, retrying",
				"stage", name,
				"attempt", attempt,
				"error", err)

			if sleepErr := p.pause(ctx, delay); sleepErr != nil {
				break
			}
		}
	}

	stageResult.Status = StatusFailed
	stageResult.Error = lastErr.Error()
	stageResult.FinishedAt = time.Now().UTC()

	return stageResult
}

// invoke prepares one stage's inputs from the shared context and
// copies its outputs back in. It returns the stage status plus an
// optional detail message; a non-nil error marks a retryable failure.
func (p *Pipeline) invoke(ctx context.Context, name string, mode Mode, shared *Context) (string, string, error) {
	switch name {
	case StageDiscovery:
		out, err := p.Discovery.Run(ctx, p.Tree, p.Config.GitLab.GroupPath, p.Config.GitLab.ProjectPath)
		if err != nil {
			return "", "", err
		}

		shared.DiscoveredProjects = out.Projects
		shared.Inventories = out.Inventories

		return StatusSuccess, "", nil

	case StageExport:
		project, err := p.currentProject(ctx, shared)
		if err != nil {
			return "", "", err
		}

		manifest, err := p.Export.Run(ctx, p.Tree, project, p.Config.Export.Resume)
		if err != nil {
			return "", "", err
		}

		shared.ExportData = &manifest

		if manifest.Status == export.StatusPartial {
			return StatusPartial, "", nil
		}

		return StatusSuccess, "", nil

	case StageTransform:
		project, err := p.currentProject(ctx, shared)
		if err != nil {
			return "", "", err
		}

		out, err := p.Transform.Run(ctx, p.Tree, project)
		if err != nil {
			return "", "", err
		}

		shared.TransformData = &out
		shared.ConversionGaps = out.Gaps

		return StatusSuccess, "", nil

	case StagePlan:
		project, err := p.currentProject(ctx, shared)
		if err != nil {
			return "", "", err
		}

		built, err := p.Plan.Run(ctx, p.Tree, project)
		if err != nil {
			return "", "", err
		}

		shared.Plan = &built
		shared.ExpectedState = built.Summary.ByType

		return StatusSuccess, "", nil

	case StageApply:
		if shared.Plan == nil {
			loaded, err := plan.Load(p.Tree.PlanPath())
			if err != nil {
				return "", "", fmt.Errorf("load plan: %w", err)
			}

			shared.Plan = &loaded
		}

		opts := apply.Options{
			DryRun:             mode == ModeDryRun,
			ResumeFromActionID: p.ResumeFromActionID,
			Inputs:             p.Inputs,
			Flags:              p.Flags,
		}

		report, err := p.Apply.Run(ctx, p.Tree, *shared.Plan, opts)
		if err != nil {
			return "", "", err
		}

		shared.ApplyResults = &report

		switch report.Status {
		case apply.StatusFailed:
			return StatusFailed, fmt.Sprintf("%d of %d actions failed", report.Failed, report.Total), nil
		case apply.StatusPartial:
			return StatusPartial, "", nil
		default:
			return StatusSuccess, "", nil
		}

	case StageVerify:
		report, err := p.Verify.Run(ctx, p.Tree)
		if err != nil {
			return "", "", err
		}

		shared.VerifyResults = &report

		switch report.Status {
		case verify.StatusFailed:
			return StatusFailed, "destination does not match expected state", nil
		case verify.StatusSuccess:
			return StatusSuccess, "", nil
		default:
			return StatusPartial, "", nil
		}

	default:
		return "", "", fmt.Errorf("%w: stage %s", ErrUnknownMode, name)
	}
}

// currentProject returns the project under migration, resolving it
// directly when discovery did not run.
func (p *Pipeline) currentProject(ctx context.Context, shared *Context) (gitlab.Project, error) {
	if len(shared.DiscoveredProjects) > 0 {
		return shared.DiscoveredProjects[0], nil
	}

	if p.Resolver == nil {
		return gitlab.Project{}, errors.New("no discovered project and no resolver configured")
	}

	if p.Config.GitLab.ProjectPath == "" {
		return gitlab.Project{}, config.ErrMissingScope
	}

	project, err := p.Resolver.ProjectByPath(ctx, p.Config.GitLab.ProjectPath)
	if err != nil {
		return gitlab.Project{}, fmt.Errorf("resolve project: %w", err)
	}

	shared.DiscoveredProjects = append(shared.DiscoveredProjects, project)

	return project, nil
}

func (p *Pipeline) pause(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pipeline) writeReport(logger *slog.Logger, result Result) {
	if err := persist.WriteJSON(p.Tree.RunReportPath(), result); err != nil {
		logger.Warn("write run report", "error", err)
	}
}

func sliceFrom(sequence []string, resumeFrom string, logger *slog.Logger) []string {
	for idx, name := range sequence {
		if name == resumeFrom {
			return sequence[idx:]
		}
	}

	logger.Warn("resume stage not in sequence, running full sequence", "resume_from", resumeFrom)

	return sequence
}

func overallStatus(stages []StageResult) string {
	for _, stage := range stages {
		if stage.Status == StatusPartial {
			return StatusPartial
		}
	}

	return StatusSuccess
}
