// Package batch runs many project migrations concurrently under a
// shared rate budget.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gitport/internal/config"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/observability"
	"github.com/Sumatoshi-tech/gitport/internal/pipeline"
)

const tracerName = "gitport/batch"

// Batch statuses.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusFailed         = "failed"
)

// Runner is the per-project pipeline surface.
type Runner interface {
	Run(ctx context.Context, mode pipeline.Mode, resumeFrom string) (pipeline.Result, error)
}

var _ Runner = (*pipeline.Pipeline)(nil)

// Outcome is one project's terminal result inside a batch.
type Outcome struct {
	Project string          `json:"project"`
	Result  pipeline.Result `json:"result"`
	Error   string          `json:"error,omitempty"`
}

// Result aggregates a whole batch.
type Result struct {
	Status        string    `json:"status"`
	TotalProjects int       `json:"total_projects"`
	Successful    int       `json:"successful"`
	Failed        int       `json:"failed"`
	ParallelLimit int       `json:"parallel_limit"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Results       []Outcome `json:"results"`
}

// Orchestrator fans N pipelines out under a bounded worker pool. All
// pipelines share one limiter per API and one user-mapping cache.
type Orchestrator struct {
	Logger *slog.Logger

	// ParallelLimit caps concurrent pipelines. Zero means the
	// configured batch default.
	ParallelLimit int

	// Build constructs the pipeline for one project config. Nil means
	// the standard factory.
	Build func(cfg config.Config, shared *pipeline.Resources) (Runner, error)

	Metrics *observability.Metrics
	Tracer  trace.Tracer
}

// ProjectConfigs derives one single-project config per discovered
// project from a group-scoped base config.
func ProjectConfigs(base config.Config, projects []gitlab.Project) []config.Config {
	configs := make([]config.Config, 0, len(projects))

	for _, project := range projects {
		cfg := base
		cfg.GitLab.GroupPath = ""
		cfg.GitLab.ProjectPath = project.PathWithNamespace
		configs = append(configs, cfg)
	}

	return configs
}

// Run migrates every config in mode, at most ParallelLimit at a time.
// Per-project failures and panics become failed outcomes; they never
// abort the rest of the batch.
func (o *Orchestrator) Run(ctx context.Context, configs []config.Config, mode pipeline.Mode, resumeFrom string) Result {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := o.ParallelLimit
	if limit <= 0 {
		limit = config.DefaultBatchParallelLimit
	}

	result := Result{
		TotalProjects: len(configs),
		ParallelLimit: limit,
		StartedAt:     time.Now().UTC(),
		Results:       make([]Outcome, len(configs)),
	}

	tracer := o.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	ctx, span := tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.Int("projects", len(configs)),
		attribute.Int("parallel_limit", limit),
	))
	defer span.End()

	logger.Info("batch started",
		"projects", len(configs),
		"mode", mode,
		"parallel_limit", limit)

	shared := pipeline.NewResources()
	workers := pool.New().WithMaxGoroutines(limit)

	for idx, cfg := range configs {
		workers.Go(func() {
			result.Results[idx] = o.runOne(ctx, logger, cfg, mode, resumeFrom, shared)
		})
	}

	workers.Wait()

	for _, outcome := range result.Results {
		if outcome.Result.Status == pipeline.StatusFailed {
			result.Failed++
		} else {
			result.Successful++
		}
	}

	result.Status = aggregateStatus(result.Successful, result.Failed)
	result.FinishedAt = time.Now().UTC()

	logger.Info("batch finished",
		"status", result.Status,
		"successful", result.Successful,
		"failed", result.Failed)

	return result
}

// runOne isolates a single project: its panic or error is materialized
// as a failed outcome.
func (o *Orchestrator) runOne(ctx context.Context, logger *slog.Logger, cfg config.Config, mode pipeline.Mode, resumeFrom string, shared *pipeline.Resources) (outcome Outcome) {
	project := cfg.GitLab.ProjectPath
	outcome.Project = project

	defer func() {
		if r := recover(); r != nil {
			logger.Error("project migration panicked", "project", project, "panic", r)

			outcome.Error = fmt.Sprintf("panic: %v", r)
			outcome.Result.Status = pipeline.StatusFailed
		}
	}()

	runner, buildErr := o.build(cfg, shared, logger)
	if buildErr != nil {
		outcome.Error = buildErr.Error()
		outcome.Result.Status = pipeline.StatusFailed

		return outcome
	}

	runResult, runErr := runner.Run(ctx, mode, resumeFrom)
	outcome.Result = runResult

	if runErr != nil {
		outcome.Error = runErr.Error()
		outcome.Result.Status = pipeline.StatusFailed
	}

	return outcome
}

func (o *Orchestrator) build(cfg config.Config, shared *pipeline.Resources, logger *slog.Logger) (Runner, error) {
	if o.Build != nil {
		return o.Build(cfg, shared)
	}

	return pipeline.New(cfg, logger.With("project", cfg.GitLab.ProjectPath), o.Metrics, o.Tracer, shared)
}

func aggregateStatus(successful, failed int) string {
	switch {
	case failed == 0:
		return StatusSuccess
	case successful > 0:
		return StatusPartialSuccess
	default:
		return StatusFailed
	}
}
