package apply

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/observability"
	"github.com/Sumatoshi-tech/gitport/internal/ratelimit"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// tracerName labels apply spans.
const tracerName = "gitport/apply"

// Execution tuning defaults.
const (
	// DefaultPhaseWorkers bounds inter-action concurrency in
	// parallel-safe phases.
	DefaultPhaseWorkers = 4

	// DefaultRateLimitFloor pauses the loop until the rate window
	// resets once destination remaining drops below it.
	DefaultRateLimitFloor = 100
)

// Terminal stage statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Result is the outcome of one action.
type Result struct {
	Success           bool           `json:"success"`
	ActionID          int            `json:"action_id"`
	ActionType        string         `json:"action_type"`
	IdempotencyKey    string         `json:"idempotency_key"`
	Outputs           map[string]any `json:"outputs,omitempty"`
	Error             string         `json:"error,omitempty"`
	RollbackData      map[string]any `json:"rollback_data,omitempty"`
	Reversible        bool           `json:"reversible"`
	Simulated         bool           `json:"simulated,omitempty"`
	SimulationOutcome string         `json:"simulation_outcome,omitempty"`
	Skipped           bool           `json:"skipped,omitempty"`
	SkipReason        string         `json:"skip_reason,omitempty"`
}

// Report is the apply_report.json / dry_run_report.json payload.
type Report struct {
	RunID        string       `json:"run_id"`
	GitHubTarget string       `json:"github_target"`
	Status       string       `json:"status"`
	DryRun       bool         `json:"dry_run,omitempty"`
	PlanSummary  plan.Summary `json:"plan_summary"`

	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	SuccessRate float64 `json:"success_rate"`

	// Simulation aggregates dry-run results by outcome.
	Simulation map[string]int `json:"simulation,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Results    []Result                    `json:"results"`
	IDMappings map[string]map[string]int64 `json:"id_mappings"`
}

// Options selects the execution mode for one run.
type Options struct {
	// DryRun simulates every action without destination writes.
	DryRun bool

	// ResumeFromActionID skips actions with smaller ids, trusting the
	// previously persisted execution record for their outcomes.
	ResumeFromActionID int

	// Inputs carries operator-supplied values for actions tagged
	// requires_user_input, keyed as in user_inputs_required.json.
	Inputs map[string]string

	// Flags drives skip_if predicates. Nil enables the default
	// registry-transfer gate.
	Flags map[string]bool
}

// Stage executes a migration plan against the destination.
type Stage struct {
	Logger *slog.Logger

	Forge  Forge
	Pusher Pusher

	// Limiter is consulted for the pre-action budget check. Optional.
	Limiter *ratelimit.Limiter

	// Metrics receives per-action and stage telemetry. Optional.
	Metrics *observability.Metrics

	// Tracer emits run and phase spans. Nil falls back to the global
	// tracer provider.
	Tracer trace.Tracer

	MaxRetries     int
	BaseDelay      time.Duration
	PhaseWorkers   int
	RateLimitFloor int

	// sleep is the injection point for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// execution is the mutable state of one run, shared across phase
// workers.
type execution struct {
	mu sync.Mutex

	results   map[int]Result
	byKey     map[string]Result
	satisfied map[int]bool
	order     []int
}

func newExecution() *execution {
	return &execution{
		results:   map[int]Result{},
		byKey:     map[string]Result{},
		satisfied: map[int]bool{},
	}
}

// seed registers a previously persisted result so resume honors it.
func (e *execution) seed(r Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.results[r.ActionID] = r
	e.order = append(e.order, r.ActionID)

	if r.Success {
		e.byKey[r.IdempotencyKey] = r
		e.satisfied[r.ActionID] = true
	}
}

func (e *execution) record(r Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, seen := e.results[r.ActionID]; !seen {
		e.order = append(e.order, r.ActionID)
	}

	e.results[r.ActionID] = r

	if r.Success {
		e.byKey[r.IdempotencyKey] = r
		e.satisfied[r.ActionID] = true
	}
}

// markSatisfied unblocks dependents without recording a result, used
// for resume-skipped actions.
func (e *execution) markSatisfied(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.satisfied[id] = true
}

func (e *execution) depsMet(deps []int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, dep := range deps {
		if !e.satisfied[dep] {
			return false
		}
	}

	return true
}

func (e *execution) cached(key string) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.byKey[key]

	return r, ok
}

// snapshot returns the recorded results in execution order.
func (e *execution) snapshot() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Result, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.results[id])
	}

	return out
}

// Run executes the plan and writes the apply artifacts.
func (s *Stage) Run(ctx context.Context, tree artifacts.Tree, p plan.Plan, opts Options) (Report, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	startedAt := time.Now().UTC()

	mkdirErr := os.MkdirAll(tree.ApplyDir(), 0o755)
	if mkdirErr != nil {
		return Report{}, fmt.Errorf("create apply dir: %w", mkdirErr)
	}

	org, repo, targetErr := splitTarget(p.GitHubTarget)
	if targetErr != nil {
		return Report{}, targetErr
	}

	ids, idsErr := LoadIDMappings(tree.IDMappingsPath())
	if idsErr != nil {
		return Report{}, idsErr
	}

	run := &Context{
		Forge:         s.Forge,
		Pusher:        s.Pusher,
		Org:           org,
		Repo:          repo,
		DefaultBranch: defaultBranchFromPlan(p),
		DryRun:        opts.DryRun,
		Inputs:        opts.Inputs,
		Flags:         executionFlags(opts.Flags),
		IDs:           ids,
		Logger:        logger,
	}

	exec := newExecution()

	if opts.ResumeFromActionID > 0 {
		seedErr := s.seedPriorResults(tree, exec)
		if seedErr != nil {
			return Report{}, seedErr
		}
	}

	tracer := s.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	ctx, span := tracer.Start(ctx, "apply.run", trace.WithAttributes(
		attribute.String("run_id", p.RunID),
		attribute.String("target", p.GitHubTarget),
		attribute.Bool("dry_run", opts.DryRun),
	))
	defer span.End()

	logger.Info("apply started",
		"run_id", p.RunID,
		"target", p.GitHubTarget,
		"actions", p.Summary.Total,
		"dry_run", opts.DryRun)

	for _, phase := range p.Phases {
		phaseErr := s.runPhase(ctx, tracer, tree, p, phase, run, exec, opts)
		if phaseErr != nil {
			return Report{}, phaseErr
		}
	}

	report := s.assembleReport(p, exec, run, opts, startedAt)

	writeErr := s.writeOutputs(tree, report, run, opts)
	if writeErr != nil {
		return report, writeErr
	}

	if s.Metrics != nil {
		s.Metrics.RecordStage(ctx, "apply", report.Status, time.Since(startedAt))
	}

	logger.Info("apply finished",
		"status", report.Status,
		"successful", report.Successful,
		"failed", report.Failed,
		"skipped", report.Skipped)

	return report, nil
}

// runPhase executes one phase, fanning out parallel-safe phases in
// dependency-closed groups.
func (s *Stage) runPhase(ctx context.Context, tracer trace.Tracer, tree artifacts.Tree, p plan.Plan, phase plan.Phase, run *Context, exec *execution, opts Options) error {
	actions := make([]plan.Action, 0, len(phase.Actions))

	for _, id := range phase.Actions {
		if action := p.ActionByID(id); action != nil {
			actions = append(actions, *action)
		}
	}

	ctx, span := tracer.Start(ctx, "apply.phase", trace.WithAttributes(
		attribute.String("phase", phase.Name),
		attribute.Int("actions", len(actions)),
	))
	defer span.End()

	workers := s.PhaseWorkers
	if workers <= 0 {
		workers = DefaultPhaseWorkers
	}

	if !phase.ParallelSafe || opts.DryRun || workers <= 1 {
		for _, action := range actions {
			runErr := s.runAction(ctx, tree, p, action, run, exec, opts)
			if runErr != nil {
				return runErr
			}
		}

		return nil
	}

	var (
		firstErrMu sync.Mutex
		firstErr   error
	)

	workerPool := pool.New().WithMaxGoroutines(workers)

	for _, group := range phaseGroups(actions) {
		workerPool.Go(func() {
			for _, action := range group {
				runErr := s.runAction(ctx, tree, p, action, run, exec, opts)
				if runErr != nil {
					firstErrMu.Lock()
					if firstErr == nil {
						firstErr = runErr
					}
					firstErrMu.Unlock()

					return
				}
			}
		})
	}

	workerPool.Wait()

	return firstErr
}

// phaseGroups partitions a phase's actions into chains whose intra-phase
// dependencies stay inside one chain, so chains can run concurrently.
func phaseGroups(actions []plan.Action) [][]plan.Action {
	groupOf := make(map[int]int, len(actions))

	var groups [][]plan.Action

	for _, action := range actions {
		group := -1

		for _, dep := range action.Dependencies {
			if g, ok := groupOf[dep]; ok {
				group = g

				break
			}
		}

		if group == -1 {
			group = len(groups)
			groups = append(groups, nil)
		}

		groups[group] = append(groups[group], action)
		groupOf[action.ID] = group
	}

	return groups
}

// runAction drives one action through the full gate sequence: resume
// skip, skip_if, idempotency short-circuit, dependency check, registry
// lookup, budget wait, retried execution.
func (s *Stage) runAction(ctx context.Context, tree artifacts.Tree, p plan.Plan, action plan.Action, run *Context, exec *execution, opts Options) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if opts.ResumeFromActionID > 0 && action.ID < opts.ResumeFromActionID {
		// Prior results were seeded; anything unrecorded before the
		// cursor is trusted to have run in the previous session.
		exec.markSatisfied(action.ID)

		return nil
	}

	if action.SkipIf != "" && run.Flags[action.SkipIf] {
		exec.record(s.skippedResult(action, "skip_if: "+action.SkipIf, opts.DryRun))

		return s.flush(tree, exec, opts)
	}

	if cached, ok := exec.cached(action.IdempotencyKey); ok && cached.ActionID != action.ID {
		result := s.skippedResult(action, "idempotency key already executed", opts.DryRun)
		result.Outputs = cached.Outputs
		exec.record(result)

		return s.flush(tree, exec, opts)
	}

	if !exec.depsMet(action.Dependencies) {
		exec.record(s.failedResult(action, "Dependencies not met", opts.DryRun))

		return s.flush(tree, exec, opts)
	}

	handler, handlerErr := newHandler(action)
	if handlerErr != nil {
		exec.record(s.failedResult(action, "Unknown action type: "+string(action.Type), opts.DryRun))

		return s.flush(tree, exec, opts)
	}

	if !opts.DryRun {
		budgetErr := s.waitForBudget(ctx)
		if budgetErr != nil {
			return budgetErr
		}
	}

	result := s.executeWithRetry(ctx, action, handler, run, opts)
	exec.record(result)

	if s.Metrics != nil {
		s.Metrics.RecordAction(ctx, string(action.Type), resultStatus(result))
	}

	s.logResult(run.Logger, action, result)

	return s.flush(tree, exec, opts)
}

// executeWithRetry runs Execute (or Simulate on dry-run) under the
// transient-failure retry policy and wraps the outcome into a Result.
func (s *Stage) executeWithRetry(ctx context.Context, action plan.Action, handler Handler, run *Context, opts Options) Result {
	if opts.DryRun {
		outcome, err := handler.Simulate(ctx, run)

		return s.simulatedResult(action, outcome, err)
	}

	if checker, ok := handler.(idempotencyChecker); ok {
		outcome, done, checkErr := checker.CheckIdempotency(ctx, run)
		if checkErr == nil && done {
			return s.successResult(action, outcome)
		}
	}

	policy := ratelimit.Policy{MaxRetries: s.MaxRetries, BaseDelay: s.BaseDelay}
	if policy.MaxRetries == 0 {
		policy.MaxRetries = ratelimit.DefaultMaxRetries
	}

	if s.sleep != nil {
		policy = policy.WithSleeper(s.sleep)
	}

	var outcome Outcome

	err := policy.Do(ctx, "GitHub", func() error {
		var execErr error

		outcome, execErr = handler.Execute(ctx, run)

		return execErr
	})
	if err != nil {
		return s.failedResult(action, err.Error(), false)
	}

	return s.successResult(action, outcome)
}

// waitForBudget sleeps until the destination rate window resets when
// the remaining budget is below the floor.
func (s *Stage) waitForBudget(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}

	floor := s.RateLimitFloor
	if floor <= 0 {
		floor = DefaultRateLimitFloor
	}

	state := s.Limiter.Snapshot()
	if state.Limit <= 0 || state.Remaining >= floor {
		return nil
	}

	wait := time.Until(state.ResetAt)
	if wait <= 0 {
		return nil
	}

	sleep := s.sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}

	return sleep(ctx, wait+time.Second)
}

func (s *Stage) successResult(action plan.Action, outcome Outcome) Result {
	return Result{
		Success:        true,
		ActionID:       action.ID,
		ActionType:     string(action.Type),
		IdempotencyKey: action.IdempotencyKey,
		Outputs:        outcome.Outputs,
		RollbackData:   outcome.RollbackData,
		Reversible:     action.Reversible,
	}
}

func (s *Stage) failedResult(action plan.Action, message string, simulated bool) Result {
	r := Result{
		ActionID:       action.ID,
		ActionType:     string(action.Type),
		IdempotencyKey: action.IdempotencyKey,
		Error:          message,
		Reversible:     action.Reversible,
	}

	if simulated {
		r.Simulated = true
		r.SimulationOutcome = SimWouldFail
	}

	return r
}

func (s *Stage) skippedResult(action plan.Action, reason string, simulated bool) Result {
	r := Result{
		Success:        true,
		ActionID:       action.ID,
		ActionType:     string(action.Type),
		IdempotencyKey: action.IdempotencyKey,
		Reversible:     action.Reversible,
		Skipped:        true,
		SkipReason:     reason,
	}

	if simulated {
		r.Simulated = true
		r.SimulationOutcome = SimWouldSkip
	}

	return r
}

func (s *Stage) simulatedResult(action plan.Action, outcome Outcome, err error) Result {
	r := Result{
		ActionID:       action.ID,
		ActionType:     string(action.Type),
		IdempotencyKey: action.IdempotencyKey,
		Outputs:        outcome.Outputs,
		Reversible:     action.Reversible,
		Simulated:      true,
	}

	if err != nil {
		r.SimulationOutcome = SimWouldFail
		r.Error = err.Error()

		return r
	}

	r.SimulationOutcome = outcome.Simulation
	if r.SimulationOutcome == "" {
		r.SimulationOutcome = SimWouldExecute
	}

	r.Success = r.SimulationOutcome != SimWouldFail

	return r
}

func resultStatus(r Result) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Success:
		return "success"
	default:
		return "failed"
	}
}

func (s *Stage) logResult(logger *slog.Logger, action plan.Action, result Result) {
	if result.Success {
		logger.Info("action done",
			"action", action.ID,
			"type", action.Type,
			"status", resultStatus(result))

		return
	}

	logger.Warn("action failed",
		"action", action.ID,
		"type", action.Type,
		"error", result.Error)
}

// flush persists the execution record so a mid-run kill loses nothing.
// Dry runs write no execution state.
func (s *Stage) flush(tree artifacts.Tree, exec *execution, opts Options) error {
	if opts.DryRun {
		return nil
	}

	err := persist.WriteJSON(tree.ExecutedActionsPath(), exec.snapshot())
	if err != nil {
		return fmt.Errorf("write executed actions: %w", err)
	}

	return nil
}

func (s *Stage) seedPriorResults(tree artifacts.Tree, exec *execution) error {
	var prior []Result

	err := persist.ReadJSON(tree.ExecutedActionsPath(), &prior)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read executed actions: %w", err)
	}

	for _, r := range prior {
		if !r.Simulated {
			exec.seed(r)
		}
	}

	return nil
}

func (s *Stage) assembleReport(p plan.Plan, exec *execution, run *Context, opts Options, startedAt time.Time) Report {
	results := orderedResults(p, exec)

	report := Report{
		RunID:        p.RunID,
		GitHubTarget: p.GitHubTarget,
		DryRun:       opts.DryRun,
		PlanSummary:  p.Summary,
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
		Results:      results,
		IDMappings:   run.IDs.Snapshot(),
	}

	for _, r := range results {
		report.Total++

		switch {
		case r.Skipped:
			report.Skipped++
		case r.Success:
			report.Successful++
		default:
			report.Failed++
		}
	}

	if attempted := report.Successful + report.Failed; attempted > 0 {
		report.SuccessRate = float64(report.Successful) / float64(attempted)
	} else {
		report.SuccessRate = 1
	}

	switch {
	case report.Failed == 0:
		report.Status = StatusSuccess
	case report.Successful > 0:
		report.Status = StatusPartial
	default:
		report.Status = StatusFailed
	}

	if opts.DryRun {
		report.Simulation = map[string]int{}

		for _, r := range results {
			if r.SimulationOutcome != "" {
				report.Simulation[r.SimulationOutcome]++
			}

			if r.SimulationOutcome == SimWouldFail {
				reason := r.Error
				if reason == "" {
					if s, ok := r.Outputs["reason"].(string); ok {
						reason = s
					}
				}

				report.Warnings = append(report.Warnings,
					fmt.Sprintf("action %d (%s): %s", r.ActionID, r.ActionType, reason))
			}
		}
	}

	return report
}

// orderedResults returns results in plan order, dropping seeded prior
// results for actions the plan no longer contains.
func orderedResults(p plan.Plan, exec *execution) []Result {
	exec.mu.Lock()
	defer exec.mu.Unlock()

	out := make([]Result, 0, len(exec.results))

	for _, action := range p.Actions {
		if r, ok := exec.results[action.ID]; ok {
			out = append(out, r)
		}
	}

	return out
}

func (s *Stage) writeOutputs(tree artifacts.Tree, report Report, run *Context, opts Options) error {
	if opts.DryRun {
		err := persist.WriteJSON(tree.DryRunReportPath(), report)
		if err != nil {
			return fmt.Errorf("write dry run report: %w", err)
		}

		return nil
	}

	reportErr := persist.WriteJSON(tree.ApplyReportPath(), report)
	if reportErr != nil {
		return fmt.Errorf("write apply report: %w", reportErr)
	}

	idsErr := persist.WriteJSON(tree.IDMappingsPath(), run.IDs.Snapshot())
	if idsErr != nil {
		return fmt.Errorf("write id mappings: %w", idsErr)
	}

	return nil
}

// executionFlags fills in the default skip gates.
func executionFlags(flags map[string]bool) map[string]bool {
	if flags == nil {
		flags = map[string]bool{}
	}

	if _, set := flags["registry_transfer_disabled"]; !set {
		flags["registry_transfer_disabled"] = true
	}

	return flags
}

// splitTarget parses "org/repo".
func splitTarget(target string) (string, string, error) {
	org, repo, ok := strings.Cut(target, "/")
	if !ok || org == "" || repo == "" {
		return "", "", fmt.Errorf("malformed github target %q", target)
	}

	return org, repo, nil
}

// defaultBranchFromPlan reads the branch the repo_create action pins.
func defaultBranchFromPlan(p plan.Plan) string {
	for _, action := range p.Actions {
		if action.Type != plan.ActionRepoCreate {
			continue
		}

		params, err := decodeParams[plan.RepoCreateParams](action)
		if err == nil && params.DefaultBranch != "" {
			return params.DefaultBranch
		}
	}

	return "main"
}
