package plan

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// Version is the plan.json schema version.
const Version = "1.0"

// UserInputValue marks parameter values the operator must supply
// before apply.
const UserInputValue = "${USER_INPUT_REQUIRED}"

// Plan is the versioned migration plan consumed by the apply stage.
type Plan struct {
	Version            string      `json:"version"`
	RunID              string      `json:"run_id"`
	GitLabProject      string      `json:"gitlab_project"`
	GitHubTarget       string      `json:"github_target"`
	Summary            Summary     `json:"summary"`
	Actions            []Action    `json:"actions"`
	Phases             []Phase     `json:"phases"`
	Validation         Validation  `json:"validation"`
	UserInputsRequired []UserInput `json:"user_inputs_required"`
}

// Summary aggregates the plan for display.
type Summary struct {
	Total             int            `json:"total"`
	ByType            map[string]int `json:"by_type"`
	EstMinutes        int            `json:"est_minutes"`
	RequiresUserInput int            `json:"requires_user_input"`
}

// Phase groups ordered action ids under one named phase.
type Phase struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Actions      []int  `json:"actions"`
	Order        int    `json:"order"`
	ParallelSafe bool   `json:"parallel_safe,omitempty"`
}

// Validation records the structural checks the plan passed.
type Validation struct {
	AllDepsResolvable        bool `json:"all_deps_resolvable"`
	NoCycles                 bool `json:"no_cycles"`
	RequiredInputsIdentified bool `json:"required_inputs_identified"`
}

// UserInput is one value the operator must provide before apply.
type UserInput struct {
	Type        string `json:"type"`
	Key         string `json:"key"`
	Scope       string `json:"scope"`
	Environment string `json:"environment,omitempty"`
	Reason      string `json:"reason"`
	Required    bool   `json:"required"`
	Fallback    string `json:"fallback,omitempty"`
}

// ActionByID returns the action with the given id, or nil.
func (p *Plan) ActionByID(id int) *Action {
	for i := range p.Actions {
		if p.Actions[i].ID == id {
			return &p.Actions[i]
		}
	}

	return nil
}

// Load reads and version-checks a previously written plan file.
func Load(path string) (Plan, error) {
	var p Plan

	err := persist.ReadJSON(path, &p)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan: %w", err)
	}

	if p.Version != Version {
		return Plan{}, fmt.Errorf("unsupported plan version %q, want %q", p.Version, Version)
	}

	return p, nil
}

// Stage builds the migration plan for one project.
type Stage struct {
	Logger *slog.Logger

	Org   string
	Repo  string
	RunID string
}

// Run assembles, validates, orders, and persists the plan.
func (s *Stage) Run(ctx context.Context, tree artifacts.Tree, project gitlab.Project) (Plan, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if ctx.Err() != nil {
		return Plan{}, ctx.Err()
	}

	in, readErr := readInputs(tree)
	if readErr != nil {
		return Plan{}, readErr
	}

	b := &builder{
		tree:          tree,
		project:       project,
		org:           s.Org,
		repo:          s.Repo,
		defaultBranch: defaultBranch(project, in),
	}

	b.build(in)

	ordered, orderErr := orderActions(b.actions)
	if orderErr != nil {
		return Plan{}, orderErr
	}

	userInputs := b.inputs
	if userInputs == nil {
		userInputs = []UserInput{}
	}

	p := Plan{
		Version:       Version,
		RunID:         s.RunID,
		GitLabProject: project.PathWithNamespace,
		GitHubTarget:  s.Org + "/" + s.Repo,
		Summary:       summarize(ordered),
		Actions:       ordered,
		Phases:        assemblePhases(ordered),
		Validation: Validation{
			AllDepsResolvable:        true,
			NoCycles:                 true,
			RequiredInputsIdentified: true,
		},
		UserInputsRequired: userInputs,
	}

	writeErr := s.writeOutputs(tree, p, b.actions)
	if writeErr != nil {
		return p, writeErr
	}

	logger.Info("plan built",
		"actions", p.Summary.Total,
		"phases", len(p.Phases),
		"user_inputs", len(p.UserInputsRequired),
		"est_minutes", p.Summary.EstMinutes)

	return p, nil
}

func defaultBranch(project gitlab.Project, in inputs) string {
	if project.DefaultBranch != "" {
		return project.DefaultBranch
	}

	if in.settings.DefaultBranch != "" {
		return in.settings.DefaultBranch
	}

	return "main"
}

func summarize(actions []Action) Summary {
	summary := Summary{ByType: map[string]int{}}

	seconds := 0

	for _, action := range actions {
		summary.Total++
		summary.ByType[string(action.Type)]++
		seconds += action.EstimatedDuration

		if action.RequiresUserInput {
			summary.RequiresUserInput++
		}
	}

	summary.EstMinutes = (seconds + 59) / 60

	return summary
}

// assemblePhases groups the ordered actions by phase, preserving plan
// order inside each phase.
func assemblePhases(ordered []Action) []Phase {
	byPhase := map[string][]int{}

	for _, action := range ordered {
		byPhase[action.Phase] = append(byPhase[action.Phase], action.ID)
	}

	phases := make([]Phase, 0, len(phaseOrder))

	for i, def := range phaseOrder {
		ids := byPhase[def.name]
		if len(ids) == 0 {
			continue
		}

		phases = append(phases, Phase{
			Name:         def.name,
			Description:  def.description,
			Actions:      ids,
			Order:        i + 1,
			ParallelSafe: def.parallelSafe,
		})
	}

	return phases
}

func (s *Stage) writeOutputs(tree artifacts.Tree, p Plan, actions []Action) error {
	mkdirErr := os.MkdirAll(tree.PlanDir(), 0o755)
	if mkdirErr != nil {
		return fmt.Errorf("create plan dir: %w", mkdirErr)
	}

	validateErr := validateSchema(p)
	if validateErr != nil {
		return validateErr
	}

	planErr := persist.WriteJSON(tree.PlanPath(), p)
	if planErr != nil {
		return fmt.Errorf("write plan: %w", planErr)
	}

	statsErr := persist.WriteJSON(tree.PlanStatsPath(), buildStats(p))
	if statsErr != nil {
		return fmt.Errorf("write plan stats: %w", statsErr)
	}

	graphErr := persist.WriteJSON(tree.DependencyGraphPath(), buildGraphExport(actions))
	if graphErr != nil {
		return fmt.Errorf("write dependency graph: %w", graphErr)
	}

	inputsErr := persist.WriteJSON(tree.UserInputsPath(), p.UserInputsRequired)
	if inputsErr != nil {
		return fmt.Errorf("write user inputs: %w", inputsErr)
	}

	return nil
}

// Stats is the plan_stats.json payload.
type Stats struct {
	TotalActions        int            `json:"total_actions"`
	ByPhase             map[string]int `json:"by_phase"`
	ByType              map[string]int `json:"by_type"`
	EstMinutes          int            `json:"est_minutes"`
	ParallelSafeActions int            `json:"parallel_safe_actions"`
	ReversibleActions   int            `json:"reversible_actions"`
	RequiresUserInput   int            `json:"requires_user_input"`
}

func buildStats(p Plan) Stats {
	stats := Stats{
		TotalActions:      p.Summary.Total,
		ByPhase:           map[string]int{},
		ByType:            p.Summary.ByType,
		EstMinutes:        p.Summary.EstMinutes,
		RequiresUserInput: p.Summary.RequiresUserInput,
	}

	for _, action := range p.Actions {
		stats.ByPhase[action.Phase]++

		if ParallelSafe(action.Phase) {
			stats.ParallelSafeActions++
		}

		if action.Reversible {
			stats.ReversibleActions++
		}
	}

	return stats
}
