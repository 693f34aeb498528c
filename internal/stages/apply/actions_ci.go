package apply

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
)

type workflowCommit struct {
	nonReversible

	params plan.WorkflowCommitParams
}

func newWorkflowCommit(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.WorkflowCommitParams](action)
	if err != nil {
		return nil, err
	}

	return &workflowCommit{params: params}, nil
}

func (h *workflowCommit) Execute(ctx context.Context, run *Context) (Outcome, error) {
	sha, err := run.Forge.CommitFile(ctx, run.Repo, h.params.Path, h.params.Branch,
		"Add migrated workflow "+h.params.Name, []byte(h.params.Content))
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Outputs: map[string]any{"path": h.params.Path, "sha": sha}}, nil
}

func (h *workflowCommit) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{
		Simulation: SimWouldCreate,
		Outputs:    map[string]any{"path": h.params.Path},
	}, nil
}

type environmentCreate struct {
	params plan.EnvironmentCreateParams
}

func newEnvironmentCreate(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.EnvironmentCreateParams](action)
	if err != nil {
		return nil, err
	}

	return &environmentCreate{params: params}, nil
}

func (h *environmentCreate) Execute(ctx context.Context, run *Context) (Outcome, error) {
	err := run.Forge.CreateEnvironment(ctx, run.Repo, h.params.Name)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Outputs:      map[string]any{"environment": h.params.Name},
		RollbackData: map[string]any{"environment": h.params.Name},
	}, nil
}

func (h *environmentCreate) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *environmentCreate) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	name, ok := stringFrom(data, "environment")
	if !ok {
		name = h.params.Name
	}

	return run.Forge.DeleteEnvironment(ctx, run.Repo, name)
}

type secretSet struct {
	params plan.SecretSetParams
}

func newSecretSet(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.SecretSetParams](action)
	if err != nil {
		return nil, err
	}

	return &secretSet{params: params}, nil
}

func (h *secretSet) Execute(ctx context.Context, run *Context) (Outcome, error) {
	value, inputErr := run.resolveInput(h.params.Name, h.params.Value)
	if inputErr != nil {
		return Outcome{}, inputErr
	}

	var err error
	if h.params.Environment != "" {
		err = run.Forge.SetEnvironmentSecret(ctx, run.Repo, h.params.Environment, h.params.Name, value)
	} else {
		err = run.Forge.SetRepoSecret(ctx, run.Repo, h.params.Name, value)
	}

	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Outputs:      map[string]any{"secret": h.params.Name, "scope": h.params.Scope},
		RollbackData: map[string]any{"name": h.params.Name, "environment": h.params.Environment},
	}, nil
}

func (h *secretSet) Simulate(_ context.Context, run *Context) (Outcome, error) {
	_, inputErr := run.resolveInput(h.params.Name, h.params.Value)
	if inputErr != nil {
		return Outcome{
			Simulation: SimWouldFail,
			Outputs:    map[string]any{"reason": "operator value required for secret " + h.params.Name},
		}, nil
	}

	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *secretSet) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	name, ok := stringFrom(data, "name")
	if !ok {
		name = h.params.Name
	}

	environment, _ := stringFrom(data, "environment")
	if environment != "" {
		return run.Forge.DeleteEnvironmentSecret(ctx, run.Repo, environment, name)
	}

	return run.Forge.DeleteRepoSecret(ctx, run.Repo, name)
}

type variableSet struct {
	params plan.VariableSetParams
}

func newVariableSet(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.VariableSetParams](action)
	if err != nil {
		return nil, err
	}

	return &variableSet{params: params}, nil
}

func (h *variableSet) Execute(ctx context.Context, run *Context) (Outcome, error) {
	err := run.Forge.SetVariable(ctx, run.Repo, h.params.Name, h.params.Value)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Outputs:      map[string]any{"variable": h.params.Name},
		RollbackData: map[string]any{"name": h.params.Name},
	}, nil
}

func (h *variableSet) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

func (h *variableSet) Rollback(ctx context.Context, run *Context, data map[string]any) error {
	name, ok := stringFrom(data, "name")
	if !ok {
		name = h.params.Name
	}

	return run.Forge.DeleteVariable(ctx, run.Repo, name)
}

type scheduleCreate struct {
	nonReversible

	params plan.ScheduleCreateParams
}

func newScheduleCreate(action plan.Action) (Handler, error) {
	params, err := decodeParams[plan.ScheduleCreateParams](action)
	if err != nil {
		return nil, err
	}

	return &scheduleCreate{params: params}, nil
}

func (h *scheduleCreate) Execute(ctx context.Context, run *Context) (Outcome, error) {
	path := ".github/workflows/schedule-" + workflowFileName(h.params.Name) + ".yml"

	branch := h.params.Ref
	if branch == "" {
		branch = run.DefaultBranch
	}

	sha, err := run.Forge.CommitFile(ctx, run.Repo, path, branch,
		"Add migrated pipeline schedule "+h.params.Name,
		[]byte(renderScheduleWorkflow(h.params)))
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Outputs: map[string]any{"path": path, "sha": sha}}, nil
}

func (h *scheduleCreate) Simulate(_ context.Context, _ *Context) (Outcome, error) {
	return Outcome{Simulation: SimWouldCreate}, nil
}

// renderScheduleWorkflow emits a cron-triggered workflow stub carrying
// the source schedule over. The operator points the job at the real
// pipeline once workflows are reviewed.
func renderScheduleWorkflow(params plan.ScheduleCreateParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "name: %q\n", params.Name)
	b.WriteString("on:\n")
	b.WriteString("  workflow_dispatch: {}\n")

	if params.Active {
		b.WriteString("  schedule:\n")
		fmt.Fprintf(&b, "    - cron: %q\n", params.Cron)
	} else {
		fmt.Fprintf(&b, "  # Schedule was inactive at export time: cron %q\n", params.Cron)
	}

	b.WriteString("jobs:\n")
	b.WriteString("  scheduled:\n")
	b.WriteString("    runs-on: ubuntu-latest\n")
	b.WriteString("    steps:\n")
	b.WriteString("      - run: echo \"Replace this step with the scheduled pipeline invocation.\"\n")

	return b.String()
}

// workflowFileNameChars strips everything a workflow filename cannot carry.
var workflowFileNameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

func workflowFileName(name string) string {
	cleaned := workflowFileNameChars.ReplaceAllString(strings.ToLower(name), "-")
	cleaned = strings.Trim(cleaned, "-")

	if cleaned == "" {
		return "pipeline"
	}

	return cleaned
}
