package apply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
)

// userInputValue is the placeholder the plan uses for values the
// operator must supply.
const userInputValue = plan.UserInputValue

// Simulation outcomes for dry-run results.
const (
	SimWouldCreate  = "would_create"
	SimWouldUpdate  = "would_update"
	SimWouldSkip    = "would_skip"
	SimWouldFail    = "would_fail"
	SimWouldExecute = "would_execute"
)

// ErrUnknownActionType indicates a plan action kind with no registered
// handler.
var ErrUnknownActionType = errors.New("unknown action type")

// ErrNotReversible indicates a rollback request against a kind whose
// effect cannot be undone.
var ErrNotReversible = errors.New("action is not reversible")

// Outcome is what one handler call produced. The executor wraps it into
// a full Result.
type Outcome struct {
	// Outputs carries destination identifiers and display fields.
	// Never secret values.
	Outputs map[string]any

	// RollbackData carries what Rollback needs to undo the effect.
	RollbackData map[string]any

	// Simulation is the dry-run outcome, set only by Simulate.
	Simulation string
}

// Handler is the polymorphic contract each action kind implements.
type Handler interface {
	// Execute performs the destination write.
	Execute(ctx context.Context, run *Context) (Outcome, error)

	// Simulate probes the destination read-only and predicts the outcome.
	Simulate(ctx context.Context, run *Context) (Outcome, error)

	// Rollback undoes a previously successful Execute using its
	// persisted rollback data.
	Rollback(ctx context.Context, run *Context, data map[string]any) error
}

// idempotencyChecker is implemented by handlers that can detect the
// entity already existing on the destination and short-circuit.
type idempotencyChecker interface {
	CheckIdempotency(ctx context.Context, run *Context) (Outcome, bool, error)
}

// factory builds a handler from an action, decoding its parameters.
type factory func(action plan.Action) (Handler, error)

// registry maps every plan action kind to its handler factory.
var registry = map[plan.ActionType]factory{
	plan.ActionRepoCreate:         newRepoCreate,
	plan.ActionRepoPush:           newRepoPush,
	plan.ActionRepoConfigure:      newRepoConfigure,
	plan.ActionLFSConfigure:       newLFSConfigure,
	plan.ActionWorkflowCommit:     newWorkflowCommit,
	plan.ActionEnvironmentCreate:  newEnvironmentCreate,
	plan.ActionSecretSet:          newSecretSet,
	plan.ActionVariableSet:        newVariableSet,
	plan.ActionScheduleCreate:     newScheduleCreate,
	plan.ActionLabelCreate:        newLabelCreate,
	plan.ActionMilestoneCreate:    newMilestoneCreate,
	plan.ActionIssueCreate:        newIssueCreate,
	plan.ActionIssueCommentAdd:    newIssueCommentAdd,
	plan.ActionPRCreate:           newPRCreate,
	plan.ActionPRCommentAdd:       newPRCommentAdd,
	plan.ActionWikiPush:           newWikiPush,
	plan.ActionWikiCommit:         newWikiCommit,
	plan.ActionReleaseCreate:      newReleaseCreate,
	plan.ActionReleaseAssetUpload: newReleaseAssetUpload,
	plan.ActionPackagePublish:     newPackagePublish,
	plan.ActionProtectionSet:      newProtectionSet,
	plan.ActionCollaboratorAdd:    newCollaboratorAdd,
	plan.ActionTeamCreate:         newTeamCreate,
	plan.ActionCodeownersCommit:   newCodeownersCommit,
	plan.ActionWebhookCreate:      newWebhookCreate,
	plan.ActionWebhookConfigure:   newWebhookConfigure,
	plan.ActionArtifactCommit:     newArtifactCommit,
	plan.ActionAttachmentsCommit:  newAttachmentsCommit,
}

// newHandler instantiates the handler for one action.
func newHandler(action plan.Action) (Handler, error) {
	build, ok := registry[action.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActionType, action.Type)
	}

	return build(action)
}

// decodeParams unmarshals action parameters into the kind's typed record.
func decodeParams[T any](action plan.Action) (T, error) {
	var params T

	err := json.Unmarshal(action.Parameters, &params)
	if err != nil {
		return params, fmt.Errorf("decode %s parameters: %w", action.Type, err)
	}

	return params, nil
}

// intFrom reads an integer out of JSON-round-tripped rollback data.
func intFrom(data map[string]any, key string) (int64, bool) {
	switch v := data[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()

		return n, err == nil
	default:
		return 0, false
	}
}

// stringFrom reads a string out of rollback data.
func stringFrom(data map[string]any, key string) (string, bool) {
	s, ok := data[key].(string)

	return s, ok
}

// nonReversible provides the Rollback of kinds that cannot be undone.
type nonReversible struct{}

func (nonReversible) Rollback(context.Context, *Context, map[string]any) error {
	return ErrNotReversible
}
