// Package plan turns transform and export artifacts into an ordered,
// validated DAG of idempotent actions for the apply stage.
package plan

import "encoding/json"

// ActionType names one kind of destination write.
type ActionType string

// Action kinds.
const (
	ActionRepoCreate         ActionType = "repo_create"
	ActionRepoPush           ActionType = "repo_push"
	ActionRepoConfigure      ActionType = "repo_configure"
	ActionLFSConfigure       ActionType = "lfs_configure"
	ActionWorkflowCommit     ActionType = "workflow_commit"
	ActionEnvironmentCreate  ActionType = "environment_create"
	ActionSecretSet          ActionType = "secret_set"
	ActionVariableSet        ActionType = "variable_set"
	ActionScheduleCreate     ActionType = "schedule_create"
	ActionLabelCreate        ActionType = "label_create"
	ActionMilestoneCreate    ActionType = "milestone_create"
	ActionIssueCreate        ActionType = "issue_create"
	ActionIssueCommentAdd    ActionType = "issue_comment_add"
	ActionPRCreate           ActionType = "pr_create"
	ActionPRCommentAdd       ActionType = "pr_comment_add"
	ActionWikiPush           ActionType = "wiki_push"
	ActionWikiCommit         ActionType = "wiki_commit"
	ActionReleaseCreate      ActionType = "release_create"
	ActionReleaseAssetUpload ActionType = "release_asset_upload"
	ActionPackagePublish     ActionType = "package_publish"
	ActionProtectionSet      ActionType = "protection_set"
	ActionCollaboratorAdd    ActionType = "collaborator_add"
	ActionTeamCreate         ActionType = "team_create"
	ActionCodeownersCommit   ActionType = "codeowners_commit"
	ActionWebhookCreate      ActionType = "webhook_create"
	ActionWebhookConfigure   ActionType = "webhook_configure"
	ActionArtifactCommit     ActionType = "artifact_commit"
	ActionAttachmentsCommit  ActionType = "attachments_commit"
)

// Action is the atomic unit the apply stage executes.
type Action struct {
	ID                int             `json:"id"`
	Type              ActionType      `json:"type"`
	Component         string          `json:"component"`
	Phase             string          `json:"phase"`
	Description       string          `json:"description"`
	Parameters        json.RawMessage `json:"parameters"`
	Dependencies      []int           `json:"dependencies"`
	IdempotencyKey    string          `json:"idempotency_key"`
	DryRunSafe        bool            `json:"dry_run_safe"`
	Reversible        bool            `json:"reversible"`
	EstimatedDuration int             `json:"estimated_duration_seconds"`
	RequiresUserInput bool            `json:"requires_user_input,omitempty"`
	SkipIf            string          `json:"skip_if,omitempty"`
}

// reversibleKinds marks action kinds whose effect can be undone.
// Reversibility is a property of the kind, never of a single result.
var reversibleKinds = map[ActionType]bool{
	ActionRepoCreate:         true,
	ActionLabelCreate:        true,
	ActionMilestoneCreate:    true,
	ActionReleaseCreate:      true,
	ActionReleaseAssetUpload: true,
	ActionProtectionSet:      true,
	ActionCollaboratorAdd:    true,
	ActionWebhookCreate:      true,
	ActionWebhookConfigure:   true,
	ActionEnvironmentCreate:  true,
	ActionSecretSet:          true,
	ActionVariableSet:        true,
	ActionTeamCreate:         true,
	// Issues and PRs are rolled back by closing with a tombstone
	// comment rather than deletion.
	ActionIssueCreate: true,
	ActionPRCreate:    true,
}

// Reversible reports whether the kind can be rolled back.
func Reversible(kind ActionType) bool {
	return reversibleKinds[kind]
}

// estimatedSeconds is the per-kind duration estimate used for plan
// summaries. Values are rough medians observed against real forges.
var estimatedSeconds = map[ActionType]int{
	ActionRepoCreate:         5,
	ActionRepoPush:           120,
	ActionRepoConfigure:      3,
	ActionLFSConfigure:       30,
	ActionWorkflowCommit:     3,
	ActionEnvironmentCreate:  3,
	ActionSecretSet:          2,
	ActionVariableSet:        2,
	ActionScheduleCreate:     3,
	ActionLabelCreate:        1,
	ActionMilestoneCreate:    1,
	ActionIssueCreate:        2,
	ActionIssueCommentAdd:    1,
	ActionPRCreate:           3,
	ActionPRCommentAdd:       1,
	ActionWikiPush:           60,
	ActionWikiCommit:         5,
	ActionReleaseCreate:      3,
	ActionReleaseAssetUpload: 30,
	ActionPackagePublish:     60,
	ActionProtectionSet:      3,
	ActionCollaboratorAdd:    2,
	ActionTeamCreate:         3,
	ActionCodeownersCommit:   3,
	ActionWebhookCreate:      2,
	ActionWebhookConfigure:   2,
	ActionArtifactCommit:     3,
	ActionAttachmentsCommit:  10,
}

// Phase names in fixed execution order.
const (
	PhaseFoundation    = "foundation"
	PhaseCISetup       = "ci_setup"
	PhaseIssueSetup    = "issue_setup"
	PhaseIssueImport   = "issue_import"
	PhasePRImport      = "pr_import"
	PhaseWikiImport    = "wiki_import"
	PhaseReleaseImport = "release_import"
	PhasePackageImport = "package_import"
	PhaseGovernance    = "governance"
	PhaseIntegrations  = "integrations"
	PhasePreservation  = "preservation"
)

// phaseDef pins a phase's rank, description, and concurrency contract.
type phaseDef struct {
	name         string
	description  string
	parallelSafe bool
}

// phaseOrder is the fixed phase sequence. issue_import and pr_import
// tolerate inter-action concurrency once cross-phase deps are met.
var phaseOrder = []phaseDef{
	{PhaseFoundation, "Repository creation, code push, base configuration", false},
	{PhaseCISetup, "Workflows, environments, secrets, variables, schedules", false},
	{PhaseIssueSetup, "Labels and milestones", false},
	{PhaseIssueImport, "Issues and their comments", true},
	{PhasePRImport, "Pull requests and their comments", true},
	{PhaseWikiImport, "Wiki repository", false},
	{PhaseReleaseImport, "Releases and assets", false},
	{PhasePackageImport, "Package registry entries", false},
	{PhaseGovernance, "Protections, collaborators, teams, CODEOWNERS", false},
	{PhaseIntegrations, "Webhooks", false},
	{PhasePreservation, "Migration archive commits", false},
}

// phaseForKind assigns every action kind to its phase.
var phaseForKind = map[ActionType]string{
	ActionRepoCreate:         PhaseFoundation,
	ActionRepoPush:           PhaseFoundation,
	ActionRepoConfigure:      PhaseFoundation,
	ActionLFSConfigure:       PhaseFoundation,
	ActionWorkflowCommit:     PhaseCISetup,
	ActionEnvironmentCreate:  PhaseCISetup,
	ActionSecretSet:          PhaseCISetup,
	ActionVariableSet:        PhaseCISetup,
	ActionScheduleCreate:     PhaseCISetup,
	ActionLabelCreate:        PhaseIssueSetup,
	ActionMilestoneCreate:    PhaseIssueSetup,
	ActionIssueCreate:        PhaseIssueImport,
	ActionIssueCommentAdd:    PhaseIssueImport,
	ActionPRCreate:           PhasePRImport,
	ActionPRCommentAdd:       PhasePRImport,
	ActionWikiPush:           PhaseWikiImport,
	ActionWikiCommit:         PhaseWikiImport,
	ActionReleaseCreate:      PhaseReleaseImport,
	ActionReleaseAssetUpload: PhaseReleaseImport,
	ActionPackagePublish:     PhasePackageImport,
	ActionProtectionSet:      PhaseGovernance,
	ActionCollaboratorAdd:    PhaseGovernance,
	ActionTeamCreate:         PhaseGovernance,
	ActionCodeownersCommit:   PhaseGovernance,
	ActionWebhookCreate:      PhaseIntegrations,
	ActionWebhookConfigure:   PhaseIntegrations,
	ActionArtifactCommit:     PhasePreservation,
	ActionAttachmentsCommit:  PhasePreservation,
}

// ParallelSafe reports whether the named phase allows inter-action
// concurrency.
func ParallelSafe(phase string) bool {
	for _, def := range phaseOrder {
		if def.name == phase {
			return def.parallelSafe
		}
	}

	return false
}
