// Package artifacts pins the contractual on-disk layout every stage
// writes into. Downstream tools read these files by relative path, so
// the names here are part of the external interface.
package artifacts

import (
	"path/filepath"
	"strings"
)

// Tree resolves paths inside one project's artifact root.
type Tree struct {
	Root string
}

// ProjectTree scopes an artifact root to one project. Concurrent
// migrations must write disjoint subtrees.
func ProjectTree(root, projectPath string) Tree {
	return Tree{Root: filepath.Join(root, strings.ReplaceAll(projectPath, "/", "__"))}
}

// RunReportPath is the pipeline outcome report for the project.
func (t Tree) RunReportPath() string { return filepath.Join(t.Root, "run_report.json") }

// DiscoveryDir holds the inventory.
func (t Tree) DiscoveryDir() string { return filepath.Join(t.Root, "discovery") }

// InventoryPath is the discovery inventory file.
func (t Tree) InventoryPath() string { return filepath.Join(t.DiscoveryDir(), "inventory.json") }

// ExportDir is the root of the export tree.
func (t Tree) ExportDir() string { return filepath.Join(t.Root, "export") }

// RepositoryDir holds the bundle and repo-shape files.
func (t Tree) RepositoryDir() string { return filepath.Join(t.ExportDir(), "repository") }

// BundlePath is the full-ref git bundle.
func (t Tree) BundlePath() string { return filepath.Join(t.RepositoryDir(), "bundle.git") }

// SubmodulesPath lists submodule declarations when present.
func (t Tree) SubmodulesPath() string { return filepath.Join(t.RepositoryDir(), "submodules.txt") }

// LFSSentinelPath marks LFS usage.
func (t Tree) LFSSentinelPath() string { return filepath.Join(t.RepositoryDir(), "lfs", "lfs_detected.txt") }

// CIDir holds exported CI/CD files.
func (t Tree) CIDir() string { return filepath.Join(t.ExportDir(), "ci") }

// CIConfigPath is the raw source CI file.
func (t Tree) CIConfigPath() string { return filepath.Join(t.CIDir(), "gitlab-ci.yml") }

// VariablesPath holds CI variables metadata, values of masked ones blank.
func (t Tree) VariablesPath() string { return filepath.Join(t.CIDir(), "variables.json") }

// EnvironmentsPath holds CI environments.
func (t Tree) EnvironmentsPath() string { return filepath.Join(t.CIDir(), "environments.json") }

// SchedulesPath holds pipeline schedules.
func (t Tree) SchedulesPath() string { return filepath.Join(t.CIDir(), "schedules.json") }

// PipelineHistoryPath holds the recent pipeline records.
func (t Tree) PipelineHistoryPath() string { return filepath.Join(t.CIDir(), "pipeline_history.json") }

// PipelineHistoryArchivePath is the lz4-compressed pipeline history.
func (t Tree) PipelineHistoryArchivePath() string {
	return filepath.Join(t.CIDir(), "pipeline_history.json.lz4")
}

// IssuesDir holds issue exports.
func (t Tree) IssuesDir() string { return filepath.Join(t.ExportDir(), "issues") }

// IssuesPath is the issue list with notes inlined.
func (t Tree) IssuesPath() string { return filepath.Join(t.IssuesDir(), "issues.json") }

// IssueAttachmentsDir holds downloaded issue attachments.
func (t Tree) IssueAttachmentsDir() string { return filepath.Join(t.IssuesDir(), "attachments") }

// SourceLabelsPath holds the exported project labels.
func (t Tree) SourceLabelsPath() string { return filepath.Join(t.IssuesDir(), "labels.json") }

// SourceMilestonesPath holds the exported project milestones.
func (t Tree) SourceMilestonesPath() string { return filepath.Join(t.IssuesDir(), "milestones.json") }

// IssueAttachmentMetaPath maps original upload paths to local files.
func (t Tree) IssueAttachmentMetaPath() string {
	return filepath.Join(t.IssuesDir(), "attachment_metadata.json")
}

// MergeRequestsDir holds merge request exports.
func (t Tree) MergeRequestsDir() string { return filepath.Join(t.ExportDir(), "merge_requests") }

// MergeRequestsPath is the MR list with discussions inlined.
func (t Tree) MergeRequestsPath() string {
	return filepath.Join(t.MergeRequestsDir(), "merge_requests.json")
}

// MRAttachmentsDir holds downloaded MR attachments.
func (t Tree) MRAttachmentsDir() string { return filepath.Join(t.MergeRequestsDir(), "attachments") }

// MRAttachmentMetaPath maps original upload paths to local files.
func (t Tree) MRAttachmentMetaPath() string {
	return filepath.Join(t.MergeRequestsDir(), "attachment_metadata.json")
}

// WikiDir holds the wiki clone or its sentinel.
func (t Tree) WikiDir() string { return filepath.Join(t.ExportDir(), "wiki") }

// WikiRepoPath is the wiki clone destination.
func (t Tree) WikiRepoPath() string { return filepath.Join(t.WikiDir(), "wiki.git") }

// WikiDisabledPath marks a project without a wiki.
func (t Tree) WikiDisabledPath() string { return filepath.Join(t.WikiDir(), "wiki_disabled.txt") }

// WikiEmptyPath marks an existing but empty wiki.
func (t Tree) WikiEmptyPath() string { return filepath.Join(t.WikiDir(), "wiki_empty.txt") }

// ReleasesDir holds release metadata and assets.
func (t Tree) ReleasesDir() string { return filepath.Join(t.ExportDir(), "releases") }

// ReleasesPath is the release list with local asset paths recorded.
func (t Tree) ReleasesPath() string { return filepath.Join(t.ReleasesDir(), "releases.json") }

// ReleaseAssetPath is where one downloaded asset lands.
func (t Tree) ReleaseAssetPath(tag, asset string) string {
	return filepath.Join(t.ReleasesDir(), tag, asset)
}

// PackagesDir holds package registry metadata.
func (t Tree) PackagesDir() string { return filepath.Join(t.ExportDir(), "packages") }

// PackagesPath is the package metadata list.
func (t Tree) PackagesPath() string { return filepath.Join(t.PackagesDir(), "packages.json") }

// SettingsDir holds governance exports.
func (t Tree) SettingsDir() string { return filepath.Join(t.ExportDir(), "settings") }

// ProtectedBranchesPath holds branch protection rules.
func (t Tree) ProtectedBranchesPath() string {
	return filepath.Join(t.SettingsDir(), "protected_branches.json")
}

// ProtectedTagsPath holds tag protection rules.
func (t Tree) ProtectedTagsPath() string { return filepath.Join(t.SettingsDir(), "protected_tags.json") }

// MembersPath holds the member list.
func (t Tree) MembersPath() string { return filepath.Join(t.SettingsDir(), "members.json") }

// WebhooksPath holds webhooks with masked tokens.
func (t Tree) WebhooksPath() string { return filepath.Join(t.SettingsDir(), "webhooks.json") }

// ApprovalRulesPath holds merge request approval rules.
func (t Tree) ApprovalRulesPath() string {
	return filepath.Join(t.SettingsDir(), "approval_rules.json")
}

// DeployKeysPath holds deploy keys with masked key material.
func (t Tree) DeployKeysPath() string { return filepath.Join(t.SettingsDir(), "deploy_keys.json") }

// ProjectSettingsPath holds project-level toggles.
func (t Tree) ProjectSettingsPath() string {
	return filepath.Join(t.SettingsDir(), "project_settings.json")
}

// ManifestPath is the export manifest.
func (t Tree) ManifestPath() string { return filepath.Join(t.ExportDir(), "export_manifest.json") }

// CheckpointPath is the export checkpoint file.
func (t Tree) CheckpointPath() string {
	return filepath.Join(t.ExportDir(), ".export_checkpoint.json")
}

// TransformDir is the root of transform outputs.
func (t Tree) TransformDir() string { return filepath.Join(t.Root, "transform") }

// WorkflowsDir holds converted workflow files.
func (t Tree) WorkflowsDir() string { return filepath.Join(t.TransformDir(), "workflows") }

// UserMappingPath holds the user mapping output.
func (t Tree) UserMappingPath() string { return filepath.Join(t.TransformDir(), "user_mapping.json") }

// TransformedIssuesPath holds rewritten issues.
func (t Tree) TransformedIssuesPath() string { return filepath.Join(t.TransformDir(), "issues.json") }

// TransformedMRsPath holds rewritten merge requests.
func (t Tree) TransformedMRsPath() string {
	return filepath.Join(t.TransformDir(), "merge_requests.json")
}

// TransformedLabelsPath holds converted labels.
func (t Tree) TransformedLabelsPath() string { return filepath.Join(t.TransformDir(), "labels.json") }

// TransformedMilestonesPath holds converted milestones.
func (t Tree) TransformedMilestonesPath() string {
	return filepath.Join(t.TransformDir(), "milestones.json")
}

// ProtectionRulesPath holds converted protection rules.
func (t Tree) ProtectionRulesPath() string {
	return filepath.Join(t.TransformDir(), "protection_rules.json")
}

// CodeownersPath holds the generated CODEOWNERS file.
func (t Tree) CodeownersPath() string { return filepath.Join(t.TransformDir(), "CODEOWNERS") }

// TransformedWebhooksPath holds translated webhooks.
func (t Tree) TransformedWebhooksPath() string {
	return filepath.Join(t.TransformDir(), "webhooks.json")
}

// GapsPath is the machine-readable conversion gap report.
func (t Tree) GapsPath() string { return filepath.Join(t.TransformDir(), "conversion_gaps.json") }

// GapsMarkdownPath is the human-readable conversion gap report.
func (t Tree) GapsMarkdownPath() string { return filepath.Join(t.TransformDir(), "conversion_gaps.md") }

// RegistryScriptPath is the emitted container-registry migration script.
func (t Tree) RegistryScriptPath() string {
	return filepath.Join(t.TransformDir(), "registry_migration.sh")
}

// PlanDir is the root of plan outputs.
func (t Tree) PlanDir() string { return filepath.Join(t.Root, "plan") }

// PlanPath is the versioned plan file.
func (t Tree) PlanPath() string { return filepath.Join(t.PlanDir(), "plan.json") }

// PlanStatsPath is the plan statistics file.
func (t Tree) PlanStatsPath() string { return filepath.Join(t.PlanDir(), "plan_stats.json") }

// DependencyGraphPath is the Graphviz dependency export.
func (t Tree) DependencyGraphPath() string {
	return filepath.Join(t.PlanDir(), "dependency_graph.json")
}

// UserInputsPath lists required user inputs.
func (t Tree) UserInputsPath() string {
	return filepath.Join(t.PlanDir(), "user_inputs_required.json")
}

// ApplyDir is the root of apply outputs.
func (t Tree) ApplyDir() string { return filepath.Join(t.Root, "apply") }

// ApplyReportPath is the apply outcome report.
func (t Tree) ApplyReportPath() string { return filepath.Join(t.ApplyDir(), "apply_report.json") }

// DryRunReportPath is the simulation outcome report.
func (t Tree) DryRunReportPath() string { return filepath.Join(t.ApplyDir(), "dry_run_report.json") }

// IDMappingsPath is the persisted source-to-destination id table.
func (t Tree) IDMappingsPath() string { return filepath.Join(t.ApplyDir(), "id_mappings.json") }

// ExecutedActionsPath is the rollback input written as actions succeed.
func (t Tree) ExecutedActionsPath() string {
	return filepath.Join(t.ApplyDir(), "executed_actions.json")
}

// RollbackReportPath is the rollback outcome report.
func (t Tree) RollbackReportPath() string {
	return filepath.Join(t.ApplyDir(), "rollback_report.json")
}

// VerifyDir is the root of verify outputs.
func (t Tree) VerifyDir() string { return filepath.Join(t.Root, "verify") }

// VerifyReportPath is the full verification report.
func (t Tree) VerifyReportPath() string { return filepath.Join(t.VerifyDir(), "verify_report.json") }

// VerifySummaryPath is the human-readable verification summary.
func (t Tree) VerifySummaryPath() string { return filepath.Join(t.VerifyDir(), "verify_summary.md") }

// ComponentStatusPath is the per-component status file.
func (t Tree) ComponentStatusPath() string {
	return filepath.Join(t.VerifyDir(), "component_status.json")
}

// DiscrepanciesPath lists verification discrepancies.
func (t Tree) DiscrepanciesPath() string { return filepath.Join(t.VerifyDir(), "discrepancies.json") }
