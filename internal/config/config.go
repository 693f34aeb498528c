// Package config holds gitport's configuration types and loading.
package config

import "errors"

// Config is the top-level configuration struct for gitport.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	GitLab    GitLabConfig    `mapstructure:"gitlab"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Export    ExportConfig    `mapstructure:"export"`
	Apply     ApplyConfig     `mapstructure:"apply"`
	Verify    VerifyConfig    `mapstructure:"verify"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Git       GitConfig       `mapstructure:"git"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	RunID     string          `mapstructure:"run_id"`
}

// GitLabConfig holds source-forge connection settings.
type GitLabConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Token       string `mapstructure:"token"`
	GroupPath   string `mapstructure:"group_path"`
	ProjectPath string `mapstructure:"project_path"`
	// TimeoutSeconds is the per-request HTTP timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// Registry is the source container registry host.
	Registry string `mapstructure:"registry"`
}

// GitHubConfig holds destination-forge connection settings.
type GitHubConfig struct {
	APIHost string `mapstructure:"api_host"`
	Org     string `mapstructure:"org"`
	Token   string `mapstructure:"token"`
	// TimeoutSeconds is the per-request HTTP timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// Registry is the destination container registry host (e.g. ghcr.io).
	Registry string `mapstructure:"registry"`
}

// ExportConfig holds export stage knobs.
type ExportConfig struct {
	Resume bool `mapstructure:"resume"`
	// CheckpointEvery is the item interval between checkpoint writes.
	CheckpointEvery int `mapstructure:"checkpoint_every"`
	// AttachmentMaxBytes rejects larger attachment downloads.
	AttachmentMaxBytes int64 `mapstructure:"attachment_max_bytes"`
	// AttachmentWarnBytes logs a warning for larger attachments.
	AttachmentWarnBytes int64 `mapstructure:"attachment_warn_bytes"`
	// PipelineHistoryLimit bounds exported pipeline history entries.
	PipelineHistoryLimit int `mapstructure:"pipeline_history_limit"`
}

// ApplyConfig holds apply stage knobs.
type ApplyConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
	// PhaseWorkers bounds inter-action concurrency in parallel-safe phases.
	PhaseWorkers int `mapstructure:"phase_workers"`
	// RateLimitFloor pauses applies when destination remaining drops below it.
	RateLimitFloor int `mapstructure:"rate_limit_floor"`
}

// VerifyConfig holds verification tolerances.
type VerifyConfig struct {
	// Tolerance is the default relative numeric tolerance (0.05 = 5%).
	Tolerance float64 `mapstructure:"tolerance"`
	// ComponentTolerance overrides the tolerance per component name.
	ComponentTolerance map[string]float64 `mapstructure:"component_tolerance"`
	// TimeoutSeconds is the per-request HTTP timeout during verification.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// BatchConfig holds batch orchestration knobs.
type BatchConfig struct {
	ParallelLimit int `mapstructure:"parallel_limit"`
}

// GitConfig holds git subprocess timeouts.
type GitConfig struct {
	CloneTimeoutSeconds  int `mapstructure:"clone_timeout_seconds"`
	BundleTimeoutSeconds int `mapstructure:"bundle_timeout_seconds"`
	WikiTimeoutSeconds   int `mapstructure:"wiki_timeout_seconds"`
}

// ArtifactsConfig holds the artifact tree location.
type ArtifactsConfig struct {
	Root string `mapstructure:"root"`
}

// Sentinel errors for configuration validation.
var (
	// ErrMissingGitLabToken indicates no source token was provided.
	ErrMissingGitLabToken = errors.New("gitlab.token is required")
	// ErrMissingGitHubToken indicates no destination token was provided.
	ErrMissingGitHubToken = errors.New("github.token is required")
	// ErrMissingGitHubOrg indicates no destination organization was provided.
	ErrMissingGitHubOrg = errors.New("github.org is required")
	// ErrMissingArtifactRoot indicates no artifact root was provided.
	ErrMissingArtifactRoot = errors.New("artifacts.root is required")
	// ErrMissingScope indicates neither a group nor a project was selected.
	ErrMissingScope = errors.New("one of gitlab.group_path or gitlab.project_path is required")
	// ErrInvalidParallelLimit indicates a non-positive batch parallel limit.
	ErrInvalidParallelLimit = errors.New("batch.parallel_limit must be positive")
	// ErrInvalidTolerance indicates a verification tolerance out of [0,1).
	ErrInvalidTolerance = errors.New("verify.tolerance must be in [0, 1)")
	// ErrInvalidMaxRetries indicates a negative apply retry budget.
	ErrInvalidMaxRetries = errors.New("apply.max_retries must be non-negative")
	// ErrInvalidCheckpointEvery indicates a non-positive checkpoint interval.
	ErrInvalidCheckpointEvery = errors.New("export.checkpoint_every must be positive")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.GitLab.Token == "" {
		return ErrMissingGitLabToken
	}

	if c.GitHub.Token == "" {
		return ErrMissingGitHubToken
	}

	if c.GitHub.Org == "" {
		return ErrMissingGitHubOrg
	}

	if c.Artifacts.Root == "" {
		return ErrMissingArtifactRoot
	}

	if c.GitLab.GroupPath == "" && c.GitLab.ProjectPath == "" {
		return ErrMissingScope
	}

	if c.Batch.ParallelLimit <= 0 {
		return ErrInvalidParallelLimit
	}

	if c.Verify.Tolerance < 0 || c.Verify.Tolerance >= 1 {
		return ErrInvalidTolerance
	}

	if c.Apply.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	if c.Export.CheckpointEvery <= 0 {
		return ErrInvalidCheckpointEvery
	}

	return nil
}

// ComponentToleranceFor returns the verification tolerance for a
// component, falling back to the global default.
func (c *VerifyConfig) ComponentToleranceFor(component string) float64 {
	if override, ok := c.ComponentTolerance[component]; ok {
		return override
	}

	return c.Tolerance
}
