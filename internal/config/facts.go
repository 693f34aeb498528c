package config

// Default GitLab settings.
const (
	// DefaultGitLabBaseURL is the public GitLab instance.
	DefaultGitLabBaseURL = "https://gitlab.com"
	// DefaultGitLabTimeoutSeconds is the per-request timeout.
	DefaultGitLabTimeoutSeconds = 30
	// DefaultGitLabRegistry is the public GitLab container registry.
	DefaultGitLabRegistry = "registry.gitlab.com"
)

// Default GitHub settings.
const (
	// DefaultGitHubAPIHost is the public GitHub API host.
	DefaultGitHubAPIHost = "github.com"
	// DefaultGitHubTimeoutSeconds is the per-request timeout.
	DefaultGitHubTimeoutSeconds = 30
	// DefaultGitHubRegistry is the GitHub container registry.
	DefaultGitHubRegistry = "ghcr.io"
)

// Default export settings.
const (
	// DefaultCheckpointEvery is the item interval between checkpoint writes.
	DefaultCheckpointEvery = 10
	// DefaultAttachmentMaxBytes rejects attachments above 100 MB.
	DefaultAttachmentMaxBytes = 100 << 20
	// DefaultAttachmentWarnBytes warns for attachments above 50 MB.
	DefaultAttachmentWarnBytes = 50 << 20
	// DefaultPipelineHistoryLimit bounds exported pipeline history.
	DefaultPipelineHistoryLimit = 100
)

// Default apply settings.
const (
	// DefaultApplyMaxRetries bounds per-action retry attempts.
	DefaultApplyMaxRetries = 3
	// DefaultPhaseWorkers bounds parallel-safe phase concurrency.
	DefaultPhaseWorkers = 4
	// DefaultRateLimitFloor pauses applies below this remaining quota.
	DefaultRateLimitFloor = 100
)

// Default verify settings.
const (
	// DefaultVerifyTolerance is the relative numeric comparison tolerance.
	DefaultVerifyTolerance = 0.05
	// DefaultVerifyTimeoutSeconds is the per-request timeout during verify.
	DefaultVerifyTimeoutSeconds = 60
)

// Default batch settings.
const (
	// DefaultBatchParallelLimit bounds concurrently migrating projects.
	DefaultBatchParallelLimit = 5
)

// Default git subprocess timeouts, in seconds.
const (
	// DefaultCloneTimeoutSeconds bounds `git clone --mirror`.
	DefaultCloneTimeoutSeconds = 600
	// DefaultBundleTimeoutSeconds bounds `git bundle create`.
	DefaultBundleTimeoutSeconds = 300
	// DefaultWikiTimeoutSeconds bounds the wiki clone.
	DefaultWikiTimeoutSeconds = 120
)
