package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/config"
	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/observability"
	"github.com/Sumatoshi-tech/gitport/internal/ratelimit"
	"github.com/Sumatoshi-tech/gitport/internal/stages/apply"
	"github.com/Sumatoshi-tech/gitport/internal/stages/discovery"
	"github.com/Sumatoshi-tech/gitport/internal/stages/export"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
	"github.com/Sumatoshi-tech/gitport/internal/stages/transform"
	"github.com/Sumatoshi-tech/gitport/internal/stages/verify"
)

// Resources are shared across concurrent pipelines in a batch: one
// rate limiter per API so concurrency does not multiply the request
// rate, and a memoized org member list so two projects in the same
// group resolve users once.
type Resources struct {
	Source  *ratelimit.Limiter
	Dest    *ratelimit.Limiter
	Members *MemberCache
}

// NewResources creates the shared resource set.
func NewResources() *Resources {
	return &Resources{
		Source:  ratelimit.NewLimiter("GitLab"),
		Dest:    ratelimit.NewLimiter("GitHub"),
		Members: &MemberCache{},
	}
}

// MemberCache memoizes the destination organization's member list.
// Write-once behind a mutex.
type MemberCache struct {
	mu      sync.Mutex
	members []github.OrgMember
	loaded  bool
}

// Load fetches the member list on first use and serves the cached
// copy afterwards.
func (c *MemberCache) Load(ctx context.Context, client *github.Client) ([]github.OrgMember, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.members, nil
	}

	members, err := client.OrgMembers(ctx)
	if err != nil {
		return nil, err
	}

	c.members = members
	c.loaded = true

	return members, nil
}

// New wires a pipeline for one project from config: clients, git
// runners, and all six stages. Shared may be nil for a standalone run.
func New(cfg config.Config, logger *slog.Logger, metrics *observability.Metrics, tracer trace.Tracer, shared *Resources) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if shared == nil {
		shared = NewResources()
	}

	source := gitlab.NewClient(gitlab.Options{
		BaseURL: cfg.GitLab.BaseURL,
		Token:   cfg.GitLab.Token,
		Limiter: shared.Source,
		Timeout: seconds(cfg.GitLab.TimeoutSeconds),
		Logger:  logger,
	})

	dest, destErr := github.NewClient(github.Options{
		Host:    cfg.GitHub.APIHost,
		Owner:   cfg.GitHub.Org,
		Token:   cfg.GitHub.Token,
		Limiter: shared.Dest,
		Timeout: seconds(cfg.GitHub.TimeoutSeconds),
		Logger:  logger,
	})
	if destErr != nil {
		return nil, fmt.Errorf("github client: %w", destErr)
	}

	// Verification reads get their own, slower timeout.
	reader, readerErr := github.NewClient(github.Options{
		Host:    cfg.GitHub.APIHost,
		Owner:   cfg.GitHub.Org,
		Token:   cfg.GitHub.Token,
		Limiter: shared.Dest,
		Timeout: seconds(cfg.Verify.TimeoutSeconds),
		Logger:  logger,
	})
	if readerErr != nil {
		return nil, fmt.Errorf("github verify client: %w", readerErr)
	}

	git := gitlab.NewGitRunner(source)
	git.CloneTimeout = seconds(cfg.Git.CloneTimeoutSeconds)
	git.BundleTimeout = seconds(cfg.Git.BundleTimeoutSeconds)
	git.WikiTimeout = seconds(cfg.Git.WikiTimeoutSeconds)

	repo := RepoName(cfg.GitLab.ProjectPath)

	return &Pipeline{
		Logger:    logger,
		Discovery: discovery.NewStage(source, logger),
		Export:    export.NewStage(source, git, cfg.Export, logger),
		Transform: &lazyTransform{
			stage: &transform.Stage{
				Logger:             logger,
				Org:                cfg.GitHub.Org,
				Repo:               repo,
				SourceRegistryHost: cfg.GitLab.Registry,
			},
			client:  dest,
			members: shared.Members,
			logger:  logger,
		},
		Plan: &plan.Stage{
			Logger: logger,
			Org:    cfg.GitHub.Org,
			Repo:   repo,
			RunID:  cfg.RunID,
		},
		Apply: &apply.Stage{
			Logger:         logger,
			Forge:          dest,
			Pusher:         github.NewPushRunner(dest),
			Limiter:        shared.Dest,
			Metrics:        metrics,
			Tracer:         tracer,
			MaxRetries:     cfg.Apply.MaxRetries,
			PhaseWorkers:   cfg.Apply.PhaseWorkers,
			RateLimitFloor: cfg.Apply.RateLimitFloor,
		},
		Verify: &verify.Stage{
			Logger:  logger,
			Reader:  reader,
			Repo:    repo,
			Config:  cfg.Verify,
			Metrics: metrics,
			Tracer:  tracer,
		},
		Resolver: source,
		Tree:     artifacts.ProjectTree(cfg.Artifacts.Root, cfg.GitLab.ProjectPath),
		Config:   cfg,
		Metrics:  metrics,
		Tracer:   tracer,
	}, nil
}

// NewApplyStage wires just the apply stage against the destination,
// used by rollback.
func NewApplyStage(cfg config.Config, logger *slog.Logger, metrics *observability.Metrics, tracer trace.Tracer) (*apply.Stage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	limiter := ratelimit.NewLimiter("GitHub")

	dest, err := github.NewClient(github.Options{
		Host:    cfg.GitHub.APIHost,
		Owner:   cfg.GitHub.Org,
		Token:   cfg.GitHub.Token,
		Limiter: limiter,
		Timeout: seconds(cfg.GitHub.TimeoutSeconds),
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}

	return &apply.Stage{
		Logger:         logger,
		Forge:          dest,
		Pusher:         github.NewPushRunner(dest),
		Limiter:        limiter,
		Metrics:        metrics,
		Tracer:         tracer,
		MaxRetries:     cfg.Apply.MaxRetries,
		PhaseWorkers:   cfg.Apply.PhaseWorkers,
		RateLimitFloor: cfg.Apply.RateLimitFloor,
	}, nil
}

// lazyTransform defers the org member fetch to the first transform
// run, when a context is available.
type lazyTransform struct {
	stage   *transform.Stage
	client  *github.Client
	members *MemberCache
	logger  *slog.Logger
}

func (l *lazyTransform) Run(ctx context.Context, tree artifacts.Tree, project gitlab.Project) (transform.Output, error) {
	if l.stage.OrgMembers == nil {
		members, err := l.members.Load(ctx, l.client)
		if err != nil {
			// User mapping degrades to unmapped entries, which surface
			// as conversion gaps.
			l.logger.Warn("org member lookup failed", "error", err)
		} else {
			l.stage.OrgMembers = members
		}
	}

	return l.stage.Run(ctx, tree, project)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
