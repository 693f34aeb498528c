// Package export extracts every migratable component of a source
// project into the typed artifact tree, with checkpointed resume and
// attachment-aware issue and merge request capture.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/checkpoint"
	"github.com/Sumatoshi-tech/gitport/internal/config"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/observability"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// GitOps is the git subprocess surface export depends on.
type GitOps interface {
	CloneMirror(ctx context.Context, repoURL, destDir string) error
	CreateBundle(ctx context.Context, mirrorDir, bundlePath string) error
	CloneWiki(ctx context.Context, repoURL, destDir string) error
}

// Stage extracts one project into the export artifact tree.
type Stage struct {
	GitLab *gitlab.Client
	Git    GitOps
	Logger *slog.Logger

	// Metrics is optional item-count telemetry.
	Metrics *observability.Metrics

	// CheckpointEvery flushes item progress every N items.
	CheckpointEvery int

	// Download bounds attachment and asset downloads.
	Download gitlab.DownloadOptions

	// PipelineHistoryLimit caps exported pipeline records.
	PipelineHistoryLimit int
}

// NewStage creates an export stage with configured limits.
func NewStage(client *gitlab.Client, git GitOps, cfg config.ExportConfig, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}

	checkpointEvery := cfg.CheckpointEvery
	if checkpointEvery <= 0 {
		checkpointEvery = config.DefaultCheckpointEvery
	}

	return &Stage{
		GitLab:          client,
		Git:             git,
		Logger:          logger,
		CheckpointEvery: checkpointEvery,
		Download: gitlab.DownloadOptions{
			MaxBytes:  cfg.AttachmentMaxBytes,
			WarnBytes: cfg.AttachmentWarnBytes,
		},
		PipelineHistoryLimit: cfg.PipelineHistoryLimit,
	}
}

// exporter runs one component, returning its item count and warnings.
type exporter func(ctx context.Context, tree artifacts.Tree, project gitlab.Project, cp *checkpoint.Checkpoint) (int, []string, error)

// Run extracts every component, skipping completed ones when resume is
// set. Per-component failures are recorded in the manifest, not fatal.
func (s *Stage) Run(ctx context.Context, tree artifacts.Tree, project gitlab.Project, resume bool) (Manifest, error) {
	manifest := Manifest{
		ProjectID:   project.ID,
		ProjectPath: project.PathWithNamespace,
		Components:  make(map[string]ComponentResult, len(Components)),
		StartedAt:   time.Now().UTC(),
	}

	mkdirErr := os.MkdirAll(tree.ExportDir(), 0o755)
	if mkdirErr != nil {
		return manifest, fmt.Errorf("create export dir: %w", mkdirErr)
	}

	cp, cpErr := checkpoint.Load(tree.CheckpointPath())
	if cpErr != nil {
		return manifest, fmt.Errorf("load checkpoint: %w", cpErr)
	}

	exporters := map[string]exporter{
		ComponentRepository:    s.exportRepository,
		ComponentCICD:          s.exportCI,
		ComponentIssues:        s.exportIssues,
		ComponentMergeRequests: s.exportMergeRequests,
		ComponentWiki:          s.exportWiki,
		ComponentReleases:      s.exportReleases,
		ComponentPackages:      s.exportPackages,
		ComponentSettings:      s.exportSettings,
	}

	for _, component := range Components {
		if ctx.Err() != nil {
			// Flush what finished so a resumed run reads accurate
			// component statuses.
			s.flushPartial(tree, &manifest)

			return manifest, ctx.Err()
		}

		if resume && cp.IsCompleted(component) {
			entry := cp.Entry(component)
			manifest.Components[component] = ComponentResult{
				Status: StatusCompleted,
				Items:  entry.ProcessedCount,
			}

			s.Logger.Info("component already exported, skipping", "component", component)

			continue
		}

		if !resume {
			resetErr := cp.Reset(component)
			if resetErr != nil {
				return manifest, fmt.Errorf("checkpoint %s: %w", component, resetErr)
			}
		}

		markErr := cp.MarkStarted(component)
		if markErr != nil {
			return manifest, fmt.Errorf("checkpoint %s: %w", component, markErr)
		}

		s.Logger.Info("export component started", "component", component, "project", project.PathWithNamespace)

		items, warnings, err := exporters[component](ctx, tree, project, cp)

		result := ComponentResult{Items: items, Warnings: warnings}

		switch {
		case err != nil:
			result.Status = StatusFailed
			result.Error = err.Error()

			s.Logger.Error("export component failed", "component", component, "error", err)
		case len(warnings) > 0:
			result.Status = StatusPartial
		default:
			result.Status = StatusCompleted
		}

		manifest.Components[component] = result

		completeErr := cp.MarkCompleted(component, err == nil, result.Error)
		if completeErr != nil {
			return manifest, fmt.Errorf("checkpoint %s: %w", component, completeErr)
		}

		if s.Metrics != nil {
			s.Metrics.RecordExported(ctx, component, items)
		}

		if err == nil {
			s.Logger.Info("export component finished", "component", component, "items", items)
		}
	}

	manifest.FinishedAt = time.Now().UTC()
	manifest.Status = manifest.overall()

	writeErr := persist.WriteJSON(tree.ManifestPath(), manifest)
	if writeErr != nil {
		return manifest, fmt.Errorf("write manifest: %w", writeErr)
	}

	return manifest, nil
}

// flushPartial persists the manifest of a run cut short before every
// component ran.
func (s *Stage) flushPartial(tree artifacts.Tree, manifest *Manifest) {
	manifest.FinishedAt = time.Now().UTC()
	manifest.Status = OverallPartial

	writeErr := persist.WriteJSON(tree.ManifestPath(), *manifest)
	if writeErr != nil {
		s.Logger.Warn("partial manifest not written", "error", writeErr)
	}
}
