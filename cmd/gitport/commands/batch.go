package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitport/internal/batch"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/pipeline"
	"github.com/Sumatoshi-tech/gitport/internal/ratelimit"
)

// NewBatchCommand migrates every project of a group concurrently.
func NewBatchCommand(flags *GlobalFlags) *cobra.Command {
	var (
		mode       string
		parallel   int
		resumeFrom string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Migrate every project of a group, bounded by a parallel limit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(flags)
			if err != nil {
				return err
			}

			if s.cfg.GitLab.GroupPath == "" {
				return fmt.Errorf("%w: batch requires a group path", ErrBadInput)
			}

			runMode := pipeline.Mode(mode)
			if _, seqErr := pipeline.SequenceFor(runMode); seqErr != nil {
				return fmt.Errorf("%w: %v", ErrBadInput, seqErr)
			}

			ctx := cmd.Context()

			source := gitlab.NewClient(gitlab.Options{
				BaseURL: s.cfg.GitLab.BaseURL,
				Token:   s.cfg.GitLab.Token,
				Limiter: ratelimit.NewLimiter("GitLab"),
				Logger:  s.logger,
			})

			var projects []gitlab.Project

			listErr := source.GroupProjects(ctx, s.cfg.GitLab.GroupPath, func(project gitlab.Project) error {
				projects = append(projects, project)

				return nil
			})
			if listErr != nil {
				return fmt.Errorf("%w: list group projects: %v", ErrFailed, listErr)
			}

			if len(projects) == 0 {
				return fmt.Errorf("%w: group %s has no projects", ErrBadInput, s.cfg.GitLab.GroupPath)
			}

			if parallel <= 0 {
				parallel = s.cfg.Batch.ParallelLimit
			}

			orchestrator := &batch.Orchestrator{
				Logger:        s.logger,
				ParallelLimit: parallel,
				Metrics:       s.metrics,
			}

			result := orchestrator.Run(ctx, batch.ProjectConfigs(s.cfg, projects), runMode, resumeFrom)

			printBatchSummary(cmd.OutOrStdout(), result)

			switch result.Status {
			case batch.StatusSuccess:
				return nil
			case batch.StatusPartialSuccess:
				return ErrPartial
			default:
				return ErrFailed
			}
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(pipeline.ModeFull),
		"pipeline mode to run per project")
	cmd.Flags().IntVar(&parallel, "parallel", 0,
		"maximum concurrent projects (default from config)")
	cmd.Flags().StringVar(&resumeFrom, "resume-from", "",
		"resume each pipeline at this stage")

	return cmd
}
