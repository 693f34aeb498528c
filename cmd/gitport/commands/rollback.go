package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/pipeline"
	"github.com/Sumatoshi-tech/gitport/internal/stages/apply"
)

// NewRollbackCommand reverses the executed actions of a prior apply.
func NewRollbackCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Reverse the reversible actions of the last apply, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(flags)
			if err != nil {
				return err
			}

			stage, buildErr := pipeline.NewApplyStage(s.cfg, s.logger, s.metrics, nil)
			if buildErr != nil {
				return fmt.Errorf("%w: %v", ErrFailed, buildErr)
			}

			tree := artifacts.ProjectTree(s.cfg.Artifacts.Root, s.cfg.GitLab.ProjectPath)

			report, rollbackErr := stage.Rollback(cmd.Context(), tree)
			if rollbackErr != nil {
				return fmt.Errorf("%w: %v", ErrFailed, rollbackErr)
			}

			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "\n%s  rolled back %d, skipped %d, failed %d\n",
				statusBadge(report.Status), report.RolledBack, report.Skipped, report.Failed)

			for _, message := range report.Errors {
				fmt.Fprintf(out, "  - %s\n", message)
			}

			switch report.Status {
			case apply.StatusSuccess:
				return nil
			case apply.StatusPartial:
				return ErrPartial
			default:
				return ErrFailed
			}
		},
	}
}
