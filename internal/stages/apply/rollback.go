package apply

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/stages/plan"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// RollbackReport is the rollback_report.json payload.
type RollbackReport struct {
	Status     string   `json:"status"`
	RolledBack int      `json:"rolled_back"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// Rollback undoes a previous apply run by walking the execution record
// in reverse. Only reversible action kinds are undone; everything else
// is counted as skipped. Issues and pull requests are closed with a
// tombstone comment rather than deleted.
func (s *Stage) Rollback(ctx context.Context, tree artifacts.Tree) (RollbackReport, error) {
	p, planErr := plan.Load(tree.PlanPath())
	if planErr != nil {
		return RollbackReport{}, planErr
	}

	var executed []Result

	readErr := persist.ReadJSON(tree.ExecutedActionsPath(), &executed)
	if readErr != nil {
		return RollbackReport{}, fmt.Errorf("read executed actions: %w", readErr)
	}

	ids, idsErr := LoadIDMappings(tree.IDMappingsPath())
	if idsErr != nil {
		return RollbackReport{}, idsErr
	}

	org, repo, targetErr := splitTarget(p.GitHubTarget)
	if targetErr != nil {
		return RollbackReport{}, targetErr
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	run := &Context{
		Forge:         s.Forge,
		Pusher:        s.Pusher,
		Org:           org,
		Repo:          repo,
		DefaultBranch: defaultBranchFromPlan(p),
		IDs:           ids,
		Logger:        logger,
	}

	var report RollbackReport

	for i := len(executed) - 1; i >= 0; i-- {
		result := executed[i]

		if !result.Success || result.Simulated || result.Skipped {
			continue
		}

		action := p.ActionByID(result.ActionID)
		if action == nil {
			report.Skipped++

			continue
		}

		if !result.Reversible {
			report.Skipped++

			continue
		}

		handler, handlerErr := newHandler(*action)
		if handlerErr != nil {
			report.Skipped++

			continue
		}

		rollbackErr := handler.Rollback(ctx, run, result.RollbackData)
		if rollbackErr != nil {
			report.Failed++
			report.Errors = append(report.Errors,
				fmt.Sprintf("action %d (%s): %v", result.ActionID, result.ActionType, rollbackErr))

			logger.Warn("rollback failed",
				"action", result.ActionID,
				"type", result.ActionType,
				"error", rollbackErr)

			continue
		}

		report.RolledBack++

		logger.Info("rolled back",
			"action", result.ActionID,
			"type", result.ActionType)
	}

	switch {
	case report.Failed == 0:
		report.Status = StatusSuccess
	case report.RolledBack > 0:
		report.Status = StatusPartial
	default:
		report.Status = StatusFailed
	}

	writeErr := persist.WriteJSON(tree.RollbackReportPath(), report)
	if writeErr != nil {
		return report, fmt.Errorf("write rollback report: %w", writeErr)
	}

	return report, nil
}
