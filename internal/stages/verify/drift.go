package verify

import (
	"context"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxDriftDetail caps how much diff text lands in a report entry.
const maxDriftDetail = 2000

// checkWorkflowDrift compares one converted workflow against the file
// committed on the destination. Drift is a warning: someone may have
// legitimately edited the workflow after the migration.
func (s *Stage) checkWorkflowDrift(ctx context.Context, r *result, workflow expectedWorkflow) {
	path := ".github/workflows/" + workflow.FileName

	content, err := s.Reader.FileContent(ctx, s.Repo, path, "")
	if err != nil {
		r.fail("workflow "+workflow.FileName, err)

		return
	}

	if string(content) == workflow.Content {
		r.note("workflow "+workflow.FileName, "matches converted output")

		return
	}

	r.warn("workflow "+workflow.FileName,
		fmt.Sprintf("destination file differs from converted output:\n%s",
			driftSummary(workflow.Content, string(content))))
}

// driftSummary renders a compact line-level diff between the converted
// workflow and what the destination holds.
func driftSummary(expected, actual string) string {
	dmp := diffmatchpatch.New()

	chars1, chars2, lines := dmp.DiffLinesToChars(expected, actual)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	out := ""

	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			out += "- " + diff.Text
		case diffmatchpatch.DiffInsert:
			out += "+ " + diff.Text
		case diffmatchpatch.DiffEqual:
			// Context lines are dropped; only the drift matters.
		}

		if len(out) > maxDriftDetail {
			return out[:maxDriftDetail] + "…"
		}
	}

	return out
}
