package transform

import (
	"fmt"
	"io"
	"sort"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// Severity ranks how much a conversion gap hurts the migration.
type Severity string

// Gap severities.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityBlocking Severity = "blocking"
)

// Gap is one source construct with no or partial destination
// equivalent. Gaps are reported, never silently dropped.
type Gap struct {
	Component  string   `json:"component"`
	Construct  string   `json:"construct"`
	Severity   Severity `json:"severity"`
	Detail     string   `json:"detail"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// GapSet accumulates gaps across every converter of the stage.
type GapSet struct {
	gaps []Gap
}

// Add records one gap.
func (g *GapSet) Add(gap Gap) {
	g.gaps = append(g.gaps, gap)
}

// Addf records a gap with a formatted detail string.
func (g *GapSet) Addf(component, construct string, severity Severity, format string, args ...any) {
	g.Add(Gap{
		Component: component,
		Construct: construct,
		Severity:  severity,
		Detail:    fmt.Sprintf(format, args...),
	})
}

// Gaps returns the accumulated gaps, blocking first, stable within a
// severity.
func (g *GapSet) Gaps() []Gap {
	ordered := make([]Gap, len(g.gaps))
	copy(ordered, g.gaps)

	rank := map[Severity]int{SeverityBlocking: 0, SeverityWarning: 1, SeverityInfo: 2}

	sort.SliceStable(ordered, func(i, j int) bool {
		return rank[ordered[i].Severity] < rank[ordered[j].Severity]
	})

	return ordered
}

// Count returns the number of gaps at the given severity.
func (g *GapSet) Count(severity Severity) int {
	n := 0

	for _, gap := range g.gaps {
		if gap.Severity == severity {
			n++
		}
	}

	return n
}

// WriteReports persists the machine-readable and human-readable gap
// reports into the transform tree.
func (g *GapSet) WriteReports(tree artifacts.Tree) error {
	ordered := g.Gaps()

	writeErr := persist.WriteJSON(tree.GapsPath(), ordered)
	if writeErr != nil {
		return fmt.Errorf("write gap report: %w", writeErr)
	}

	return persist.AtomicWrite(tree.GapsMarkdownPath(), func(w io.Writer) error {
		return renderGapsMarkdown(w, ordered)
	})
}

func renderGapsMarkdown(w io.Writer, gaps []Gap) error {
	_, err := fmt.Fprintf(w, "# Conversion Gaps\n\n")
	if err != nil {
		return err
	}

	if len(gaps) == 0 {
		_, err = fmt.Fprintln(w, "No conversion gaps detected.")

		return err
	}

	fmt.Fprintf(w, "%d gap(s) found. Review blocking gaps before applying.\n\n", len(gaps))
	fmt.Fprintln(w, "| Severity | Component | Construct | Detail |")
	fmt.Fprintln(w, "|---|---|---|---|")

	for _, gap := range gaps {
		_, err = fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
			gap.Severity, gap.Component, gap.Construct, gap.Detail)
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(w)

	for _, gap := range gaps {
		if gap.Suggestion != "" {
			fmt.Fprintf(w, "- **%s** (%s): %s\n", gap.Construct, gap.Severity, gap.Suggestion)
		}
	}

	return nil
}
