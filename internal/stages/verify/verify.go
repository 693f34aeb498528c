// Package verify compares the destination repository against the state
// the migration artifacts promise, component by component, and writes
// the verification reports.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/config"
	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/observability"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// tracerName labels verify spans.
const tracerName = "gitport/verify"

// Terminal verification statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusPartial = "PARTIAL"
	StatusFailed  = "FAILED"
	StatusPending = "PENDING"
)

// Per-check statuses.
const (
	CheckPass    = "pass"
	CheckWarning = "warning"
	CheckError   = "error"
)

// Reader is the destination read surface verification queries.
// *github.Client satisfies it.
type Reader interface {
	GetRepo(ctx context.Context, repo string) (github.Repo, error)
	BranchCount(ctx context.Context, repo string) (int, error)
	TagCount(ctx context.Context, repo string) (int, error)
	CommitCount(ctx context.Context, repo, ref string) (int, error)
	IssueCount(ctx context.Context, repo string) (int, error)
	PullCount(ctx context.Context, repo string) (int, error)
	ReleaseCount(ctx context.Context, repo string) (int, error)
	ReleaseByTag(ctx context.Context, repo, tag string) (github.Release, error)
	Labels(ctx context.Context, repo string) ([]github.Label, error)
	Milestones(ctx context.Context, repo string) ([]github.Milestone, error)
	Webhooks(ctx context.Context, repo string) ([]github.Webhook, error)
	Environments(ctx context.Context, repo string) ([]github.Environment, error)
	SecretNames(ctx context.Context, repo string) ([]github.SecretMeta, error)
	Variables(ctx context.Context, repo string) ([]github.Variable, error)
	Workflows(ctx context.Context, repo string) ([]github.Workflow, error)
	BranchProtectionFor(ctx context.Context, repo, branch string) (github.BranchProtection, error)
	FileContent(ctx context.Context, repo, path, ref string) ([]byte, error)
}

var _ Reader = (*github.Client)(nil)

// Check is one expected-vs-actual comparison.
type Check struct {
	Name     string `json:"name"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
}

// ComponentResult accumulates the checks of one component.
type ComponentResult struct {
	Component string         `json:"component"`
	Status    string         `json:"status"`
	Checks    []Check        `json:"checks"`
	Warnings  []string       `json:"warnings,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
	Stats     map[string]int `json:"stats,omitempty"`
}

// Discrepancy is one check that missed, flattened for the
// discrepancies report.
type Discrepancy struct {
	Component string `json:"component"`
	Check     string `json:"check"`
	Severity  string `json:"severity"`
	Expected  any    `json:"expected"`
	Actual    any    `json:"actual"`
	Detail    string `json:"detail,omitempty"`
}

// Report is the verify_report.json payload.
type Report struct {
	Target     string            `json:"target"`
	Status     string            `json:"status"`
	Components []ComponentResult `json:"components"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Stage verifies one migrated project against the destination.
type Stage struct {
	Logger *slog.Logger

	Reader Reader

	// Repo is the destination repository name inside the client's org.
	Repo string

	// Config holds the comparison tolerances.
	Config config.VerifyConfig

	Metrics *observability.Metrics
	Tracer  trace.Tracer
}

// result collects the stage's working state.
type result struct {
	component *ComponentResult
	tolerance float64
}

// check records a numeric comparison under the component's tolerance:
// an exact match passes, a relative miss within tolerance warns, a
// larger miss errors.
func (r *result) check(name string, expected, actual int) {
	status := CheckPass
	detail := ""

	if expected != actual {
		if withinTolerance(expected, actual, r.tolerance) {
			status = CheckWarning
			detail = fmt.Sprintf("off by %d, within %.0f%% tolerance", abs(expected-actual), r.tolerance*100)
			r.component.Warnings = append(r.component.Warnings,
				fmt.Sprintf("%s: expected %d, found %d", name, expected, actual))
		} else {
			status = CheckError
			detail = fmt.Sprintf("off by %d, above %.0f%% tolerance", abs(expected-actual), r.tolerance*100)
			r.component.Errors = append(r.component.Errors,
				fmt.Sprintf("%s: expected %d, found %d", name, expected, actual))
		}
	}

	r.component.Checks = append(r.component.Checks, Check{
		Name: name, Expected: expected, Actual: actual, Status: status, Detail: detail,
	})
}

// checkBool records a presence comparison; a miss is always an error.
func (r *result) checkBool(name string, expected, actual bool, detail string) {
	status := CheckPass

	if expected != actual {
		status = CheckError
		r.component.Errors = append(r.component.Errors,
			fmt.Sprintf("%s: expected %v, found %v", name, expected, actual))
	}

	r.component.Checks = append(r.component.Checks, Check{
		Name: name, Expected: expected, Actual: actual, Status: status, Detail: detail,
	})
}

// warn records a non-fatal observation without an expected value.
func (r *result) warn(name, detail string) {
	r.component.Warnings = append(r.component.Warnings, name+": "+detail)
	r.component.Checks = append(r.component.Checks, Check{
		Name: name, Status: CheckWarning, Detail: detail,
	})
}

// fail records a destination read failure as a component error.
func (r *result) fail(name string, err error) {
	r.component.Errors = append(r.component.Errors, name+": "+err.Error())
	r.component.Checks = append(r.component.Checks, Check{
		Name: name, Status: CheckError, Detail: err.Error(),
	})
}

// note records an informational pass-through check.
func (r *result) note(name, detail string) {
	r.component.Checks = append(r.component.Checks, Check{
		Name: name, Status: CheckPass, Detail: detail,
	})
}

// Run verifies every component and writes the verify artifacts.
func (s *Stage) Run(ctx context.Context, tree artifacts.Tree) (Report, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	startedAt := time.Now().UTC()

	mkdirErr := os.MkdirAll(tree.VerifyDir(), 0o755)
	if mkdirErr != nil {
		return Report{}, fmt.Errorf("create verify dir: %w", mkdirErr)
	}

	expected, loadErr := loadExpected(tree)
	if loadErr != nil {
		return Report{}, loadErr
	}

	tracer := s.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	ctx, span := tracer.Start(ctx, "verify.run", trace.WithAttributes(
		attribute.String("repo", s.Repo),
	))
	defer span.End()

	routines := []struct {
		name string
		run  func(ctx context.Context, r *result, expected expectedState)
	}{
		{"repository", s.verifyRepository},
		{"ci_cd", s.verifyCI},
		{"issues", s.verifyIssues},
		{"pull_requests", s.verifyPullRequests},
		{"wiki", s.verifyWiki},
		{"releases", s.verifyReleases},
		{"packages", s.verifyPackages},
		{"settings", s.verifySettings},
		{"preservation", s.verifyPreservation},
	}

	report := Report{Target: s.Repo, StartedAt: startedAt}

	for _, routine := range routines {
		component := ComponentResult{Component: routine.name, Stats: map[string]int{}}
		r := &result{
			component: &component,
			tolerance: s.Config.ComponentToleranceFor(routine.name),
		}

		routine.run(ctx, r, expected)

		component.Status = componentStatus(component)
		report.Components = append(report.Components, component)

		logger.Info("component verified",
			"component", routine.name,
			"status", component.Status,
			"checks", len(component.Checks))
	}

	report.Status = overallStatus(report.Components)
	report.FinishedAt = time.Now().UTC()

	writeErr := s.writeReports(tree, report)
	if writeErr != nil {
		return report, writeErr
	}

	if s.Metrics != nil {
		s.Metrics.RecordStage(ctx, "verify", report.Status, time.Since(startedAt))
	}

	logger.Info("verify finished", "status", report.Status)

	return report, nil
}

func (s *Stage) verifyRepository(ctx context.Context, r *result, expected expectedState) {
	repo, err := s.Reader.GetRepo(ctx, s.Repo)
	if err != nil {
		r.fail("repository exists", err)

		return
	}

	r.checkBool("repository exists", true, true, repo.FullName)

	branches, branchErr := s.Reader.BranchCount(ctx, s.Repo)
	if branchErr != nil {
		r.fail("branch count", branchErr)
	} else {
		r.check("branch count", expected.Branches, branches)
	}

	tags, tagErr := s.Reader.TagCount(ctx, s.Repo)
	if tagErr != nil {
		r.fail("tag count", tagErr)
	} else {
		r.check("tag count", expected.Tags, tags)
	}

	if expected.Commits > 0 {
		commits, commitErr := s.Reader.CommitCount(ctx, s.Repo, repo.DefaultBranch)
		if commitErr != nil {
			r.fail("commit count", commitErr)
		} else {
			r.check("commit count", expected.Commits, commits)
		}
	}

	r.component.Stats["branches"] = branches
	r.component.Stats["tags"] = tags
}

func (s *Stage) verifyCI(ctx context.Context, r *result, expected expectedState) {
	workflows, err := s.Reader.Workflows(ctx, s.Repo)
	if err != nil {
		r.fail("workflow count", err)
	} else {
		// Schedules land as generated workflow files next to the
		// converted pipeline.
		r.check("workflow count", len(expected.Workflows)+expected.Schedules, len(workflows))
	}

	for _, workflow := range expected.Workflows {
		s.checkWorkflowDrift(ctx, r, workflow)
	}

	environments, envErr := s.Reader.Environments(ctx, s.Repo)
	if envErr != nil {
		r.fail("environment count", envErr)
	} else {
		r.check("environment count", len(expected.Environments), len(environments))
	}

	variables, varErr := s.Reader.Variables(ctx, s.Repo)
	if varErr != nil {
		r.fail("variable count", varErr)
	} else {
		r.check("variable count", expected.Variables, len(variables))
	}

	secrets, secretErr := s.Reader.SecretNames(ctx, s.Repo)
	if secretErr != nil {
		r.fail("secret count", secretErr)
	} else {
		// Secret values are unreadable; presence of the names is the
		// strongest check available.
		r.check("secret count", expected.Secrets, len(secrets))
	}
}

func (s *Stage) verifyIssues(ctx context.Context, r *result, expected expectedState) {
	issues, err := s.Reader.IssueCount(ctx, s.Repo)
	if err != nil {
		r.fail("issue count", err)
	} else {
		r.check("issue count", expected.Issues, issues)
		r.component.Stats["issues"] = issues
	}

	labels, labelErr := s.Reader.Labels(ctx, s.Repo)
	if labelErr != nil {
		r.fail("label count", labelErr)
	} else {
		r.check("label count", len(expected.Labels), len(labels))
	}

	milestones, milestoneErr := s.Reader.Milestones(ctx, s.Repo)
	if milestoneErr != nil {
		r.fail("milestone count", milestoneErr)
	} else {
		r.check("milestone count", len(expected.Milestones), len(milestones))
	}
}

func (s *Stage) verifyPullRequests(ctx context.Context, r *result, expected expectedState) {
	pulls, err := s.Reader.PullCount(ctx, s.Repo)
	if err != nil {
		r.fail("pull request count", err)

		return
	}

	r.check("pull request count", expected.PullRequests, pulls)
	r.component.Stats["pull_requests"] = pulls
}

func (s *Stage) verifyWiki(ctx context.Context, r *result, expected expectedState) {
	if !expected.WikiExpected {
		r.note("wiki", "no wiki exported")

		return
	}

	repo, err := s.Reader.GetRepo(ctx, s.Repo)
	if err != nil {
		r.fail("wiki enabled", err)

		return
	}

	// The wiki git contents have no read API; the enabled flag is the
	// observable signal.
	r.checkBool("wiki enabled", true, repo.HasWiki, "")
}

func (s *Stage) verifyReleases(ctx context.Context, r *result, expected expectedState) {
	count, err := s.Reader.ReleaseCount(ctx, s.Repo)
	if err != nil {
		r.fail("release count", err)

		return
	}

	r.check("release count", len(expected.Releases), count)

	for _, release := range expected.Releases {
		_, tagErr := s.Reader.ReleaseByTag(ctx, s.Repo, release.TagName)
		if tagErr != nil {
			r.component.Errors = append(r.component.Errors,
				fmt.Sprintf("release %s: not found on destination", release.TagName))
			r.component.Checks = append(r.component.Checks, Check{
				Name: "release " + release.TagName, Expected: true, Actual: false, Status: CheckError,
			})

			continue
		}

		r.component.Checks = append(r.component.Checks, Check{
			Name: "release " + release.TagName, Expected: true, Actual: true, Status: CheckPass,
		})
	}
}

func (s *Stage) verifyPackages(_ context.Context, r *result, expected expectedState) {
	if expected.Packages == 0 {
		r.note("packages", "no packages exported")

		return
	}

	// Registry contents never transfer automatically; the metadata and
	// migration script are the deliverable.
	r.warn("packages",
		fmt.Sprintf("%d package(s) require manual re-publication via the registry script", expected.Packages))
	r.component.Stats["packages"] = expected.Packages
}

func (s *Stage) verifySettings(ctx context.Context, r *result, expected expectedState) {
	webhooks, err := s.Reader.Webhooks(ctx, s.Repo)
	if err != nil {
		r.fail("webhook count", err)
	} else {
		r.check("webhook count", len(expected.Webhooks), len(webhooks))
	}

	for _, rule := range expected.Protections.Branches {
		_, protErr := s.Reader.BranchProtectionFor(ctx, s.Repo, rule.Branch)
		if protErr != nil {
			r.component.Errors = append(r.component.Errors,
				fmt.Sprintf("protection %s: not readable on destination", rule.Branch))
			r.component.Checks = append(r.component.Checks, Check{
				Name: "protection " + rule.Branch, Expected: true, Actual: false, Status: CheckError,
			})

			continue
		}

		r.component.Checks = append(r.component.Checks, Check{
			Name: "protection " + rule.Branch, Expected: true, Actual: true, Status: CheckPass,
		})
	}

	if len(expected.Protections.Tags) > 0 {
		r.warn("tag protections",
			fmt.Sprintf("%d tag pattern(s) require a manually created ruleset", len(expected.Protections.Tags)))
	}
}

func (s *Stage) verifyPreservation(ctx context.Context, r *result, expected expectedState) {
	if expected.Codeowners {
		_, err := s.Reader.FileContent(ctx, s.Repo, ".github/CODEOWNERS", "")
		if err != nil {
			r.fail("codeowners file", err)
		} else {
			r.checkBool("codeowners file", true, true, "")
		}
	}

	if expected.Attachments > 0 {
		r.note("attachments",
			fmt.Sprintf("%d attachment(s) preserved under the migration archive", expected.Attachments))
		r.component.Stats["attachments"] = expected.Attachments
	}

	if len(r.component.Checks) == 0 {
		r.note("preservation", "nothing to preserve")
	}
}

func componentStatus(component ComponentResult) string {
	switch {
	case len(component.Errors) > 0:
		return StatusFailed
	case len(component.Warnings) > 0:
		return StatusPartial
	case len(component.Checks) > 0:
		return StatusSuccess
	default:
		return StatusPending
	}
}

func overallStatus(components []ComponentResult) string {
	hasWarning := false
	hasCheck := false

	for _, component := range components {
		switch component.Status {
		case StatusFailed:
			return StatusFailed
		case StatusPartial:
			hasWarning = true
			hasCheck = true
		case StatusSuccess:
			hasCheck = true
		}
	}

	switch {
	case hasWarning:
		return StatusPartial
	case hasCheck:
		return StatusSuccess
	default:
		return StatusPending
	}
}

func (s *Stage) writeReports(tree artifacts.Tree, report Report) error {
	writeErr := persist.WriteJSON(tree.VerifyReportPath(), report)
	if writeErr != nil {
		return fmt.Errorf("write verify report: %w", writeErr)
	}

	statuses := map[string]string{}
	for _, component := range report.Components {
		statuses[component.Component] = component.Status
	}

	statusErr := persist.WriteJSON(tree.ComponentStatusPath(), statuses)
	if statusErr != nil {
		return fmt.Errorf("write component status: %w", statusErr)
	}

	discrepancies := collectDiscrepancies(report)

	discErr := persist.WriteJSON(tree.DiscrepanciesPath(), discrepancies)
	if discErr != nil {
		return fmt.Errorf("write discrepancies: %w", discErr)
	}

	return writeSummary(tree, report, discrepancies)
}

func collectDiscrepancies(report Report) []Discrepancy {
	discrepancies := []Discrepancy{}

	for _, component := range report.Components {
		for _, check := range component.Checks {
			if check.Status == CheckPass {
				continue
			}

			discrepancies = append(discrepancies, Discrepancy{
				Component: component.Component,
				Check:     check.Name,
				Severity:  check.Status,
				Expected:  check.Expected,
				Actual:    check.Actual,
				Detail:    check.Detail,
			})
		}
	}

	return discrepancies
}

// withinTolerance reports whether actual is within the relative
// tolerance of expected. A zero expectation tolerates nothing.
func withinTolerance(expected, actual int, tolerance float64) bool {
	if expected == 0 {
		return false
	}

	miss := math.Abs(float64(expected-actual)) / math.Abs(float64(expected))

	return miss <= tolerance
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}
