package verify

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/stages/discovery"
	"github.com/Sumatoshi-tech/gitport/internal/stages/transform"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// expectedState is what the destination should hold after apply, built
// from the discovery, export, and transform artifacts.
type expectedState struct {
	Branches int
	Tags     int
	Commits  int

	Workflows []expectedWorkflow
	Schedules int

	Environments []string
	Variables    int
	Secrets      int

	Issues        int
	PullRequests  int
	Labels        []transform.Label
	Milestones    []transform.Milestone

	WikiExpected bool

	Releases []expectedRelease
	Packages int

	Webhooks    []transform.Webhook
	Protections transform.ProtectionRules
	Codeowners  bool

	Attachments int
}

// expectedWorkflow is one converted workflow file with its content for
// drift detection.
type expectedWorkflow struct {
	FileName string
	Content  string
}

// expectedRelease is one release with its expected asset count.
type expectedRelease struct {
	TagName string
	Assets  int
}

// loadExpected assembles the expected state from the artifact tree.
// Missing artifacts zero out their component; verify then reports the
// destination side as informational rather than failing.
func loadExpected(tree artifacts.Tree) (expectedState, error) {
	var state expectedState

	inventoryErr := loadInventoryCounts(tree, &state)
	if inventoryErr != nil {
		return state, inventoryErr
	}

	var issues []transform.Issue

	readErr := readOptional(tree.TransformedIssuesPath(), &issues)
	if readErr != nil {
		return state, readErr
	}

	state.Issues = len(issues)

	var mergeRequests []transform.MergeRequest

	readErr = readOptional(tree.TransformedMRsPath(), &mergeRequests)
	if readErr != nil {
		return state, readErr
	}

	state.PullRequests = len(mergeRequests)

	readErr = readOptional(tree.TransformedLabelsPath(), &state.Labels)
	if readErr != nil {
		return state, readErr
	}

	readErr = readOptional(tree.TransformedMilestonesPath(), &state.Milestones)
	if readErr != nil {
		return state, readErr
	}

	readErr = readOptional(tree.TransformedWebhooksPath(), &state.Webhooks)
	if readErr != nil {
		return state, readErr
	}

	readErr = readOptional(tree.ProtectionRulesPath(), &state.Protections)
	if readErr != nil {
		return state, readErr
	}

	ciErr := loadCIExpectations(tree, &state)
	if ciErr != nil {
		return state, ciErr
	}

	releaseErr := loadReleaseExpectations(tree, &state)
	if releaseErr != nil {
		return state, releaseErr
	}

	var packages []gitlab.Package

	readErr = readOptional(tree.PackagesPath(), &packages)
	if readErr != nil {
		return state, readErr
	}

	state.Packages = len(packages)

	_, wikiErr := os.Stat(tree.WikiRepoPath())
	state.WikiExpected = wikiErr == nil

	_, codeownersErr := os.Stat(tree.CodeownersPath())
	state.Codeowners = codeownersErr == nil

	state.Attachments = countFiles(tree.IssueAttachmentsDir()) + countFiles(tree.MRAttachmentsDir())

	return state, nil
}

// loadInventoryCounts pulls repository totals from the discovery
// inventory; the destination is compared against the source's own view.
func loadInventoryCounts(tree artifacts.Tree, state *expectedState) error {
	var discovered discovery.Output

	err := readOptional(tree.InventoryPath(), &discovered)
	if err != nil {
		return err
	}

	if len(discovered.Inventories) == 0 {
		return nil
	}

	repo, ok := discovered.Inventories[0].Components[discovery.ComponentRepository]
	if !ok {
		return nil
	}

	state.Branches = repo.Counts["branches"]
	state.Tags = repo.Counts["tags"]
	state.Commits = repo.Counts["commits"]

	return nil
}

func loadCIExpectations(tree artifacts.Tree, state *expectedState) error {
	entries, dirErr := os.ReadDir(tree.WorkflowsDir())
	if dirErr != nil && !errors.Is(dirErr, fs.ErrNotExist) {
		return fmt.Errorf("read workflows dir: %w", dirErr)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		content, readErr := os.ReadFile(filepath.Join(tree.WorkflowsDir(), entry.Name()))
		if readErr != nil {
			return fmt.Errorf("read workflow %s: %w", entry.Name(), readErr)
		}

		state.Workflows = append(state.Workflows, expectedWorkflow{
			FileName: entry.Name(),
			Content:  string(content),
		})
	}

	var schedules []gitlab.Schedule

	err := readOptional(tree.SchedulesPath(), &schedules)
	if err != nil {
		return err
	}

	state.Schedules = len(schedules)

	var environments []gitlab.Environment

	err = readOptional(tree.EnvironmentsPath(), &environments)
	if err != nil {
		return err
	}

	for _, environment := range environments {
		state.Environments = append(state.Environments, environment.Name)
	}

	var variables []gitlab.Variable

	err = readOptional(tree.VariablesPath(), &variables)
	if err != nil {
		return err
	}

	// Masked variables migrate as secrets, plain ones as variables.
	for _, variable := range variables {
		if variable.Masked {
			state.Secrets++
		} else {
			state.Variables++
		}
	}

	return nil
}

func loadReleaseExpectations(tree artifacts.Tree, state *expectedState) error {
	var releases []gitlab.Release

	err := readOptional(tree.ReleasesPath(), &releases)
	if err != nil {
		return err
	}

	for _, release := range releases {
		downloaded := 0

		for _, link := range release.Assets.Links {
			if link.LocalPath != "" {
				downloaded++
			}
		}

		state.Releases = append(state.Releases, expectedRelease{
			TagName: release.TagName,
			Assets:  downloaded,
		})
	}

	return nil
}

// readOptional reads a JSON artifact, treating absence as empty.
func readOptional(path string, into any) error {
	err := persist.ReadJSON(path, into)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	return nil
}

func countFiles(dir string) int {
	count := 0

	filepath.WalkDir(dir, func(_ string, entry fs.DirEntry, err error) error {
		if err == nil && !entry.IsDir() {
			count++
		}

		return nil
	})

	return count
}
