package gitlab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"time"

	"github.com/Sumatoshi-tech/gitport/internal/forge"
)

// Git subprocess timeouts.
const (
	// DefaultCloneTimeout bounds `git clone --mirror`.
	DefaultCloneTimeout = 600 * time.Second
	// DefaultBundleTimeout bounds `git bundle create`.
	DefaultBundleTimeout = 300 * time.Second
	// DefaultWikiCloneTimeout bounds the wiki clone.
	DefaultWikiCloneTimeout = 120 * time.Second
)

// ErrWikiEmpty indicates the wiki repository exists but has no content.
var ErrWikiEmpty = errors.New("wiki repository is empty")

// ErrWikiMissing indicates the wiki repository does not exist.
var ErrWikiMissing = errors.New("wiki repository does not exist")

// GitRunner shells out to git for mirror clones and bundles. Tokens are
// injected into clone URLs in memory only and scrubbed from all output.
type GitRunner struct {
	client *Client

	// CloneTimeout bounds mirror clones. Zero means DefaultCloneTimeout.
	CloneTimeout time.Duration

	// BundleTimeout bounds bundle creation. Zero means DefaultBundleTimeout.
	BundleTimeout time.Duration

	// WikiTimeout bounds wiki clones. Zero means DefaultWikiCloneTimeout.
	WikiTimeout time.Duration

	// run is the injection point for tests.
	run func(ctx context.Context, dir string, args ...string) (string, error)
}

// NewGitRunner creates a GitRunner bound to the client's instance and token.
func NewGitRunner(client *Client) *GitRunner {
	runner := &GitRunner{client: client}
	runner.run = runner.execGit

	return runner
}

// authenticatedCloneURL injects the token into the project's HTTPS URL.
func (g *GitRunner) authenticatedCloneURL(repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("parse repo url: %w", err)
	}

	parsed.User = url.UserPassword("oauth2", g.client.Token())

	return parsed.String(), nil
}

// execGit runs one git command, returning combined output scrubbed of
// the token. Non-zero exits come back as errors carrying the scrubbed
// output.
func (g *GitRunner) execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var out bytes.Buffer

	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	scrubbed := forge.ScrubToken(out.String(), g.client.Token())

	if runErr != nil {
		return scrubbed, fmt.Errorf("git %s: %w: %s", args[0], runErr, scrubbed)
	}

	return scrubbed, nil
}

// CloneMirror clones the repository as a bare mirror into destDir.
func (g *GitRunner) CloneMirror(ctx context.Context, repoURL, destDir string) error {
	timeout := g.CloneTimeout
	if timeout == 0 {
		timeout = DefaultCloneTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	authURL, err := g.authenticatedCloneURL(repoURL)
	if err != nil {
		return err
	}

	_, runErr := g.run(ctx, "", "clone", "--mirror", authURL, destDir)
	if runErr != nil {
		return fmt.Errorf("mirror clone: %w", runErr)
	}

	return nil
}

// CreateBundle writes a bundle containing every ref of the mirror.
func (g *GitRunner) CreateBundle(ctx context.Context, mirrorDir, bundlePath string) error {
	timeout := g.BundleTimeout
	if timeout == 0 {
		timeout = DefaultBundleTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, runErr := g.run(ctx, mirrorDir, "bundle", "create", bundlePath, "--all")
	if runErr != nil {
		return fmt.Errorf("bundle create: %w", runErr)
	}

	return nil
}

// CloneWiki clones the project wiki. Distinguishes a missing wiki from
// an empty one so export can write the right sentinel.
func (g *GitRunner) CloneWiki(ctx context.Context, repoURL, destDir string) error {
	timeout := g.WikiTimeout
	if timeout == 0 {
		timeout = DefaultWikiCloneTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wikiURL := wikiRepoURL(repoURL)

	authURL, err := g.authenticatedCloneURL(wikiURL)
	if err != nil {
		return err
	}

	output, runErr := g.run(ctx, "", "clone", authURL, destDir)
	if runErr != nil {
		if isMissingRepoOutput(output) {
			return ErrWikiMissing
		}

		return fmt.Errorf("wiki clone: %w", runErr)
	}

	empty, emptyErr := g.isEmptyClone(ctx, destDir)
	if emptyErr != nil {
		return emptyErr
	}

	if empty {
		return ErrWikiEmpty
	}

	return nil
}

// isEmptyClone reports whether a fresh clone has no commits.
func (g *GitRunner) isEmptyClone(ctx context.Context, dir string) (bool, error) {
	output, err := g.run(ctx, dir, "rev-list", "--count", "--all")
	if err != nil {
		// rev-list fails on repos with zero refs.
		return true, nil
	}

	return bytes.Equal(bytes.TrimSpace([]byte(output)), []byte("0")), nil
}

// wikiRepoURL derives the wiki repository URL from the project repo URL.
func wikiRepoURL(repoURL string) string {
	const gitSuffix = ".git"

	if len(repoURL) > len(gitSuffix) && repoURL[len(repoURL)-len(gitSuffix):] == gitSuffix {
		return repoURL[:len(repoURL)-len(gitSuffix)] + ".wiki.git"
	}

	return repoURL + ".wiki.git"
}

// isMissingRepoOutput detects the clone failure text for absent repos.
func isMissingRepoOutput(output string) bool {
	return bytes.Contains([]byte(output), []byte("not found")) ||
		bytes.Contains([]byte(output), []byte("does not exist"))
}
