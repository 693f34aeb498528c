package github

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"time"

	"github.com/Sumatoshi-tech/gitport/internal/forge"
)

// DefaultPushTimeout bounds one mirror push.
const DefaultPushTimeout = 600 * time.Second

// PushRunner shells out to git for mirror pushes into the destination.
// Tokens are injected into push URLs in memory only and scrubbed from
// all output.
type PushRunner struct {
	client *Client

	// Timeout bounds each push. Zero means DefaultPushTimeout.
	Timeout time.Duration

	// run is the injection point for tests.
	run func(ctx context.Context, dir string, args ...string) (string, error)
}

// NewPushRunner creates a PushRunner bound to the client's token.
func NewPushRunner(client *Client) *PushRunner {
	runner := &PushRunner{client: client}
	runner.run = runner.execGit

	return runner
}

// authenticatedPushURL injects the token into the repository HTTPS URL.
func (p *PushRunner) authenticatedPushURL(repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("parse repo url: %w", err)
	}

	parsed.User = url.UserPassword("x-access-token", p.client.Token())

	return parsed.String(), nil
}

// execGit runs one git command, returning combined output scrubbed of
// the token.
func (p *PushRunner) execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var out bytes.Buffer

	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	scrubbed := forge.ScrubToken(out.String(), p.client.Token())

	if runErr != nil {
		return scrubbed, fmt.Errorf("git %s: %w: %s", args[0], runErr, scrubbed)
	}

	return scrubbed, nil
}

// PushMirror pushes every ref of a local mirror to the destination.
func (p *PushRunner) PushMirror(ctx context.Context, mirrorDir, repoURL string) error {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultPushTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	authURL, err := p.authenticatedPushURL(repoURL)
	if err != nil {
		return err
	}

	_, runErr := p.run(ctx, mirrorDir, "push", "--mirror", authURL)
	if runErr != nil {
		return fmt.Errorf("mirror push: %w", runErr)
	}

	return nil
}

// CloneFromBundle restores a mirror from a bundle file so it can be
// pushed without the original clone.
func (p *PushRunner) CloneFromBundle(ctx context.Context, bundlePath, destDir string) error {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultPushTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, runErr := p.run(ctx, "", "clone", "--mirror", bundlePath, destDir)
	if runErr != nil {
		return fmt.Errorf("bundle clone: %w", runErr)
	}

	return nil
}

// PushWiki pushes a plain wiki clone to the destination wiki repo.
func (p *PushRunner) PushWiki(ctx context.Context, wikiDir, wikiURL string) error {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultPushTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	authURL, err := p.authenticatedPushURL(wikiURL)
	if err != nil {
		return err
	}

	_, runErr := p.run(ctx, wikiDir, "push", "--force", authURL, "HEAD:master")
	if runErr != nil {
		return fmt.Errorf("wiki push: %w", runErr)
	}

	return nil
}
