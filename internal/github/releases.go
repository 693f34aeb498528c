package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/Sumatoshi-tech/gitport/internal/forge"
)

// CreateRelease creates a release for an existing tag.
func (c *Client) CreateRelease(ctx context.Context, repo string, release NewRelease) (Release, error) {
	var out Release

	err := c.doJSON(ctx, http.MethodPost, c.repoPath(repo)+"/releases", release, &out)
	if err != nil {
		return Release{}, err
	}

	return out, nil
}

// DeleteRelease removes a release. Used only by rollback.
func (c *Client) DeleteRelease(ctx context.Context, repo string, releaseID int64) error {
	return c.doJSON(ctx, http.MethodDelete,
		fmt.Sprintf("%s/releases/%d", c.repoPath(repo), releaseID), nil, nil)
}

// DeleteReleaseAsset removes an uploaded asset. Used only by rollback.
func (c *Client) DeleteReleaseAsset(ctx context.Context, repo string, assetID int64) error {
	return c.doJSON(ctx, http.MethodDelete,
		fmt.Sprintf("%s/releases/assets/%d", c.repoPath(repo), assetID), nil, nil)
}

// ReleaseByTag fetches the release attached to a tag.
func (c *Client) ReleaseByTag(ctx context.Context, repo, tag string) (Release, error) {
	var out Release

	err := c.doJSON(ctx, http.MethodGet,
		c.repoPath(repo)+"/releases/tags/"+url.PathEscape(tag), nil, &out)
	if err != nil {
		return Release{}, err
	}

	return out, nil
}

// UploadReleaseAsset streams a local file to the release upload host.
// uploadURL is the hypermedia template returned on the release.
func (c *Client) UploadReleaseAsset(ctx context.Context, uploadURL, assetName, localPath string) (ReleaseAsset, error) {
	target := expandUploadURL(uploadURL, assetName)

	file, openErr := os.Open(localPath)
	if openErr != nil {
		return ReleaseAsset{}, fmt.Errorf("open asset: %w", openErr)
	}
	defer file.Close()

	info, statErr := file.Stat()
	if statErr != nil {
		return ReleaseAsset{}, fmt.Errorf("stat asset: %w", statErr)
	}

	var asset ReleaseAsset

	err := c.retry.Do(ctx, forgeName, func() error {
		_, seekErr := file.Seek(0, io.SeekStart)
		if seekErr != nil {
			return fmt.Errorf("rewind asset: %w", seekErr)
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, target, file)
		if reqErr != nil {
			return fmt.Errorf("build upload request: %w", reqErr)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/octet-stream")
		req.ContentLength = info.Size()

		resp, httpErr := c.upload.Do(req)
		if httpErr != nil {
			return forge.ClassifyTransport(forgeName, httpErr)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			retryAfter := forge.ParseRetryAfter(resp.Header.Get("Retry-After"))

			return forge.Classify(forgeName, resp.StatusCode, string(detail), retryAfter)
		}

		decodeErr := json.NewDecoder(resp.Body).Decode(&asset)
		if decodeErr != nil {
			return fmt.Errorf("decode asset response: %w", decodeErr)
		}

		return nil
	})
	if err != nil {
		return ReleaseAsset{}, err
	}

	return asset, nil
}

// expandUploadURL resolves the {?name,label} hypermedia template.
func expandUploadURL(uploadURL, assetName string) string {
	base, _, found := strings.Cut(uploadURL, "{")
	if !found {
		base = uploadURL
	}

	return base + "?name=" + url.QueryEscape(assetName)
}
