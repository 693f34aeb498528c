package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
)

// Attachment paths are scraped from markdown with one pattern per
// semantic source. Kept separate so each can evolve independently.
var attachmentPatterns = []*regexp.Regexp{
	// Inline images: ![alt](/uploads/<hash>/<name>)
	regexp.MustCompile(`!\[[^\]]*\]\((/uploads/[^)\s]+)\)`),
	// Plain links: [text](/uploads/<hash>/<name>)
	regexp.MustCompile(`\[[^\]]*\]\((/uploads/[^)\s]+)\)`),
	// Bare parenthesized hex-hash paths: (/uploads/<hex>/<name>)
	regexp.MustCompile(`\((/uploads/[0-9a-f]{16,}/[^)\s]+)\)`),
}

// unsafeFilenameChars matches everything outside the allowed filename
// alphabet.
var unsafeFilenameChars = regexp.MustCompile(`[^\w\-.]`)

// ScanAttachmentPaths extracts unique upload paths from a markdown
// body, in first-seen order.
func ScanAttachmentPaths(body string) []string {
	var (
		paths []string
		seen  = map[string]bool{}
	)

	for _, pattern := range attachmentPatterns {
		for _, match := range pattern.FindAllStringSubmatch(body, -1) {
			path := match[1]
			if !seen[path] {
				seen[path] = true

				paths = append(paths, path)
			}
		}
	}

	return paths
}

// SanitizeAttachmentName builds the local filename for an upload path:
// the upload hash prefixes the sanitized base name for uniqueness.
func SanitizeAttachmentName(uploadPath string) string {
	segments := strings.Split(strings.TrimPrefix(uploadPath, "/"), "/")

	name := segments[len(segments)-1]

	hash := ""
	if len(segments) >= 3 {
		hash = segments[len(segments)-2]
	}

	safe := unsafeFilenameChars.ReplaceAllString(name, "_")
	if hash == "" {
		return safe
	}

	return unsafeFilenameChars.ReplaceAllString(hash, "_") + "_" + safe
}

// attachmentDownloader downloads unique upload paths for one component
// and accumulates the original-to-local mapping.
type attachmentDownloader struct {
	client      *gitlab.Client
	projectPath string
	destDir     string
	relDir      string
	opts        gitlab.DownloadOptions
	logger      *slog.Logger

	mapping  map[string]string
	warnings []string
}

// newAttachmentDownloader writes files into destDir; mapping values are
// relative to the export root via relDir (e.g. "issues/attachments").
func newAttachmentDownloader(client *gitlab.Client, projectPath, destDir, relDir string, opts gitlab.DownloadOptions, logger *slog.Logger) *attachmentDownloader {
	return &attachmentDownloader{
		client:      client,
		projectPath: projectPath,
		destDir:     destDir,
		relDir:      relDir,
		opts:        opts,
		logger:      logger,
		mapping:     map[string]string{},
	}
}

// fetch downloads every not-yet-seen upload path in body. Failures are
// recorded as warnings, never fatal.
func (d *attachmentDownloader) fetch(ctx context.Context, body string) {
	for _, uploadPath := range ScanAttachmentPaths(body) {
		if _, done := d.mapping[uploadPath]; done {
			continue
		}

		localName := SanitizeAttachmentName(uploadPath)
		destPath := filepath.Join(d.destDir, localName)

		_, err := d.client.DownloadUpload(ctx, d.projectPath, uploadPath, destPath, d.opts)
		if err != nil {
			warning := fmt.Sprintf("attachment %s: %s", uploadPath, downloadWarning(err))
			d.warnings = append(d.warnings, warning)
			d.logger.Warn("attachment download failed", "path", uploadPath, "error", err)

			continue
		}

		d.mapping[uploadPath] = d.relDir + "/" + localName
	}
}

// downloadWarning keeps warning text short for the manifest.
func downloadWarning(err error) string {
	switch {
	case errors.Is(err, gitlab.ErrDownloadTooLarge):
		return "exceeds the 100 MB size limit"
	case errors.Is(err, gitlab.ErrUnsafePath):
		return "rejected unsafe path"
	default:
		return err.Error()
	}
}
