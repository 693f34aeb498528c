package gitlab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Download size policy errors.
var (
	// ErrDownloadTooLarge indicates the file exceeded the hard size cap.
	ErrDownloadTooLarge = errors.New("download exceeds size limit")
	// ErrUnsafePath indicates a path traversal attempt in a download path.
	ErrUnsafePath = errors.New("unsafe download path")
)

// DownloadOptions bounds a streamed download.
type DownloadOptions struct {
	// MaxBytes rejects larger downloads. Zero means unlimited.
	MaxBytes int64

	// WarnBytes logs a warning for larger downloads. Zero disables.
	WarnBytes int64
}

// DownloadUpload streams a project upload (attachment) to destPath.
// uploadPath is the /uploads/<hash>/<name> path scraped from markdown.
// Returns the byte count written.
func (c *Client) DownloadUpload(ctx context.Context, projectPathFull, uploadPath, destPath string, opts DownloadOptions) (int64, error) {
	if !SafeUploadPath(uploadPath) {
		return 0, fmt.Errorf("%w: %s", ErrUnsafePath, uploadPath)
	}

	rawURL := c.baseURL + "/" + strings.TrimPrefix(projectPathFull, "/") + uploadPath

	return c.downloadTo(ctx, rawURL, destPath, opts)
}

// DownloadURL streams an arbitrary URL (release asset) to destPath.
func (c *Client) DownloadURL(ctx context.Context, rawURL, destPath string, opts DownloadOptions) (int64, error) {
	return c.downloadTo(ctx, rawURL, destPath, opts)
}

// downloadTo streams a GET response body to destPath, enforcing size
// limits as bytes arrive so oversized files never land on disk whole.
func (c *Client) downloadTo(ctx context.Context, rawURL, destPath string, opts DownloadOptions) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if opts.MaxBytes > 0 && resp.ContentLength > opts.MaxBytes {
		return 0, fmt.Errorf("%w: %s announced", ErrDownloadTooLarge,
			humanize.IBytes(uint64(resp.ContentLength)))
	}

	mkdirErr := os.MkdirAll(filepath.Dir(destPath), 0o755)
	if mkdirErr != nil {
		return 0, fmt.Errorf("create download dir: %w", mkdirErr)
	}

	file, createErr := os.Create(destPath)
	if createErr != nil {
		return 0, fmt.Errorf("create download file: %w", createErr)
	}

	reader := io.Reader(resp.Body)
	if opts.MaxBytes > 0 {
		reader = io.LimitReader(resp.Body, opts.MaxBytes+1)
	}

	written, copyErr := io.Copy(file, reader)

	closeErr := file.Close()

	if copyErr != nil {
		os.Remove(destPath)

		return 0, fmt.Errorf("stream download: %w", copyErr)
	}

	if closeErr != nil {
		os.Remove(destPath)

		return 0, fmt.Errorf("close download file: %w", closeErr)
	}

	if opts.MaxBytes > 0 && written > opts.MaxBytes {
		os.Remove(destPath)

		return 0, fmt.Errorf("%w: %s", ErrDownloadTooLarge, humanize.IBytes(uint64(written)))
	}

	if opts.WarnBytes > 0 && written > opts.WarnBytes {
		c.logger.Warn("large attachment downloaded",
			"path", filepath.Base(destPath),
			"size", humanize.IBytes(uint64(written)))
	}

	return written, nil
}

// SafeUploadPath rejects traversal in scraped upload paths.
func SafeUploadPath(uploadPath string) bool {
	if strings.Contains(uploadPath, "..") {
		return false
	}

	return strings.HasPrefix(uploadPath, "/uploads/")
}
