// Package download fetches a remote file and streams it to a guarded path
// under the configured downloads directory.
//
// A failed transfer may leave a truncated file behind: no partial-write
// cleanup is attempted.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/zeroco/opsbox/internal/opserr"
	"github.com/zeroco/opsbox/internal/pathguard"
)

// Config configures the downloader.
type Config struct {
	// Dir is the absolute base directory downloaded files land in. It must
	// exist at request time; the downloader creates subdirectories beneath
	// it, never the base itself.
	Dir string

	// Timeout bounds the whole transfer. Zero = no explicit bound; the
	// transfer relies on transport defaults.
	Timeout time.Duration
}

// Downloader streams remote files into the downloads directory.
type Downloader struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Downloader. Transfers are never retried; every failure is
// terminal for the request.
func New(cfg Config, logger *slog.Logger) *Downloader {
	return &Downloader{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Fetch validates rawURL, resolves destination under the base directory,
// creates missing intermediate directories, and streams the response body to
// the destination file, overwriting any existing file. It returns the
// absolute destination path.
//
// URL and path validation happen before any network access.
func (d *Downloader) Fetch(ctx context.Context, rawURL, destination string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL format: %s", opserr.ErrInvalidInput, err.Error())
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: invalid URL format: %q is not an absolute http or https URL", opserr.ErrInvalidInput, rawURL)
	}

	dest, err := pathguard.Resolve(d.config.Dir, destination)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(d.config.Dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: download directory %s does not exist or is not a directory", opserr.ErrConfiguration, d.config.Dir)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("%w: creating parent directories for %s: %s", opserr.ErrExecution, dest, err.Error())
	}

	d.logger.Info("downloading file",
		slog.String("url", rawURL),
		slog.String("destination", dest),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating request for %s: %s", opserr.ErrExecution, rawURL, err.Error())
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: error downloading file: %s", opserr.ErrExecution, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: error downloading file: %s returned status %d", opserr.ErrExecution, rawURL, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("%w: creating %s: %s", opserr.ErrExecution, dest, err.Error())
	}

	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return "", fmt.Errorf("%w: error downloading file to %s: %s", opserr.ErrExecution, dest, copyErr.Error())
	}
	if closeErr != nil {
		return "", fmt.Errorf("%w: finalizing %s: %s", opserr.ErrExecution, dest, closeErr.Error())
	}

	d.logger.Info("download complete",
		slog.String("destination", dest),
		slog.Int64("bytes", written),
	)

	return dest, nil
}
