// Package logreader returns the trailing lines of log files from a
// restricted set of locations.
//
// Files are read fully into memory before trimming — fine for rotated
// application logs, a known scalability limitation for anything larger.
package logreader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeroco/opsbox/internal/opserr"
	"github.com/zeroco/opsbox/internal/pathguard"
)

// DefaultLineCount is used when the caller asks for zero or negative lines.
const DefaultLineCount = 500

// Config configures the log reader.
type Config struct {
	// Dir is the absolute base directory named log files are restricted to.
	Dir string

	// DefaultFile is the filename given special fallback lookup treatment.
	DefaultFile string

	// WorkingDir is the process working directory captured at startup, used
	// in the default-file fallback search.
	WorkingDir string
}

// Reader tails log files.
type Reader struct {
	config Config
	logger *slog.Logger
}

// New creates a Reader.
func New(cfg Config, logger *slog.Logger) *Reader {
	return &Reader{config: cfg, logger: logger}
}

// Tail returns the last lines of the named log file joined by "\n", with no
// trailing terminator added.
//
// An empty fileParam means the configured default file. The default file is
// searched in a fixed order: the log base directory, the working directory,
// then the working directory's "logs" subdirectory — first existing file
// wins. Any other filename is restricted to the base directory and must be a
// bare filename.
func (r *Reader) Tail(fileParam string, lines int) (string, error) {
	if lines <= 0 {
		lines = DefaultLineCount
	}
	if fileParam == "" {
		fileParam = r.config.DefaultFile
	}

	name, err := pathguard.FileName(fileParam)
	if err != nil {
		return "", err
	}

	var path string
	if name == r.config.DefaultFile {
		path, err = r.findDefault(name)
	} else {
		path, err = r.findNamed(name)
	}
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: log file not found, not readable, or is a directory: %s", opserr.ErrNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return "", fmt.Errorf("%w: log file not found, not readable, or is a directory: %s", opserr.ErrNotFound, path)
		}
		return "", fmt.Errorf("%w: error reading log file %s: %s", opserr.ErrExecution, path, err.Error())
	}

	r.logger.Info("log file read",
		slog.String("path", path),
		slog.Int("lines_requested", lines),
		slog.Int("bytes", len(data)),
	)

	return tail(string(data), lines), nil
}

// findDefault resolves the default log file through its fallback locations.
func (r *Reader) findDefault(name string) (string, error) {
	candidates := []string{
		filepath.Join(r.config.Dir, name),
		filepath.Join(r.config.WorkingDir, name),
		filepath.Join(r.config.WorkingDir, "logs", name),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: default log file %q not found in standard locations: %s",
		opserr.ErrNotFound, name, strings.Join(candidates, ", "))
}

// findNamed resolves any other filename strictly under the base directory.
func (r *Reader) findNamed(name string) (string, error) {
	path, err := pathguard.Resolve(r.config.Dir, name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(r.config.Dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: log base directory %s does not exist or is not a directory", opserr.ErrConfiguration, r.config.Dir)
	}
	return path, nil
}

// tail keeps the last n lines of text, joined by "\n".
func tail(text string, n int) string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return ""
	}
	all := strings.Split(text, "\n")
	skip := len(all) - n
	if skip < 0 {
		skip = 0
	}
	return strings.Join(all[skip:], "\n")
}
