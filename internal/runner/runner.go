// Package runner executes validated shell commands inside the configured
// sandbox directory, bounded by a wall-clock timeout.
//
// The character denylist is advisory only, NOT a security boundary: it blocks
// "..", ";", "&&", "||", "|" and backticks but deliberately leaves $(), <, >
// and newlines alone. True isolation would need OS-level sandboxing
// (namespaces, seccomp), which is out of scope.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/zeroco/opsbox/internal/opserr"
)

const (
	// maxOutputBytes caps combined stdout+stderr to prevent OOM from chatty commands.
	maxOutputBytes = 1 << 20 // 1 MB

	// DefaultTimeout bounds command execution when the config leaves it unset.
	DefaultTimeout = 60 * time.Second
)

// deniedTokens are substrings rejected before any process is spawned.
var deniedTokens = []string{"..", ";", "&&", "||", "|", "`"}

// Config configures the command runner.
type Config struct {
	// Dir is the absolute sandbox directory commands run in. It must exist
	// at request time; the runner never creates it.
	Dir string

	// Timeout is the wall-clock bound per command. Zero = DefaultTimeout.
	Timeout time.Duration
}

// Result captures the outcome of one command invocation. Nothing is retained
// across calls.
type Result struct {
	// Output is the merged stdout+stderr text in arrival order.
	Output string

	// ExitCode is the process exit status. 0 = success.
	ExitCode int

	Duration time.Duration
}

// Runner spawns one independent OS process per call. Concurrent calls are
// not serialized: commands racing on shared sandbox files is accepted.
type Runner struct {
	config Config
	logger *slog.Logger
}

// New creates a Runner over the given sandbox directory.
func New(cfg Config, logger *slog.Logger) *Runner {
	return &Runner{config: cfg, logger: logger}
}

// Validate rejects empty or blank commands and commands containing a denied
// token. It performs no I/O.
func Validate(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("%w: command cannot be empty", opserr.ErrInvalidInput)
	}
	for _, token := range deniedTokens {
		if strings.Contains(command, token) {
			return fmt.Errorf("%w: invalid characters in command, execution restricted", opserr.ErrInvalidInput)
		}
	}
	return nil
}

// Execute validates the command, runs it through "sh -c" with the sandbox
// directory as working directory, and waits up to the configured timeout.
//
// A nonzero exit code is a result, not an error. On timeout the whole
// process group is killed and the collected output is discarded.
func (r *Runner) Execute(ctx context.Context, command string) (*Result, error) {
	if err := Validate(command); err != nil {
		return nil, err
	}

	info, err := os.Stat(r.config.Dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: sandbox directory %s does not exist or is not a directory", opserr.ErrConfiguration, r.config.Dir)
	}

	timeout := r.config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = r.config.Dir

	// The child runs in its own process group so a timeout kills the whole
	// tree, not just the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative PID = kill the entire process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	// One shared writer merges stderr into stdout in arrival order; output
	// is collected incrementally as the process writes, not at exit.
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, remaining: maxOutputBytes}
	cmd.Stdout = lw
	cmd.Stderr = lw

	r.logger.Info("executing command",
		slog.String("command", command),
		slog.String("dir", r.config.Dir),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// Output collected so far is deliberately not returned.
			r.logger.Warn("command timed out",
				slog.Duration("timeout", timeout),
				slog.Int("discarded_output_bytes", buf.Len()),
			)
			return nil, fmt.Errorf("%w: command timed out after %s", opserr.ErrTimeout, timeout)
		}
		if ctx.Err() != nil {
			// Caller cancellation (e.g. a dropped connection), not our deadline.
			return nil, fmt.Errorf("%w: command canceled: %s", opserr.ErrExecution, ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("%w: error executing command: %s", opserr.ErrExecution, runErr.Error())
		}
	}

	r.logger.Info("command completed",
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration),
		slog.Int("output_bytes", buf.Len()),
	)

	return &Result{
		Output:   buf.String(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// limitedWriter stops writing after a byte limit. Excess output is silently
// discarded rather than failing the command.
type limitedWriter struct {
	w         io.Writer
	remaining int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.remaining <= 0 {
		return len(p), nil
	}
	if len(p) > lw.remaining {
		n, err := lw.w.Write(p[:lw.remaining])
		lw.remaining -= n
		if err != nil {
			return n, err
		}
		return len(p), nil
	}
	n, err := lw.w.Write(p)
	lw.remaining -= n
	return n, err
}
