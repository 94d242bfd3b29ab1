package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zeroco/opsbox/internal/opserr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRunner(t *testing.T, timeout time.Duration) *Runner {
	t.Helper()
	return New(Config{Dir: t.TempDir(), Timeout: timeout}, testLogger())
}

func TestValidateBlank(t *testing.T) {
	for _, command := range []string{"", "   ", "\t\n"} {
		err := Validate(command)
		if !errors.Is(err, opserr.ErrInvalidInput) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidInput", command, err)
		}
	}
}

func TestValidateDeniedTokens(t *testing.T) {
	tests := []string{
		"echo hi; rm -rf /",
		"cat ../secret",
		"true && echo yes",
		"false || echo no",
		"ps aux | grep x",
		"echo `id`",
	}
	for _, command := range tests {
		err := Validate(command)
		if !errors.Is(err, opserr.ErrInvalidInput) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidInput", command, err)
		}
	}
}

func TestValidateAllowed(t *testing.T) {
	// The denylist is deliberately coarse: these pass even though a shell
	// would interpret them.
	for _, command := range []string{"echo hello", "ls -la", "echo $(id)", "echo x > f"} {
		if err := Validate(command); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", command, err)
		}
	}
}

func TestExecuteRejectsInvalidBeforeSpawn(t *testing.T) {
	// The sandbox directory does not exist, so reaching the spawn path would
	// surface ErrConfiguration instead of ErrInvalidInput.
	r := New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, testLogger())
	_, err := r.Execute(context.Background(), "echo hi; rm -rf /")
	if !errors.Is(err, opserr.ErrInvalidInput) {
		t.Fatalf("Execute = %v, want ErrInvalidInput", err)
	}
}

func TestExecuteMissingSandboxDir(t *testing.T) {
	r := New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, testLogger())
	_, err := r.Execute(context.Background(), "echo hello")
	if !errors.Is(err, opserr.ErrConfiguration) {
		t.Fatalf("Execute = %v, want ErrConfiguration", err)
	}
}

func TestExecuteSandboxIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notadir")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	r := New(Config{Dir: file}, testLogger())
	_, err := r.Execute(context.Background(), "echo hello")
	if !errors.Is(err, opserr.ErrConfiguration) {
		t.Fatalf("Execute = %v, want ErrConfiguration", err)
	}
}

func TestExecuteSuccess(t *testing.T) {
	r := newTestRunner(t, 60*time.Second)
	res, err := r.Execute(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Output != "hello\n" {
		t.Errorf("Output = %q, want %q", res.Output, "hello\n")
	}
}

func TestExecuteRunsInSandboxDir(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Dir: dir}, testLogger())
	res, err := r.Execute(context.Background(), "pwd")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Compare resolved paths: on some systems TempDir sits behind a symlink.
	got, _ := filepath.EvalSymlinks(strings.TrimSuffix(res.Output, "\n"))
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("command ran in %q, want %q", got, want)
	}
}

func TestExecuteNonzeroExit(t *testing.T) {
	r := newTestRunner(t, 60*time.Second)
	res, err := r.Execute(context.Background(), "ls /nonexistent-opsbox-test-dir")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode == 0 {
		t.Error("ExitCode = 0, want nonzero")
	}
	// stderr is merged into the output.
	if res.Output == "" {
		t.Error("Output empty, want stderr content")
	}
}

func TestExecuteTimeout(t *testing.T) {
	r := newTestRunner(t, 300*time.Millisecond)

	start := time.Now()
	_, err := r.Execute(context.Background(), "sleep 5")
	elapsed := time.Since(start)

	if !errors.Is(err, opserr.ErrTimeout) {
		t.Fatalf("Execute = %v, want ErrTimeout", err)
	}
	// The process group must be killed promptly, not waited out.
	if elapsed > 3*time.Second {
		t.Errorf("Execute returned after %s, process not killed on timeout", elapsed)
	}
}

// Caller cancellation (a dropped client) is not the command timing out and
// must not be reported as a timeout.
func TestExecuteCanceledNotTimeout(t *testing.T) {
	r := newTestRunner(t, 60*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	_, err := r.Execute(ctx, "sleep 5")
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if errors.Is(err, opserr.ErrTimeout) {
		t.Fatalf("Execute = %v, cancellation must not map to ErrTimeout", err)
	}
	if !errors.Is(err, opserr.ErrExecution) {
		t.Fatalf("Execute = %v, want ErrExecution", err)
	}
}

func TestExecuteTimeoutDiscardsOutput(t *testing.T) {
	r := newTestRunner(t, 300*time.Millisecond)
	// Newlines pass the denylist, so this runs as two shell statements.
	res, err := r.Execute(context.Background(), "echo partial\nsleep 5")
	if err == nil {
		t.Fatalf("expected timeout error, got result %+v", res)
	}
	if !errors.Is(err, opserr.ErrTimeout) {
		t.Fatalf("Execute = %v, want ErrTimeout", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil (partial output discarded)", res)
	}
}
