package testrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pitabwire/util"
)

const defaultRunTimeout = 30 * time.Second

// LocalRunner runs tests with the host toolchain in a throwaway
// directory. When the language has no test command, or the command's
// binary is not installed, the run is reported as not executed.
type LocalRunner struct {
	timeout time.Duration
}

// NewLocalRunner creates a local test runner.
func NewLocalRunner(timeout time.Duration) *LocalRunner {
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &LocalRunner{timeout: timeout}
}

// Run implements Runner.
func (r *LocalRunner) Run(ctx context.Context, code, language, filePath string) (*Result, error) {
	log := util.Log(ctx)

	cmd := testCommand(language)
	if cmd == nil {
		log.Debug("no test command for language", "language", language)
		return &Result{}, nil
	}

	if _, err := exec.LookPath(cmd.Name); err != nil {
		log.Debug("test runner not installed", "runner", cmd.Name)
		return &Result{}, nil
	}

	workDir, err := os.MkdirTemp("", "testrun-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	target := filepath.Join(workDir, filepath.Base(filePath))
	if writeErr := os.WriteFile(target, []byte(code), 0o600); writeErr != nil {
		return nil, fmt.Errorf("write submission: %w", writeErr)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	execCmd := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	execCmd.Dir = workDir
	output, runErr := execCmd.CombinedOutput()
	duration := time.Since(start).Milliseconds()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		log.Warn("test run timed out", "language", language, "timeout", r.timeout)
		return &Result{
			Executed:   true,
			TimedOut:   true,
			ExitCode:   -1,
			Output:     string(output),
			DurationMS: duration,
		}, nil
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("run tests: %w", runErr)
		}
	}

	result := ParseOutput(language, string(output), exitCode)
	result.DurationMS = duration

	log.Debug("test run completed",
		"language", language,
		"total", result.Total,
		"passed", result.Passed,
		"exit_code", exitCode,
	)
	return result, nil
}
