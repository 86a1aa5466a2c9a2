// Package testrun executes a submission's tests best-effort and reports a
// pass rate. A missing toolchain is not a failure: validation treats an
// unexecuted run as vacuously passing, with a warning recorded upstream.
package testrun

import (
	"context"
	"math"
	"strings"
)

// Result summarizes one test run.
type Result struct {
	Total        int    `json:"total"`
	Passed       int    `json:"passed"`
	Failed       int    `json:"failed"`
	SkippedTests int    `json:"skipped_tests"`
	Executed     bool   `json:"executed"`
	TimedOut     bool   `json:"timed_out"`
	ExitCode     int    `json:"exit_code"`
	Output       string `json:"output,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// PassRate returns the fraction of passing tests in [0, 1], rounded to two
// decimals. A run that never executed (no toolchain for the language) or
// found no tests counts as 1.0; a timed out run counts as 0.0.
func (r *Result) PassRate() float64 {
	if r.TimedOut {
		return 0.0
	}
	if !r.Executed || r.Total == 0 {
		return 1.0
	}
	rate := float64(r.Passed) / float64(r.Total)
	return math.Round(rate*100) / 100
}

// Runner executes the tests accompanying a code submission.
type Runner interface {
	// Run writes the code into a scratch workspace and runs the language's
	// test command against it.
	Run(ctx context.Context, code, language, filePath string) (*Result, error)
}

// command returns the test invocation for a language, or nil when the
// language has no configured test command.
type command struct {
	Name string
	Args []string
}

func testCommand(language string) *command {
	switch strings.ToLower(language) {
	case "python":
		return &command{Name: "python", Args: []string{"-m", "pytest", "-v", "--tb=short"}}
	case "go":
		return &command{Name: "go", Args: []string{"test", "-v", "./..."}}
	case "javascript", "typescript", "node":
		return &command{Name: "npm", Args: []string{"test"}}
	default:
		return nil
	}
}
