package testrun

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResult_PassRate(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   float64
	}{
		{name: "not executed is vacuously passing", result: Result{}, want: 1.0},
		{name: "no tests found", result: Result{Executed: true}, want: 1.0},
		{name: "all passing", result: Result{Executed: true, Total: 4, Passed: 4}, want: 1.0},
		{name: "partial", result: Result{Executed: true, Total: 4, Passed: 3, Failed: 1}, want: 0.75},
		{name: "one third", result: Result{Executed: true, Total: 3, Passed: 1, Failed: 2}, want: 0.33},
		{name: "timed out", result: Result{Executed: true, TimedOut: true, Total: 4, Passed: 4}, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, tt.result.PassRate(), 0.001)
		})
	}
}

func TestParseOutput_Go(t *testing.T) {
	output := `=== RUN   TestFoo
--- PASS: TestFoo (0.01s)
=== RUN   TestBar
--- FAIL: TestBar (0.02s)
=== RUN   TestBaz
--- SKIP: TestBaz (0.00s)
FAIL
`
	result := ParseOutput("go", output, 1)
	require.True(t, result.Executed)
	require.Equal(t, 3, result.Total)
	require.Equal(t, 1, result.Passed)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, 1, result.SkippedTests)
	require.Equal(t, 1, result.ExitCode)
}

func TestParseOutput_Pytest(t *testing.T) {
	output := `collected 8 items

tests/test_app.py ......ss

5 passed, 2 failed, 1 skipped in 1.23s
`
	result := ParseOutput("python", output, 1)
	require.Equal(t, 8, result.Total)
	require.Equal(t, 5, result.Passed)
	require.Equal(t, 2, result.Failed)
	require.Equal(t, 1, result.SkippedTests)
	require.Equal(t, int64(1230), result.DurationMS)
}

func TestParseOutput_PytestAllFailed(t *testing.T) {
	result := ParseOutput("python", "3 failed in 0.12s\n", 1)
	require.Equal(t, 3, result.Total)
	require.Equal(t, 0, result.Passed)
	require.Equal(t, 3, result.Failed)
}

func TestParseOutput_Generic(t *testing.T) {
	ok := ParseOutput("ruby", "done", 0)
	require.Equal(t, 1, ok.Total)
	require.Equal(t, 1, ok.Passed)

	failed := ParseOutput("ruby", "boom", 2)
	require.Equal(t, 1, failed.Total)
	require.Equal(t, 1, failed.Failed)
	require.Equal(t, 2, failed.ExitCode)
}

func TestTestCommand(t *testing.T) {
	require.NotNil(t, testCommand("python"))
	require.NotNil(t, testCommand("Go"))
	require.NotNil(t, testCommand("typescript"))
	require.Nil(t, testCommand("terraform"))
}

func TestLocalRunner_UnknownLanguage(t *testing.T) {
	runner := NewLocalRunner(time.Second)

	result, err := runner.Run(context.Background(), "resource {}", "terraform", "main.tf")
	require.NoError(t, err)
	require.False(t, result.Executed)
	require.InDelta(t, 1.0, result.PassRate(), 0.001)
}

func TestStripDockerLogHeaders(t *testing.T) {
	// One stdout frame carrying "hello".
	frame := []byte{1, 0, 0, 0, 0, 0, 0, 5, 'h', 'e', 'l', 'l', 'o'}
	require.Equal(t, "hello", stripDockerLogHeaders(frame))

	// Unframed data passes through.
	require.Equal(t, "raw", stripDockerLogHeaders([]byte("raw")))
}
