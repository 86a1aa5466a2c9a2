package workflow

import (
	"context"

	"github.com/antinvestor/codecraft/internal/analysis"
	"github.com/antinvestor/codecraft/internal/policy"
	"github.com/antinvestor/codecraft/internal/testrun"
)

// ProfileLoader resolves a policy profile by identifier. A missing
// profile must be reported as ErrProfileNotFound.
type ProfileLoader interface {
	Load(ctx context.Context, profileID string) (*policy.Profile, error)
}

// Analyzer computes structural facts about a code snippet.
type Analyzer interface {
	Analyze(ctx context.Context, code, language string) (*analysis.Result, error)
	ComplexityDelta(original, refactored string) float64
}

// Evaluator applies a policy profile to code.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, profile *policy.Profile) ([]policy.Violation, error)
	Score(violations []policy.Violation, totalRules int) float64
}

// RefactorRequest is the input to the refactor capability.
type RefactorRequest struct {
	Code       string
	Language   string
	FilePath   string
	Profile    *policy.Profile
	Violations []policy.Violation
}

// RefactorOutput is the proposed rewrite with its suggestions.
type RefactorOutput struct {
	Code        string
	Summary     string
	Suggestions []Suggestion
}

// RefactorProvider proposes a compliant rewrite. It is potentially slow,
// potentially failing and non-deterministic; callers never assume
// idempotent output.
type RefactorProvider interface {
	Refactor(ctx context.Context, req RefactorRequest) (*RefactorOutput, error)
}

// TestRunner executes the submission's tests best-effort.
type TestRunner interface {
	Run(ctx context.Context, code, language, filePath string) (*testrun.Result, error)
}

// SessionRecorder persists session status transitions and final results.
type SessionRecorder interface {
	MarkRunning(ctx context.Context, sessionID string) error
	MarkCompleted(ctx context.Context, sessionID string) error
	MarkFailed(ctx context.Context, sessionID, message string) error
	SaveResults(ctx context.Context, sessionID string, result *RunResult) error
}
