package workflow

import (
	"context"
	"errors"
)

// Submissions above this size are rejected in preflight.
const maxCodeChars = 1_000_000

// Complexity regressions beyond this many units draw a validation
// warning.
const complexityWarnThreshold = 5.0

// ErrProfileNotFound is returned when the named policy profile does not
// exist. Both orchestration strategies treat it as fatal.
var ErrProfileNotFound = errors.New("policy profile not found")

// Orchestration strategy names.
const (
	StrategyStaged = "staged"
	StrategyDirect = "direct"
)

// RunInput describes one session to run.
type RunInput struct {
	SessionID     string
	ProfileID     string
	Code          string
	Language      string
	FilePath      string
	ForceRefactor bool
}

// ComplianceMetric is the single metrics record produced per session.
type ComplianceMetric struct {
	PolicyScore     float64 `json:"policy_score"`
	ComplexityDelta float64 `json:"complexity_delta"`
	TestPassRate    float64 `json:"test_pass_rate"`
	LatencyMS       int64   `json:"latency_ms"`
	TokenUsage      int     `json:"token_usage"`
}

// RunResult is the result tuple every orchestration strategy returns.
type RunResult struct {
	Suggestions    []Suggestion      `json:"suggestions"`
	Metric         ComplianceMetric  `json:"metric"`
	Violations     []PolicyViolation `json:"violations"`
	RefactoredCode string            `json:"refactored_code"`
	Warnings       []string          `json:"warnings"`
	Errors         []string          `json:"errors"`
}

// PolicyViolation is the persisted form of one violation.
type PolicyViolation struct {
	RuleID   string `json:"rule_id"`
	RuleKey  string `json:"rule_key"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Orchestrator runs one session to either completed or failed.
type Orchestrator interface {
	RunSession(ctx context.Context, input RunInput) (*RunResult, error)
}

// Dependencies are the collaborators an orchestrator needs.
type Dependencies struct {
	Profiles  ProfileLoader
	Analyzer  Analyzer
	Evaluator Evaluator
	Refactor  RefactorProvider
	Tests     TestRunner
	Sessions  SessionRecorder
}

// New selects an orchestration strategy by name. Anything other than
// the direct strategy gets the staged state machine.
func New(strategy string, deps Dependencies) Orchestrator {
	if strategy == StrategyDirect {
		return NewDirectOrchestrator(deps)
	}
	return NewStagedOrchestrator(deps)
}

// tokenUsage is a deterministic proxy for tokens consumed.
func tokenUsage(code string) int {
	usage := len(code) / 4
	if usage < 1 {
		return 1
	}
	return usage
}
