package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pitabwire/util"

	"github.com/antinvestor/codecraft/internal/analysis"
	"github.com/antinvestor/codecraft/internal/policy"
)

// StagedOrchestrator runs the session as an explicit state machine. Every
// step records its outcome into SessionState; only preflight and result
// persistence abort the run, everything else degrades to a neutral
// substitute and carries on.
type StagedOrchestrator struct {
	deps Dependencies
}

// NewStagedOrchestrator creates the staged strategy.
func NewStagedOrchestrator(deps Dependencies) *StagedOrchestrator {
	return &StagedOrchestrator{deps: deps}
}

// RunSession drives one session from initialized to completed or failed.
func (o *StagedOrchestrator) RunSession(ctx context.Context, input RunInput) (*RunResult, error) {
	start := time.Now()
	log := util.Log(ctx).With("session_id", input.SessionID).With("profile_id", input.ProfileID)

	state := NewSessionState()
	if input.ForceRefactor {
		state.Metrics[MetricForceRefactor] = true
	}
	execCtx := NewExecutionContext(input.Code, input.Language, input.FilePath, input.ProfileID)

	if o.deps.Sessions != nil {
		if err := o.deps.Sessions.MarkRunning(ctx, input.SessionID); err != nil {
			state.RecordWarning(StepInitialized, fmt.Sprintf("could not mark session running: %s", err))
		}
	}

	profile, result := o.preflight(ctx, execCtx)
	if result.Fatal() {
		return nil, o.fail(ctx, state, input.SessionID, StepPreflight, result.Err)
	}
	state.RecordStepCompletion(StepPreflight, profile)

	o.runAnalysis(ctx, state, execCtx)
	o.runPolicyEvaluation(ctx, state, execCtx, profile)

	if state.ShouldRefactor() {
		o.runRefactoring(ctx, state, execCtx, profile)
	} else {
		execCtx.SetRefactoredCode(execCtx.OriginalCode)
		state.RecordStepCompletion(StepRefactoring, "skipped: no policy violations detected")
		state.RecordWarning(StepRefactoring, "no violations detected, refactoring skipped")
	}

	o.runValidation(ctx, state, execCtx, profile)

	metric := o.computeMetrics(state, execCtx, start)

	runResult := o.buildResult(state, execCtx, metric)
	if saveErr := o.saveResults(ctx, input.SessionID, runResult); saveErr != nil {
		return nil, o.fail(ctx, state, input.SessionID, StepSaveResults, saveErr)
	}
	state.RecordStepCompletion(StepSaveResults, nil)

	o.finalCheckpoint(state, execCtx)

	state.RecordStepCompletion(StepCompleted, nil)
	if o.deps.Sessions != nil {
		if err := o.deps.Sessions.MarkCompleted(ctx, input.SessionID); err != nil {
			state.RecordWarning(StepCompleted, fmt.Sprintf("could not mark session completed: %s", err))
		}
	}

	runResult.Warnings = state.Warnings()
	runResult.Errors = state.Errors()

	log.With("violations", len(execCtx.Violations)).
		With("warnings", len(runResult.Warnings)).
		With("latency_ms", metric.LatencyMS).
		Info("session completed")
	return runResult, nil
}

// preflight validates the submission and resolves the policy profile.
// Every check here is fatal: nothing downstream can run without a valid
// submission and a non-empty profile.
func (o *StagedOrchestrator) preflight(
	ctx context.Context,
	execCtx *ExecutionContext,
) (*policy.Profile, StepResult) {
	if strings.TrimSpace(execCtx.OriginalCode) == "" {
		return nil, stepFatal(fmt.Errorf("code is empty"))
	}
	if len(execCtx.OriginalCode) > maxCodeChars {
		return nil, stepFatal(fmt.Errorf("code exceeds %d characters", maxCodeChars))
	}

	if analysis.HasSyntaxValidator(execCtx.Language) {
		if err := analysis.CheckSyntax(execCtx.OriginalCode, execCtx.Language); err != nil {
			return nil, stepFatal(err)
		}
	}

	profile, err := o.deps.Profiles.Load(ctx, execCtx.ProfileID)
	if err != nil {
		return nil, stepFatal(err)
	}
	if len(profile.Rules) == 0 {
		return nil, stepFatal(fmt.Errorf("profile %s has no rules", execCtx.ProfileID))
	}

	if execCtx.FilePath == "" {
		execCtx.FilePath = analysis.DefaultFilePath(execCtx.Language)
	}
	return profile, stepOK()
}

// runAnalysis computes structural facts, degrading to an empty result.
func (o *StagedOrchestrator) runAnalysis(
	ctx context.Context,
	state *SessionState,
	execCtx *ExecutionContext,
) {
	result, err := o.deps.Analyzer.Analyze(ctx, execCtx.OriginalCode, execCtx.Language)
	if err != nil {
		execCtx.Analysis = analysis.Empty()
		state.RecordError(StepAnalysis, err)
		state.RecordWarning(StepAnalysis, "analysis unavailable, continuing with empty result")
	} else {
		execCtx.Analysis = result
	}
	state.RecordStepCompletion(StepAnalysis, execCtx.Analysis)
}

// runPolicyEvaluation applies the profile, degrading to an empty outcome
// so the refactor decision resolves to skip.
func (o *StagedOrchestrator) runPolicyEvaluation(
	ctx context.Context,
	state *SessionState,
	execCtx *ExecutionContext,
	profile *policy.Profile,
) {
	outcome := &PolicyOutcome{Violations: []policy.Violation{}}

	violations, err := o.deps.Evaluator.Evaluate(ctx, execCtx.OriginalCode, profile)
	if err != nil {
		state.RecordError(StepPolicyEvaluation, err)
		state.RecordWarning(StepPolicyEvaluation, "policy evaluation unavailable, assuming no violations")
	} else {
		outcome.Violations = violations
		outcome.Score = o.deps.Evaluator.Score(violations, len(profile.Rules))
	}

	execCtx.Violations = outcome.Violations
	execCtx.ComplianceScore = outcome.Score
	state.RecordStepCompletion(StepPolicyEvaluation, outcome)
}

// runRefactoring requests a rewrite, degrading to the original code with
// no suggestions.
func (o *StagedOrchestrator) runRefactoring(
	ctx context.Context,
	state *SessionState,
	execCtx *ExecutionContext,
	profile *policy.Profile,
) {
	if o.deps.Refactor == nil {
		execCtx.SetRefactoredCode(execCtx.OriginalCode)
		state.RecordWarning(StepRefactoring, "no refactor provider configured, returning original code")
		state.RecordStepCompletion(StepRefactoring, nil)
		return
	}

	out, err := o.deps.Refactor.Refactor(ctx, RefactorRequest{
		Code:       execCtx.OriginalCode,
		Language:   execCtx.Language,
		FilePath:   execCtx.FilePath,
		Profile:    profile,
		Violations: execCtx.Violations,
	})
	if err != nil {
		execCtx.SetRefactoredCode(execCtx.OriginalCode)
		execCtx.Suggestions = []Suggestion{}
		state.RecordError(StepRefactoring, err)
		state.RecordWarning(StepRefactoring, "refactoring failed, returning original code")
		state.RecordStepCompletion(StepRefactoring, nil)
		return
	}

	execCtx.SetRefactoredCode(out.Code)
	if out.Suggestions != nil {
		execCtx.Suggestions = out.Suggestions
	}
	state.RecordStepCompletion(StepRefactoring, out)
}

// runValidation performs four independent best-effort checks on the
// refactored code: parseability, policy delta, tests and complexity.
func (o *StagedOrchestrator) runValidation(
	ctx context.Context,
	state *SessionState,
	execCtx *ExecutionContext,
	profile *policy.Profile,
) {
	vr := &ValidationResult{Parseable: true, TestPassRate: 1.0}
	refactored := execCtx.RefactoredCode()

	if analysis.HasSyntaxValidator(execCtx.Language) {
		if err := analysis.CheckSyntax(refactored, execCtx.Language); err != nil {
			vr.Parseable = false
			execCtx.SetRefactoredCode(execCtx.OriginalCode)
			refactored = execCtx.OriginalCode
			state.RecordWarning(StepValidation, "refactored code does not parse, reverted to original")
		}
	}

	beforeViolations, beforeErr := o.deps.Evaluator.Evaluate(ctx, execCtx.OriginalCode, profile)
	afterViolations, afterErr := o.deps.Evaluator.Evaluate(ctx, refactored, profile)
	if beforeErr != nil || afterErr != nil {
		state.RecordWarning(StepValidation, "could not re-evaluate policy compliance")
	} else {
		vr.ViolationsBefore = len(beforeViolations)
		vr.ViolationsAfter = len(afterViolations)
		if vr.ViolationsBefore > vr.ViolationsAfter {
			vr.ViolationsFixed = vr.ViolationsBefore - vr.ViolationsAfter
		}
		if vr.ViolationsAfter > vr.ViolationsBefore {
			vr.ViolationsIntroduced = vr.ViolationsAfter - vr.ViolationsBefore
			state.RecordWarning(StepValidation, fmt.Sprintf(
				"refactoring introduced %d new violations", vr.ViolationsIntroduced))
		}
		vr.Improved = vr.ViolationsAfter < vr.ViolationsBefore
	}

	if o.deps.Tests == nil {
		state.RecordWarning(StepValidation, "no test runner configured, assuming tests pass")
	} else {
		testResult, err := o.deps.Tests.Run(ctx, refactored, execCtx.Language, execCtx.FilePath)
		if err != nil {
			state.RecordWarning(StepValidation, fmt.Sprintf("test execution failed: %s", err))
		} else {
			vr.TestPassRate = testResult.PassRate()
			switch {
			case testResult.TimedOut:
				state.RecordWarning(StepValidation, "test execution timed out")
			case !testResult.Executed:
				state.RecordWarning(StepValidation, "tests were not executed, assuming tests pass")
			}
		}
	}

	vr.ComplexityDelta = o.deps.Analyzer.ComplexityDelta(execCtx.OriginalCode, refactored)
	if vr.ComplexityDelta > complexityWarnThreshold {
		state.RecordWarning(StepValidation, fmt.Sprintf(
			"complexity increased by %.2f", vr.ComplexityDelta))
	}

	execCtx.Validation = vr
	state.RecordStepCompletion(StepValidation, vr)
}

// computeMetrics assembles the session's single metrics record.
func (o *StagedOrchestrator) computeMetrics(
	state *SessionState,
	execCtx *ExecutionContext,
	start time.Time,
) ComplianceMetric {
	metric := ComplianceMetric{
		PolicyScore: execCtx.ComplianceScore,
		LatencyMS:   time.Since(start).Milliseconds(),
		TokenUsage:  tokenUsage(execCtx.RefactoredCode()),
	}
	if execCtx.Validation != nil {
		metric.ComplexityDelta = execCtx.Validation.ComplexityDelta
		metric.TestPassRate = execCtx.Validation.TestPassRate
	}

	execCtx.Metrics["policy_score"] = metric.PolicyScore
	execCtx.Metrics["complexity_delta"] = metric.ComplexityDelta
	execCtx.Metrics["test_pass_rate"] = metric.TestPassRate
	execCtx.Metrics["latency_ms"] = float64(metric.LatencyMS)
	execCtx.Metrics["token_usage"] = float64(metric.TokenUsage)

	state.RecordStepCompletion(StepMetrics, metric)
	return metric
}

// saveResults persists the run. A nil recorder is a no-op so the
// orchestrator stays usable without persistence wired in.
func (o *StagedOrchestrator) saveResults(ctx context.Context, sessionID string, result *RunResult) error {
	if o.deps.Sessions == nil {
		return nil
	}
	return o.deps.Sessions.SaveResults(ctx, sessionID, result)
}

// finalCheckpoint cross-checks the finished run and records a warning for
// every inconsistency. Checkpoint findings never fail the session.
func (o *StagedOrchestrator) finalCheckpoint(state *SessionState, execCtx *ExecutionContext) {
	required := []string{"policy_score", "complexity_delta", "test_pass_rate", "latency_ms", "token_usage"}
	for _, name := range required {
		if _, ok := execCtx.Metrics[name]; !ok {
			state.RecordWarning(StepCompleted, fmt.Sprintf("metric %s missing", name))
		}
	}

	refactored := execCtx.RefactoredCode()
	for _, s := range execCtx.Suggestions {
		if s.Proposed != "" && !strings.Contains(refactored, s.Proposed) {
			state.RecordWarning(StepCompleted, fmt.Sprintf(
				"suggestion for lines %d-%d not reflected in refactored code", s.LineStart, s.LineEnd))
		}
	}

	if !state.IsWorkflowComplete() {
		state.RecordWarning(StepCompleted, "workflow finished with incomplete mandatory steps")
	}
}

// buildResult converts the execution context into the caller-facing
// result tuple.
func (o *StagedOrchestrator) buildResult(
	state *SessionState,
	execCtx *ExecutionContext,
	metric ComplianceMetric,
) *RunResult {
	violations := make([]PolicyViolation, 0, len(execCtx.Violations))
	for _, v := range execCtx.Violations {
		violations = append(violations, PolicyViolation{
			RuleID:   v.RuleID,
			RuleKey:  v.RuleKey,
			Message:  v.Message,
			Severity: string(v.Severity),
		})
	}

	return &RunResult{
		Suggestions:    execCtx.Suggestions,
		Metric:         metric,
		Violations:     violations,
		RefactoredCode: execCtx.RefactoredCode(),
		Warnings:       state.Warnings(),
		Errors:         state.Errors(),
	}
}

// fail moves the state machine into the absorbing failed step and
// records the terminal status.
func (o *StagedOrchestrator) fail(
	ctx context.Context,
	state *SessionState,
	sessionID string,
	step WorkflowStep,
	err error,
) error {
	state.RecordError(step, err)
	state.Fail()

	message := fmt.Sprintf("[%s] %s", step, err)
	if o.deps.Sessions != nil {
		if markErr := o.deps.Sessions.MarkFailed(ctx, sessionID, message); markErr != nil {
			util.Log(ctx).With("session_id", sessionID).WithError(markErr).
				Error("could not mark session failed")
		}
	}
	return fmt.Errorf("%s failed: %w", step, err)
}
