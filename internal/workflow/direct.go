package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pitabwire/util"
)

// DirectOrchestrator is the linear strategy: evaluate, refactor when
// violations exist, then persist. It produces the same result tuple as
// the staged strategy but skips the intermediate state bookkeeping, which
// makes it the better fit for synchronous request handling.
type DirectOrchestrator struct {
	deps Dependencies
}

// NewDirectOrchestrator creates the direct strategy.
func NewDirectOrchestrator(deps Dependencies) *DirectOrchestrator {
	return &DirectOrchestrator{deps: deps}
}

// RunSession runs the session in one pass.
func (o *DirectOrchestrator) RunSession(ctx context.Context, input RunInput) (*RunResult, error) {
	start := time.Now()
	log := util.Log(ctx).With("session_id", input.SessionID)

	var warnings []string

	if o.deps.Sessions != nil {
		if err := o.deps.Sessions.MarkRunning(ctx, input.SessionID); err != nil {
			warnings = append(warnings, fmt.Sprintf("could not mark session running: %s", err))
		}
	}

	if strings.TrimSpace(input.Code) == "" {
		return nil, o.fail(ctx, input.SessionID, fmt.Errorf("code is empty"))
	}
	if len(input.Code) > maxCodeChars {
		return nil, o.fail(ctx, input.SessionID, fmt.Errorf("code exceeds %d characters", maxCodeChars))
	}

	profile, err := o.deps.Profiles.Load(ctx, input.ProfileID)
	if err != nil {
		return nil, o.fail(ctx, input.SessionID, err)
	}
	if len(profile.Rules) == 0 {
		return nil, o.fail(ctx, input.SessionID, fmt.Errorf("profile %s has no rules", input.ProfileID))
	}

	violations, err := o.deps.Evaluator.Evaluate(ctx, input.Code, profile)
	if err != nil {
		return nil, o.fail(ctx, input.SessionID, fmt.Errorf("policy evaluation: %w", err))
	}
	score := o.deps.Evaluator.Score(violations, len(profile.Rules))

	refactoredCode := input.Code
	suggestions := []Suggestion{}
	if (len(violations) > 0 || input.ForceRefactor) && o.deps.Refactor != nil {
		out, refErr := o.deps.Refactor.Refactor(ctx, RefactorRequest{
			Code:       input.Code,
			Language:   input.Language,
			FilePath:   input.FilePath,
			Profile:    profile,
			Violations: violations,
		})
		if refErr != nil {
			warnings = append(warnings, fmt.Sprintf("refactoring failed, returning original code: %s", refErr))
		} else {
			if strings.TrimSpace(out.Code) != "" {
				refactoredCode = out.Code
			}
			if out.Suggestions != nil {
				suggestions = out.Suggestions
			}
		}
	}

	result := &RunResult{
		Suggestions: suggestions,
		Metric: ComplianceMetric{
			PolicyScore:     score,
			ComplexityDelta: o.deps.Analyzer.ComplexityDelta(input.Code, refactoredCode),
			TestPassRate:    1.0,
			LatencyMS:       time.Since(start).Milliseconds(),
			TokenUsage:      tokenUsage(refactoredCode),
		},
		Violations:     make([]PolicyViolation, 0, len(violations)),
		RefactoredCode: refactoredCode,
		Warnings:       warnings,
		Errors:         []string{},
	}
	for _, v := range violations {
		result.Violations = append(result.Violations, PolicyViolation{
			RuleID:   v.RuleID,
			RuleKey:  v.RuleKey,
			Message:  v.Message,
			Severity: string(v.Severity),
		})
	}

	if o.deps.Sessions != nil {
		if saveErr := o.deps.Sessions.SaveResults(ctx, input.SessionID, result); saveErr != nil {
			return nil, o.fail(ctx, input.SessionID, fmt.Errorf("save results: %w", saveErr))
		}
		if markErr := o.deps.Sessions.MarkCompleted(ctx, input.SessionID); markErr != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not mark session completed: %s", markErr))
		}
	}

	log.With("violations", len(violations)).With("latency_ms", result.Metric.LatencyMS).
		Info("session completed")
	return result, nil
}

func (o *DirectOrchestrator) fail(ctx context.Context, sessionID string, err error) error {
	if o.deps.Sessions != nil {
		if markErr := o.deps.Sessions.MarkFailed(ctx, sessionID, err.Error()); markErr != nil {
			util.Log(ctx).With("session_id", sessionID).WithError(markErr).
				Error("could not mark session failed")
		}
	}
	return err
}
