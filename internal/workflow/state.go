package workflow

import (
	"fmt"

	"github.com/antinvestor/codecraft/internal/policy"
)

// MetricForceRefactor forces the refactoring step even when policy
// evaluation found no violations.
const MetricForceRefactor = "force_refactor"

// PolicyOutcome is the recorded result of the policy evaluation step.
type PolicyOutcome struct {
	Violations []policy.Violation
	Score      float64
}

// SessionState tracks one run of the workflow: the current step, which
// steps completed, per-step result payloads, and the accumulated error
// and warning trails. It lives for exactly one run and is mutated only
// by the orchestrator; only its effects are persisted.
type SessionState struct {
	CurrentStep WorkflowStep
	Metrics     map[string]any

	completed map[WorkflowStep]bool
	results   map[WorkflowStep]any
	errors    []string
	warnings  []string
}

// NewSessionState creates session state positioned at the initial step.
func NewSessionState() *SessionState {
	return &SessionState{
		CurrentStep: StepInitialized,
		Metrics:     make(map[string]any),
		completed:   make(map[WorkflowStep]bool),
		results:     make(map[WorkflowStep]any),
	}
}

// RecordStepCompletion advances to the step, marks it complete and, when
// the step produced a payload, stores it for later inspection.
func (s *SessionState) RecordStepCompletion(step WorkflowStep, result any) {
	s.CurrentStep = step
	s.completed[step] = true
	if result != nil {
		s.results[step] = result
	}
}

// RecordError appends a step-tagged error to the trail. Recording an
// error never halts the workflow by itself; the orchestrator decides
// whether it is fatal.
func (s *SessionState) RecordError(step WorkflowStep, err error) {
	s.errors = append(s.errors, fmt.Sprintf("[%s] %s", step, err.Error()))
}

// RecordWarning appends a step-tagged warning to the trail.
func (s *SessionState) RecordWarning(step WorkflowStep, message string) {
	s.warnings = append(s.warnings, fmt.Sprintf("[%s] %s", step, message))
}

// StepResult returns the payload recorded for a step, or nil.
func (s *SessionState) StepResult(step WorkflowStep) any {
	return s.results[step]
}

// StepCompleted reports whether a step was marked complete.
func (s *SessionState) StepCompleted(step WorkflowStep) bool {
	return s.completed[step]
}

// Errors returns the step-tagged error trail.
func (s *SessionState) Errors() []string {
	return s.errors
}

// Warnings returns the step-tagged warning trail.
func (s *SessionState) Warnings() []string {
	return s.warnings
}

// Fail moves the state into the absorbing failed step.
func (s *SessionState) Fail() {
	s.CurrentStep = StepFailed
}

// ShouldRefactor is the workflow's decision point: true iff policy
// evaluation recorded at least one violation, or the force flag is set
// in the metrics mapping. Evaluated lazily against whatever policy
// evaluation produced, so a degraded evaluation (empty violations)
// yields false.
func (s *SessionState) ShouldRefactor() bool {
	if force, ok := s.Metrics[MetricForceRefactor].(bool); ok && force {
		return true
	}
	outcome, ok := s.results[StepPolicyEvaluation].(*PolicyOutcome)
	if !ok {
		return false
	}
	return len(outcome.Violations) > 0
}

// IsWorkflowComplete reports whether every mandatory step completed,
// with refactoring either completed or legitimately skipped.
func (s *SessionState) IsWorkflowComplete() bool {
	mandatory := []WorkflowStep{
		StepPreflight,
		StepAnalysis,
		StepPolicyEvaluation,
		StepValidation,
		StepMetrics,
		StepSaveResults,
	}
	for _, step := range mandatory {
		if !s.completed[step] {
			return false
		}
	}
	return s.completed[StepRefactoring] || !s.ShouldRefactor()
}
