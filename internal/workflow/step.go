// Package workflow sequences one refactor session through pre-flight
// validation, static analysis, policy evaluation, optional refactoring,
// post-refactor validation, metrics computation and persistence.
package workflow

// WorkflowStep identifies a stage of the session state machine.
type WorkflowStep string

// Workflow steps, in execution order. Failed is an absorbing state
// reachable from any step.
const (
	StepInitialized      WorkflowStep = "initialized"
	StepPreflight        WorkflowStep = "preflight"
	StepAnalysis         WorkflowStep = "analysis"
	StepPolicyEvaluation WorkflowStep = "policy_evaluation"
	StepRefactoring      WorkflowStep = "refactoring"
	StepValidation       WorkflowStep = "validation"
	StepMetrics          WorkflowStep = "metrics"
	StepSaveResults      WorkflowStep = "save_results"
	StepCompleted        WorkflowStep = "completed"
	StepFailed           WorkflowStep = "failed"
)
