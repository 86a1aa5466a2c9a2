package workflow

// Outcome classifies how a workflow step finished. The fatal-vs-degrade
// policy is carried in the type so the orchestrator never has to infer it
// from error values: only a fatal outcome stops the run.
type Outcome int

const (
	// OutcomeOK means the step produced its normal result.
	OutcomeOK Outcome = iota
	// OutcomeDegraded means the step failed but a neutral substitute was
	// recorded and the run continues.
	OutcomeDegraded
	// OutcomeFatal means the run cannot continue.
	OutcomeFatal
)

// StepResult is the classified result of one step.
type StepResult struct {
	Outcome Outcome
	Err     error
}

func stepOK() StepResult {
	return StepResult{Outcome: OutcomeOK}
}

func stepDegraded(err error) StepResult {
	return StepResult{Outcome: OutcomeDegraded, Err: err}
}

func stepFatal(err error) StepResult {
	return StepResult{Outcome: OutcomeFatal, Err: err}
}

// Fatal reports whether the step must abort the run.
func (r StepResult) Fatal() bool {
	return r.Outcome == OutcomeFatal
}
