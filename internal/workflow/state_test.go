package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antinvestor/codecraft/internal/policy"
)

func TestSessionState_RecordError_TagsStep(t *testing.T) {
	state := NewSessionState()
	state.RecordError(StepPreflight, errors.New("code is empty"))
	state.RecordWarning(StepValidation, "complexity increased by 7.20")

	require.Equal(t, []string{"[preflight] code is empty"}, state.Errors())
	require.Equal(t, []string{"[validation] complexity increased by 7.20"}, state.Warnings())
}

func TestSessionState_ShouldRefactor(t *testing.T) {
	testCases := []struct {
		name       string
		force      bool
		violations []policy.Violation
		expected   bool
	}{
		{
			name:     "no outcome recorded",
			expected: false,
		},
		{
			name:       "violations present",
			violations: []policy.Violation{{RuleKey: "no-tabs"}},
			expected:   true,
		},
		{
			name:       "empty violations",
			violations: []policy.Violation{},
			expected:   false,
		},
		{
			name:     "force flag without violations",
			force:    true,
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			state := NewSessionState()
			if tc.force {
				state.Metrics[MetricForceRefactor] = true
			}
			if tc.violations != nil {
				state.RecordStepCompletion(StepPolicyEvaluation, &PolicyOutcome{Violations: tc.violations})
			}
			require.Equal(t, tc.expected, state.ShouldRefactor())
		})
	}
}

func TestSessionState_IsWorkflowComplete(t *testing.T) {
	mandatory := []WorkflowStep{
		StepPreflight, StepAnalysis, StepPolicyEvaluation,
		StepValidation, StepMetrics, StepSaveResults,
	}

	t.Run("all mandatory steps, no refactor needed", func(t *testing.T) {
		state := NewSessionState()
		for _, step := range mandatory {
			state.RecordStepCompletion(step, nil)
		}
		require.True(t, state.IsWorkflowComplete())
	})

	t.Run("refactor needed but not completed", func(t *testing.T) {
		state := NewSessionState()
		for _, step := range mandatory {
			state.RecordStepCompletion(step, nil)
		}
		state.RecordStepCompletion(StepPolicyEvaluation, &PolicyOutcome{
			Violations: []policy.Violation{{RuleKey: "no-tabs"}},
		})
		require.False(t, state.IsWorkflowComplete())

		state.RecordStepCompletion(StepRefactoring, nil)
		require.True(t, state.IsWorkflowComplete())
	})

	t.Run("missing mandatory step", func(t *testing.T) {
		state := NewSessionState()
		for _, step := range mandatory[:len(mandatory)-1] {
			state.RecordStepCompletion(step, nil)
		}
		require.False(t, state.IsWorkflowComplete())
	})
}

func TestSessionState_Fail(t *testing.T) {
	state := NewSessionState()
	state.RecordStepCompletion(StepPreflight, nil)
	state.Fail()
	require.Equal(t, StepFailed, state.CurrentStep)
	require.True(t, state.StepCompleted(StepPreflight))
}

func TestExecutionContext_RefactoredCodeFallback(t *testing.T) {
	execCtx := NewExecutionContext("original", "python", "", "prof-1")
	require.Equal(t, "original", execCtx.RefactoredCode())

	execCtx.SetRefactoredCode("rewritten")
	require.Equal(t, "rewritten", execCtx.RefactoredCode())

	execCtx.SetRefactoredCode("")
	require.Equal(t, "original", execCtx.RefactoredCode())
}
