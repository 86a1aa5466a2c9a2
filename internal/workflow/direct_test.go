package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antinvestor/codecraft/internal/analysis"
	"github.com/antinvestor/codecraft/internal/policy"
)

func directDeps(recorder *fakeRecorder, refactor *fakeRefactor) Dependencies {
	return Dependencies{
		Profiles:  &fakeProfiles{profiles: map[string]*policy.Profile{"prof-style": tabProfile()}},
		Analyzer:  &fakeAnalyzer{svc: analysis.NewService()},
		Evaluator: &fakeEvaluator{engine: policy.NewEngine()},
		Refactor:  refactor,
		Sessions:  recorder,
	}
}

func TestDirectRun_ViolationsRefactored(t *testing.T) {
	recorder := newFakeRecorder()
	refactor := &fakeRefactor{output: &RefactorOutput{
		Code:        "def foo():\n    return 1\n",
		Suggestions: []Suggestion{{LineStart: 2, LineEnd: 2, Proposed: "    return 1"}},
	}}
	orch := NewDirectOrchestrator(directDeps(recorder, refactor))

	result, err := orch.RunSession(context.Background(), RunInput{
		SessionID: "sess-d1",
		ProfileID: "prof-style",
		Code:      "def foo():\n\treturn 1\n",
		Language:  "python",
	})
	require.NoError(t, err)

	require.Equal(t, "def foo():\n    return 1\n", result.RefactoredCode)
	require.Len(t, result.Violations, 1)
	require.Equal(t, 0.0, result.Metric.PolicyScore)
	require.Len(t, result.Suggestions, 1)
	require.Equal(t, []string{"sess-d1"}, recorder.completed)
	require.Contains(t, recorder.saved, "sess-d1")
}

func TestDirectRun_NoViolationsNoRefactor(t *testing.T) {
	recorder := newFakeRecorder()
	refactor := &fakeRefactor{}
	orch := NewDirectOrchestrator(directDeps(recorder, refactor))

	code := "def foo():\n    return 1\n"
	result, err := orch.RunSession(context.Background(), RunInput{
		SessionID: "sess-d2",
		ProfileID: "prof-style",
		Code:      code,
		Language:  "python",
	})
	require.NoError(t, err)
	require.Equal(t, code, result.RefactoredCode)
	require.Equal(t, 100.0, result.Metric.PolicyScore)
	require.Zero(t, refactor.calls)
}

func TestDirectRun_RefactorFailureReturnsOriginal(t *testing.T) {
	recorder := newFakeRecorder()
	refactor := &fakeRefactor{err: errors.New("provider unavailable")}
	orch := NewDirectOrchestrator(directDeps(recorder, refactor))

	code := "def foo():\n\treturn 1\n"
	result, err := orch.RunSession(context.Background(), RunInput{
		SessionID: "sess-d3",
		ProfileID: "prof-style",
		Code:      code,
		Language:  "python",
	})
	require.NoError(t, err)
	require.Equal(t, code, result.RefactoredCode)
	require.Empty(t, result.Suggestions)
	require.NotEmpty(t, result.Warnings)
}

func TestDirectRun_FatalPaths(t *testing.T) {
	testCases := []struct {
		name      string
		profileID string
		code      string
		errIs     error
		contains  string
	}{
		{
			name:      "empty code",
			profileID: "prof-style",
			code:      " ",
			contains:  "code is empty",
		},
		{
			name:      "missing profile",
			profileID: "prof-missing",
			code:      "def foo():\n    return 1\n",
			errIs:     ErrProfileNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := newFakeRecorder()
			orch := NewDirectOrchestrator(directDeps(recorder, &fakeRefactor{}))

			_, err := orch.RunSession(context.Background(), RunInput{
				SessionID: "sess-d4",
				ProfileID: tc.profileID,
				Code:      tc.code,
				Language:  "python",
			})
			require.Error(t, err)
			if tc.errIs != nil {
				require.ErrorIs(t, err, tc.errIs)
			}
			if tc.contains != "" {
				require.Contains(t, err.Error(), tc.contains)
			}
			require.NotEmpty(t, recorder.failed["sess-d4"])
		})
	}
}

func TestDirectRun_SaveResultsFatal(t *testing.T) {
	recorder := newFakeRecorder()
	recorder.saveErr = errors.New("database unavailable")
	orch := NewDirectOrchestrator(directDeps(recorder, &fakeRefactor{}))

	_, err := orch.RunSession(context.Background(), RunInput{
		SessionID: "sess-d5",
		ProfileID: "prof-style",
		Code:      "def foo():\n    return 1\n",
		Language:  "python",
	})
	require.Error(t, err)
	require.Contains(t, recorder.failed["sess-d5"], "save results")
	require.Empty(t, recorder.completed)
}
