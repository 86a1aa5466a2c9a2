package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antinvestor/codecraft/internal/policy"
)

func sampleProfile() *PolicyProfile {
	return &PolicyProfile{
		ID:      "profile-1",
		Name:    "Security Baseline",
		Domain:  "security",
		Version: "1.0.0",
		Rules: []PolicyRule{
			{
				ID:          "rule-1",
				RuleKey:     "no-eval",
				Description: "eval is forbidden",
				Category:    "security",
				Expression:  `eval\(`,
				Severity:    "high",
				AutoFixable: true,
			},
		},
	}
}

func TestMemoryProfileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProfileRepository()

	require.NoError(t, repo.Create(ctx, sampleProfile()))

	got, err := repo.GetByID(ctx, "profile-1")
	require.NoError(t, err)
	require.Equal(t, "Security Baseline", got.Name)
	require.Len(t, got.Rules, 1)
	require.Equal(t, "profile-1", got.Rules[0].ProfileID)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	profiles, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	require.NoError(t, repo.Delete(ctx, "profile-1"))
	_, err = repo.GetByID(ctx, "profile-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProfileDomainConversion(t *testing.T) {
	stored := sampleProfile()

	domain := stored.ToDomain()
	require.Equal(t, "profile-1", domain.ProfileID)
	require.Len(t, domain.Rules, 1)
	require.Equal(t, policy.SeverityHigh, domain.Rules[0].Severity)
	require.True(t, domain.Rules[0].AutoFixable)

	roundTrip := ProfileFromDomain(domain)
	require.Equal(t, stored.ID, roundTrip.ID)
	require.Equal(t, stored.Rules[0].Expression, roundTrip.Rules[0].Expression)
	require.Equal(t, "high", roundTrip.Rules[0].Severity)
}

func TestProfileDomainConversion_UnknownSeverity(t *testing.T) {
	stored := sampleProfile()
	stored.Rules[0].Severity = "catastrophic"

	domain := stored.ToDomain()
	require.Equal(t, policy.SeverityMedium, domain.Rules[0].Severity)
}

func TestMemorySessionRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	session := &RefactorSession{
		ID:           "session-1",
		ProfileID:    "profile-1",
		Language:     "python",
		FilePath:     "submission.py",
		OriginalCode: "def foo():\n\treturn 1\n",
	}
	require.NoError(t, repo.Create(ctx, session))
	require.Equal(t, SessionStatusPending, session.Status)

	require.NoError(t, repo.UpdateStatus(ctx, "session-1", SessionStatusRunning, ""))
	got, err := repo.GetByID(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, SessionStatusRunning, got.Status)
	require.Nil(t, got.CompletedAt)

	err = repo.SaveResults(ctx, "session-1",
		"def foo():\n    return 1\n",
		"",
		[]RefactorSuggestion{
			{ID: "sug-1", LineStart: 2, LineEnd: 2, Proposed: "    return 1", Confidence: 0.9},
		},
		&ComplianceMetric{
			ID:              "met-1",
			PolicyScore:     100.0,
			ComplexityDelta: -0.5,
			TestPassRate:    1.0,
			LatencyMS:       120,
			TokenUsage:      7,
		},
	)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, "session-1", SessionStatusCompleted, ""))

	got, err = repo.GetByID(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, SessionStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Equal(t, "def foo():\n    return 1\n", got.RefactoredCode)
	require.Len(t, got.Suggestions, 1)
	require.Equal(t, "session-1", got.Suggestions[0].SessionID)
	require.NotNil(t, got.Metric)
	require.Equal(t, "session-1", got.Metric.SessionID)
	require.Equal(t, 100.0, got.Metric.PolicyScore)
	require.Equal(t, 1.0, got.Metric.TestPassRate)
}

func TestMemorySessionRepository_Failed(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	require.NoError(t, repo.Create(ctx, &RefactorSession{ID: "session-1"}))
	require.NoError(t, repo.UpdateStatus(ctx, "session-1", SessionStatusFailed, "[preflight] code is empty"))

	got, err := repo.GetByID(ctx, "session-1")
	require.NoError(t, err)
	require.Equal(t, SessionStatusFailed, got.Status)
	require.Equal(t, "[preflight] code is empty", got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)
}

func TestMemorySessionRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	_, err := repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.UpdateStatus(ctx, "missing", SessionStatusRunning, ""), ErrNotFound)
	require.ErrorIs(t, repo.SaveResults(ctx, "missing", "", "", nil, nil), ErrNotFound)
}

func TestMemorySessionRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &RefactorSession{ID: id}))
	}

	sessions, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	sessions, err = repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
}
