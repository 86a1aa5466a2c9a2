package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/antinvestor/codecraft/internal/analysis"
	"github.com/antinvestor/codecraft/internal/llm"
	"github.com/antinvestor/codecraft/internal/policy"
	"github.com/antinvestor/codecraft/internal/store"
	"github.com/antinvestor/codecraft/internal/testrun"
)

// StoreProfileLoader loads profiles from the repository, consulting the
// cache first when one is configured.
type StoreProfileLoader struct {
	repo  store.ProfileRepository
	cache *store.ProfileCache
}

// NewStoreProfileLoader creates a profile loader over the repository.
// The cache is optional.
func NewStoreProfileLoader(repo store.ProfileRepository, cache *store.ProfileCache) *StoreProfileLoader {
	return &StoreProfileLoader{repo: repo, cache: cache}
}

// Load resolves a profile, translating a repository miss into
// ErrProfileNotFound.
func (l *StoreProfileLoader) Load(ctx context.Context, profileID string) (*policy.Profile, error) {
	if l.cache != nil {
		if cached, err := l.cache.Get(ctx, profileID); err == nil && cached != nil {
			return cached, nil
		}
	}

	record, err := l.repo.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
		}
		return nil, fmt.Errorf("load profile %s: %w", profileID, err)
	}

	profile := record.ToDomain()
	if l.cache != nil {
		_ = l.cache.Set(ctx, profile)
	}
	return profile, nil
}

// ServiceAnalyzer adapts the analysis service to the Analyzer contract.
type ServiceAnalyzer struct {
	svc *analysis.Service
}

// NewServiceAnalyzer wraps an analysis service.
func NewServiceAnalyzer(svc *analysis.Service) *ServiceAnalyzer {
	return &ServiceAnalyzer{svc: svc}
}

// Analyze computes structural facts for the snippet.
func (a *ServiceAnalyzer) Analyze(_ context.Context, code, language string) (*analysis.Result, error) {
	return a.svc.Analyze(code, language), nil
}

// ComplexityDelta returns refactored minus original complexity.
func (a *ServiceAnalyzer) ComplexityDelta(original, refactored string) float64 {
	return a.svc.SummarizeComplexity(original, refactored)
}

// EngineEvaluator adapts the policy engine to the Evaluator contract.
type EngineEvaluator struct {
	engine *policy.Engine
}

// NewEngineEvaluator wraps a policy engine.
func NewEngineEvaluator(engine *policy.Engine) *EngineEvaluator {
	return &EngineEvaluator{engine: engine}
}

// Evaluate applies the profile's rules to the code.
func (e *EngineEvaluator) Evaluate(_ context.Context, code string, profile *policy.Profile) ([]policy.Violation, error) {
	return e.engine.Evaluate(code, profile), nil
}

// Score converts a violation list into a compliance score.
func (e *EngineEvaluator) Score(violations []policy.Violation, totalRules int) float64 {
	return e.engine.ScoreCompliance(violations, totalRules)
}

// LLMRefactorProvider adapts an LLM client to the RefactorProvider
// contract.
type LLMRefactorProvider struct {
	client llm.Client
}

// NewLLMRefactorProvider wraps an LLM client.
func NewLLMRefactorProvider(client llm.Client) *LLMRefactorProvider {
	return &LLMRefactorProvider{client: client}
}

// Refactor asks the model for a policy-compliant rewrite.
func (p *LLMRefactorProvider) Refactor(ctx context.Context, req RefactorRequest) (*RefactorOutput, error) {
	llmReq := llm.RefactorRequest{
		Code:       req.Code,
		Language:   req.Language,
		FilePath:   req.FilePath,
		Violations: make([]llm.ViolationContext, 0, len(req.Violations)),
	}
	if req.Profile != nil {
		llmReq.PolicyName = req.Profile.Name
		llmReq.Rules = make([]llm.RuleContext, 0, len(req.Profile.Rules))
		for _, rule := range req.Profile.Rules {
			llmReq.Rules = append(llmReq.Rules, llm.RuleContext{
				Key:         rule.RuleKey,
				Description: rule.Description,
				Severity:    string(rule.Severity),
			})
		}
	}
	for _, v := range req.Violations {
		llmReq.Violations = append(llmReq.Violations, llm.ViolationContext{
			RuleKey:  v.RuleKey,
			Message:  v.Message,
			Severity: string(v.Severity),
		})
	}

	result, _, err := p.client.Refactor(ctx, llmReq)
	if err != nil {
		return nil, err
	}

	out := &RefactorOutput{
		Code:        result.RefactoredCode,
		Summary:     result.Summary,
		Suggestions: make([]Suggestion, 0, len(result.Suggestions)),
	}
	for _, s := range result.Suggestions {
		out.Suggestions = append(out.Suggestions, Suggestion{
			LineStart:  s.LineStart,
			LineEnd:    s.LineEnd,
			Original:   s.Original,
			Proposed:   s.Proposed,
			Rationale:  s.Rationale,
			Confidence: s.Confidence,
		})
	}
	return out, nil
}

// RunnerTestAdapter adapts a test runner to the TestRunner contract.
type RunnerTestAdapter struct {
	runner testrun.Runner
}

// NewRunnerTestAdapter wraps a test runner.
func NewRunnerTestAdapter(runner testrun.Runner) *RunnerTestAdapter {
	return &RunnerTestAdapter{runner: runner}
}

// Run executes the submission's tests.
func (a *RunnerTestAdapter) Run(ctx context.Context, code, language, filePath string) (*testrun.Result, error) {
	return a.runner.Run(ctx, code, language, filePath)
}

// StoreRecorder persists session status and results through the session
// repository.
type StoreRecorder struct {
	repo store.SessionRepository
}

// NewStoreRecorder wraps a session repository.
func NewStoreRecorder(repo store.SessionRepository) *StoreRecorder {
	return &StoreRecorder{repo: repo}
}

// MarkRunning moves the session to running.
func (r *StoreRecorder) MarkRunning(ctx context.Context, sessionID string) error {
	return r.repo.UpdateStatus(ctx, sessionID, store.SessionStatusRunning, "")
}

// MarkCompleted moves the session to completed.
func (r *StoreRecorder) MarkCompleted(ctx context.Context, sessionID string) error {
	return r.repo.UpdateStatus(ctx, sessionID, store.SessionStatusCompleted, "")
}

// MarkFailed moves the session to failed with the terminal message.
func (r *StoreRecorder) MarkFailed(ctx context.Context, sessionID, message string) error {
	return r.repo.UpdateStatus(ctx, sessionID, store.SessionStatusFailed, message)
}

// SaveResults writes the run's suggestions, metrics and refactored code
// in one transaction.
func (r *StoreRecorder) SaveResults(ctx context.Context, sessionID string, result *RunResult) error {
	suggestions := make([]store.RefactorSuggestion, 0, len(result.Suggestions))
	for _, s := range result.Suggestions {
		suggestions = append(suggestions, store.RefactorSuggestion{
			ID:         xid.New().String(),
			SessionID:  sessionID,
			LineStart:  s.LineStart,
			LineEnd:    s.LineEnd,
			Original:   s.Original,
			Proposed:   s.Proposed,
			Rationale:  s.Rationale,
			Confidence: s.Confidence,
		})
	}

	metric := &store.ComplianceMetric{
		ID:              xid.New().String(),
		SessionID:       sessionID,
		PolicyScore:     result.Metric.PolicyScore,
		ComplexityDelta: result.Metric.ComplexityDelta,
		TestPassRate:    result.Metric.TestPassRate,
		LatencyMS:       result.Metric.LatencyMS,
		TokenUsage:      result.Metric.TokenUsage,
	}

	return r.repo.SaveResults(
		ctx,
		sessionID,
		result.RefactoredCode,
		strings.Join(result.Warnings, "\n"),
		suggestions,
		metric,
	)
}
