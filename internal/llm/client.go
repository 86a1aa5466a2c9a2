package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pitabwire/util"
	"golang.org/x/time/rate"
)

// Common errors.
var (
	ErrNoAPIKey           = errors.New("no API key configured")
	ErrRateLimited        = errors.New("rate limited")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrContextTooLong     = errors.New("context too long")
	ErrInvalidResponse    = errors.New("invalid response from LLM")
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// Client is the interface for LLM refactoring operations.
type Client interface {
	// Refactor rewrites the submitted code to satisfy the policy context
	// and returns the rewrite alongside per-change suggestions.
	Refactor(ctx context.Context, req RefactorRequest) (*RefactorResult, *InvocationResult, error)

	// GetUsage returns cumulative usage statistics.
	GetUsage() Usage
}

// ProviderClient is the interface for a single LLM provider.
type ProviderClient interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Provider returns the provider identifier.
	Provider() Provider

	// IsAvailable returns true if the provider is configured.
	IsAvailable() bool
}

// CompletionRequest is a request to the LLM.
type CompletionRequest struct {
	Model        Model
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	Function     Function
}

// CompletionResponse is a response from the LLM.
type CompletionResponse struct {
	Content    string
	Usage      Usage
	StopReason string
	RequestID  string
	LatencyMS  int64
}

// MultiProviderClient implements Client with fallback support. Providers
// are tried in configuration order; requests across all providers share
// one rate limiter.
type MultiProviderClient struct {
	providers     []ProviderClient
	promptBuilder *PromptBuilder
	limiter       *rate.Limiter
	config        ClientConfig
	totalUsage    Usage
}

// NewMultiProviderClient creates a new multi-provider client.
func NewMultiProviderClient(cfg ClientConfig) (*MultiProviderClient, error) {
	pb, err := NewPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("create prompt builder: %w", err)
	}

	const numProviders = 3
	providers := make([]ProviderClient, 0, numProviders)

	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, NewAnthropicClient(cfg.AnthropicAPIKey, cfg))
	}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, NewOpenAIClient(cfg.OpenAIAPIKey, cfg))
	}
	if cfg.GoogleAPIKey != "" {
		providers = append(providers, NewGoogleClient(cfg.GoogleAPIKey, cfg))
	}

	if len(providers) == 0 {
		return nil, ErrNoAPIKey
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}

	return &MultiProviderClient{
		providers:     providers,
		promptBuilder: pb,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		config:        cfg,
	}, nil
}

// Refactor implements Client.
func (c *MultiProviderClient) Refactor(
	ctx context.Context,
	input RefactorRequest,
) (*RefactorResult, *InvocationResult, error) {
	log := util.Log(ctx)

	prompt, err := c.promptBuilder.Build(FunctionRefactorCode, input)
	if err != nil {
		return nil, nil, fmt.Errorf("build prompt: %w", err)
	}

	req := &CompletionRequest{
		Model:        c.config.DefaultModel,
		SystemPrompt: "You are an expert software engineer specializing in policy-compliant refactoring.",
		UserPrompt:   prompt,
		MaxTokens:    c.config.MaxOutputTokens,
		Temperature:  c.config.Temperature,
		Function:     FunctionRefactorCode,
	}

	resp, err := c.completeWithFallback(ctx, req)
	if err != nil {
		log.WithError(err).Error("refactor failed")
		return nil, nil, err
	}

	result := parseRefactorResponse(resp.Content, input.Code)
	invocation := c.buildInvocationResult(resp, FunctionRefactorCode)
	return result, invocation, nil
}

// GetUsage implements Client.
func (c *MultiProviderClient) GetUsage() Usage {
	return c.totalUsage
}

// parseRefactorResponse decodes the model output. Models occasionally
// return the rewritten code directly instead of the requested JSON shape;
// in that case the whole reply is taken as the refactored code with no
// suggestions. An empty rewrite falls back to the original code.
func parseRefactorResponse(content, originalCode string) *RefactorResult {
	stripped := stripCodeFences(content)

	var result RefactorResult
	if err := json.Unmarshal([]byte(stripped), &result); err != nil {
		result = RefactorResult{RefactoredCode: stripped}
	}

	if strings.TrimSpace(result.RefactoredCode) == "" {
		result.RefactoredCode = originalCode
	}
	if result.Suggestions == nil {
		result.Suggestions = []Suggestion{}
	}
	return &result
}

// stripCodeFences removes a single surrounding markdown code fence.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag on the opening fence.
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// completeWithFallback tries each provider in order until one succeeds.
func (c *MultiProviderClient) completeWithFallback(
	ctx context.Context,
	req *CompletionRequest,
) (*CompletionResponse, error) {
	log := util.Log(ctx)
	var lastErr error

	for _, provider := range c.providers {
		if !provider.IsAvailable() {
			continue
		}

		log.Debug("trying provider",
			"provider", provider.Provider(),
			"function", req.Function,
		)

		resp, err := c.completeWithRetry(ctx, provider, req)
		if err == nil {
			c.totalUsage.InputTokens += resp.Usage.InputTokens
			c.totalUsage.OutputTokens += resp.Usage.OutputTokens
			c.totalUsage.TotalTokens += resp.Usage.TotalTokens
			c.totalUsage.CostUSD += resp.Usage.CostUSD

			return resp, nil
		}

		log.WithError(err).Warn("provider failed, trying next",
			"provider", provider.Provider(),
		)
		lastErr = err

		// A too-long context will fail everywhere.
		if errors.Is(err, ErrContextTooLong) {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
	}
	return nil, ErrAllProvidersFailed
}

// completeWithRetry retries a single provider request with exponential
// backoff, honouring the shared rate limiter before each attempt.
func (c *MultiProviderClient) completeWithRetry(
	ctx context.Context,
	provider ProviderClient,
	req *CompletionRequest,
) (*CompletionResponse, error) {
	log := util.Log(ctx)
	var lastErr error

	for attempt := range c.config.MaxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if errors.Is(err, ErrContextTooLong) ||
			errors.Is(err, ErrQuotaExceeded) {
			return nil, err
		}

		backoff := time.Duration(1<<attempt) * time.Second
		log.Debug("retrying after error",
			"provider", provider.Provider(),
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, lastErr
}

// buildInvocationResult creates an InvocationResult from a response.
func (c *MultiProviderClient) buildInvocationResult(
	resp *CompletionResponse,
	fn Function,
) *InvocationResult {
	return &InvocationResult{
		Provider:    c.config.DefaultProvider,
		Model:       c.config.DefaultModel,
		Function:    fn,
		Usage:       resp.Usage,
		LatencyMS:   resp.LatencyMS,
		StopReason:  resp.StopReason,
		RequestID:   resp.RequestID,
		CompletedAt: time.Now(),
	}
}

// estimateCost estimates the cost of a request in USD.
func estimateCost(provider Provider, model Model, usage Usage) float64 {
	// Pricing per 1M tokens (as of early 2025)
	var inputPrice, outputPrice float64

	switch provider {
	case ProviderAnthropic:
		switch model {
		case ModelClaudeOpus:
			inputPrice, outputPrice = 15.0, 75.0
		case ModelClaudeSonnet:
			inputPrice, outputPrice = 3.0, 15.0
		case ModelClaudeHaiku:
			inputPrice, outputPrice = 0.25, 1.25
		case ModelGPT4o, ModelGeminiFlash:
			inputPrice, outputPrice = 3.0, 15.0
		}
	case ProviderOpenAI:
		inputPrice, outputPrice = 2.5, 10.0
	case ProviderGoogle:
		inputPrice, outputPrice = 0.075, 0.30
	}

	const tokensPerMillion = 1_000_000.0
	inputCost := float64(usage.InputTokens) / tokensPerMillion * inputPrice
	outputCost := float64(usage.OutputTokens) / tokensPerMillion * outputPrice

	return inputCost + outputCost
}
