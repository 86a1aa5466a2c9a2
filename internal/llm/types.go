// Package llm provides LLM client implementations for code refactoring.
package llm

import "time"

// Provider identifies an LLM provider.
type Provider string

// LLM provider constants.
const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// Model identifies an LLM model.
type Model string

// Anthropic model constants.
const (
	ModelClaudeSonnet Model = "claude-sonnet-4-20250514"
	ModelClaudeOpus   Model = "claude-opus-4-20250514"
	ModelClaudeHaiku  Model = "claude-3-5-haiku-20241022"
)

// OpenAI model constants.
const (
	ModelGPT4o Model = "gpt-4o"
)

// Google model constants.
const (
	ModelGeminiFlash Model = "gemini-2.0-flash"
)

// Function identifies a prompt template.
type Function string

// Function constants.
const (
	FunctionRefactorCode Function = "RefactorCode"
)

// RuleContext is a policy rule rendered for prompting.
type RuleContext struct {
	Key         string
	Description string
	Severity    string
}

// ViolationContext is a detected violation rendered for prompting.
type ViolationContext struct {
	RuleKey  string
	Message  string
	Severity string
}

// RefactorRequest describes one snippet to refactor and the policy
// context that should guide the rewrite.
type RefactorRequest struct {
	Code       string
	Language   string
	FilePath   string
	PolicyName string
	Rules      []RuleContext
	Violations []ViolationContext
}

// Suggestion is a single proposed change within the refactored code.
type Suggestion struct {
	LineStart  int     `json:"line_start"`
	LineEnd    int     `json:"line_end"`
	Original   string  `json:"original"`
	Proposed   string  `json:"proposed"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// RefactorResult is the parsed outcome of a refactor invocation.
type RefactorResult struct {
	RefactoredCode string       `json:"refactored_code"`
	Summary        string       `json:"summary"`
	Suggestions    []Suggestion `json:"suggestions"`
}

// Usage contains token usage statistics.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
}

// InvocationResult is the result of an LLM invocation.
type InvocationResult struct {
	Provider    Provider  `json:"provider"`
	Model       Model     `json:"model"`
	Function    Function  `json:"function"`
	Usage       Usage     `json:"usage"`
	LatencyMS   int64     `json:"latency_ms"`
	StopReason  string    `json:"stop_reason"`
	RequestID   string    `json:"request_id,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Default configuration constants.
const (
	defaultTimeoutSeconds    = 120
	defaultMaxRetries        = 3
	defaultMaxOutputTokens   = 16384
	defaultRequestsPerMinute = 60
)

// ClientConfig contains LLM client configuration.
type ClientConfig struct {
	// Provider settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string

	// Defaults
	DefaultProvider Provider
	DefaultModel    Model

	// Timeouts, retries and throttling
	TimeoutSeconds    int
	MaxRetries        int
	RequestsPerMinute int

	// Token limits
	MaxOutputTokens int
	Temperature     float64
}

// DefaultClientConfig returns default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DefaultProvider:   ProviderAnthropic,
		DefaultModel:      ModelClaudeSonnet,
		TimeoutSeconds:    defaultTimeoutSeconds,
		MaxRetries:        defaultMaxRetries,
		RequestsPerMinute: defaultRequestsPerMinute,
		MaxOutputTokens:   defaultMaxOutputTokens,
		Temperature:       0.0,
	}
}
