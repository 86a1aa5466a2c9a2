package config

import (
	"github.com/pitabwire/frame/config"
)

// RefactorConfig defines configuration for the refactor service. The
// service exposes the HTTP API, runs the session workflow and persists
// results.
type RefactorConfig struct {
	config.ConfigurationDefault

	// ==========================================================================
	// Workflow
	// ==========================================================================

	// WorkflowStrategy selects the orchestration strategy: staged or direct.
	WorkflowStrategy string `envDefault:"staged" env:"WORKFLOW_STRATEGY"`

	// MaxCodeSize is the maximum size of a submitted snippet in bytes.
	MaxCodeSize int `envDefault:"1048576" env:"MAX_CODE_SIZE"` // 1MB

	// ==========================================================================
	// LLM Configuration
	// ==========================================================================

	// AnthropicAPIKey is the Anthropic API key.
	AnthropicAPIKey string `envDefault:"" env:"ANTHROPIC_API_KEY"`

	// OpenAIAPIKey is the OpenAI API key.
	OpenAIAPIKey string `envDefault:"" env:"OPENAI_API_KEY"`

	// GoogleAPIKey is the Google AI API key.
	GoogleAPIKey string `envDefault:"" env:"GOOGLE_API_KEY"`

	// LLMDefaultProvider is the preferred provider: anthropic, openai, google.
	LLMDefaultProvider string `envDefault:"anthropic" env:"LLM_DEFAULT_PROVIDER"`

	// LLMDefaultModel is the preferred model identifier.
	LLMDefaultModel string `envDefault:"claude-sonnet-4-20250514" env:"LLM_DEFAULT_MODEL"`

	// LLMTimeoutSeconds is the per-request LLM timeout.
	LLMTimeoutSeconds int `envDefault:"120" env:"LLM_TIMEOUT_SECONDS"`

	// LLMMaxRetries is the retry count per provider.
	LLMMaxRetries int `envDefault:"3" env:"LLM_MAX_RETRIES"`

	// LLMRequestsPerMinute throttles outgoing LLM calls.
	LLMRequestsPerMinute int `envDefault:"60" env:"LLM_REQUESTS_PER_MINUTE"`

	// ==========================================================================
	// Test Execution
	// ==========================================================================

	// TestRunnerEnabled enables best-effort test execution during validation.
	TestRunnerEnabled bool `envDefault:"false" env:"TEST_RUNNER_ENABLED"`

	// TestRunnerType selects the runner: local or docker.
	TestRunnerType string `envDefault:"local" env:"TEST_RUNNER_TYPE"`

	// TestTimeoutSeconds bounds one test run.
	TestTimeoutSeconds int `envDefault:"30" env:"TEST_TIMEOUT_SECONDS"`

	// TestMemoryLimitMB is the memory limit for the docker runner.
	TestMemoryLimitMB int `envDefault:"512" env:"TEST_MEMORY_LIMIT_MB"`

	// TestCPULimit is the CPU limit for the docker runner.
	TestCPULimit float64 `envDefault:"1.0" env:"TEST_CPU_LIMIT"`

	// ==========================================================================
	// Profile Cache
	// ==========================================================================

	// CacheRedisURI is the redis address for the profile cache. Empty
	// disables caching.
	CacheRedisURI string `envDefault:"" env:"CACHE_REDIS_URI"`

	// CacheTTLSeconds is the profile cache entry lifetime.
	CacheTTLSeconds int `envDefault:"600" env:"CACHE_TTL_SECONDS"`

	// ==========================================================================
	// Rate Limiting
	// ==========================================================================

	// RateLimitRequestsPerMinute limits requests per minute per client.
	RateLimitRequestsPerMinute int `envDefault:"60" env:"RATE_LIMIT_REQUESTS_PER_MINUTE"`

	// RateLimitBurstSize is the burst size for rate limiting.
	RateLimitBurstSize int `envDefault:"10" env:"RATE_LIMIT_BURST_SIZE"`
}
