package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/util"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/antinvestor/codecraft/apps/refactor/config"
	"github.com/antinvestor/codecraft/apps/refactor/service/handlers"
	"github.com/antinvestor/codecraft/apps/refactor/service/middleware"
	"github.com/antinvestor/codecraft/internal/analysis"
	"github.com/antinvestor/codecraft/internal/llm"
	"github.com/antinvestor/codecraft/internal/policy"
	"github.com/antinvestor/codecraft/internal/store"
	"github.com/antinvestor/codecraft/internal/testrun"
	"github.com/antinvestor/codecraft/internal/workflow"
)

func main() {
	ctx := context.Background()

	// Initialize configuration
	cfg, err := config.LoadWithOIDC[appconfig.RefactorConfig](ctx)
	if err != nil {
		util.Log(ctx).With("err", err).Error("could not process configs")
		return
	}

	if cfg.Name() == "" {
		cfg.ServiceName = "code_refactor"
	}

	// Create service with Frame
	ctx, svc := frame.NewServiceWithContext(
		ctx,
		frame.WithConfig(&cfg),
		frame.WithDatastore(),
	)
	defer svc.Stop(ctx)
	log := svc.Log(ctx)

	dbManager := svc.DatastoreManager()
	dbPool := dbManager.GetPool(ctx, datastore.DefaultPoolName)

	if migrateErr := store.Migrate(ctx, dbPool); migrateErr != nil {
		log.WithError(migrateErr).Fatal("could not migrate database")
	}

	// ==========================================================================
	// Setup Repositories
	// ==========================================================================

	profileRepo := store.NewProfileRepository(ctx, dbPool)
	sessionRepo := store.NewSessionRepository(ctx, dbPool)
	userRepo := store.NewUserRepository(ctx, dbPool)

	profileCache := setupProfileCache(ctx, &cfg)

	// ==========================================================================
	// Setup Workflow Collaborators
	// ==========================================================================

	orchestrator := workflow.New(cfg.WorkflowStrategy, workflow.Dependencies{
		Profiles:  workflow.NewStoreProfileLoader(profileRepo, profileCache),
		Analyzer:  workflow.NewServiceAnalyzer(analysis.NewService()),
		Evaluator: workflow.NewEngineEvaluator(policy.NewEngine()),
		Refactor:  setupRefactorProvider(ctx, &cfg),
		Tests:     setupTestRunner(ctx, &cfg),
		Sessions:  workflow.NewStoreRecorder(sessionRepo),
	})

	// ==========================================================================
	// Setup HTTP Server
	// ==========================================================================

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"refactor"}`))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"refactor"}`))
	})

	mux.Handle("/api/v1/refactor",
		handlers.NewRefactorHandler(&cfg, orchestrator, sessionRepo, profileRepo, userRepo))
	mux.Handle("/api/v1/sessions", handlers.NewSessionsHandler(sessionRepo))
	mux.Handle("/api/v1/sessions/", handlers.NewSessionsHandler(sessionRepo))
	mux.Handle("/api/v1/policies", handlers.NewPoliciesHandler(profileRepo, profileCache))
	mux.Handle("/api/v1/policies/import", handlers.NewPoliciesHandler(profileRepo, profileCache))

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurstSize)
	defer rateLimiter.Stop()

	// ==========================================================================
	// Initialize and Start the Service
	// ==========================================================================

	svc.Init(ctx, frame.WithHTTPHandler(rateLimiter.Middleware(mux)))

	log.Info("Starting code refactor service...")
	err = svc.Run(ctx, "")
	if err != nil {
		log.WithError(err).Fatal("could not run server")
	}
}

// setupProfileCache connects the redis-backed profile cache when a cache
// URI is configured.
func setupProfileCache(ctx context.Context, cfg *appconfig.RefactorConfig) *store.ProfileCache {
	if cfg.CacheRedisURI == "" {
		return nil
	}

	log := util.Log(ctx)
	opts, err := redis.ParseURL(cfg.CacheRedisURI)
	if err != nil {
		log.WithError(err).Warn("invalid cache redis URI, profile cache disabled")
		return nil
	}

	client := redis.NewClient(opts)
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		log.WithError(pingErr).Warn("redis unreachable, profile cache disabled")
		return nil
	}

	return store.NewProfileCache(client, time.Duration(cfg.CacheTTLSeconds)*time.Second)
}

// setupRefactorProvider builds the LLM-backed refactor capability. With
// no API key configured the workflow degrades to returning original code.
func setupRefactorProvider(ctx context.Context, cfg *appconfig.RefactorConfig) workflow.RefactorProvider {
	clientCfg := llm.DefaultClientConfig()
	clientCfg.AnthropicAPIKey = cfg.AnthropicAPIKey
	clientCfg.OpenAIAPIKey = cfg.OpenAIAPIKey
	clientCfg.GoogleAPIKey = cfg.GoogleAPIKey
	clientCfg.DefaultProvider = llm.Provider(cfg.LLMDefaultProvider)
	clientCfg.DefaultModel = llm.Model(cfg.LLMDefaultModel)
	clientCfg.TimeoutSeconds = cfg.LLMTimeoutSeconds
	clientCfg.MaxRetries = cfg.LLMMaxRetries
	clientCfg.RequestsPerMinute = cfg.LLMRequestsPerMinute

	client, err := llm.NewMultiProviderClient(clientCfg)
	if err != nil {
		util.Log(ctx).WithError(err).Warn("no LLM provider configured, refactoring disabled")
		return nil
	}
	return workflow.NewLLMRefactorProvider(client)
}

// setupTestRunner builds the configured test runner, or nil when test
// execution is disabled.
func setupTestRunner(ctx context.Context, cfg *appconfig.RefactorConfig) workflow.TestRunner {
	if !cfg.TestRunnerEnabled {
		return nil
	}

	timeout := time.Duration(cfg.TestTimeoutSeconds) * time.Second
	if cfg.TestRunnerType == "docker" {
		runner, err := testrun.NewDockerRunner(testrun.DockerRunnerConfig{
			TimeoutSeconds: cfg.TestTimeoutSeconds,
			MemoryLimitMB:  cfg.TestMemoryLimitMB,
			CPULimit:       cfg.TestCPULimit,
		})
		if err != nil {
			util.Log(ctx).WithError(err).Warn("docker unavailable, using local test runner")
			return workflow.NewRunnerTestAdapter(testrun.NewLocalRunner(timeout))
		}
		return workflow.NewRunnerTestAdapter(runner)
	}

	return workflow.NewRunnerTestAdapter(testrun.NewLocalRunner(timeout))
}
