// Package app wires configuration, storage, services, and handlers into a
// runnable application.
package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/engine"
	"github.com/ternarybob/consilium/internal/gateway"
	"github.com/ternarybob/consilium/internal/handlers"
	"github.com/ternarybob/consilium/internal/llm"
	"github.com/ternarybob/consilium/internal/progress"
	"github.com/ternarybob/consilium/internal/services/cache"
	"github.com/ternarybob/consilium/internal/services/export"
	"github.com/ternarybob/consilium/internal/services/workflow"
	storage "github.com/ternarybob/consilium/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB *storage.DB

	// Core services
	LLMClient       *llm.Client
	GatewayClient   *gateway.Client
	Engine          *engine.Engine
	ProgressStore   *progress.Store
	CacheService    *cache.Service
	ExportService   *export.Service
	WorkflowService *workflow.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	AnalysisHandler *handlers.AnalysisHandler
	StocksHandler   *handlers.StocksHandler
}

// New initializes the application: storage first, then services, then handlers.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Int("providers", len(cfg.Providers)).
		Str("research_url", cfg.Research.URL).
		Str("cache_ttl", cfg.Cache.TTL).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	db, err := storage.NewDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.DB = db

	a.Logger.Info().Str("path", a.Config.Storage.Badger.Path).Msg("Badger storage initialized")
	return nil
}

func (a *App) initServices() error {
	llmClient, err := llm.NewClient(a.Config.Providers, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create generation client: %w", err)
	}
	a.LLMClient = llmClient

	a.GatewayClient = gateway.NewClient(a.Config.Research.URL,
		gateway.WithLogger(a.Logger),
		gateway.WithPollInterval(a.Config.Research.PollIntervalDuration()),
		gateway.WithTimeout(a.Config.Research.TimeoutDuration()),
		gateway.WithRateLimit(a.Config.Research.RateLimit),
	)

	a.Engine = engine.New(a.LLMClient, a.GatewayClient, a.Logger)
	a.ProgressStore = progress.NewStore()

	a.CacheService = cache.NewService(a.DB, a.Config.Cache.TTLDuration(), a.Logger)
	if schedule := a.Config.Cache.CleanupSchedule; schedule != "" {
		if err := a.CacheService.StartJanitor(schedule); err != nil {
			return fmt.Errorf("failed to start cache janitor: %w", err)
		}
	}

	a.ExportService = export.NewService(a.Logger)

	a.WorkflowService = workflow.NewService(
		a.Engine,
		a.ProgressStore,
		a.CacheService,
		a.LLMClient.ProviderNames(),
		a.Logger,
	)

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.WorkflowService, a.ExportService, a.Logger)
	a.StocksHandler = handlers.NewStocksHandler(a.Logger)
}

// Close releases application resources in reverse initialization order.
func (a *App) Close() error {
	if a.CacheService != nil {
		a.CacheService.Stop()
		a.Logger.Info().Msg("Cache janitor stopped")
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
