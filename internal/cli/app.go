package cli

import (
	"fmt"
	"log/slog"

	"github.com/eshaffer321/ledger-reconcile/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/logging"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// App bundles the components every command needs
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        *storage.Storage
	Engine       *matcher.Engine
	Orchestrator *reconcile.Orchestrator
}

// LoadConfig loads the config file if given, otherwise config.yaml in the
// working directory or the environment
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.LoadOrEnvWithPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// NewApp opens the store and builds the engine for cfg. system scopes the
// logger ("reconcile", "import", "api").
func NewApp(cfg *config.Config, system string, verbose bool) (*App, error) {
	loggingCfg := cfg.Observability.Logging
	if verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, system)

	matcherCfg, err := cfg.Reconcile.MatcherConfig()
	if err != nil {
		return nil, err
	}
	engine, err := matcher.NewEngine(matcherCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Storage.DatabasePath, err)
	}

	engine = engine.WithLogger(logger)
	return &App{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Engine:       engine,
		Orchestrator: reconcile.NewOrchestrator(store, engine, logger),
	}, nil
}

// Close closes the store
func (a *App) Close() error {
	return a.Store.Close()
}
