package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/ledger-reconcile/internal/api"
	"github.com/eshaffer321/ledger-reconcile/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconcile/internal/application/service"
)

// NewReconcileService builds the job service around the app's store and engine.
func NewReconcileService(app *App) *service.ReconcileService {
	return service.NewReconcileService(app.Config, func(logger *slog.Logger) service.Runner {
		return reconcile.NewOrchestrator(app.Store, app.Engine, logger)
	}, app.Logger)
}

// RunServe runs the API server until SIGINT or SIGTERM.
func RunServe(app *App, flags *ServeFlags) error {
	logger := app.Logger

	apiCfg := api.ConfigFrom(app.Config.API)
	if flags.Port > 0 {
		apiCfg.Port = flags.Port
	}

	reconcileService := NewReconcileService(app)
	reconcileService.StartBackgroundCleanup(5 * time.Minute)
	defer reconcileService.StopBackgroundCleanup()

	server := api.NewServer(apiCfg, app.Store, app.Orchestrator, reconcileService, logger)

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
