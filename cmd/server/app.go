package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/studybuddy/analysis-api/internal/cache"
	"github.com/studybuddy/analysis-api/internal/config"
	"github.com/studybuddy/analysis-api/internal/dispatch"
	"github.com/studybuddy/analysis-api/internal/engine"
	"github.com/studybuddy/analysis-api/internal/notify"
	"github.com/studybuddy/analysis-api/internal/platform/postgres"
	"github.com/studybuddy/analysis-api/internal/queue"
	"github.com/studybuddy/analysis-api/internal/service/auth"
	"github.com/studybuddy/analysis-api/internal/store"
	"github.com/studybuddy/analysis-api/internal/worker"
)

// application holds the shared application dependencies so startup and
// shutdown manage them in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	userStore     store.UserStore
	resultStore   store.ResultStore
	activityStore store.ActivityStore

	tokenService  auth.TokenService
	authenticator *auth.Authenticator
	passwords     *auth.BcryptVerifier

	resultCache *cache.ResultCache
	workQueue   queue.Queue
	dispatcher  *dispatch.Dispatcher
	analyzer    engine.Analyzer
	notifier    notify.Notifier
	workerPool  *worker.Pool
}

// newApplication wires all dependencies. It accepts the core resources
// that must exist before anything else: configuration, logger, and an
// open database connection.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.tokenService, err = auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	logger.Info("token service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes,
		"trusted_service", cfg.Auth.TrustedService)

	app.passwords = auth.NewBcryptVerifier()

	app.userStore = postgres.NewPostgresUserStore(db)
	app.resultStore = postgres.NewPostgresResultStore(db)
	app.activityStore = postgres.NewPostgresActivityStore(db)

	app.authenticator, err = auth.NewAuthenticator(app.tokenService, app.userStore, cfg.Auth.TrustedService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authenticator: %w", err)
	}

	app.resultCache, err = cache.NewResultCache(cfg.Cache.Capacity, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize result cache: %w", err)
	}
	if err := app.resultCache.Preload(ctx, app.resultStore); err != nil {
		return nil, fmt.Errorf("failed to preload result cache: %w", err)
	}

	app.workQueue = queue.NewMemoryQueue(
		cfg.Worker.QueueSize,
		time.Duration(cfg.Worker.AckTimeoutSeconds)*time.Second,
		logger,
	)

	app.dispatcher, err = dispatch.NewDispatcher(
		app.workQueue,
		app.resultCache,
		app.activityStore,
		dispatch.Config{
			UploadDir:         cfg.Dispatch.UploadDir,
			ReconcileInterval: time.Duration(cfg.Dispatch.ReconcileIntervalSeconds) * time.Second,
			StuckJobAge:       time.Duration(cfg.Dispatch.StuckJobAgeMinutes) * time.Minute,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	app.analyzer, err = engine.NewGeminiAnalyzer(ctx, logger.With("component", "analyzer"), cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	logger.Info("analysis engine initialized", "model", cfg.Engine.ModelName)

	app.notifier, err = notify.NewHTTPNotifier(cfg.Notify, app.tokenService, cfg.Auth.TrustedService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	app.workerPool, err = worker.NewPool(
		app.workQueue,
		app.analyzer,
		app.notifier,
		cfg.Worker.Count,
		cfg.Worker.RetryBudget,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize worker pool: %w", err)
	}

	logger.Info("application initialized")
	return app, nil
}

// Run starts the background machinery and the HTTP server, blocking
// until shutdown.
func (app *application) Run(ctx context.Context) error {
	app.workerPool.Start(ctx)
	app.dispatcher.StartReconciler(ctx)

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup shuts the application down in dependency order: stop intake,
// drain workers, flush the cache, close the database.
func (app *application) cleanup() {
	if app.dispatcher != nil {
		app.dispatcher.StopReconciler()
	}
	if app.workerPool != nil {
		app.workerPool.Stop()
	}
	if app.workQueue != nil {
		app.workQueue.Close()
	}

	if app.resultCache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := app.resultCache.FlushAll(ctx, app.resultStore); err != nil {
			app.logger.Error("cache flush failed, retrying once", "error", err)
			if err := app.resultCache.FlushAll(ctx, app.resultStore); err != nil {
				app.logger.Error("cache flush retry failed", "error", err)
			}
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
