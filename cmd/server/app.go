package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/journal"
	"github.com/taskmill/taskmill/internal/platform/postgres"
	"github.com/taskmill/taskmill/internal/pool"
	"github.com/taskmill/taskmill/internal/service/auth"
)

// application holds the wired dependencies of the running server.
type application struct {
	config       *config.Config
	logger       *slog.Logger
	pool         *pool.Pool
	journal      journal.Journal
	tokenService auth.TokenService
	apiKeys      auth.APIKeyVerifier
}

// newApplication wires the application from configuration: settlement
// journal (PostgreSQL when a database is configured, no-op otherwise),
// auth services, the handler registry with the built-in task types, and
// the worker pool itself.
func newApplication(cfg *config.Config) (*application, error) {
	logger := slog.Default()

	jnl, err := setupJournal(cfg, logger)
	if err != nil {
		return nil, err
	}

	tokenService, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	registry := pool.NewHandlerRegistry()
	if err := registerBuiltinHandlers(registry); err != nil {
		return nil, err
	}

	p, err := pool.New(poolConfigFrom(cfg.Pool), registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	return &application{
		config:       cfg,
		logger:       logger,
		pool:         p,
		journal:      jnl,
		tokenService: tokenService,
		apiKeys:      auth.NewBcryptAPIKeyVerifier(cfg.Auth.APIKeyHash),
	}, nil
}

// setupJournal opens the settlement journal. Without a database URL the
// journal is a no-op and settlements are not persisted.
func setupJournal(cfg *config.Config, logger *slog.Logger) (journal.Journal, error) {
	if cfg.Database.URL == "" {
		logger.Info("No database configured, settlement journal disabled")
		return journal.NewNoop(), nil
	}

	db, err := setupAppDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := postgres.Migrate(db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate journal schema: %w", err)
	}

	return postgres.NewPostgresJournalWithCloser(db, db.Close), nil
}

// poolConfigFrom converts the flat millisecond-based config section into
// the pool's native durations. Zero values defer to the pool defaults.
func poolConfigFrom(cfg config.PoolConfig) pool.Config {
	return pool.Config{
		MaxWorkers:     cfg.MaxWorkers,
		MinWorkers:     cfg.MinWorkers,
		TaskTimeout:    time.Duration(cfg.TaskTimeoutMs) * time.Millisecond,
		IdleTimeout:    time.Duration(cfg.IdleTimeoutMs) * time.Millisecond,
		MaxRetries:     cfg.MaxRetries,
		ErrorThreshold: cfg.ErrorThreshold,
		CircuitReset:   time.Duration(cfg.CircuitResetMs) * time.Millisecond,
	}
}

// cleanup releases application resources in dependency order: the pool
// first so every outstanding task settles, then the journal.
func (app *application) cleanup() {
	app.pool.Terminate()
	if err := app.journal.Close(); err != nil {
		app.logger.Error("Failed to close settlement journal", "error", err)
	}
}
