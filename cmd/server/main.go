// Package main implements the entry point for the taskmill server, an
// HTTP facade over a bounded pool of task-executing workers with priority
// scheduling, per-task timeouts, retries, and a circuit breaker.
package main

import (
	"log"
	"log/slog"

	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err := logger.Setup(cfg.Server); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"journal_enabled", cfg.Database.URL != "")

	app, err := newApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.startHTTPServer(app.setupRouter()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
