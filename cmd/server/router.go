package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskmill/taskmill/internal/api"
	apiMiddleware "github.com/taskmill/taskmill/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(app.tokenService, app.apiKeys)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.tokenService)
	taskHandler := api.NewTaskHandler(app.pool, app.journal)

	r.Route("/api", func(r chi.Router) {
		// Token issuance (public, guarded by the API key itself)
		r.Post("/auth/token", authHandler.IssueToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/tasks", taskHandler.Submit)
			r.Post("/tasks/all", taskHandler.SubmitAll)
			r.Post("/tasks/batch", taskHandler.SubmitBatch)
			r.Get("/stats", taskHandler.Stats)
			r.Get("/journal", taskHandler.Journal)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
