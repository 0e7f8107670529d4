package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/studybuddy/analysis-api/internal/api"
	apiMiddleware "github.com/studybuddy/analysis-api/internal/api/middleware"
)

// setupRouter configures the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(app.userStore, app.tokenService, app.passwords)
	materialHandler := api.NewMaterialHandler(app.dispatcher, app.resultCache)
	callbackHandler := api.NewCallbackHandler(app.dispatcher)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.authenticator)
	lastActive := apiMiddleware.NewLastActiveMiddleware(app.userStore)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// User endpoints
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthenticateUser)
			r.Use(lastActive.Touch)

			r.Post("/process-material", materialHandler.ProcessMaterial)
			r.Get("/task-status/{jobID}", materialHandler.TaskStatus)
			r.Get("/results/{fingerprint}", materialHandler.ResultByFingerprint)
			r.Get("/recent-results", materialHandler.RecentResults)
		})

		// Service callback, reachable only by the trusted worker service
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthenticateService)

			r.Post("/update-task-result/{jobID}", callbackHandler.UpdateTaskResult)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
