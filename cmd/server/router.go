package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskmaster-hq/taskmaster-api/internal/api"
	apiMiddleware "github.com/taskmaster-hq/taskmaster-api/internal/api/middleware"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/metrics"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(apiMiddleware.Metrics)

	taskHandler := api.NewTaskHandler(app.taskService, app.verifier, app.logger)
	userHandler := api.NewUserHandler(app.userService, app.logger)

	r.Get("/", api.Root)
	r.Get("/health", api.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/users", userHandler.CreateUser)

	if app.jwtService != nil {
		authHandler := api.NewAuthHandler(
			app.userService,
			app.jwtService,
			app.config.Auth.TokenLifetime(),
			app.logger,
		)
		r.Post("/auth/token", authHandler.IssueToken)
	}

	r.Route("/tasks", func(r chi.Router) {
		r.Use(apiMiddleware.BearerToken)

		r.Get("/", taskHandler.ListTasks)
		r.Post("/", taskHandler.CreateTask)
		// Static segments win over {id} in chi, so reorder is never taken
		// for a task ID.
		r.Put("/reorder", taskHandler.ReorderTasks)

		r.Get("/{id}", taskHandler.ListTasksByOwner)
		r.Put("/{id}", taskHandler.UpdateTask)
		r.Delete("/{id}", taskHandler.DeleteTask)
	})

	return r
}
