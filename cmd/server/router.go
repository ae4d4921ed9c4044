package main

import (
	"net/http"

	"github.com/Fusion831/Async-Task-Processor-API/internal/api"
	apiMiddleware "github.com/Fusion831/Async-Task-Processor-API/internal/api/middleware"
	"github.com/Fusion831/Async-Task-Processor-API/internal/api/shared"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// healthResponse is the body returned by the health check endpoint.
type healthResponse struct {
	Status string `json:"status"`
}

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.taskStore, app.queue)

	r.Post("/process", taskHandler.Submit)
	r.Get("/results/{task_id}", taskHandler.GetResult)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
	})

	return r
}
