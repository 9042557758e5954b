// Package main provides the classifier API server.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/MechanicalMaster/Universal-Classifier/cmd/classifier-api/handlers"
	"github.com/MechanicalMaster/Universal-Classifier/internal/batch"
	"github.com/MechanicalMaster/Universal-Classifier/internal/config"
	"github.com/MechanicalMaster/Universal-Classifier/internal/observability"
	"github.com/MechanicalMaster/Universal-Classifier/internal/ratelimit"
)

// NewRouter wires middleware, handlers and routes.
func NewRouter(cfg config.Config, limiter *ratelimit.Limiter, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// No request timeout middleware on batch creation: large batches
	// legitimately run for minutes, bounded by the server write timeout.

	processor := batch.NewProcessor(cfg, limiter, observability.Component(logger, "batch"))
	batchHandler := handlers.NewBatchHandler(processor, cfg.Server.UploadDir, observability.Component(logger, "http"))
	statusHandler := handlers.NewStatusHandler(cfg, limiter)

	r.Get("/healthz", statusHandler.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/batches", batchHandler.Create)
		r.Get("/limits", statusHandler.Limits)
	})

	return r
}
