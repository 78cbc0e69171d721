// Package api exposes the challenge service over HTTP using chi.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes. It is meant to be
// mounted under /api.
func NewRouter(svc ChallengeService, logger *slog.Logger) chi.Router {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()

	r.Get("/challenge/start", h.Start)
	r.Post("/challenge/start", h.Start)
	r.Post("/challenge/verify", h.Verify)

	r.Post("/analyze", h.Analyze)

	return r
}
