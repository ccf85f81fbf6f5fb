package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rickgao/chatlink/internal/queue"
	"github.com/rickgao/chatlink/internal/session"
	"github.com/rickgao/chatlink/internal/version"
)

// healthSource is the part of the session the debug endpoint reads.
type healthSource interface {
	Health() session.Health
	QueuedMessages() []queue.QueuedMessage
}

// newHealthHandler serves /health, /debug/queue and /version.
func newHealthHandler(src healthSource) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		h := src.Health()

		status := "healthy"
		switch {
		case h.Broken:
			status = "unhealthy"
		case !h.Healthy:
			status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(struct {
			Status  string         `json:"status"`
			Session session.Health `json:"session"`
		}{status, h})
	})

	r.Get("/debug/queue", func(w http.ResponseWriter, r *http.Request) {
		msgs := src.QueuedMessages()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":    len(msgs),
			"messages": msgs,
		})
	})

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version":   version.Version,
			"commit":    version.Commit,
			"buildTime": version.BuildTime,
		})
	})

	return r
}
