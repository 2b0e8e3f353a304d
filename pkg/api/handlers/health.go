// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/mnemos/mnemos/pkg/api/middleware"
	"github.com/mnemos/mnemos/pkg/api/response"
	"github.com/mnemos/mnemos/pkg/engine"
	"github.com/mnemos/mnemos/pkg/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store    store.Store
	registry *engine.Registry
	version  string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st store.Store, registry *engine.Registry, version string) *HealthHandler {
	return &HealthHandler{
		store:    st,
		registry: registry,
		version:  version,
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe). The service is ready
// once the storage backend answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.TotalSize(r.Context()); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
			"ready": false,
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{
		"ready": true,
	})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	size, err := h.store.TotalSize(r.Context())
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable,
			"storage unavailable", getRequestID(r.Context()))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"version":              h.version,
		"loaded_conversations": len(h.registry.Conversations()),
		"storage_bytes":        size,
	})
}

func getRequestID(ctx context.Context) string {
	if id := middleware.GetRequestID(ctx); id != "" {
		return id
	}
	return "unknown"
}
