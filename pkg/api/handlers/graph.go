package handlers

import (
	"net/http"
	"strconv"

	"github.com/mnemos/mnemos/pkg/api/response"
	"github.com/mnemos/mnemos/pkg/engine"
	"github.com/mnemos/mnemos/pkg/logger"
)

const defaultStrongestLimit = 10

// GraphHandler handles entity graph query endpoints.
type GraphHandler struct {
	registry *engine.Registry
	logger   logger.Logger
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(registry *engine.Registry, log logger.Logger) *GraphHandler {
	return &GraphHandler{
		registry: registry,
		logger:   log,
	}
}

// ListEntities handles GET /api/v1/conversations/{conversationID}/graph/entities
func (h *GraphHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	nodes := eng.Graph().Nodes()
	response.JSON(w, http.StatusOK, map[string]any{
		"entities": nodes,
		"total":    len(nodes),
	})
}

// ListRelationships handles GET /api/v1/conversations/{conversationID}/graph/relationships
func (h *GraphHandler) ListRelationships(w http.ResponseWriter, r *http.Request) {
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	rels := eng.Graph().Relationships()
	response.JSON(w, http.StatusOK, map[string]any{
		"relationships": rels,
		"total":         len(rels),
	})
}

// Neighbors handles GET /api/v1/conversations/{conversationID}/graph/neighbors
func (h *GraphHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	entityName := r.URL.Query().Get("entity")
	if entityName == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Entity parameter is required", getRequestID(ctx))
		return
	}

	neighbors := eng.Graph().Neighbors(entityName)
	response.JSON(w, http.StatusOK, map[string]any{
		"entity":    entityName,
		"neighbors": neighbors,
		"total":     len(neighbors),
	})
}

// ShortestPath handles GET /api/v1/conversations/{conversationID}/graph/path
func (h *GraphHandler) ShortestPath(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Both from and to parameters are required", getRequestID(ctx))
		return
	}

	path, err := eng.Graph().ShortestPath(from, to)
	if err != nil {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, err.Error(), getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"from": from,
		"to":   to,
		"path": path,
	})
}

// Strongest handles GET /api/v1/conversations/{conversationID}/graph/strongest
func (h *GraphHandler) Strongest(w http.ResponseWriter, r *http.Request) {
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	limit := defaultStrongestLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	rels := eng.Graph().StrongestRelationships(limit)
	response.JSON(w, http.StatusOK, map[string]any{
		"relationships": rels,
		"total":         len(rels),
	})
}
