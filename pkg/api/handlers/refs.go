package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mnemos/mnemos/pkg/api/response"
	"github.com/mnemos/mnemos/pkg/engine"
	"github.com/mnemos/mnemos/pkg/logger"
)

const defaultMatchLimit = 10

// RefsHandler handles reference token and file reference endpoints.
type RefsHandler struct {
	registry *engine.Registry
	logger   logger.Logger
}

// NewRefsHandler creates a new refs handler.
func NewRefsHandler(registry *engine.Registry, log logger.Logger) *RefsHandler {
	return &RefsHandler{
		registry: registry,
		logger:   log,
	}
}

type expandRequest struct {
	Text          string `json:"text"`
	Query         string `json:"query,omitempty"`
	MaxExpansions int    `json:"max_expansions,omitempty"`
}

type expandResponse struct {
	Text string `json:"text"`
}

type addFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type addFileResponse struct {
	Token string `json:"token"`
}

// Expand handles POST /api/v1/conversations/{conversationID}/refs/expand.
// With a query only the most relevant tokens are expanded; without one every
// known token is resolved.
func (h *RefsHandler) Expand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	var req expandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if req.Text == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Text is required", getRequestID(ctx))
		return
	}

	var (
		expanded string
		err      error
	)
	if req.Query != "" {
		max := req.MaxExpansions
		if max <= 0 {
			max = defaultMatchLimit
		}
		expanded, err = eng.Refs().ExpandRelevant(ctx, req.Text, req.Query, max)
	} else {
		expanded, err = eng.Refs().ExpandAll(ctx, req.Text)
	}
	if err != nil {
		h.logger.Error("Failed to expand references", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to expand references", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, expandResponse{Text: expanded})
}

// Match handles GET /api/v1/conversations/{conversationID}/refs/match
func (h *RefsHandler) Match(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Query parameter is required", getRequestID(ctx))
		return
	}
	limit := defaultMatchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	tokens := eng.Refs().FindMatching(query, limit)
	response.JSON(w, http.StatusOK, map[string]any{
		"tokens": tokens,
		"total":  len(tokens),
	})
}

// AddFile handles POST /api/v1/conversations/{conversationID}/files
func (h *RefsHandler) AddFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	var req addFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if req.Path == "" || req.Content == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Path and content are required", getRequestID(ctx))
		return
	}

	token, err := eng.AddFileReference(ctx, req.Path, req.Content)
	if err != nil {
		h.logger.Error("Failed to add file reference", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to add file reference", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, addFileResponse{Token: token})
}
