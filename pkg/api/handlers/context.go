package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mnemos/mnemos/pkg/api/response"
	"github.com/mnemos/mnemos/pkg/conversation"
	"github.com/mnemos/mnemos/pkg/engine"
	"github.com/mnemos/mnemos/pkg/logger"
)

// ContextHandler handles message ingestion and context assembly endpoints.
type ContextHandler struct {
	registry *engine.Registry
	logger   logger.Logger
}

// NewContextHandler creates a new context handler.
func NewContextHandler(registry *engine.Registry, log logger.Logger) *ContextHandler {
	return &ContextHandler{
		registry: registry,
		logger:   log,
	}
}

// engineFor resolves the engine for the conversation named in the URL,
// writing the error response itself when resolution fails.
func engineFor(w http.ResponseWriter, r *http.Request, registry *engine.Registry) (*engine.Engine, bool) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Conversation ID is required", getRequestID(ctx))
		return nil, false
	}

	eng, err := registry.Get(ctx, conversationID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to load conversation", getRequestID(ctx))
		return nil, false
	}
	return eng, true
}

// --- Request/Response types ---

type ingestRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type buildContextRequest struct {
	Query   string `json:"query"`
	ModelID string `json:"model_id,omitempty"`
}

// IngestMessage handles POST /api/v1/conversations/{conversationID}/messages
func (h *ContextHandler) IngestMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if req.Content == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Content is required", getRequestID(ctx))
		return
	}
	role := conversation.Role(req.Role)
	if role == "" {
		role = conversation.RoleUser
	}

	result, err := eng.ProcessMessage(ctx, conversation.Message{
		Role:    role,
		Content: req.Content,
	})
	if err != nil {
		h.logger.Error("Failed to process message", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to process message", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, result)
}

// ListMessages handles GET /api/v1/conversations/{conversationID}/messages
func (h *ContextHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	messages := eng.Messages()
	response.JSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"total":    len(messages),
	})
}

// BuildContext handles POST /api/v1/conversations/{conversationID}/context
func (h *ContextHandler) BuildContext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	var req buildContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if req.Query == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Query is required", getRequestID(ctx))
		return
	}

	bundle, err := eng.BuildContext(ctx, req.Query, req.ModelID)
	if err != nil {
		h.logger.Error("Failed to build context", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to build context", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, bundle)
}

// ListThemes handles GET /api/v1/conversations/{conversationID}/themes
func (h *ContextHandler) ListThemes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	themes, err := eng.Themes(ctx)
	if err != nil {
		h.logger.Error("Failed to list themes", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to list themes", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"themes": themes,
		"total":  len(themes),
	})
}

// ListSemanticNodes handles GET /api/v1/conversations/{conversationID}/nodes
func (h *ContextHandler) ListSemanticNodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	nodes, err := eng.SemanticNodes(ctx)
	if err != nil {
		h.logger.Error("Failed to list semantic nodes", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to list semantic nodes", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"total": len(nodes),
	})
}

// GetBudget handles GET /api/v1/conversations/{conversationID}/budget
func (h *ContextHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	modelID := r.URL.Query().Get("model")
	display, err := eng.BudgetDisplay(ctx, modelID)
	if err != nil {
		h.logger.Error("Failed to compute budget", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to compute budget", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, display)
}

// DeleteConversation handles DELETE /api/v1/conversations/{conversationID}
func (h *ContextHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Conversation ID is required", getRequestID(ctx))
		return
	}

	if err := h.registry.DeleteConversation(ctx, conversationID); err != nil {
		h.logger.Error("Failed to delete conversation", "conversation_id", conversationID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to delete conversation", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"deleted": conversationID,
	})
}
