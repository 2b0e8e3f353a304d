package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mnemos/mnemos/pkg/api/response"
	"github.com/mnemos/mnemos/pkg/engine"
	"github.com/mnemos/mnemos/pkg/logger"
)

// BranchHandler handles conversation branch endpoints.
type BranchHandler struct {
	registry *engine.Registry
	logger   logger.Logger
}

// NewBranchHandler creates a new branch handler.
func NewBranchHandler(registry *engine.Registry, log logger.Logger) *BranchHandler {
	return &BranchHandler{
		registry: registry,
		logger:   log,
	}
}

type createBranchRequest struct {
	Name  string `json:"name"`
	Topic string `json:"topic,omitempty"`
}

type mergeBranchRequest struct {
	AtMessageID string `json:"at_message_id,omitempty"`
}

// CreateBranch handles POST /api/v1/conversations/{conversationID}/branches
func (h *BranchHandler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	var req createBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if req.Name == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Name is required", getRequestID(ctx))
		return
	}

	b, err := eng.CreateBranch(ctx, req.Name, req.Topic)
	if err != nil {
		h.logger.Error("Failed to create branch", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to create branch", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, b)
}

// ListBranches handles GET /api/v1/conversations/{conversationID}/branches
func (h *BranchHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	branches := eng.Branches()
	payload := map[string]any{
		"branches": branches,
		"total":    len(branches),
	}
	if active := eng.ActiveBranch(); active != nil {
		payload["active_id"] = active.ID
	}

	response.JSON(w, http.StatusOK, payload)
}

// SwitchBranch handles POST /api/v1/conversations/{conversationID}/branches/{branchID}/switch
// An empty or "main" branch id switches back to the main line.
func (h *BranchHandler) SwitchBranch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	branchID := chi.URLParam(r, "branchID")
	if branchID == "main" {
		branchID = ""
	}
	if err := eng.SwitchBranch(ctx, branchID); err != nil {
		h.logger.Error("Failed to switch branch", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to switch branch", getRequestID(ctx))
		return
	}

	payload := map[string]any{"active_id": ""}
	if active := eng.ActiveBranch(); active != nil {
		payload["active_id"] = active.ID
	}
	response.JSON(w, http.StatusOK, payload)
}

// MergeBranch handles POST /api/v1/conversations/{conversationID}/branches/{branchID}/merge
func (h *BranchHandler) MergeBranch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	branchID := chi.URLParam(r, "branchID")
	var req mergeBranchRequest
	if r.Body != nil {
		// An empty body merges at the current head.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := eng.MergeBranch(ctx, branchID, req.AtMessageID); err != nil {
		h.logger.Error("Failed to merge branch", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to merge branch", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"merged": branchID,
	})
}

// DeleteBranch handles DELETE /api/v1/conversations/{conversationID}/branches/{branchID}
func (h *BranchHandler) DeleteBranch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eng, ok := engineFor(w, r, h.registry)
	if !ok {
		return
	}

	branchID := chi.URLParam(r, "branchID")
	if err := eng.DeleteBranch(ctx, branchID); err != nil {
		h.logger.Error("Failed to delete branch", "conversation_id", eng.ConversationID(), "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to delete branch", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"deleted": branchID,
	})
}
