package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBranchRouter(h *BranchHandler) chi.Router {
	r := chi.NewRouter()
	r.Route("/conversations/{conversationID}/branches", func(r chi.Router) {
		r.Post("/", h.CreateBranch)
		r.Get("/", h.ListBranches)
		r.Post("/{branchID}/switch", h.SwitchBranch)
		r.Post("/{branchID}/merge", h.MergeBranch)
		r.Delete("/{branchID}", h.DeleteBranch)
	})
	return r
}

func TestBranchHandler_Lifecycle(t *testing.T) {
	reg, _ := newTestRegistry(t)
	router := newBranchRouter(NewBranchHandler(reg, testLogger()))

	rec := doJSON(t, router, http.MethodPost, "/conversations/conv-1/branches/", map[string]string{
		"name":  "migration",
		"topic": "database migration",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "migration", created.Name)
	assert.True(t, created.Active)

	rec = doJSON(t, router, http.MethodGet, "/conversations/conv-1/branches/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Total    int    `json:"total"`
		ActiveID string `json:"active_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Total)
	assert.Equal(t, created.ID, listing.ActiveID)

	// "main" switches back to the main line.
	rec = doJSON(t, router, http.MethodPost, "/conversations/conv-1/branches/main/switch", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var switched struct {
		ActiveID string `json:"active_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &switched))
	assert.Empty(t, switched.ActiveID)

	rec = doJSON(t, router, http.MethodPost, "/conversations/conv-1/branches/"+created.ID+"/merge", map[string]string{
		"at_message_id": "msg-42",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Merged branches survive deletion attempts.
	rec = doJSON(t, router, http.MethodDelete, "/conversations/conv-1/branches/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/conversations/conv-1/branches/", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Total)
}

func TestBranchHandler_CreateRequiresName(t *testing.T) {
	reg, _ := newTestRegistry(t)
	router := newBranchRouter(NewBranchHandler(reg, testLogger()))

	rec := doJSON(t, router, http.MethodPost, "/conversations/conv-1/branches/", map[string]string{
		"topic": "unnamed",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
