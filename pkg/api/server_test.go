package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos/mnemos/config"
	"github.com/mnemos/mnemos/pkg/api/handlers"
	"github.com/mnemos/mnemos/pkg/embedding"
	"github.com/mnemos/mnemos/pkg/engine"
	"github.com/mnemos/mnemos/pkg/logger"
	"github.com/mnemos/mnemos/pkg/store/memory"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.New(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "json",
		Output: "stdout",
	})

	st := memory.New()
	registry := engine.NewRegistry(engine.DefaultConfig(), embedding.New(64), st, nil, nil, log)

	return NewRouter(config.DefaultConfig(), log, &Handlers{
		Context:   handlers.NewContextHandler(registry, log),
		Graph:     handlers.NewGraphHandler(registry, log),
		Branch:    handlers.NewBranchHandler(registry, log),
		Refs:      handlers.NewRefsHandler(registry, log),
		Health:    handlers.NewHealthHandler(st, registry, "test"),
		WebSocket: handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{}),
	})
}

func TestRouter_HealthEndpoints(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health", "/ready", "/status"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_MessageFlow(t *testing.T) {
	router := newTestRouter(t)

	body, err := json.Marshal(map[string]string{
		"role":    "user",
		"content": "Alice kicked off the incident review.",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/conv-1/messages", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/conv-1/messages", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Total)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPServer_Shutdown(t *testing.T) {
	log := logger.New(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "json",
		Output: "stdout",
	})
	cfg := config.DefaultConfig()
	cfg.Server.Port = 0

	st := memory.New()
	registry := engine.NewRegistry(engine.DefaultConfig(), embedding.New(64), st, nil, nil, log)
	srv := NewHTTPServer(cfg, log, &Handlers{
		Health: handlers.NewHealthHandler(st, registry, "test"),
	})

	done := make(chan error, 1)
	go func() {
		done <- srv.Start()
	}()

	require.NoError(t, srv.Shutdown(t.Context()))
	require.NoError(t, <-done)
}
