package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/mnemos/mnemos/config"
	"github.com/mnemos/mnemos/pkg/api/handlers"
	"github.com/mnemos/mnemos/pkg/api/middleware"
	"github.com/mnemos/mnemos/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Context handles message ingestion and context assembly endpoints
	Context *handlers.ContextHandler

	// Graph handles entity graph query endpoints
	Graph *handlers.GraphHandler

	// Branch handles conversation branch endpoints
	Branch *handlers.BranchHandler

	// Refs handles reference token and file endpoints
	Refs *handlers.RefsHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// WebSocket streams context events to subscribers
	WebSocket *handlers.WebSocketHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, h *Handlers) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/conversations/{conversationID}", func(r chi.Router) {
			if h.Context != nil {
				r.Post("/messages", h.Context.IngestMessage)
				r.Get("/messages", h.Context.ListMessages)
				r.Post("/context", h.Context.BuildContext)
				r.Get("/themes", h.Context.ListThemes)
				r.Get("/nodes", h.Context.ListSemanticNodes)
				r.Get("/budget", h.Context.GetBudget)
				r.Delete("/", h.Context.DeleteConversation)
			}

			if h.Graph != nil {
				r.Route("/graph", func(r chi.Router) {
					r.Get("/entities", h.Graph.ListEntities)
					r.Get("/relationships", h.Graph.ListRelationships)
					r.Get("/neighbors", h.Graph.Neighbors)
					r.Get("/path", h.Graph.ShortestPath)
					r.Get("/strongest", h.Graph.Strongest)
				})
			}

			if h.Branch != nil {
				r.Route("/branches", func(r chi.Router) {
					r.Post("/", h.Branch.CreateBranch)
					r.Get("/", h.Branch.ListBranches)
					r.Post("/{branchID}/switch", h.Branch.SwitchBranch)
					r.Post("/{branchID}/merge", h.Branch.MergeBranch)
					r.Delete("/{branchID}", h.Branch.DeleteBranch)
				})
			}

			if h.Refs != nil {
				r.Post("/refs/expand", h.Refs.Expand)
				r.Get("/refs/match", h.Refs.Match)
				r.Post("/files", h.Refs.AddFile)
			}
		})
	})

	// Health check routes (not versioned)
	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/ready", h.Health.Ready)
		r.Get("/status", h.Health.Status)
	}

	// Context event stream
	if h.WebSocket != nil {
		r.Get("/ws/events", h.WebSocket.ServeHTTP)
	}
}
