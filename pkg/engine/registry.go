package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/mnemos/mnemos/pkg/eventbus"
	"github.com/mnemos/mnemos/pkg/logger"
	"github.com/mnemos/mnemos/pkg/metrics"
	"github.com/mnemos/mnemos/pkg/store"
)

// Registry owns one engine per conversation, creating them lazily and
// restoring their state from storage on first use.
type Registry struct {
	cfg      Config
	embedder TextEmbedder
	store    store.Store
	events   *eventbus.Publisher
	metrics  *metrics.Manager
	log      logger.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewRegistry creates an engine registry.
func NewRegistry(cfg Config, embedder TextEmbedder, st store.Store, events *eventbus.Publisher, mm *metrics.Manager, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Global()
	}
	if mm == nil {
		mm = metrics.NoOpManager()
	}
	return &Registry{
		cfg:      cfg,
		embedder: embedder,
		store:    st,
		events:   events,
		metrics:  mm,
		log:      log,
		engines:  make(map[string]*Engine),
	}
}

// Get returns the engine for a conversation, creating it on first use.
func (r *Registry) Get(ctx context.Context, conversationID string) (*Engine, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("engine: conversation id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[conversationID]; ok {
		return e, nil
	}
	e, err := New(ctx, conversationID, r.cfg, r.embedder, r.store, r.events, r.metrics, r.log)
	if err != nil {
		return nil, err
	}
	r.engines[conversationID] = e
	return e, nil
}

// Peek returns the engine for a conversation only if it is already loaded.
func (r *Registry) Peek(conversationID string) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[conversationID]
	return e, ok
}

// DeleteConversation removes a conversation's engine and every stored
// record.
func (r *Registry) DeleteConversation(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	delete(r.engines, conversationID)
	r.mu.Unlock()

	if err := r.store.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("engine: delete conversation: %w", err)
	}
	if r.events != nil {
		_, err := r.events.Publish(ctx, eventbus.ContextEvent{
			EventType:      eventbus.EventConversationDeleted,
			ConversationID: conversationID,
		})
		if err != nil {
			r.log.WarnContext(ctx, "context event publish failed",
				"event_type", eventbus.EventConversationDeleted, "error", err)
		}
	}
	return nil
}

// Conversations lists the conversation ids with loaded engines.
func (r *Registry) Conversations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.engines))
	for id := range r.engines {
		out = append(out, id)
	}
	return out
}
