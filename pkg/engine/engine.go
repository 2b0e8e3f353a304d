// Package engine wires the context components together: per message it
// updates the entity graph, classifies topic drift, periodically re-clusters
// themes, registers reference tokens, and persists everything through the
// storage collaborator. One Engine owns one conversation; all mutations are
// serialized through its lock, matching the per-conversation ordering
// guarantee.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnemos/mnemos/pkg/branch"
	"github.com/mnemos/mnemos/pkg/conversation"
	"github.com/mnemos/mnemos/pkg/entity"
	"github.com/mnemos/mnemos/pkg/eventbus"
	"github.com/mnemos/mnemos/pkg/logger"
	"github.com/mnemos/mnemos/pkg/metrics"
	"github.com/mnemos/mnemos/pkg/refindex"
	"github.com/mnemos/mnemos/pkg/store"
	"github.com/mnemos/mnemos/pkg/theme"
)

const (
	graphRecordID    = "graph"
	branchesRecordID = "branches"
)

// Config tunes one conversation engine.
type Config struct {
	// Themes configures clustering.
	Themes theme.Config

	// Branch configures drift detection.
	Branch branch.Config

	// RefIndex bounds the reference index.
	RefIndex refindex.Config

	// ThemeRefreshEvery re-clusters after this many new messages.
	ThemeRefreshEvery int

	// EntityDecayPerDay is the daily relationship strength decay.
	EntityDecayPerDay float64

	// ChunkSize and ChunkOverlap control how file content is split when
	// filling the file-context bucket during prompt assembly.
	ChunkSize    int
	ChunkOverlap int
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() Config {
	return Config{
		Themes:            theme.DefaultConfig(),
		Branch:            branch.DefaultConfig(),
		RefIndex:          refindex.DefaultConfig(),
		ThemeRefreshEvery: 10,
		EntityDecayPerDay: 0.01,
		ChunkSize:         512,
		ChunkOverlap:      64,
	}
}

// TextEmbedder is the vectorization surface the engine needs.
type TextEmbedder interface {
	Embed(text string) []float32
}

// Engine maintains the live context state for one conversation.
type Engine struct {
	conversationID string
	cfg            Config

	embedder TextEmbedder
	store    store.Store
	refs     *refindex.Index
	graph    *entity.Graph
	themes   *theme.Extractor
	branches *branch.Manager
	events   *eventbus.Publisher
	metrics  *metrics.Manager
	log      logger.Logger

	mu                sync.Mutex
	messages          []conversation.Message
	sinceThemeRefresh int
}

// New creates the engine for one conversation, restoring persisted graph and
// branch state. Missing records start fresh; storage failures are surfaced.
func New(ctx context.Context, conversationID string, cfg Config, embedder TextEmbedder, st store.Store, events *eventbus.Publisher, mm *metrics.Manager, log logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Global()
	}
	if mm == nil {
		mm = metrics.NoOpManager()
	}
	if cfg.ThemeRefreshEvery <= 0 {
		cfg.ThemeRefreshEvery = DefaultConfig().ThemeRefreshEvery
	}

	log = log.With("conversation_id", conversationID)

	refs, err := refindex.New(ctx, conversationID, cfg.RefIndex, st, log)
	if err != nil {
		return nil, fmt.Errorf("engine: load reference index: %w", err)
	}

	e := &Engine{
		conversationID: conversationID,
		cfg:            cfg,
		embedder:       embedder,
		store:          st,
		refs:           refs,
		graph:          entity.NewGraph(conversationID, log),
		themes:         theme.NewExtractor(cfg.Themes, embedder),
		branches:       branch.NewManager(conversationID, cfg.Branch, embedder, log),
		events:         events,
		metrics:        mm,
		log:            log,
	}

	if err := e.restore(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) restore(ctx context.Context) error {
	var graphState entity.State
	err := e.store.LoadRecord(ctx, e.conversationID, store.CategoryGraph, graphRecordID, &graphState)
	switch {
	case err == nil:
		e.graph.Restore(graphState)
	case store.IsNotFound(err):
	default:
		return fmt.Errorf("engine: load graph: %w", err)
	}

	var branchState branch.State
	err = e.store.LoadRecord(ctx, e.conversationID, store.CategoryMetadata, branchesRecordID, &branchState)
	switch {
	case err == nil:
		e.branches.Restore(&branchState)
	case store.IsNotFound(err):
	default:
		return fmt.Errorf("engine: load branches: %w", err)
	}
	return nil
}

// ConversationID returns the conversation this engine owns.
func (e *Engine) ConversationID() string {
	return e.conversationID
}

// ProcessResult reports what one message changed.
type ProcessResult struct {
	// Entities are the entities found in the message.
	Entities []entity.Node `json:"entities"`

	// Shift is the drift classification for this message.
	Shift branch.TopicShift `json:"shift"`

	// SuggestedBranch is set when a major shift passed the cooldown.
	SuggestedBranch string `json:"suggested_branch,omitempty"`

	// NewThemes are themes extracted by a refresh triggered by this message.
	NewThemes []*theme.ConversationTheme `json:"new_themes,omitempty"`
}

// ProcessMessage runs the per-message pipeline: drift detection against the
// history before this message, graph update, periodic theme refresh,
// reference registration and persistence.
func (e *Engine) ProcessMessage(ctx context.Context, msg conversation.Message) (*ProcessResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.ConversationID = e.conversationID

	result := &ProcessResult{}

	result.Shift = e.branches.DetectShift(e.messages, msg)
	e.metrics.RecordTopicShift(string(result.Shift.Type))
	if result.Shift.Type == branch.MajorShift {
		if name, ok := e.branches.SuggestBranch(result.Shift); ok {
			result.SuggestedBranch = name
		}
	}

	result.Entities = e.graph.ProcessMessage(msg.Content)
	e.metrics.SetEntitiesTracked(e.conversationID, len(e.graph.Nodes()))

	e.messages = append(e.messages, msg)
	e.branches.RecordMessage(msg.ID)
	e.sinceThemeRefresh++

	if e.sinceThemeRefresh >= e.cfg.ThemeRefreshEvery {
		themes, err := e.refreshThemes(ctx)
		if err != nil {
			return nil, err
		}
		result.NewThemes = themes
		e.sinceThemeRefresh = 0
	}

	if err := e.persist(ctx); err != nil {
		return nil, err
	}

	e.metrics.RecordMessageProcessed(string(msg.Role), time.Since(start))
	e.publish(ctx, eventbus.EventMessageProcessed, map[string]any{
		"message_id": msg.ID,
		"shift":      result.Shift.Type,
		"entities":   len(result.Entities),
	})
	if result.Shift.Type != branch.NoShift {
		e.publish(ctx, eventbus.EventShiftDetected, result.Shift)
	}
	return result, nil
}

// refreshThemes re-clusters the in-memory history, persists every new theme
// and its semantic node, and registers a reference token per theme.
func (e *Engine) refreshThemes(ctx context.Context) ([]*theme.ConversationTheme, error) {
	themes := e.themes.ExtractThemes(e.conversationID, e.messages)
	if len(themes) == 0 {
		return nil, nil
	}

	for _, th := range themes {
		if err := e.store.SaveRecord(ctx, e.conversationID, store.CategoryThemes, th.ID, th); err != nil {
			return nil, fmt.Errorf("engine: save theme: %w", err)
		}
		node := theme.ToSemanticNode(th)
		if err := e.store.SaveRecord(ctx, e.conversationID, store.CategorySemanticNodes, node.ID, node); err != nil {
			return nil, fmt.Errorf("engine: save semantic node: %w", err)
		}

		token := refindex.NewToken(th.Topic)
		err := e.refs.AddReference(ctx, token, refindex.Pointer{
			Type:      refindex.TypeTheme,
			TargetID:  th.ID,
			Preview:   th.Content,
			CreatedAt: th.CreatedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: register theme reference: %w", err)
		}
	}

	e.metrics.RecordThemesExtracted(len(themes))
	e.publish(ctx, eventbus.EventThemeExtracted, map[string]any{"count": len(themes)})
	return themes, nil
}

func (e *Engine) persist(ctx context.Context) error {
	if err := e.store.SaveRecord(ctx, e.conversationID, store.CategoryGraph, graphRecordID, e.graph.Snapshot()); err != nil {
		return fmt.Errorf("engine: save graph: %w", err)
	}
	if err := e.store.SaveRecord(ctx, e.conversationID, store.CategoryMetadata, branchesRecordID, e.branches.Snapshot()); err != nil {
		return fmt.Errorf("engine: save branches: %w", err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, eventType eventbus.EventType, payload any) {
	if e.events == nil {
		return
	}
	_, err := e.events.Publish(ctx, eventbus.ContextEvent{
		EventType:      eventType,
		ConversationID: e.conversationID,
		Payload:        payload,
	})
	if err != nil {
		e.log.WarnContext(ctx, "context event publish failed", "event_type", eventType, "error", err)
	}
}

// AddFileReference stores a file's content and registers a reference token
// for it, returning the token.
func (e *Engine) AddFileReference(ctx context.Context, path, content string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ref := conversation.FileReference{
		ID:             uuid.NewString(),
		ConversationID: e.conversationID,
		Path:           path,
		Content:        content,
		AddedAt:        time.Now(),
	}
	if err := e.store.SaveRecord(ctx, e.conversationID, store.CategoryFileRefs, ref.ID, ref); err != nil {
		return "", fmt.Errorf("engine: save file reference: %w", err)
	}

	token := refindex.NewFileToken()
	err := e.refs.AddReference(ctx, token, refindex.Pointer{
		Type:     refindex.TypeFile,
		TargetID: ref.ID,
		Preview:  path + ": " + conversation.FirstSentence(content, 80),
	})
	if err != nil {
		return "", fmt.Errorf("engine: register file reference: %w", err)
	}
	return token, nil
}

// CreateBranch snapshots the current context and opens a branch.
func (e *Engine) CreateBranch(ctx context.Context, name, topic string) (*branch.Branch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := branch.ContextSnapshot{
		MessageCount: len(e.messages),
		Summary:      summarizeRecent(e.messages, 3),
		Entities:     e.entityNames(),
		TakenAt:      time.Now(),
	}
	if n := len(e.messages); n > 0 {
		snap.LastMessageID = e.messages[n-1].ID
	}

	b := e.branches.Create(name, topic, snap)
	if err := e.persist(ctx); err != nil {
		return nil, err
	}
	e.publish(ctx, eventbus.EventBranchCreated, b)
	return b, nil
}

// SwitchBranch activates a branch, or the main line for an empty id.
func (e *Engine) SwitchBranch(ctx context.Context, branchID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.branches.SwitchTo(branchID)
	return e.persist(ctx)
}

// MergeBranch folds a branch back at the given message.
func (e *Engine) MergeBranch(ctx context.Context, branchID, atMessageID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.branches.Merge(branchID, atMessageID)
	if err := e.persist(ctx); err != nil {
		return err
	}
	e.publish(ctx, eventbus.EventBranchMerged, map[string]any{
		"branch_id":     branchID,
		"at_message_id": atMessageID,
	})
	return nil
}

// DeleteBranch removes an unmerged branch.
func (e *Engine) DeleteBranch(ctx context.Context, branchID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.branches.Delete(branchID)
	if err := e.persist(ctx); err != nil {
		return err
	}
	e.publish(ctx, eventbus.EventBranchDeleted, map[string]any{"branch_id": branchID})
	return nil
}

// Branches returns all branches of this conversation.
func (e *Engine) Branches() []*branch.Branch {
	return e.branches.Branches()
}

// ActiveBranch returns the active branch, or nil on the main line.
func (e *Engine) ActiveBranch() *branch.Branch {
	return e.branches.Active()
}

// Graph returns the live entity graph.
func (e *Engine) Graph() *entity.Graph {
	return e.graph
}

// Refs returns the reference index.
func (e *Engine) Refs() *refindex.Index {
	return e.refs
}

// ApplyDecay applies relationship strength decay and persists the graph.
func (e *Engine) ApplyDecay(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph.ApplyDecay(e.cfg.EntityDecayPerDay)
	return e.persist(ctx)
}

// Messages returns a copy of the in-memory message history.
func (e *Engine) Messages() []conversation.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]conversation.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

func (e *Engine) entityNames() []string {
	nodes := e.graph.Nodes()
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}

// summarizeRecent produces a one-line summary of the tail of the history.
func summarizeRecent(messages []conversation.Message, n int) string {
	if len(messages) == 0 {
		return ""
	}
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, conversation.FirstSentence(m.Content, 60))
	}
	return strings.Join(parts, " / ")
}
