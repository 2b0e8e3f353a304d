package branch

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mnemos/mnemos/pkg/conversation"
	"github.com/mnemos/mnemos/pkg/embedding"
	"github.com/mnemos/mnemos/pkg/theme"
)

// Config tunes shift detection and suggestion pacing.
type Config struct {
	// MinMessages is the minimum conversation length before drift detection
	// activates.
	MinMessages int

	// SameTopicThreshold is the similarity at or above which a new message
	// is considered on-topic.
	SameTopicThreshold float64

	// MajorShiftThreshold is the similarity below which a shift is major.
	// Between the two thresholds the shift is minor.
	MajorShiftThreshold float64

	// WindowSize is how many trailing messages form the topic baseline.
	WindowSize int

	// SuggestionCooldown is the minimum gap between branch suggestions for
	// one conversation.
	SuggestionCooldown time.Duration
}

// DefaultConfig returns the standard drift-detection tuning.
func DefaultConfig() Config {
	return Config{
		MinMessages:         5,
		SameTopicThreshold:  0.7,
		MajorShiftThreshold: 0.3,
		WindowSize:          10,
		SuggestionCooldown:  300 * time.Second,
	}
}

// TextEmbedder is the vectorization surface drift detection needs.
type TextEmbedder interface {
	Embed(text string) []float32
}

// Logger is the minimal logging surface the manager needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(msg string, args ...any) {}

// Manager owns the branch state for one conversation.
type Manager struct {
	conversationID string
	cfg            Config
	embedder       TextEmbedder
	logger         Logger
	limiter        *rate.Limiter

	mu       sync.Mutex
	branches map[string]*Branch
	activeID string
	now      func() time.Time
}

// NewManager creates a branch manager for a conversation.
func NewManager(conversationID string, cfg Config, embedder TextEmbedder, log Logger) *Manager {
	if log == nil {
		log = nopLogger{}
	}
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = DefaultConfig().MinMessages
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if cfg.SameTopicThreshold <= 0 {
		cfg.SameTopicThreshold = DefaultConfig().SameTopicThreshold
	}
	if cfg.MajorShiftThreshold <= 0 {
		cfg.MajorShiftThreshold = DefaultConfig().MajorShiftThreshold
	}
	if cfg.SuggestionCooldown <= 0 {
		cfg.SuggestionCooldown = DefaultConfig().SuggestionCooldown
	}

	return &Manager{
		conversationID: conversationID,
		cfg:            cfg,
		embedder:       embedder,
		logger:         log,
		limiter:        rate.NewLimiter(rate.Every(cfg.SuggestionCooldown), 1),
		branches:       make(map[string]*Branch),
		now:            time.Now,
	}
}

// DetectShift classifies how far newMessage drifts from the trailing window
// of recent messages. Conversations below the minimum length never shift.
func (m *Manager) DetectShift(recent []conversation.Message, newMessage conversation.Message) TopicShift {
	if len(recent) < m.cfg.MinMessages {
		return TopicShift{Type: NoShift}
	}

	window := recent
	if len(window) > m.cfg.WindowSize {
		window = window[len(window)-m.cfg.WindowSize:]
	}
	parts := make([]string, len(window))
	for i, msg := range window {
		parts[i] = msg.Content
	}

	baseline := m.embedder.Embed(strings.Join(parts, "\n"))
	incoming := m.embedder.Embed(newMessage.Content)
	similarity := embedding.CosineSimilarity(baseline, incoming)

	if similarity >= m.cfg.SameTopicThreshold {
		return TopicShift{Type: NoShift}
	}

	confidence := 1 - similarity
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	topic := theme.TopicLabel(newMessage.Content)

	if similarity >= m.cfg.MajorShiftThreshold {
		return TopicShift{
			Type:       MinorShift,
			Confidence: confidence,
			NewTopic:   topic,
		}
	}
	return TopicShift{
		Type:          MajorShift,
		Confidence:    confidence,
		NewTopic:      topic,
		SuggestedName: topic,
	}
}

// SuggestBranch converts a major shift into a branch suggestion, at most
// once per cooldown window. The cooldown is consumed by suggesting,
// regardless of whether the caller accepts.
func (m *Manager) SuggestBranch(shift TopicShift) (string, bool) {
	if shift.Type != MajorShift {
		return "", false
	}
	if !m.limiter.Allow() {
		return "", false
	}
	name := shift.SuggestedName
	if name == "" {
		name = "New topic"
	}
	return name, true
}

// Create snapshots the current context, records a new branch and makes it
// the active branch.
func (m *Manager) Create(name, topic string, snapshot ContextSnapshot) *Branch {
	if snapshot.TakenAt.IsZero() {
		snapshot.TakenAt = m.now()
	}

	b := &Branch{
		ID:             uuid.NewString(),
		ConversationID: m.conversationID,
		Name:           name,
		Topic:          topic,
		Snapshot:       snapshot,
		MessageIDs:     []string{},
		Active:         true,
		CreatedAt:      m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.branches[m.activeID]; ok {
		prev.Active = false
	}
	m.branches[b.ID] = b
	m.activeID = b.ID
	return b.clone()
}

// SwitchTo activates a branch, or returns to the main line when branchID is
// empty. Switching to an unknown branch is a no-op.
func (m *Manager) SwitchTo(branchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if branchID == "" {
		if prev, ok := m.branches[m.activeID]; ok {
			prev.Active = false
		}
		m.activeID = ""
		return
	}

	b, ok := m.branches[branchID]
	if !ok {
		m.logger.Warn("branch: switch to unknown branch ignored",
			"conversation_id", m.conversationID, "branch_id", branchID)
		return
	}
	if prev, ok := m.branches[m.activeID]; ok {
		prev.Active = false
	}
	b.Active = true
	m.activeID = branchID
}

// RecordMessage appends a message to the active branch, if any. Merged
// branches never grow.
func (m *Manager) RecordMessage(messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.branches[m.activeID]
	if !ok || b.Merged {
		return
	}
	b.MessageIDs = append(b.MessageIDs, messageID)
}

// Merge marks a branch merged at the given message and deactivates it.
// Unknown or already-merged branches are no-ops.
func (m *Manager) Merge(branchID, atMessageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.branches[branchID]
	if !ok {
		m.logger.Warn("branch: merge of unknown branch ignored",
			"conversation_id", m.conversationID, "branch_id", branchID)
		return
	}
	if b.Merged {
		m.logger.Warn("branch: merge of merged branch ignored",
			"conversation_id", m.conversationID, "branch_id", branchID)
		return
	}

	b.Merged = true
	b.MergedAtID = atMessageID
	b.Active = false
	if m.activeID == branchID {
		m.activeID = ""
	}
}

// Delete removes an unmerged branch. Deleting a merged or unknown branch is
// a no-op.
func (m *Manager) Delete(branchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.branches[branchID]
	if !ok {
		m.logger.Warn("branch: delete of unknown branch ignored",
			"conversation_id", m.conversationID, "branch_id", branchID)
		return
	}
	if b.Merged {
		m.logger.Warn("branch: delete of merged branch ignored",
			"conversation_id", m.conversationID, "branch_id", branchID)
		return
	}

	delete(m.branches, branchID)
	if m.activeID == branchID {
		m.activeID = ""
	}
}

// Active returns a copy of the active branch, or nil when on the main line.
func (m *Manager) Active() *Branch {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.branches[m.activeID]
	if !ok {
		return nil
	}
	return b.clone()
}

// Get returns a copy of one branch.
func (m *Manager) Get(branchID string) (*Branch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.branches[branchID]
	if !ok {
		return nil, false
	}
	return b.clone(), true
}

// Branches returns copies of all branches, newest first.
func (m *Manager) Branches() []*Branch {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Branch, 0, len(m.branches))
	for _, b := range m.branches {
		out = append(out, b.clone())
	}
	sortBranches(out)
	return out
}

func sortBranches(branches []*Branch) {
	sort.Slice(branches, func(i, j int) bool {
		if !branches[i].CreatedAt.Equal(branches[j].CreatedAt) {
			return branches[i].CreatedAt.After(branches[j].CreatedAt)
		}
		return branches[i].ID < branches[j].ID
	})
}

// State is the persistable branch state for one conversation.
type State struct {
	ConversationID string    `json:"conversation_id"`
	Branches       []*Branch `json:"branches"`
	ActiveID       string    `json:"active_id"`
}

// Snapshot captures the full branch state for persistence.
func (m *Manager) Snapshot() *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	branches := make([]*Branch, 0, len(m.branches))
	for _, b := range m.branches {
		branches = append(branches, b.clone())
	}
	sortBranches(branches)
	return &State{
		ConversationID: m.conversationID,
		Branches:       branches,
		ActiveID:       m.activeID,
	}
}

// Restore replaces the manager's state with a persisted snapshot.
func (m *Manager) Restore(state *State) {
	if state == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.branches = make(map[string]*Branch, len(state.Branches))
	for _, b := range state.Branches {
		m.branches[b.ID] = b.clone()
	}
	m.activeID = ""
	if _, ok := m.branches[state.ActiveID]; ok {
		m.activeID = state.ActiveID
	}
}
