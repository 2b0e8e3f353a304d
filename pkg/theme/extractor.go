package theme

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnemos/mnemos/pkg/conversation"
	"github.com/mnemos/mnemos/pkg/embedding"
	"github.com/mnemos/mnemos/pkg/entity"
)

// Config holds theme extraction parameters.
type Config struct {
	// MinMessages is the minimum message count before extraction runs and
	// the minimum cluster size that becomes a theme.
	MinMessages int

	// SimilarityThreshold is the consecutive-message cosine similarity a
	// cluster must sustain to keep growing.
	SimilarityThreshold float64

	// MaxClusterSize caps how many messages one theme may absorb.
	MaxClusterSize int
}

// DefaultConfig returns the default extraction parameters.
func DefaultConfig() Config {
	return Config{
		MinMessages:         3,
		SimilarityThreshold: 0.5,
		MaxClusterSize:      10,
	}
}

const (
	topicWordLimit  = 5
	topicMaxLen     = 50
	keyPointLimit   = 5
	keyPointMaxLen  = 120
	summaryEntities = 5
)

// TextEmbedder is the minimal embedding interface the extractor needs.
// *embedding.Embedder satisfies it.
type TextEmbedder interface {
	Embed(text string) []float32
}

// Extractor clusters message sequences into conversation themes.
type Extractor struct {
	cfg      Config
	embedder TextEmbedder
	now      func() time.Time
}

// NewExtractor creates a theme extractor.
func NewExtractor(cfg Config, embedder TextEmbedder) *Extractor {
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = DefaultConfig().MinMessages
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if cfg.MaxClusterSize <= 0 {
		cfg.MaxClusterSize = DefaultConfig().MaxClusterSize
	}
	return &Extractor{cfg: cfg, embedder: embedder, now: time.Now}
}

// ExtractThemes clusters the message sequence by walking consecutive
// messages and growing the current cluster while embedding similarity stays
// above the threshold. Only clusters of at least MinMessages become themes.
// Fewer than MinMessages total yields no themes.
func (e *Extractor) ExtractThemes(conversationID string, messages []conversation.Message) []*ConversationTheme {
	if len(messages) < e.cfg.MinMessages {
		return nil
	}

	vectors := make([][]float32, len(messages))
	for i, m := range messages {
		vectors[i] = e.embedder.Embed(m.Content)
	}

	var themes []*ConversationTheme
	clusterStart := 0
	flush := func(end int) {
		if end-clusterStart >= e.cfg.MinMessages {
			themes = append(themes, e.buildTheme(conversationID, messages[clusterStart:end]))
		}
		clusterStart = end
	}

	for i := 1; i < len(messages); i++ {
		sim := embedding.CosineSimilarity(vectors[i-1], vectors[i])
		if sim < e.cfg.SimilarityThreshold || i-clusterStart >= e.cfg.MaxClusterSize {
			flush(i)
		}
	}
	flush(len(messages))

	return themes
}

// buildTheme synthesizes a theme from one cluster of messages.
func (e *Extractor) buildTheme(conversationID string, cluster []conversation.Message) *ConversationTheme {
	var combined strings.Builder
	for _, m := range cluster {
		combined.WriteString(m.Content)
		combined.WriteString("\n")
	}
	content := combined.String()

	extracted := entity.ExtractEntities(content)
	entities := make([]string, 0, len(extracted))
	for _, ex := range extracted {
		entities = append(entities, ex.Name)
	}

	keyPoints := make([]string, 0, keyPointLimit)
	for _, m := range cluster {
		if len(keyPoints) >= keyPointLimit {
			break
		}
		if kp := m.FirstSentence(keyPointMaxLen); kp != "" {
			keyPoints = append(keyPoints, kp)
		}
	}

	ids := make([]string, len(cluster))
	for i, m := range cluster {
		ids[i] = m.ID
	}

	now := e.now()
	return &ConversationTheme{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Topic:          TopicLabel(cluster[0].Content),
		Content:        e.summarize(cluster, entities),
		Entities:       entities,
		KeyPoints:      keyPoints,
		Embedding:      e.embedder.Embed(content),
		MessageIDs:     ids,
		Relevance:      1.0,
		CreatedAt:      now,
		LastAccessed:   now,
	}
}

// summarize builds the short synthesized summary: message count, top
// entities, and the first and last user-authored excerpts.
func (e *Extractor) summarize(cluster []conversation.Message, entities []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Discussion spanning %d messages", len(cluster))

	top := entities
	if len(top) > summaryEntities {
		top = top[:summaryEntities]
	}
	if len(top) > 0 {
		fmt.Fprintf(&b, " about %s", strings.Join(top, ", "))
	}
	b.WriteString(".")

	var first, last string
	for _, m := range cluster {
		if m.Role != conversation.RoleUser {
			continue
		}
		excerpt := m.FirstSentence(keyPointMaxLen)
		if first == "" {
			first = excerpt
		}
		last = excerpt
	}
	if first != "" {
		fmt.Fprintf(&b, " Opened with: %s", first)
	}
	if last != "" && last != first {
		fmt.Fprintf(&b, " Most recently: %s", last)
	}
	return b.String()
}

// TopicLabel derives a short topic label from the first few words of text,
// truncated with an ellipsis beyond the length cap.
func TopicLabel(text string) string {
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) > topicWordLimit {
		words = words[:topicWordLimit]
	}
	label := strings.Join(words, " ")
	runes := []rune(label)
	if len(runes) > topicMaxLen {
		label = string(runes[:topicMaxLen]) + "..."
	}
	return label
}

// ToSemanticNode lifts a theme into the richer SemanticNode shape at the
// "themes" tier. The lift is lossless: every theme field lands in a node
// field and structured lists start empty rather than nil.
func ToSemanticNode(t *ConversationTheme) *SemanticNode {
	return &SemanticNode{
		ID:                 uuid.NewString(),
		ConversationID:     t.ConversationID,
		Concept:            t.Topic,
		Content:            t.Content,
		Embedding:          t.Embedding,
		Entities:           append([]string{}, t.Entities...),
		Decisions:          []Decision{},
		Todos:              []TodoItem{},
		FileRefs:           []string{},
		CodeRefs:           []string{},
		WorkflowRefs:       []string{},
		TaskRefs:           []string{},
		SourceMessageCount: len(t.MessageIDs),
		Relevance:          t.Relevance,
		Tier:               TierThemes,
		CreatedAt:          t.CreatedAt,
	}
}
