// Package theme clusters conversation messages into coherent themes by
// embedding similarity and lifts themes into tiered semantic nodes.
package theme

import (
	"time"
)

// ConversationTheme is a cluster of topically similar messages with a
// synthesized summary and extracted entities.
type ConversationTheme struct {
	// ID is the unique identifier for this theme.
	ID string `json:"id"`

	// ConversationID identifies the owning conversation.
	ConversationID string `json:"conversation_id"`

	// Topic is a short label derived from the first clustered message.
	Topic string `json:"topic"`

	// Content is the synthesized summary of the cluster.
	Content string `json:"content"`

	// Entities are entity names extracted from the clustered messages.
	Entities []string `json:"entities"`

	// KeyPoints holds one truncated sentence per contributing message,
	// up to a small cap.
	KeyPoints []string `json:"key_points"`

	// Embedding is the vector of the combined cluster content.
	Embedding []float32 `json:"embedding,omitempty"`

	// MessageIDs are the contributing messages in order.
	MessageIDs []string `json:"message_ids"`

	// Relevance is the theme's current relevance score.
	Relevance float64 `json:"relevance"`

	// CreatedAt and LastAccessed track the theme lifecycle.
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Tier is the compression level of a semantic node.
type Tier string

const (
	TierImmediate  Tier = "immediate"
	TierThemes     Tier = "themes"
	TierGraph      Tier = "graph"
	TierCompressed Tier = "compressed"
	TierArchived   Tier = "archived"
)

// Decision is a recorded decision attached to a semantic node. Once
// recorded it is never silently dropped, whatever the node's tier.
type Decision struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	DecidedAt time.Time `json:"decided_at"`
}

// TodoItem is an action item attached to a semantic node.
type TodoItem struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// SemanticNode is a richer compression unit than a theme: it carries
// structured decisions, todos and file/code/workflow/task references in
// addition to theme-like content. Structured lists are empty-by-default
// containers rather than nullable fields, so invariants stay checkable.
// The tier indicates how aggressively the content has been compressed;
// content must remain reconstructable to at least the tier's fidelity.
type SemanticNode struct {
	// ID is the unique identifier for this node.
	ID string `json:"id"`

	// ConversationID identifies the owning conversation.
	ConversationID string `json:"conversation_id"`

	// Concept is the node's topic label.
	Concept string `json:"concept"`

	// Content is the compressed content.
	Content string `json:"content"`

	// Embedding is the vector of the content.
	Embedding []float32 `json:"embedding,omitempty"`

	// Entities are entity names relevant to the node.
	Entities []string `json:"entities"`

	// Decisions and Todos are structured records that survive compression.
	Decisions []Decision `json:"decisions"`
	Todos     []TodoItem `json:"todos"`

	// FileRefs, CodeRefs, WorkflowRefs and TaskRefs point at related
	// artifacts by identifier.
	FileRefs     []string `json:"file_refs"`
	CodeRefs     []string `json:"code_refs"`
	WorkflowRefs []string `json:"workflow_refs"`
	TaskRefs     []string `json:"task_refs"`

	// SourceMessageCount is how many messages fed this node.
	SourceMessageCount int `json:"source_message_count"`

	// Relevance is the node's current relevance score.
	Relevance float64 `json:"relevance"`

	// Tier is the node's compression tier.
	Tier Tier `json:"tier"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}
