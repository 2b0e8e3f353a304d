// Package branch detects topic shifts in the live message stream and
// manages conversation branches: advisory side-tracks with a context
// snapshot, merged back or discarded later. Branch management never fails a
// caller; invalid operations log a warning and do nothing.
package branch

import (
	"time"
)

// ShiftType classifies how far a new message drifts from the recent topic.
type ShiftType string

const (
	NoShift    ShiftType = "no_shift"
	MinorShift ShiftType = "minor_shift"
	MajorShift ShiftType = "major_shift"
)

// TopicShift is the outcome of drift detection for one new message.
type TopicShift struct {
	Type ShiftType `json:"type"`

	// Confidence grows as similarity to the recent topic falls.
	Confidence float64 `json:"confidence"`

	// NewTopic is a short label derived from the new message.
	NewTopic string `json:"new_topic,omitempty"`

	// SuggestedName is a candidate branch name, set on major shifts.
	SuggestedName string `json:"suggested_name,omitempty"`
}

// ContextSnapshot captures the working context at branch-creation time so a
// new branch starts without losing the parent's state.
type ContextSnapshot struct {
	MessageCount   int       `json:"message_count"`
	LastMessageID  string    `json:"last_message_id"`
	Summary        string    `json:"summary"`
	Entities       []string  `json:"entities"`
	ActiveThemeIDs []string  `json:"active_theme_ids"`
	FileRefIDs     []string  `json:"file_ref_ids"`
	TakenAt        time.Time `json:"taken_at"`
}

// Branch is one conversation side-track. Once merged, a branch is immutable.
type Branch struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Name           string          `json:"name"`
	Topic          string          `json:"topic"`
	Snapshot       ContextSnapshot `json:"snapshot"`
	MessageIDs     []string        `json:"message_ids"`
	Active         bool            `json:"active"`
	Merged         bool            `json:"merged"`
	MergedAtID     string          `json:"merged_at_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (b *Branch) clone() *Branch {
	cp := *b
	cp.MessageIDs = append([]string(nil), b.MessageIDs...)
	cp.Snapshot.Entities = append([]string(nil), b.Snapshot.Entities...)
	cp.Snapshot.ActiveThemeIDs = append([]string(nil), b.Snapshot.ActiveThemeIDs...)
	cp.Snapshot.FileRefIDs = append([]string(nil), b.Snapshot.FileRefIDs...)
	return &cp
}
