package eventbus

import "fmt"

const (
	// SubjectPrefix is the canonical prefix for context lifecycle events.
	SubjectPrefix = "mnemos.v1.context"
)

// EventType names the context engine lifecycle events.
type EventType string

const (
	EventMessageProcessed    EventType = "message.processed"
	EventThemeExtracted      EventType = "theme.extracted"
	EventShiftDetected       EventType = "shift.detected"
	EventBranchCreated       EventType = "branch.created"
	EventBranchMerged        EventType = "branch.merged"
	EventBranchDeleted       EventType = "branch.deleted"
	EventRefsPruned          EventType = "refs.pruned"
	EventConversationDeleted EventType = "conversation.deleted"
)

// ContextSubject returns the canonical subject for one conversation event.
func ContextSubject(conversationID string, eventType EventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, sanitizeSegment(conversationID), sanitizeSegment(string(eventType)))
}

// ConversationWildcard returns the wildcard subject covering every event of
// one conversation.
func ConversationWildcard(conversationID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, sanitizeSegment(conversationID))
}

// AllWildcard returns the wildcard subject covering every context event.
func AllWildcard() string {
	return SubjectPrefix + ".>"
}

func sanitizeSegment(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
