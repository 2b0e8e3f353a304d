package events

import (
	"sync"
	"time"
)

// Event is the canonical event payload broadcast to websocket subscribers.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Broadcaster broadcasts events to in-process subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a broadcaster instance.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe subscribes to events with a buffered channel.
func (b *Broadcaster) Subscribe(buffer int) chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Broadcast broadcasts a generic event to all subscribers.
func (b *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]chan Event, 0, len(b.subscribers))
	for ch := range b.subscribers {
		subs = append(subs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Drop on overflow to keep broadcasters non-blocking.
		}
	}
}

// BroadcastMessageProcessed emits a message pipeline completion event.
func (b *Broadcaster) BroadcastMessageProcessed(
	conversationID, messageID, shiftType string,
	entityCount int,
	processedAt time.Time,
) {
	b.Broadcast(Event{
		Type: "message.processed",
		Payload: map[string]any{
			"conversation_id": conversationID,
			"message_id":      messageID,
			"shift":           shiftType,
			"entities":        entityCount,
			"processed_at":    processedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

// BroadcastTopicShift emits a detected topic drift event.
func (b *Broadcaster) BroadcastTopicShift(
	conversationID, shiftType, suggestedBranch string,
	confidence float64,
) {
	payload := map[string]any{
		"conversation_id": conversationID,
		"shift":           shiftType,
		"confidence":      confidence,
	}
	if suggestedBranch != "" {
		payload["suggested_branch"] = suggestedBranch
	}

	b.Broadcast(Event{
		Type:    "shift.detected",
		Payload: payload,
	})
}

// BroadcastThemesExtracted emits a theme refresh event.
func (b *Broadcaster) BroadcastThemesExtracted(conversationID string, count int) {
	b.Broadcast(Event{
		Type: "theme.extracted",
		Payload: map[string]any{
			"conversation_id": conversationID,
			"count":           count,
		},
	})
}

// BroadcastBranchChanged emits a branch lifecycle event. The event type must
// be one of branch.created, branch.merged or branch.deleted.
func (b *Broadcaster) BroadcastBranchChanged(eventType, conversationID, branchID, name string) {
	payload := map[string]any{
		"conversation_id": conversationID,
		"branch_id":       branchID,
	}
	if name != "" {
		payload["name"] = name
	}

	b.Broadcast(Event{
		Type:    eventType,
		Payload: payload,
	})
}

// Close closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}
