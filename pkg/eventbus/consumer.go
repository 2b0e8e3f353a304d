package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
)

// EnvelopeConsumer decodes envelopes and suppresses duplicate deliveries by
// event identity.
type EnvelopeConsumer struct {
	mu         sync.Mutex
	seenEvents map[string]struct{}
}

// NewEnvelopeConsumer creates a deduplicating consumer.
func NewEnvelopeConsumer() *EnvelopeConsumer {
	return &EnvelopeConsumer{
		seenEvents: make(map[string]struct{}),
	}
}

// Decode decodes raw event bytes, validates envelope identity fields, and
// reports whether the event was already delivered.
func (c *EnvelopeConsumer) Decode(raw []byte) (Envelope, bool, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, false, fmt.Errorf("eventbus: invalid envelope json: %w", err)
	}
	if envelope.EventID == "" || envelope.EventType == "" || envelope.SchemaVersion == "" {
		return Envelope{}, false, fmt.Errorf("eventbus: missing required envelope fields")
	}
	if envelope.ConversationID == "" || envelope.Sequence <= 0 {
		return Envelope{}, false, fmt.Errorf("eventbus: missing conversation identity or sequence")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.seenEvents[envelope.EventID]; exists {
		return envelope, true, nil
	}
	c.seenEvents[envelope.EventID] = struct{}{}
	return envelope, false, nil
}
