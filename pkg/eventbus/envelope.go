// Package eventbus carries context-engine lifecycle events (message
// processed, theme extracted, topic shift, branch changes) over an
// in-process pub/sub bus, so API streaming and observers stay decoupled
// from the engine.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the initial context event schema.
	SchemaVersionV1 = "v1"
)

// Envelope is the canonical context event envelope. Sequence is
// per-conversation and strictly increasing, matching the engine's
// per-conversation ordering guarantee.
type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      EventType       `json:"event_type"`
	Timestamp      time.Time       `json:"timestamp"`
	SchemaVersion  string          `json:"schema_version"`
	ConversationID string          `json:"conversation_id"`
	Sequence       int64           `json:"sequence"`
	Payload        json.RawMessage `json:"payload"`
}

// BuildEnvelopeInput is used to construct a new envelope.
type BuildEnvelopeInput struct {
	EventType      EventType
	SchemaVersion  string
	ConversationID string
	Sequence       int64
	Payload        any
}

// BuildEnvelope creates a canonical envelope with generated event identity.
func BuildEnvelope(input BuildEnvelopeInput) (Envelope, error) {
	if input.EventType == "" {
		return Envelope{}, fmt.Errorf("eventbus: event type is required")
	}
	if input.ConversationID == "" {
		return Envelope{}, fmt.Errorf("eventbus: conversation id is required")
	}
	if input.Sequence <= 0 {
		return Envelope{}, fmt.Errorf("eventbus: sequence must be > 0")
	}
	if input.SchemaVersion == "" {
		input.SchemaVersion = SchemaVersionV1
	}

	payload, err := json.Marshal(input.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("eventbus: marshal payload: %w", err)
	}

	return Envelope{
		EventID:        uuid.NewString(),
		EventType:      input.EventType,
		Timestamp:      time.Now().UTC(),
		SchemaVersion:  input.SchemaVersion,
		ConversationID: input.ConversationID,
		Sequence:       input.Sequence,
		Payload:        payload,
	}, nil
}
