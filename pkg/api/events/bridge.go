package events

import (
	"context"
	"encoding/json"

	"github.com/mnemos/mnemos/pkg/eventbus"
)

type bridgeLogger interface {
	Warn(msg string, args ...any)
}

// Bridge consumes context events from the bus and republishes them to
// in-process broadcast subscribers. Duplicate deliveries are suppressed by
// envelope identity.
type Bridge struct {
	bus         *eventbus.MemoryBus
	broadcaster *Broadcaster
	consumer    *eventbus.EnvelopeConsumer
	logger      bridgeLogger
}

// NewBridge creates a bus-to-broadcaster bridge.
func NewBridge(bus *eventbus.MemoryBus, broadcaster *Broadcaster, log bridgeLogger) *Bridge {
	return &Bridge{
		bus:         bus,
		broadcaster: broadcaster,
		consumer:    eventbus.NewEnvelopeConsumer(),
		logger:      log,
	}
}

// Run forwards every context event until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	sub, err := b.bus.Subscribe(eventbus.AllWildcard(), 64)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Bridge) forward(raw []byte) {
	envelope, duplicate, err := b.consumer.Decode(raw)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("dropping malformed context event", "error", err)
		}
		return
	}
	if duplicate {
		return
	}

	var payload any
	if len(envelope.Payload) > 0 {
		_ = json.Unmarshal(envelope.Payload, &payload)
	}

	b.broadcaster.Broadcast(Event{
		Type:      string(envelope.EventType),
		Timestamp: envelope.Timestamp,
		Payload: map[string]any{
			"conversation_id": envelope.ConversationID,
			"sequence":        envelope.Sequence,
			"data":            payload,
		},
	})
}
