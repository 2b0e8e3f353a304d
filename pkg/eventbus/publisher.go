package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Transport publishes bytes to a subject.
type Transport interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// Telemetry records publish behavior.
type Telemetry interface {
	RecordPublish(status string)
	RecordRetry()
}

type nopTelemetry struct{}

func (nopTelemetry) RecordPublish(status string) {}
func (nopTelemetry) RecordRetry()                {}

// RetryConfig controls retry/backoff behavior for publish attempts.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2,
	}
}

// ContextEvent is the publish input for context lifecycle updates.
type ContextEvent struct {
	EventType      EventType
	ConversationID string
	Schema         string
	Payload        any
}

// Publisher publishes canonical context events with per-conversation
// sequencing.
type Publisher struct {
	transport Transport
	retry     RetryConfig
	telemetry Telemetry

	mu        sync.Mutex
	sequences map[string]int64
}

// NewPublisher creates a context event publisher.
func NewPublisher(transport Transport, retry RetryConfig, telemetry Telemetry) (*Publisher, error) {
	if transport == nil {
		return nil, fmt.Errorf("eventbus: transport cannot be nil")
	}
	if retry.MaxRetries < 0 {
		return nil, fmt.Errorf("eventbus: max retries cannot be negative")
	}
	if retry.InitialBackoff <= 0 || retry.MaxBackoff <= 0 || retry.BackoffFactor < 1 {
		return nil, fmt.Errorf("eventbus: invalid retry config")
	}
	if telemetry == nil {
		telemetry = nopTelemetry{}
	}
	return &Publisher{
		transport: transport,
		retry:     retry,
		telemetry: telemetry,
		sequences: make(map[string]int64),
	}, nil
}

// Publish publishes a context event with retry/backoff.
func (p *Publisher) Publish(ctx context.Context, event ContextEvent) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	if event.EventType == "" {
		return Envelope{}, fmt.Errorf("eventbus: event type cannot be empty")
	}
	if event.ConversationID == "" {
		return Envelope{}, fmt.Errorf("eventbus: conversation id cannot be empty")
	}

	envelope, err := BuildEnvelope(BuildEnvelopeInput{
		EventType:      event.EventType,
		SchemaVersion:  event.Schema,
		ConversationID: event.ConversationID,
		Sequence:       p.nextSequence(event.ConversationID),
		Payload:        event.Payload,
	})
	if err != nil {
		return Envelope{}, err
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return Envelope{}, fmt.Errorf("eventbus: marshal envelope: %w", err)
	}

	subject := ContextSubject(event.ConversationID, event.EventType)
	backoff := p.retry.InitialBackoff
	var publishErr error
	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		publishErr = p.transport.Publish(ctx, subject, body)
		if publishErr == nil {
			p.telemetry.RecordPublish("success")
			return envelope, nil
		}
		if attempt == p.retry.MaxRetries {
			break
		}
		p.telemetry.RecordRetry()

		select {
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, p.retry.MaxBackoff, p.retry.BackoffFactor)
	}

	p.telemetry.RecordPublish("failed")
	return Envelope{}, fmt.Errorf("eventbus: publish failed: %w", publishErr)
}

func (p *Publisher) nextSequence(conversationID string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sequences[conversationID]++
	return p.sequences[conversationID]
}

func nextBackoff(current, max time.Duration, factor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		return max
	}
	return next
}
