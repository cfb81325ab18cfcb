package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire shape of every workflow event on the bus.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload as an event of the given type.
func NewEnvelope(eventType string, payload any, at time.Time) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, errors.New("event type is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC(),
		Payload:    raw,
	}, nil
}

// Publish encodes an event envelope and hands it to the client keyed by key.
func Publish(ctx context.Context, client Client, key, eventType string, payload any) error {
	if client == nil {
		return nil
	}
	env, err := NewEnvelope(eventType, payload, time.Now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return client.Publish(ctx, []byte(key), body)
}

// Decode parses the envelope carried by a consumed message.
func Decode(msg Message) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("envelope without type")
	}
	return env, nil
}

// Bind decodes the payload into dst.
func (e Envelope) Bind(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}
