package events

import (
	"encoding/json"
	"fmt"
	"time"

	"lending/internal/domain"
)

// Envelope is the wire form of a domain event handed to external brokers.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredOn time.Time       `json:"occurred_on"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEnvelope(event domain.Event) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event.EventType(), err)
	}
	return Envelope{
		EventID:    event.EventID(),
		EventType:  event.EventType(),
		OccurredOn: event.OccurredOn(),
		Payload:    payload,
	}, nil
}

func encode(event domain.Event) ([]byte, error) {
	envelope, err := NewEnvelope(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}
