package amqp

import (
	"encoding/json"
	"time"

	"ipvops/internal/audit"
)

// MessageTypeFetchEvent tags messages carrying an audit.Event.
const MessageTypeFetchEvent = "fetch_event"

// FetchEventMessage wraps one audit event for the broker.
type FetchEventMessage struct {
	Type        string      `json:"type"`
	Event       audit.Event `json:"event"`
	PublishedAt time.Time   `json:"published_at"`
}

// NewFetchEventMessage wraps e, stamped with the current time.
func NewFetchEventMessage(e audit.Event) *FetchEventMessage {
	return &FetchEventMessage{
		Type:        MessageTypeFetchEvent,
		Event:       e,
		PublishedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *FetchEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FetchEventMessageFromJSON decodes a message published by PublishFetchEvent.
func FetchEventMessageFromJSON(data []byte) (*FetchEventMessage, error) {
	var msg FetchEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
