package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message []byte) error
	// Subscribe delivers messages until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Envelope is the wire form of a relayed domain event.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// ChannelPrefix namespaces every channel the portal publishes on.
const ChannelPrefix = "clinic."

// Channel returns the channel an event type is published on.
func Channel(eventType string) string {
	return ChannelPrefix + eventType
}
