package inbox

import (
	"context"
	"time"
)

// Event is a consumer-side record used for deduplication (Inbox pattern).
// Each consumer stores processed event IDs with metadata.
type Event struct {
	Consumer      string    `json:"consumer"`
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	CorrelationID string    `json:"correlation_id"`
	ProcessedAt   time.Time `json:"processed_at"`
}

type Repository interface {
	// SaveIfNotExists returns true if the event was saved (is new), false if it already existed.
	SaveIfNotExists(ctx context.Context, consumer, eventID, eventType, correlationID string) (bool, error)
}
