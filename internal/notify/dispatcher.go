package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"busticket/internal/domain/event"
	"busticket/internal/domain/notification"
	"busticket/internal/domain/outbox"

	"github.com/google/uuid"
)

// OutboxDispatcher queues a notification as a TicketIssued outbox event. The
// relay publishes it to Kafka and the notifier delivers it.
type OutboxDispatcher struct {
	outbox   outbox.Repository
	producer string
}

func NewOutboxDispatcher(repo outbox.Repository, producer string) *OutboxDispatcher {
	return &OutboxDispatcher{outbox: repo, producer: producer}
}

func (d *OutboxDispatcher) Dispatch(ctx context.Context, n notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	e := &outbox.Event{
		ID:            uuid.New().String(),
		EventType:     event.TypeTicketIssued,
		Payload:       payload,
		Status:        outbox.StatusNew,
		CorrelationID: n.TicketID,
		Producer:      d.producer,
		CreatedAt:     time.Now().UTC(),
	}
	if err := d.outbox.Create(ctx, e); err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}
	return nil
}
