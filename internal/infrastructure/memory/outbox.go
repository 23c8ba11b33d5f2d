package memory

import (
	"context"

	"busticket/internal/domain/outbox"
)

type OutboxRepository struct {
	s *Store
}

func (s *Store) OutboxRepository() *OutboxRepository {
	return &OutboxRepository{s: s}
}

func (r *OutboxRepository) Create(ctx context.Context, e *outbox.Event) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failOutboxCreate != nil {
		return s.failOutboxCreate
	}
	stored := *e
	if stored.Status == "" {
		stored.Status = outbox.StatusNew
	}
	s.outbox = append(s.outbox, &stored)
	onRollback(ctx, func() {
		for i, ev := range s.outbox {
			if ev == &stored {
				s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *OutboxRepository) FetchBatch(ctx context.Context, limit int) ([]*outbox.Event, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*outbox.Event
	for _, e := range s.outbox {
		if len(out) >= limit {
			break
		}
		if e.Status != outbox.StatusNew {
			continue
		}
		e.Status = outbox.StatusProcessing
		claimed := *e
		out = append(out, &claimed)
	}
	return out, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, ids []string) error {
	r.setStatus(ids, outbox.StatusProcessed)
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, ids []string) error {
	r.setStatus(ids, outbox.StatusNew)
	return nil
}

func (r *OutboxRepository) setStatus(ids []string, status string) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for _, e := range s.outbox {
		if _, ok := want[e.ID]; ok {
			e.Status = status
		}
	}
}

// Events returns a snapshot of the outbox in insertion order.
func (r *OutboxRepository) Events() []outbox.Event {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]outbox.Event, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, *e)
	}
	return out
}

type InboxRepository struct {
	s *Store
}

func (s *Store) InboxRepository() *InboxRepository {
	return &InboxRepository{s: s}
}

func (r *InboxRepository) SaveIfNotExists(ctx context.Context, consumer, eventID, eventType, correlationID string) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := consumer + "/" + eventID
	if _, ok := s.inbox[key]; ok {
		return false, nil
	}
	s.inbox[key] = struct{}{}
	onRollback(ctx, func() { delete(s.inbox, key) })
	return true, nil
}
