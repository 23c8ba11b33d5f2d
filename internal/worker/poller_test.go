package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	domainEvent "busticket/internal/domain/event"
	"busticket/internal/domain/outbox"
	"busticket/internal/infrastructure/memory"
)

type fakePublisher struct {
	mu   sync.Mutex
	fail map[string]bool
	sent []domainEvent.Message
	keys []string
}

func (p *fakePublisher) SendMessage(ctx context.Context, key, value []byte) error {
	var msg domainEvent.Message
	if err := json.Unmarshal(value, &msg); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[msg.ID] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, msg)
	p.keys = append(p.keys, string(key))
	return nil
}

func (p *fakePublisher) GetTopic() string { return "ticket-events" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addEvent(t *testing.T, repo outbox.Repository, id, correlationID string) {
	t.Helper()
	err := repo.Create(context.Background(), &outbox.Event{
		ID:            id,
		EventType:     domainEvent.TypeTicketIssued,
		Payload:       []byte(`{"ticket_id":"` + correlationID + `"}`),
		Status:        outbox.StatusNew,
		CorrelationID: correlationID,
		Producer:      "ticket-api",
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func statuses(repo *memory.OutboxRepository) map[string]string {
	out := map[string]string{}
	for _, e := range repo.Events() {
		out[e.ID] = e.Status
	}
	return out
}

func TestOutboxPollerPublishesAndMarks(t *testing.T) {
	store := memory.NewStore()
	repo := store.OutboxRepository()
	addEvent(t, repo, "ev-1", "t-1")
	addEvent(t, repo, "ev-2", "")
	addEvent(t, repo, "ev-3", "t-3")

	pub := &fakePublisher{fail: map[string]bool{"ev-3": true}}
	p := NewOutboxPoller(repo, pub, PollerConfig{BatchSize: 10}, testLogger())

	if err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}

	if len(pub.sent) != 2 {
		t.Fatalf("published %d, want 2", len(pub.sent))
	}
	if pub.keys[0] != "t-1" || pub.keys[1] != "ev-2" {
		t.Errorf("keys = %v, want [t-1 ev-2]", pub.keys)
	}
	if string(pub.sent[0].Payload) != `{"ticket_id":"t-1"}` || pub.sent[0].Type != domainEvent.TypeTicketIssued {
		t.Errorf("message = %+v", pub.sent[0])
	}

	got := statuses(repo)
	want := map[string]string{"ev-1": outbox.StatusProcessed, "ev-2": outbox.StatusProcessed, "ev-3": outbox.StatusNew}
	for id, st := range want {
		if got[id] != st {
			t.Errorf("status[%s] = %q, want %q", id, got[id], st)
		}
	}

	// The failed event is picked up again once the broker recovers.
	pub.fail = nil
	if err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if got := statuses(repo)["ev-3"]; got != outbox.StatusProcessed {
		t.Errorf("status[ev-3] after retry = %q, want processed", got)
	}
}

func TestOutboxPollerRespectsBatchSize(t *testing.T) {
	store := memory.NewStore()
	repo := store.OutboxRepository()
	for _, id := range []string{"ev-1", "ev-2", "ev-3"} {
		addEvent(t, repo, id, id)
	}

	pub := &fakePublisher{}
	p := NewOutboxPoller(repo, pub, PollerConfig{BatchSize: 2}, testLogger())
	if err := p.processBatch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.sent) != 2 {
		t.Errorf("published %d, want 2", len(pub.sent))
	}
}

func TestOutboxPollerRunStops(t *testing.T) {
	store := memory.NewStore()
	repo := store.OutboxRepository()
	addEvent(t, repo, "ev-1", "t-1")

	pub := &fakePublisher{}
	p := NewOutboxPoller(repo, pub, PollerConfig{Interval: 5 * time.Millisecond}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for statuses(repo)["ev-1"] != outbox.StatusProcessed {
		select {
		case <-deadline:
			t.Fatal("event was not published")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
}
