package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"busticket/internal/domain/outbox"
	"busticket/internal/domain/ticket"
	"busticket/internal/domain/transaction"
)

var (
	errBoom = errors.New("boom")
	now     = time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
)

func newTicket(id, paymentID string) *ticket.Ticket {
	return &ticket.Ticket{
		ID:        id,
		Number:    "TKT" + id,
		PaymentID: paymentID,
		Status:    ticket.StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func TestNestedRollbackKeepsOuterWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.Create(ctx, newTicket("t1", "pay_1")); err != nil {
			return err
		}
		inner := s.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.TransactionRepository().Create(ctx, &transaction.Transaction{PaymentID: "pay_1"}); err != nil {
				return err
			}
			return errBoom
		})
		if !errors.Is(inner, errBoom) {
			t.Errorf("inner err = %v, want boom", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTransaction: %v", err)
	}

	if n := len(s.Tickets()); n != 1 {
		t.Errorf("tickets = %d, want 1", n)
	}
	if n := len(s.Transactions()); n != 0 {
		t.Errorf("transactions = %d, want 0 after inner rollback", n)
	}
}

func TestOuterRollbackRevertsCommittedInner(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.Create(ctx, newTicket("t1", "pay_1")); err != nil {
			return err
		}
		if err := s.WithinTransaction(ctx, func(ctx context.Context) error {
			return s.OutboxRepository().Create(ctx, &outbox.Event{ID: "e1", EventType: "TicketIssued"})
		}); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}

	if n := len(s.Tickets()); n != 0 {
		t.Errorf("tickets = %d, want 0", n)
	}
	if n := len(s.OutboxRepository().Events()); n != 0 {
		t.Errorf("outbox events = %d, want 0", n)
	}
	if got, _ := s.GetByPaymentID(ctx, "pay_1"); got != nil {
		t.Error("payment index survived rollback")
	}
}

func TestCreateIsIdempotentPerPayment(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	created, err := s.Create(ctx, newTicket("t1", "pay_1"))
	if err != nil || !created {
		t.Fatalf("first Create = %v, %v", created, err)
	}
	created, err = s.Create(ctx, newTicket("t2", "pay_1"))
	if err != nil || created {
		t.Fatalf("second Create = %v, %v, want false, nil", created, err)
	}

	got, _ := s.GetByPaymentID(ctx, "pay_1")
	if got == nil || got.ID != "t1" {
		t.Errorf("GetByPaymentID = %+v, want t1", got)
	}
}

func TestCreateRejectsTakenNumber(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.Create(ctx, newTicket("t1", "pay_1"))

	clash := newTicket("t2", "pay_2")
	clash.Number = "TKTt1"
	if _, err := s.Create(ctx, clash); !errors.Is(err, ticket.ErrNumberTaken) {
		t.Fatalf("Create = %v, want ErrNumberTaken", err)
	}
	if got, _ := s.GetByPaymentID(ctx, "pay_2"); got != nil {
		t.Error("clashing ticket was stored")
	}
}

func TestRecordScanRespectsCapAndExpiry(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.Create(ctx, newTicket("t1", "pay_1"))

	first, _ := s.RecordScan(ctx, "t1", now.Add(time.Minute), 2)
	second, _ := s.RecordScan(ctx, "t1", now.Add(2*time.Minute), 2)
	third, _ := s.RecordScan(ctx, "t1", now.Add(3*time.Minute), 2)

	if first == nil || second == nil || third != nil {
		t.Fatalf("scans = %v %v %v, want two admissions", first != nil, second != nil, third != nil)
	}
	if second.Status != ticket.StatusUsed {
		t.Errorf("status after final scan = %s, want used", second.Status)
	}
	if !second.UsedAt.Equal(now.Add(time.Minute)) {
		t.Errorf("UsedAt = %v, want first scan time", second.UsedAt)
	}

	s.Create(ctx, newTicket("t2", "pay_2"))
	if d, _ := s.RecordScan(ctx, "t2", now.Add(24*time.Hour), 2); d != nil {
		t.Error("scan at expires_at was admitted")
	}
}

func TestFetchBatchClaimsOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.OutboxRepository()
	for _, id := range []string{"e1", "e2", "e3"} {
		repo.Create(ctx, &outbox.Event{ID: id})
	}

	batch, _ := repo.FetchBatch(ctx, 2)
	if len(batch) != 2 {
		t.Fatalf("batch = %d, want 2", len(batch))
	}
	rest, _ := repo.FetchBatch(ctx, 10)
	if len(rest) != 1 || rest[0].ID != "e3" {
		t.Errorf("second batch = %+v, want only e3", rest)
	}

	repo.MarkFailed(ctx, []string{"e1"})
	again, _ := repo.FetchBatch(ctx, 10)
	if len(again) != 1 || again[0].ID != "e1" {
		t.Errorf("after MarkFailed batch = %+v, want e1", again)
	}
}
