package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"busticket/internal/domain/ticket"
)

func TestValidateTicketTwoScansThenExhausted(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t, "pay_001")
	payload := res.Ticket.CredentialPayload
	ctx := context.Background()

	first, err := f.validator.Execute(ctx, payload)
	if err != nil {
		t.Fatalf("scan 1: %v", err)
	}
	if first.Outcome != OutcomeAdmitted || first.ScanNumber != 1 || first.Final {
		t.Errorf("scan 1 = %s #%d final=%v, want admitted #1 final=false", first.Outcome, first.ScanNumber, first.Final)
	}
	if first.Ticket.UsedAt == nil || !first.Ticket.UsedAt.Equal(f.clock.Now()) {
		t.Errorf("scan 1 UsedAt = %v, want %v", first.Ticket.UsedAt, f.clock.Now())
	}
	firstUsedAt := *first.Ticket.UsedAt

	f.clock.Advance(10 * time.Minute)
	second, err := f.validator.Execute(ctx, payload)
	if err != nil {
		t.Fatalf("scan 2: %v", err)
	}
	if second.Outcome != OutcomeAdmitted || second.ScanNumber != 2 || !second.Final {
		t.Errorf("scan 2 = %s #%d final=%v, want admitted #2 final=true", second.Outcome, second.ScanNumber, second.Final)
	}
	if !second.Ticket.UsedAt.Equal(firstUsedAt) {
		t.Errorf("scan 2 UsedAt = %v, want unchanged %v", second.Ticket.UsedAt, firstUsedAt)
	}
	if second.Ticket.Status != ticket.StatusUsed {
		t.Errorf("scan 2 Status = %q, want used", second.Ticket.Status)
	}

	third, err := f.validator.Execute(ctx, payload)
	if err != nil {
		t.Fatalf("scan 3: %v", err)
	}
	if third.Outcome != OutcomeExhausted {
		t.Errorf("scan 3 = %s, want exhausted", third.Outcome)
	}
	if third.Ticket.ScanCount != 2 {
		t.Errorf("scan 3 ScanCount = %d, want 2", third.Ticket.ScanCount)
	}
}

func TestValidateTicketExpiredByClock(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t, "pay_001")

	f.clock.Advance(25 * time.Hour)
	v, err := f.validator.Execute(context.Background(), res.Ticket.CredentialPayload)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v.Outcome != OutcomeExpired {
		t.Errorf("Outcome = %s, want expired", v.Outcome)
	}

	d, _ := f.store.GetDetails(context.Background(), res.Ticket.ID)
	if d.ScanCount != 0 || d.UsedAt != nil {
		t.Errorf("stored = count %d used_at %v, want untouched", d.ScanCount, d.UsedAt)
	}
}

func TestValidateTicketExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t, "pay_001")

	f.clock.Advance(24*time.Hour - time.Nanosecond)
	v, err := f.validator.Execute(context.Background(), res.Ticket.CredentialPayload)
	if err != nil || v.Outcome != OutcomeAdmitted {
		t.Fatalf("just before expiry = %v, %v, want admitted", v, err)
	}

	f.clock.Advance(time.Nanosecond)
	v, err = f.validator.Execute(context.Background(), res.Ticket.CredentialPayload)
	if err != nil || v.Outcome != OutcomeExpired {
		t.Errorf("at expires_at = %v, %v, want expired", v, err)
	}
}

func TestValidateTicketExpiryTakesPrecedence(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t, "pay_001")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.validator.Execute(ctx, res.Ticket.CredentialPayload); err != nil {
			t.Fatal(err)
		}
	}

	f.clock.Advance(48 * time.Hour)
	v, err := f.validator.Execute(ctx, res.Ticket.CredentialPayload)
	if err != nil {
		t.Fatal(err)
	}
	if v.Outcome != OutcomeExpired {
		t.Errorf("Outcome = %s, want expired", v.Outcome)
	}
}

func TestValidateTicketNotFound(t *testing.T) {
	f := newFixture(t)

	unknown, err := f.encoder.Encode("9b2f4c1e-8d7a-4e3b-a6f5-0c1d2e3f4a5b")
	if err != nil {
		t.Fatal(err)
	}

	for _, payload := range []string{"", "garbage", "https://tickets.example/verify?token=abc", unknown} {
		v, err := f.validator.Execute(context.Background(), payload)
		if err != nil {
			t.Errorf("Execute(%q): %v", payload, err)
			continue
		}
		if v.Outcome != OutcomeNotFound || v.Ticket != nil {
			t.Errorf("Execute(%q) = %s, want not_found", payload, v.Outcome)
		}
	}
}

func TestValidateTicketConcurrentScansAdmitExactlyMax(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t, "pay_001")

	const n = 16
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			v, err := f.validator.Execute(context.Background(), res.Ticket.CredentialPayload)
			if err != nil {
				t.Errorf("scan %d: %v", i, err)
				return
			}
			outcomes[i] = v.Outcome
		}(i)
	}
	close(start)
	wg.Wait()

	counts := map[Outcome]int{}
	for _, o := range outcomes {
		counts[o]++
	}
	if counts[OutcomeAdmitted] != 2 {
		t.Errorf("admitted = %d, want 2", counts[OutcomeAdmitted])
	}
	if counts[OutcomeExhausted] != n-2 {
		t.Errorf("exhausted = %d, want %d", counts[OutcomeExhausted], n-2)
	}

	d, _ := f.store.GetDetails(context.Background(), res.Ticket.ID)
	if d.ScanCount != 2 {
		t.Errorf("ScanCount = %d, want 2", d.ScanCount)
	}
}

func TestValidateTicketStoreFailure(t *testing.T) {
	f := newFixture(t)
	res := f.issue(t, "pay_001")
	f.store.FailRecordScan(errors.New("connection reset"))

	if _, err := f.validator.Execute(context.Background(), res.Ticket.CredentialPayload); !errors.Is(err, ErrPersistence) {
		t.Errorf("Execute = %v, want ErrPersistence", err)
	}
}
