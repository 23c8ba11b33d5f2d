package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"busticket/internal/domain/ticket"

	"github.com/redis/go-redis/v9"
)

type Outcome string

const (
	OutcomeNotFound  Outcome = "not_found"
	OutcomeExpired   Outcome = "expired"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeAdmitted  Outcome = "admitted"
)

type VerificationResult struct {
	Outcome Outcome
	// Ticket is nil for OutcomeNotFound.
	Ticket *ticket.Details
	// ScanNumber is the 1-based scan this admission consumed.
	ScanNumber int
	// Final is set when this admission used the last allowed scan.
	Final      bool
	MaxScans   int
	VerifiedAt time.Time
}

// A presentable ticket that still failed the conditional update lost a race
// with another scan; re-reading settles it within a few rounds.
const scanAttempts = 3

type ValidateTicket struct {
	tickets  TicketRepository
	encoder  CredentialEncoder
	cache    *redis.Client
	clock    Clock
	maxScans int
	logger   *slog.Logger
}

func NewValidateTicket(tickets TicketRepository, encoder CredentialEncoder, cache *redis.Client, clock Clock, maxScans int, logger *slog.Logger) *ValidateTicket {
	if maxScans <= 0 {
		maxScans = ticket.DefaultMaxScans
	}
	if clock == nil {
		clock = SystemClock
	}
	return &ValidateTicket{
		tickets:  tickets,
		encoder:  encoder,
		cache:    cache,
		clock:    clock,
		maxScans: maxScans,
		logger:   logger,
	}
}

// Execute decides admission for a presented credential. Every disposition is
// a result; only store failures are errors.
func (uc *ValidateTicket) Execute(ctx context.Context, payload string) (*VerificationResult, error) {
	id, err := uc.encoder.Decode(payload)
	if err != nil {
		uc.logger.Info("credential rejected", "error", err)
		return uc.result(OutcomeNotFound, nil, uc.clock.Now()), nil
	}

	for attempt := 0; attempt < scanAttempts; attempt++ {
		now := uc.clock.Now().UTC()

		d, err := uc.tickets.RecordScan(ctx, id, now, uc.maxScans)
		if err != nil {
			return nil, fmt.Errorf("%w: record scan: %v", ErrPersistence, err)
		}
		if d != nil {
			res := uc.result(OutcomeAdmitted, d, now)
			res.ScanNumber = d.ScanCount
			res.Final = d.ScanCount >= uc.maxScans
			uc.invalidate(ctx, id)
			uc.logger.Info("Ticket admitted", "ticket_id", id, "scan", d.ScanCount, "max", uc.maxScans)
			return res, nil
		}

		d, err = uc.tickets.GetDetails(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: get ticket: %v", ErrPersistence, err)
		}
		if d == nil {
			return uc.result(OutcomeNotFound, nil, now), nil
		}

		switch d.StateAt(now, uc.maxScans) {
		case ticket.StateExpiredByTime:
			return uc.result(OutcomeExpired, d, now), nil
		case ticket.StateExhaustedByCount:
			return uc.result(OutcomeExhausted, d, now), nil
		}
	}

	return nil, fmt.Errorf("%w: scan of ticket %s did not settle", ErrPersistence, id)
}

func (uc *ValidateTicket) result(o Outcome, d *ticket.Details, now time.Time) *VerificationResult {
	scanOutcomes.WithLabelValues(string(o)).Inc()
	return &VerificationResult{Outcome: o, Ticket: d, MaxScans: uc.maxScans, VerifiedAt: now}
}

func (uc *ValidateTicket) invalidate(ctx context.Context, id string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Del(ctx, ticketCacheKey(id)).Err(); err != nil {
		uc.logger.Warn("ticket cache invalidation failed", "ticket_id", id, "error", err)
	}
}
