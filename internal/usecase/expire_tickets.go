package usecase

import (
	"context"
	"fmt"
	"log/slog"
)

// ExpireTickets persists status=expired for tickets past their expiry. The
// validator never depends on it; it keeps the stored column honest for
// reporting.
type ExpireTickets struct {
	tickets TicketRepository
	clock   Clock
	logger  *slog.Logger
}

func NewExpireTickets(tickets TicketRepository, clock Clock, logger *slog.Logger) *ExpireTickets {
	if clock == nil {
		clock = SystemClock
	}
	return &ExpireTickets{tickets: tickets, clock: clock, logger: logger}
}

func (uc *ExpireTickets) Execute(ctx context.Context) (int64, error) {
	n, err := uc.tickets.ExpireOverdue(ctx, uc.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: expire tickets: %v", ErrPersistence, err)
	}
	if n > 0 {
		ticketsExpired.Add(float64(n))
		uc.logger.Info("Tickets expired", "count", n)
	}
	return n, nil
}
