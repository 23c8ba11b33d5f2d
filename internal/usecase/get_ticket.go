package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"busticket/internal/domain/ticket"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const ticketCacheTTL = time.Second

func ticketCacheKey(id string) string {
	return "ticket:" + id
}

// TicketView is the read-only projection shown to passengers and staff.
type TicketView struct {
	ID                  string        `json:"id"`
	TicketNumber        string        `json:"ticket_number"`
	RouteNumber         string        `json:"route_number"`
	RouteName           string        `json:"route_name"`
	SourceStop          string        `json:"source_stop"`
	DestinationStop     string        `json:"destination_stop"`
	Fare                int64         `json:"fare"`
	Status              ticket.Status `json:"status"`
	ScanCount           int           `json:"scan_count"`
	MaxScans            int           `json:"max_scans"`
	RemainingScans      int           `json:"remaining_scans"`
	CreatedAt           time.Time     `json:"created_at"`
	ExpiresAt           time.Time     `json:"expires_at"`
	UsedAt              *time.Time    `json:"used_at,omitempty"`
	CredentialPayload   string        `json:"credential_payload"`
	LanguagePreference  string        `json:"language_preference"`
	PassengerMobileTail string        `json:"passenger_mobile_tail,omitempty"`
}

type GetTicket struct {
	tickets  TicketRepository
	cache    *redis.Client
	clock    Clock
	maxScans int
	logger   *slog.Logger
}

func NewGetTicket(tickets TicketRepository, cache *redis.Client, clock Clock, maxScans int, logger *slog.Logger) *GetTicket {
	if maxScans <= 0 {
		maxScans = ticket.DefaultMaxScans
	}
	if clock == nil {
		clock = SystemClock
	}
	return &GetTicket{tickets: tickets, cache: cache, clock: clock, maxScans: maxScans, logger: logger}
}

// Execute never mutates the ticket.
func (uc *GetTicket) Execute(ctx context.Context, id string) (*TicketView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTicketNotFound
	}

	d, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrTicketNotFound
	}
	return uc.view(d), nil
}

// Details returns the stored ticket with display names, or ErrTicketNotFound.
func (uc *GetTicket) Details(ctx context.Context, id string) (*ticket.Details, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTicketNotFound
	}
	d, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrTicketNotFound
	}
	return d, nil
}

func (uc *GetTicket) load(ctx context.Context, id string) (*ticket.Details, error) {
	key := ticketCacheKey(id)
	if uc.cache != nil {
		if val, err := uc.cache.Get(ctx, key).Result(); err == nil {
			var d ticket.Details
			if err := json.Unmarshal([]byte(val), &d); err == nil {
				return &d, nil
			}
		}
	}

	d, err := uc.tickets.GetDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get ticket: %v", ErrPersistence, err)
	}
	if d == nil {
		return nil, nil
	}

	if uc.cache != nil {
		if data, err := json.Marshal(d); err == nil {
			if err := uc.cache.Set(ctx, key, data, ticketCacheTTL).Err(); err != nil {
				uc.logger.Warn("ticket cache write failed", "ticket_id", id, "error", err)
			}
		}
	}
	return d, nil
}

func (uc *GetTicket) view(d *ticket.Details) *TicketView {
	now := uc.clock.Now()
	v := &TicketView{
		ID:                 d.ID,
		TicketNumber:       d.Number,
		RouteNumber:        d.RouteNumber,
		RouteName:          d.RouteName,
		SourceStop:         d.SourceStopName,
		DestinationStop:    d.DestinationStopName,
		Fare:               d.Fare,
		Status:             d.DisplayStatus(now, uc.maxScans),
		ScanCount:          d.ScanCount,
		MaxScans:           uc.maxScans,
		RemainingScans:     d.RemainingScans(uc.maxScans),
		CreatedAt:          d.CreatedAt,
		ExpiresAt:          d.ExpiresAt,
		UsedAt:             d.UsedAt,
		CredentialPayload:  d.CredentialPayload,
		LanguagePreference: d.LanguagePreference,
	}
	if v.Status == ticket.StatusExpired {
		v.RemainingScans = 0
	}
	if n := len(d.PassengerMobile); n >= 4 {
		v.PassengerMobileTail = d.PassengerMobile[n-4:]
	}
	return v
}
