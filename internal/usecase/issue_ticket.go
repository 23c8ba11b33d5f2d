package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"busticket/internal/domain/event"
	"busticket/internal/domain/notification"
	"busticket/internal/domain/outbox"
	"busticket/internal/domain/route"
	"busticket/internal/domain/ticket"
	"busticket/internal/domain/transaction"
	"busticket/internal/notify"

	"github.com/google/uuid"
)

const ticketNumberAttempts = 3

type IssueTicketParams struct {
	PaymentRef string
	// Confirmed is the caller's signal that the payment succeeded.
	Confirmed              bool
	RouteID                string
	SourceRouteStopID      string
	DestinationRouteStopID string
	Fare                   int64
	PassengerMobile        string
	Language               string
	// GatewayResponse is stored on the transaction row when present.
	GatewayResponse json.RawMessage
}

type IssueResult struct {
	Ticket             *ticket.Details
	NotificationStatus notification.Status
	// Duplicate is set when the payment already had a ticket; Ticket is that one.
	Duplicate bool
	// ReconciliationRequired is set when the ticket committed without its
	// transaction row.
	ReconciliationRequired bool
}

type IssueOptions struct {
	TTL             time.Duration
	MaxScans        int
	Currency        string
	DispatchTimeout time.Duration
	Location        *time.Location
	Producer        string
}

type IssueTicket struct {
	txManager    Transactor
	tickets      TicketRepository
	transactions TransactionRepository
	routes       RouteRepository
	outbox       outbox.Repository
	encoder      CredentialEncoder
	dispatcher   Dispatcher
	composer     *notify.Composer
	clock        Clock
	newNumber    func(time.Time) string
	opts         IssueOptions
	logger       *slog.Logger
}

func NewIssueTicket(
	txManager Transactor,
	tickets TicketRepository,
	transactions TransactionRepository,
	routes RouteRepository,
	outboxRepo outbox.Repository,
	encoder CredentialEncoder,
	dispatcher Dispatcher,
	clock Clock,
	opts IssueOptions,
	logger *slog.Logger,
) *IssueTicket {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.MaxScans <= 0 {
		opts.MaxScans = ticket.DefaultMaxScans
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 2 * time.Second
	}
	if opts.Producer == "" {
		opts.Producer = "ticket-api"
	}
	if clock == nil {
		clock = SystemClock
	}
	return &IssueTicket{
		txManager:    txManager,
		tickets:      tickets,
		transactions: transactions,
		routes:       routes,
		outbox:       outboxRepo,
		encoder:      encoder,
		dispatcher:   dispatcher,
		composer:     notify.NewComposer(opts.Location, opts.MaxScans),
		clock:        clock,
		newNumber:    NewTicketNumber,
		opts:         opts,
		logger:       logger,
	}
}

type journey struct {
	route       *route.Route
	source      *route.RouteStop
	destination *route.RouteStop
}

// Execute creates the ticket for a confirmed payment. Calling it again with
// the same payment reference returns the ticket created the first time.
func (uc *IssueTicket) Execute(ctx context.Context, p IssueTicketParams) (*IssueResult, error) {
	if !p.Confirmed || strings.TrimSpace(p.PaymentRef) == "" {
		return nil, ErrPaymentUnconfirmed
	}

	existing, err := uc.tickets.GetByPaymentID(ctx, p.PaymentRef)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup payment %s: %v", ErrPersistence, p.PaymentRef, err)
	}
	if existing != nil {
		return uc.duplicate(ctx, existing.ID)
	}

	j, err := uc.resolveJourney(ctx, p)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now().UTC()
	id := uuid.New().String()
	payload, err := uc.encoder.Encode(id)
	if err != nil {
		return nil, fmt.Errorf("encode credential: %w", err)
	}

	t := &ticket.Ticket{
		ID:                 id,
		Number:             uc.newNumber(now),
		RouteID:            j.route.ID,
		SourceStopID:       j.source.StopID,
		DestinationStopID:  j.destination.StopID,
		Fare:               p.Fare,
		PassengerMobile:    strings.TrimSpace(p.PassengerMobile),
		LanguagePreference: notify.NormalizeLanguage(p.Language),
		PaymentID:          p.PaymentRef,
		CredentialPayload:  payload,
		Status:             ticket.StatusActive,
		ScanCount:          0,
		CreatedAt:          now,
		ExpiresAt:          now.Add(uc.opts.TTL),
	}
	record := &transaction.Transaction{
		ID:              uuid.New().String(),
		PaymentID:       p.PaymentRef,
		TicketID:        id,
		Amount:          p.Fare,
		Currency:        uc.opts.Currency,
		PaymentGateway:  transaction.GatewayRazorpay,
		Status:          transaction.StatusSuccess,
		GatewayResponse: p.GatewayResponse,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	d := &ticket.Details{
		Ticket:              *t,
		RouteNumber:         j.route.RouteNumber,
		RouteName:           j.route.RouteName,
		SourceStopName:      j.source.Stop.StopName,
		DestinationStopName: j.destination.Stop.StopName,
	}

	var created, reconcile bool
	status := notification.StatusFailed
	err = uc.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = uc.createTicket(ctx, t)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		d.Number = t.Number

		recErr := uc.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
			return uc.transactions.Create(ctx, record)
		})
		if recErr != nil {
			reconcile = true
			uc.recordReconciliation(ctx, record, recErr)
		}

		status = uc.dispatch(ctx, d)
		return nil
	})
	if err != nil {
		uc.logger.Error("ticket issuance failed", "payment_id", p.PaymentRef, "error", err)
		return nil, fmt.Errorf("%w: create ticket for payment %s: %v", ErrPersistence, p.PaymentRef, err)
	}

	if !created {
		// A concurrent request for the same payment won the insert.
		winner, err := uc.tickets.GetByPaymentID(ctx, p.PaymentRef)
		if err != nil || winner == nil {
			return nil, fmt.Errorf("%w: reload ticket for payment %s: %v", ErrPersistence, p.PaymentRef, err)
		}
		return uc.duplicate(ctx, winner.ID)
	}

	ticketsIssued.Inc()
	notificationDispatch.WithLabelValues(string(status)).Inc()
	uc.logger.Info("Ticket issued", "ticket_id", t.ID, "ticket_number", t.Number, "payment_id", p.PaymentRef, "fare", t.Fare)

	return &IssueResult{
		Ticket:                 d,
		NotificationStatus:     status,
		ReconciliationRequired: reconcile,
	}, nil
}

func (uc *IssueTicket) resolveJourney(ctx context.Context, p IssueTicketParams) (*journey, error) {
	if p.SourceRouteStopID == p.DestinationRouteStopID {
		return nil, fmt.Errorf("%w: source and destination are the same stop", ErrInvalidJourney)
	}
	if p.Fare <= 0 {
		return nil, fmt.Errorf("%w: fare must be positive, got %d", ErrInvalidJourney, p.Fare)
	}

	rt, err := uc.routes.GetRoute(ctx, p.RouteID)
	if err != nil {
		return nil, fmt.Errorf("%w: get route: %v", ErrPersistence, err)
	}
	if rt == nil {
		return nil, fmt.Errorf("%w: unknown route %s", ErrInvalidJourney, p.RouteID)
	}

	src, err := uc.routes.GetRouteStop(ctx, p.SourceRouteStopID)
	if err != nil {
		return nil, fmt.Errorf("%w: get route stop: %v", ErrPersistence, err)
	}
	dst, err := uc.routes.GetRouteStop(ctx, p.DestinationRouteStopID)
	if err != nil {
		return nil, fmt.Errorf("%w: get route stop: %v", ErrPersistence, err)
	}
	if src == nil || dst == nil {
		return nil, fmt.Errorf("%w: unknown route stop", ErrInvalidJourney)
	}
	if src.RouteID != rt.ID || dst.RouteID != rt.ID {
		return nil, fmt.Errorf("%w: stops are not on route %s", ErrInvalidJourney, rt.RouteNumber)
	}
	if src.StopID == dst.StopID {
		return nil, fmt.Errorf("%w: source and destination are the same stop", ErrInvalidJourney)
	}
	if want := route.Fare(*src, *dst); want != p.Fare {
		return nil, fmt.Errorf("%w: fare %d does not match route fare %d", ErrInvalidJourney, p.Fare, want)
	}

	return &journey{route: rt, source: src, destination: dst}, nil
}

func (uc *IssueTicket) duplicate(ctx context.Context, id string) (*IssueResult, error) {
	d, err := uc.tickets.GetDetails(ctx, id)
	if err != nil || d == nil {
		return nil, fmt.Errorf("%w: load ticket %s: %v", ErrPersistence, id, err)
	}
	ticketsDuplicate.Inc()
	notificationDispatch.WithLabelValues(string(notification.StatusSkipped)).Inc()
	uc.logger.Info("Duplicate issuance for payment", "payment_id", d.PaymentID, "ticket_id", d.ID)
	return &IssueResult{Ticket: d, NotificationStatus: notification.StatusSkipped, Duplicate: true}, nil
}

// recordReconciliation runs inside the issuance transaction. Its own write is
// under a savepoint so a second failure cannot abort the ticket.
func (uc *IssueTicket) recordReconciliation(ctx context.Context, record *transaction.Transaction, cause error) {
	transactionRecordFailures.Inc()
	uc.logger.Error("transaction record failed, ticket kept",
		"payment_id", record.PaymentID, "ticket_id", record.TicketID, "error", cause)

	payload, err := json.Marshal(event.TransactionRecordFailed{
		PaymentID: record.PaymentID,
		TicketID:  record.TicketID,
		Amount:    record.Amount,
		Currency:  record.Currency,
		Error:     cause.Error(),
		FailedAt:  record.CreatedAt,
	})
	if err != nil {
		uc.logger.Error("marshal reconciliation event", "error", err)
		return
	}

	e := &outbox.Event{
		ID:            uuid.New().String(),
		EventType:     event.TypeTransactionRecordFailed,
		Payload:       payload,
		Status:        outbox.StatusNew,
		CorrelationID: record.TicketID,
		Producer:      uc.opts.Producer,
		CreatedAt:     record.CreatedAt,
	}
	err = uc.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		return uc.outbox.Create(ctx, e)
	})
	if err != nil {
		uc.logger.Error("reconciliation event not recorded", "payment_id", record.PaymentID, "error", err)
	}
}

// dispatch runs inside the issuance transaction, under its own savepoint, so
// the notification commits with the ticket and its failure cannot undo it.
func (uc *IssueTicket) dispatch(ctx context.Context, d *ticket.Details) notification.Status {
	err := uc.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, uc.opts.DispatchTimeout)
		defer cancel()
		return uc.dispatcher.Dispatch(ctx, uc.composer.TicketIssued(d))
	})
	if err != nil {
		uc.logger.Error("notification dispatch failed", "ticket_id", d.ID, "error", err)
		return notification.StatusFailed
	}
	return notification.StatusQueued
}

// createTicket inserts t under a savepoint, drawing a new display number when
// the drawn one is already taken.
func (uc *IssueTicket) createTicket(ctx context.Context, t *ticket.Ticket) (bool, error) {
	for attempt := 1; ; attempt++ {
		var created bool
		err := uc.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			created, err = uc.tickets.Create(ctx, t)
			return err
		})
		if err == nil || !errors.Is(err, ticket.ErrNumberTaken) || attempt == ticketNumberAttempts {
			return created, err
		}
		uc.logger.Warn("ticket number collision, drawing again", "ticket_number", t.Number, "attempt", attempt)
		t.Number = uc.newNumber(t.CreatedAt)
	}
}
