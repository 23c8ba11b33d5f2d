// Package memory is an in-process store with the same contracts and atomic
// semantics as the postgres repositories. Tests and local runs use it in
// place of a database.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"busticket/internal/domain/outbox"
	"busticket/internal/domain/route"
	"busticket/internal/domain/ticket"
	"busticket/internal/domain/transaction"
)

var ErrDuplicatePayment = errors.New("memory: duplicate payment_id")

type txKey struct{}

// memTx collects undo steps. A failed scope replays its own steps; a
// successful nested scope hands them to its parent.
type memTx struct {
	undo []func()
}

// Store keeps every table behind one mutex. Writes inside WithinTransaction
// become visible immediately and are reverted if the scope fails.
type Store struct {
	mu sync.Mutex

	routes       map[string]route.Route
	stops        map[string]route.Stop
	routeStops   map[string]route.RouteStop
	tickets      map[string]ticket.Ticket
	byPayment    map[string]string
	byNumber     map[string]string
	transactions map[string]transaction.Transaction
	outbox       []*outbox.Event
	inbox        map[string]struct{}

	failTicketCreate      error
	failTransactionCreate error
	failOutboxCreate      error
	failRecordScan        error
}

func NewStore() *Store {
	return &Store{
		routes:       make(map[string]route.Route),
		stops:        make(map[string]route.Stop),
		routeStops:   make(map[string]route.RouteStop),
		tickets:      make(map[string]ticket.Ticket),
		byPayment:    make(map[string]string),
		byNumber:     make(map[string]string),
		transactions: make(map[string]transaction.Transaction),
		inbox:        make(map[string]struct{}),
	}
}

// FailTicketCreate makes every ticket insert return err. Pass nil to reset.
func (s *Store) FailTicketCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTicketCreate = err
}

func (s *Store) FailTransactionCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTransactionCreate = err
}

func (s *Store) FailOutboxCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOutboxCreate = err
}

func (s *Store) FailRecordScan(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRecordScan = err
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx := &memTx{}
	parent, _ := ctx.Value(txKey{}).(*memTx)

	defer func() {
		if p := recover(); p != nil {
			s.rollback(tx)
			panic(p)
		}
		if err != nil {
			s.rollback(tx)
			return
		}
		if parent != nil {
			parent.undo = append(parent.undo, tx.undo...)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}

func (s *Store) rollback(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// onRollback must be called with s.mu held.
func onRollback(ctx context.Context, fn func()) {
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, fn)
	}
}

// Reference data.

func (s *Store) AddRoute(r route.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[r.ID] = r
}

func (s *Store) AddStop(st route.Stop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops[st.ID] = st
}

func (s *Store) AddRouteStop(rs route.RouteStop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routeStops[rs.ID] = rs
}

func (s *Store) ListRoutes(ctx context.Context) ([]*route.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*route.Route, 0, len(s.routes))
	for _, r := range s.routes {
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteNumber < out[j].RouteNumber })
	return out, nil
}

func (s *Store) GetRoute(ctx context.Context, id string) (*route.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routes[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) GetRouteStop(ctx context.Context, id string) (*route.RouteStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.routeStops[id]
	if !ok {
		return nil, nil
	}
	rs.Stop = s.stops[rs.StopID]
	return &rs, nil
}

func (s *Store) ListRouteStops(ctx context.Context, routeID string) ([]*route.RouteStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*route.RouteStop
	for _, rs := range s.routeStops {
		if rs.RouteID != routeID {
			continue
		}
		rs := rs
		rs.Stop = s.stops[rs.StopID]
		out = append(out, &rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StopOrder < out[j].StopOrder })
	return out, nil
}

// Tickets.

func (s *Store) Create(ctx context.Context, t *ticket.Ticket) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failTicketCreate != nil {
		return false, s.failTicketCreate
	}
	if _, ok := s.byPayment[t.PaymentID]; ok {
		return false, nil
	}
	if _, ok := s.byNumber[t.Number]; ok {
		return false, ticket.ErrNumberTaken
	}

	stored := copyTicket(*t)
	s.tickets[t.ID] = stored
	s.byPayment[t.PaymentID] = t.ID
	s.byNumber[t.Number] = t.ID
	onRollback(ctx, func() {
		delete(s.tickets, stored.ID)
		delete(s.byPayment, stored.PaymentID)
		delete(s.byNumber, stored.Number)
	})
	return true, nil
}

func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPayment[paymentID]
	if !ok {
		return nil, nil
	}
	t := copyTicket(s.tickets[id])
	return &t, nil
}

func (s *Store) GetDetails(ctx context.Context, id string) (*ticket.Details, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, nil
	}
	return s.details(t), nil
}

func (s *Store) RecordScan(ctx context.Context, id string, now time.Time, maxScans int) (*ticket.Details, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRecordScan != nil {
		return nil, s.failRecordScan
	}
	t, ok := s.tickets[id]
	if !ok || t.ScanCount >= maxScans || !now.Before(t.ExpiresAt) {
		return nil, nil
	}

	prev := copyTicket(t)
	t.ScanCount++
	if t.UsedAt == nil {
		usedAt := now
		t.UsedAt = &usedAt
	}
	if t.ScanCount >= maxScans {
		t.Status = ticket.StatusUsed
	}
	s.tickets[id] = t
	onRollback(ctx, func() { s.tickets[id] = prev })

	return s.details(t), nil
}

func (s *Store) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.tickets {
		if t.Status == ticket.StatusExpired || now.Before(t.ExpiresAt) {
			continue
		}
		t.Status = ticket.StatusExpired
		s.tickets[id] = t
		n++
	}
	return n, nil
}

// Tickets returns a snapshot of every stored ticket.
func (s *Store) Tickets() []ticket.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ticket.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, copyTicket(t))
	}
	return out
}

// details must be called with s.mu held.
func (s *Store) details(t ticket.Ticket) *ticket.Details {
	d := &ticket.Details{Ticket: copyTicket(t)}
	if r, ok := s.routes[t.RouteID]; ok {
		d.RouteNumber = r.RouteNumber
		d.RouteName = r.RouteName
	}
	d.SourceStopName = s.stops[t.SourceStopID].StopName
	d.DestinationStopName = s.stops[t.DestinationStopID].StopName
	return d
}

func copyTicket(t ticket.Ticket) ticket.Ticket {
	if t.UsedAt != nil {
		usedAt := *t.UsedAt
		t.UsedAt = &usedAt
	}
	return t
}

// Transactions.

// TransactionRepository adapts the store to the transaction repository
// contract, whose Create would otherwise collide with the ticket one.
type TransactionRepository struct {
	s *Store
}

func (s *Store) TransactionRepository() *TransactionRepository {
	return &TransactionRepository{s: s}
}

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failTransactionCreate != nil {
		return s.failTransactionCreate
	}
	if _, ok := s.transactions[t.PaymentID]; ok {
		return ErrDuplicatePayment
	}
	s.transactions[t.PaymentID] = *t
	paymentID := t.PaymentID
	onRollback(ctx, func() { delete(s.transactions, paymentID) })
	return nil
}

func (s *Store) Transactions() []transaction.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]transaction.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t)
	}
	return out
}
