package usecase

import (
	"context"
	"encoding/json"
	"time"

	"busticket/internal/domain/notification"
	"busticket/internal/domain/route"
	"busticket/internal/domain/ticket"
	"busticket/internal/domain/transaction"
)

type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

type Transactor interface {
	// WithinTransaction runs fn in a transaction carried by the context. A
	// nested call runs fn under a savepoint of the outer transaction.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TicketRepository interface {
	// Create inserts the ticket unless one already exists for its payment id.
	// It reports whether a row was inserted.
	Create(ctx context.Context, t *ticket.Ticket) (bool, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*ticket.Ticket, error)
	GetDetails(ctx context.Context, id string) (*ticket.Details, error)
	// RecordScan atomically increments scan_count of a presentable ticket and
	// returns the updated row. It returns nil when no row qualified.
	RecordScan(ctx context.Context, id string, now time.Time, maxScans int) (*ticket.Details, error)
	// ExpireOverdue persists status=expired for tickets past expires_at.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *transaction.Transaction) error
}

type RouteRepository interface {
	ListRoutes(ctx context.Context) ([]*route.Route, error)
	GetRoute(ctx context.Context, id string) (*route.Route, error)
	GetRouteStop(ctx context.Context, id string) (*route.RouteStop, error)
	ListRouteStops(ctx context.Context, routeID string) ([]*route.RouteStop, error)
}

type CredentialEncoder interface {
	Encode(ticketID string) (string, error)
	Decode(payload string) (string, error)
}

// Dispatcher hands a notification to an out-of-band delivery channel. It is
// best-effort: an error never affects the ticket it is about.
type Dispatcher interface {
	Dispatch(ctx context.Context, n notification.Notification) error
}

// PaymentConfirmation is what the checkout widget hands back after payment.
type PaymentConfirmation struct {
	PaymentID string
	OrderID   string
	Signature string
	// Amount is the expected amount in whole currency units.
	Amount int64
}

type VerifiedPayment struct {
	PaymentID string
	Status    string
	// Raw is the gateway's view of the payment, kept on the transaction row.
	Raw json.RawMessage
}

// PaymentVerifier confirms a payment with the gateway server-side.
type PaymentVerifier interface {
	Verify(ctx context.Context, c PaymentConfirmation) (*VerifiedPayment, error)
}
