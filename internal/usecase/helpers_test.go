package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"busticket/internal/credential"
	"busticket/internal/domain/notification"
	"busticket/internal/domain/route"
	"busticket/internal/infrastructure/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeDispatcher struct {
	mu   sync.Mutex
	err  error
	sent []notification.Notification
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, n notification.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, n)
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

// Route R1 runs Ameerpet (0) -> Begumpet (25) -> Secunderabad (40).
// Route R2 shares Begumpet.
const (
	routeR1 = "11111111-1111-4111-8111-111111111111"
	routeR2 = "22222222-2222-4222-8222-222222222222"

	stopA = "aaaaaaaa-0000-4000-8000-000000000001"
	stopB = "aaaaaaaa-0000-4000-8000-000000000002"
	stopC = "aaaaaaaa-0000-4000-8000-000000000003"
	stopD = "aaaaaaaa-0000-4000-8000-000000000004"

	rsR1A = "bbbbbbbb-0000-4000-8000-000000000001"
	rsR1B = "bbbbbbbb-0000-4000-8000-000000000002"
	rsR1C = "bbbbbbbb-0000-4000-8000-000000000003"
	rsR2B = "bbbbbbbb-0000-4000-8000-000000000004"
	rsR2D = "bbbbbbbb-0000-4000-8000-000000000005"
)

func seedRoutes(s *memory.Store) {
	s.AddRoute(route.Route{ID: routeR1, RouteNumber: "R1", RouteName: "Ameerpet - Secunderabad"})
	s.AddRoute(route.Route{ID: routeR2, RouteNumber: "R2", RouteName: "Begumpet - Koti"})

	s.AddStop(route.Stop{ID: stopA, StopCode: "AMP", StopName: "Ameerpet"})
	s.AddStop(route.Stop{ID: stopB, StopCode: "BGP", StopName: "Begumpet"})
	s.AddStop(route.Stop{ID: stopC, StopCode: "SEC", StopName: "Secunderabad"})
	s.AddStop(route.Stop{ID: stopD, StopCode: "KTI", StopName: "Koti"})

	s.AddRouteStop(route.RouteStop{ID: rsR1A, RouteID: routeR1, StopID: stopA, StopOrder: 1, FareFromOrigin: 0})
	s.AddRouteStop(route.RouteStop{ID: rsR1B, RouteID: routeR1, StopID: stopB, StopOrder: 2, FareFromOrigin: 25})
	s.AddRouteStop(route.RouteStop{ID: rsR1C, RouteID: routeR1, StopID: stopC, StopOrder: 3, FareFromOrigin: 40})
	s.AddRouteStop(route.RouteStop{ID: rsR2B, RouteID: routeR2, StopID: stopB, StopOrder: 1, FareFromOrigin: 0})
	s.AddRouteStop(route.RouteStop{ID: rsR2D, RouteID: routeR2, StopID: stopD, StopOrder: 2, FareFromOrigin: 30})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store      *memory.Store
	clock      *fakeClock
	encoder    *credential.Encoder
	dispatcher *fakeDispatcher
	issuer     *IssueTicket
	validator  *ValidateTicket
	lookup     *GetTicket
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	seedRoutes(store)
	enc, err := credential.NewEncoder("https://tickets.example", "busticket", "test-secret")
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	clock := newFakeClock()
	disp := &fakeDispatcher{}
	logger := testLogger()

	return &fixture{
		store:      store,
		clock:      clock,
		encoder:    enc,
		dispatcher: disp,
		issuer: NewIssueTicket(store, store, store.TransactionRepository(), store, store.OutboxRepository(),
			enc, disp, clock, IssueOptions{
				TTL:      24 * time.Hour,
				MaxScans: 2,
				Currency: "INR",
				Location: time.FixedZone("IST", 5*3600+1800),
			}, logger),
		validator: NewValidateTicket(store, enc, nil, clock, 2, logger),
		lookup:    NewGetTicket(store, nil, clock, 2, logger),
	}
}

// journeyR1AB is the 25-rupee ride from Ameerpet to Begumpet.
func journeyR1AB(paymentRef string) IssueTicketParams {
	return IssueTicketParams{
		PaymentRef:             paymentRef,
		Confirmed:              true,
		RouteID:                routeR1,
		SourceRouteStopID:      rsR1A,
		DestinationRouteStopID: rsR1B,
		Fare:                   25,
		PassengerMobile:        "9876543210",
		Language:               "english",
	}
}

func (f *fixture) issue(t *testing.T, paymentRef string) *IssueResult {
	t.Helper()
	res, err := f.issuer.Execute(context.Background(), journeyR1AB(paymentRef))
	if err != nil {
		t.Fatalf("IssueTicket: %v", err)
	}
	return res
}
