package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"busticket/internal/domain/ticket"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepository struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

const (
	uniqueViolation        = "23505"
	ticketNumberConstraint = "tickets_ticket_number_key"
)

const ticketColumns = `
	t.id::text, t.ticket_number, t.route_id::text, t.source_stop_id::text, t.destination_stop_id::text,
	t.fare, t.passenger_mobile, t.language_preference, t.payment_id, t.qr_code,
	t.status, t.scan_count, t.created_at, t.expires_at, t.used_at`

const detailsJoin = `
	JOIN routes r ON r.id = t.route_id
	JOIN stops s ON s.id = t.source_stop_id
	JOIN stops d ON d.id = t.destination_stop_id`

// Create inserts the ticket. A second ticket for the same payment id is
// silently dropped; the returned flag is false in that case.
func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) (bool, error) {
	const sql = `
		INSERT INTO tickets (
			id, ticket_number, route_id, source_stop_id, destination_stop_id,
			fare, passenger_mobile, language_preference, payment_id, qr_code,
			status, scan_count, created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (payment_id) DO NOTHING
	`

	tag, err := conn(ctx, r.pool).Exec(ctx, sql,
		t.ID, t.Number, t.RouteID, t.SourceStopID, t.DestinationStopID,
		t.Fare, t.PassengerMobile, t.LanguagePreference, t.PaymentID, t.CredentialPayload,
		string(t.Status), t.ScanCount, t.CreatedAt, t.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == ticketNumberConstraint {
			return false, fmt.Errorf("insert ticket %s: %w", t.Number, ticket.ErrNumberTaken)
		}
		return false, fmt.Errorf("insert ticket: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *TicketRepository) GetByPaymentID(ctx context.Context, paymentID string) (*ticket.Ticket, error) {
	sql := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.payment_id = $1`

	t, err := scanTicket(conn(ctx, r.pool).QueryRow(ctx, sql, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ticket by payment_id: %w", err)
	}
	return t, nil
}

func (r *TicketRepository) GetDetails(ctx context.Context, id string) (*ticket.Details, error) {
	sql := `SELECT ` + ticketColumns + `, r.route_number, r.route_name, s.stop_name, d.stop_name
		FROM tickets t` + detailsJoin + `
		WHERE t.id = $1`

	d, err := scanDetails(conn(ctx, r.pool).QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ticket details: %w", err)
	}
	return d, nil
}

// RecordScan is the only write path for scan_count. The WHERE clause makes
// the check and the increment one statement, so concurrent scans serialize on
// the row lock and never admit past maxScans.
func (r *TicketRepository) RecordScan(ctx context.Context, id string, now time.Time, maxScans int) (*ticket.Details, error) {
	sql := `
		WITH t AS (
			UPDATE tickets
			SET scan_count = scan_count + 1,
				used_at = COALESCE(used_at, $2),
				status = CASE WHEN scan_count + 1 >= $3 THEN 'used' ELSE status END
			WHERE id = $1 AND scan_count < $3 AND expires_at > $2
			RETURNING *
		)
		SELECT ` + ticketColumns + `, r.route_number, r.route_name, s.stop_name, d.stop_name
		FROM t` + detailsJoin

	d, err := scanDetails(conn(ctx, r.pool).QueryRow(ctx, sql, id, now, maxScans))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("record ticket scan: %w", err)
	}
	return d, nil
}

func (r *TicketRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	const sql = `
		UPDATE tickets
		SET status = 'expired'
		WHERE status <> 'expired' AND expires_at <= $1
	`

	tag, err := conn(ctx, r.pool).Exec(ctx, sql, now)
	if err != nil {
		return 0, fmt.Errorf("expire tickets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListRecent is used by the inspection tool.
func (r *TicketRepository) ListRecent(ctx context.Context, limit int) ([]*ticket.Details, error) {
	sql := `SELECT ` + ticketColumns + `, r.route_number, r.route_name, s.stop_name, d.stop_name
		FROM tickets t` + detailsJoin + `
		ORDER BY t.created_at DESC
		LIMIT $1`

	rows, err := conn(ctx, r.pool).Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent tickets: %w", err)
	}
	defer rows.Close()

	var out []*ticket.Details
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanTicket(row pgx.Row) (*ticket.Ticket, error) {
	var t ticket.Ticket
	var status string
	err := row.Scan(
		&t.ID, &t.Number, &t.RouteID, &t.SourceStopID, &t.DestinationStopID,
		&t.Fare, &t.PassengerMobile, &t.LanguagePreference, &t.PaymentID, &t.CredentialPayload,
		&status, &t.ScanCount, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = ticket.Status(status)
	return &t, nil
}

func scanDetails(row pgx.Row) (*ticket.Details, error) {
	var d ticket.Details
	var status string
	err := row.Scan(
		&d.ID, &d.Number, &d.RouteID, &d.SourceStopID, &d.DestinationStopID,
		&d.Fare, &d.PassengerMobile, &d.LanguagePreference, &d.PaymentID, &d.CredentialPayload,
		&status, &d.ScanCount, &d.CreatedAt, &d.ExpiresAt, &d.UsedAt,
		&d.RouteNumber, &d.RouteName, &d.SourceStopName, &d.DestinationStopName,
	)
	if err != nil {
		return nil, err
	}
	d.Status = ticket.Status(status)
	return &d, nil
}
