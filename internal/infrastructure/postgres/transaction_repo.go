package postgres

import (
	"context"
	"fmt"

	"busticket/internal/domain/transaction"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	const sql = `
		INSERT INTO transactions (
			id, payment_id, ticket_id, amount, currency,
			payment_gateway, status, gateway_response, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var response any
	if len(t.GatewayResponse) > 0 {
		response = string(t.GatewayResponse)
	}

	_, err := conn(ctx, r.pool).Exec(ctx, sql,
		t.ID, t.PaymentID, t.TicketID, t.Amount, nullIfEmptyDefault(t.Currency, "INR"),
		nullIfEmptyDefault(t.PaymentGateway, transaction.GatewayRazorpay), t.Status, response, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}
