package transaction

import (
	"encoding/json"
	"time"
)

const (
	GatewayRazorpay = "razorpay"
	StatusSuccess   = "success"
)

// Transaction links one payment reference to the ticket it paid for. It is
// written alongside the ticket for reconciliation and never updated.
type Transaction struct {
	ID              string          `json:"id"`
	PaymentID       string          `json:"payment_id"`
	TicketID        string          `json:"ticket_id"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentGateway  string          `json:"payment_gateway"`
	Status          string          `json:"status"`
	GatewayResponse json.RawMessage `json:"gateway_response,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
