package event

import (
	"encoding/json"
	"time"
)

const (
	TypeTicketIssued            = "TicketIssued"
	TypeTransactionRecordFailed = "TransactionRecordFailed"
)

// Message is the envelope published to Kafka.
// Payload is kept as raw JSON produced by the originating service.
type Message struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id,omitempty"`
	Producer      string          `json:"producer"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// TransactionRecordFailed is recorded when a ticket committed without its
// ledger row. Reconciliation picks it up by payment id.
type TransactionRecordFailed struct {
	PaymentID string    `json:"payment_id"`
	TicketID  string    `json:"ticket_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failed_at"`
}
