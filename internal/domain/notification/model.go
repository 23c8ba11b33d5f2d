package notification

// Status reports what happened to the out-of-band delivery of a ticket.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Notification is a message for a passenger, addressed by mobile number.
type Notification struct {
	TicketID     string `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
	To           string `json:"to"`
	Body         string `json:"body"`
	Language     string `json:"language"`
}
