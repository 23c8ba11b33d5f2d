package ticket

import (
	"errors"
	"time"
)

// DefaultMaxScans is the number of admitted presentations a ticket allows.
const DefaultMaxScans = 2

// ErrNumberTaken is returned by stores when another ticket already carries
// the display number.
var ErrNumberTaken = errors.New("ticket number already taken")

type Status string

const (
	StatusActive  Status = "active"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
)

type Ticket struct {
	ID                 string     `json:"id"`
	Number             string     `json:"ticket_number"`
	RouteID            string     `json:"route_id"`
	SourceStopID       string     `json:"source_stop_id"`
	DestinationStopID  string     `json:"destination_stop_id"`
	Fare               int64      `json:"fare"`
	PassengerMobile    string     `json:"passenger_mobile"`
	LanguagePreference string     `json:"language_preference"`
	PaymentID          string     `json:"payment_id"`
	CredentialPayload  string     `json:"qr_code"`
	Status             Status     `json:"status"`
	ScanCount          int        `json:"scan_count"`
	CreatedAt          time.Time  `json:"created_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
	UsedAt             *time.Time `json:"used_at,omitempty"`
}

// Details is a ticket joined with the names a passenger or conductor reads.
type Details struct {
	Ticket
	RouteNumber         string `json:"route_number"`
	RouteName           string `json:"route_name"`
	SourceStopName      string `json:"source_stop_name"`
	DestinationStopName string `json:"destination_stop_name"`
}
