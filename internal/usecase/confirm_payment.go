package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type ConfirmPaymentParams struct {
	PaymentID              string
	OrderID                string
	Signature              string
	RouteID                string
	SourceRouteStopID      string
	DestinationRouteStopID string
	Fare                   int64
	PassengerMobile        string
	Language               string
}

// ConfirmPayment is the issuance entry point for checkout callbacks. It only
// issues after the gateway itself confirms the payment.
type ConfirmPayment struct {
	verifier PaymentVerifier
	issuer   *IssueTicket
	logger   *slog.Logger
}

func NewConfirmPayment(verifier PaymentVerifier, issuer *IssueTicket, logger *slog.Logger) *ConfirmPayment {
	return &ConfirmPayment{verifier: verifier, issuer: issuer, logger: logger}
}

func (uc *ConfirmPayment) Execute(ctx context.Context, p ConfirmPaymentParams) (*IssueResult, error) {
	verified, err := uc.verifier.Verify(ctx, PaymentConfirmation{
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Signature: p.Signature,
		Amount:    p.Fare,
	})
	if err != nil {
		if errors.Is(err, ErrPaymentUnconfirmed) {
			uc.logger.Warn("payment not confirmed", "payment_id", p.PaymentID, "error", err)
			return nil, err
		}
		uc.logger.Error("payment verification unavailable", "payment_id", p.PaymentID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return uc.issuer.Execute(ctx, IssueTicketParams{
		PaymentRef:             p.PaymentID,
		Confirmed:              true,
		RouteID:                p.RouteID,
		SourceRouteStopID:      p.SourceRouteStopID,
		DestinationRouteStopID: p.DestinationRouteStopID,
		Fare:                   p.Fare,
		PassengerMobile:        p.PassengerMobile,
		Language:               p.Language,
		GatewayResponse:        verified.Raw,
	})
}
