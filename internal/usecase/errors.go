package usecase

import "errors"

var (
	ErrInvalidJourney     = errors.New("invalid journey")
	ErrPaymentUnconfirmed = errors.New("payment unconfirmed")
	// ErrGatewayUnavailable means the payment could not be checked, not that
	// it was rejected. The caller may retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrPersistence        = errors.New("persistence failure")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrRouteNotFound      = errors.New("route not found")
)
