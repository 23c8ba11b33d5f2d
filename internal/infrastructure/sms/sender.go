package sms

import (
	"context"
	"fmt"
	"strings"

	"busticket/internal/config"
)

const (
	ProviderTwilio = "twilio"
	ProviderSNS    = "sns"
)

type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// New builds the sender selected by cfg.Provider.
func New(ctx context.Context, cfg config.SMS) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderTwilio:
		return NewTwilioSender(cfg.Twilio, cfg.DefaultCountryCode)
	case ProviderSNS:
		return NewSNSSender(ctx, cfg.AWS.Region, cfg.DefaultCountryCode)
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

// NormalizeNumber turns a national mobile number into E.164 using the
// default country code. Numbers already starting with + are kept.
func NormalizeNumber(number, countryCode string) (string, error) {
	n := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(number))

	if n == "" {
		return "", fmt.Errorf("empty phone number")
	}
	if !strings.HasPrefix(n, "+") {
		n = strings.TrimLeft(n, "0")
		n = "+" + strings.TrimPrefix(countryCode, "+") + n
	}
	for _, r := range n[1:] {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid phone number %q", number)
		}
	}
	if len(n) < 8 || len(n) > 16 {
		return "", fmt.Errorf("invalid phone number length %q", number)
	}
	return n, nil
}
