package sms

import (
	"context"
	"fmt"

	"busticket/internal/config"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioSender struct {
	client      *twilio.RestClient
	fromNumber  string
	countryCode string
}

func NewTwilioSender(cfg config.Twilio, countryCode string) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, fmt.Errorf("twilio: account sid, auth token and from number are required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioSender{
		client:      client,
		fromNumber:  cfg.FromNumber,
		countryCode: countryCode,
	}, nil
}

func (t *TwilioSender) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	number, err := NormalizeNumber(to, t.countryCode)
	if err != nil {
		return err
	}

	params := &api.CreateMessageParams{}
	params.SetTo(number)
	params.SetFrom(t.fromNumber)
	params.SetBody(body)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	return nil
}
