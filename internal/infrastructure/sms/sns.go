package sms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSSender struct {
	client      *sns.Client
	countryCode string
}

func NewSNSSender(ctx context.Context, region, countryCode string) (*SNSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SNSSender{
		client:      sns.NewFromConfig(cfg),
		countryCode: countryCode,
	}, nil
}

// Ticket messages are transactional so they bypass promotional opt-outs and
// quiet hours.
func (s *SNSSender) Send(ctx context.Context, to, body string) error {
	number, err := NormalizeNumber(to, s.countryCode)
	if err != nil {
		return err
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(number),
		Message:     aws.String(body),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
