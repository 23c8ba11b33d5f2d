package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"busticket/internal/domain/event"
	"busticket/internal/domain/inbox"
	"busticket/internal/domain/notification"

	"github.com/segmentio/kafka-go"
)

// MessageSource is the part of a Kafka reader the consumer needs.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ConsumerConfig struct {
	Name        string
	MaxRetries  int
	BaseBackoff time.Duration
	SendTimeout time.Duration
}

// Consumer delivers TicketIssued notifications by SMS. Each event is recorded
// in the inbox in the same transaction as the send, so a redelivered event is
// not sent twice once it has succeeded.
type Consumer struct {
	source    MessageSource
	txManager Transactor
	inbox     inbox.Repository
	sender    Sender
	cfg       ConsumerConfig
	logger    *slog.Logger
}

func NewConsumer(source MessageSource, txManager Transactor, inboxRepo inbox.Repository, sender Sender, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	if cfg.Name == "" {
		cfg.Name = "ticket-notifier"
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Consumer{
		source:    source,
		txManager: txManager,
		inbox:     inboxRepo,
		sender:    sender,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Notifier started", "consumer", c.cfg.Name)

	for {
		msg, err := c.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Notifier stopping")
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			if err := sleep(ctx, time.Second); err != nil {
				return nil
			}
			continue
		}

		if err := c.Handle(ctx, msg); err != nil {
			return nil
		}
	}
}

// Handle processes one message with retries and commits it. The only error
// it returns is ctx's, when shutdown interrupts a backoff.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.BaseBackoff * time.Duration(1<<attempt)
			c.logger.Info("Retry attempt", "attempt", attempt, "max", c.cfg.MaxRetries, "backoff", backoff)
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
		}

		processErr := c.process(ctx, msg)
		if processErr == nil {
			c.commit(ctx, msg)
			return nil
		}

		c.logger.Error("Processing failed", "error", processErr, "attempt", attempt)
		if attempt == c.cfg.MaxRetries {
			c.logger.Error("DLQ: Dropping message after retries", "retries", c.cfg.MaxRetries, "error", processErr)
			messagesDropped.Inc()
			c.commit(ctx, msg)
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	var ev event.Message
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.Error("failed to unmarshal event envelope", "error", err)
		return nil
	}

	if ev.Type != event.TypeTicketIssued {
		return nil
	}

	var n notification.Notification
	if err := json.Unmarshal(ev.Payload, &n); err != nil {
		c.logger.Error("failed to unmarshal notification", "event_id", ev.ID, "error", err)
		return nil
	}

	return c.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		isNew, err := c.inbox.SaveIfNotExists(ctx, c.cfg.Name, ev.ID, ev.Type, ev.CorrelationID)
		if err != nil {
			return fmt.Errorf("inbox save: %w", err)
		}
		if !isNew {
			c.logger.Info("Duplicate event skipped", "event_id", ev.ID, "ticket_id", n.TicketID)
			return nil
		}

		sendCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
		defer cancel()

		if err := c.sender.Send(sendCtx, n.To, n.Body); err != nil {
			smsFailed.Inc()
			return fmt.Errorf("send sms for ticket %s: %w", n.TicketNumber, err)
		}

		smsSent.Inc()
		c.logger.Info("Ticket SMS sent", "ticket_id", n.TicketID, "ticket_number", n.TicketNumber, "event_id", ev.ID)
		return nil
	})
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.source.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit kafka message", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
