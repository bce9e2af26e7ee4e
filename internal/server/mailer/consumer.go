package mailer

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/sethvargo/go-retry"

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/config"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sender is the delivery side of the consumer, normally an SMTPMailer.
type Sender interface {
	SendVerification(ctx context.Context, msg models.VerificationEmail) error
}

// Consumer drains verification events from Kafka and hands them to a Sender.
// A message is committed once it was sent or once retries are exhausted, so
// a broken address never blocks its partition.
type Consumer struct {
	reader     messageReader
	sender     Sender
	logger     logging.Logger
	newBackoff func() retry.Backoff
}

func NewConsumer(cfg config.MailerConfig, sender Sender, logger logging.Logger) *Consumer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if cfg.Mail.KafkaUsername != "" {
		dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
		dialer.SASLMechanism = plain.Mechanism{Username: cfg.Mail.KafkaUsername, Password: cfg.Mail.KafkaPassword}
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})

	return newConsumer(r, sender, logger)
}

func newConsumer(r messageReader, sender Sender, logger logging.Logger) *Consumer {
	return &Consumer{
		reader: r,
		sender: sender,
		logger: logger.With("module", "mailer-consumer"),
		newBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(4, retry.NewExponential(500*time.Millisecond))
		},
	}
}

// Run blocks until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var ev models.VerificationEmail
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.Error(ctx, "dropping undecodable event", "offset", msg.Offset, "error", err)
		return
	}
	if ev.Email == "" || ev.Link == "" {
		c.logger.Error(ctx, "dropping incomplete event", "offset", msg.Offset, "user_id", ev.UserID)
		return
	}

	err := retry.Do(ctx, c.newBackoff(), func(ctx context.Context) error {
		if err := c.sender.SendVerification(ctx, ev); err != nil {
			c.logger.Warn(ctx, "send failed, retrying", "user_id", ev.UserID, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		c.logger.Error(ctx, "giving up on verification email", "user_id", ev.UserID, "error", err)
		return
	}

	c.logger.Info(ctx, "verification email delivered", "user_id", ev.UserID, "offset", msg.Offset)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
