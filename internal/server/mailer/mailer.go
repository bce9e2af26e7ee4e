// Package mailer delivers account verification emails. The server picks a
// transport from configuration; the kafka transport is drained by the
// cmd/mailer consumer, which sends through SMTP.
package mailer

import (
	"context"
	"fmt"

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/config"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

// Transport names accepted by New.
const (
	TransportLog   = "log"
	TransportSMTP  = "smtp"
	TransportKafka = "kafka"
)

// Mailer sends a verification email and releases its transport on Close.
type Mailer interface {
	SendVerification(ctx context.Context, msg models.VerificationEmail) error
	Close() error
}

// New returns the Mailer selected by cfg.Transport.
func New(cfg config.MailConfig, logger logging.Logger) (Mailer, error) {
	switch cfg.Transport {
	case "", TransportLog:
		return NewLogMailer(logger), nil
	case TransportSMTP:
		return NewSMTPMailer(cfg, logger)
	case TransportKafka:
		return NewKafkaMailer(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}
