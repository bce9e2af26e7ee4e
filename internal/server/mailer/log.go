package mailer

import (
	"context"

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

// LogMailer writes the verification link to the log instead of sending it.
// Intended for local development.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mailer", "transport", TransportLog)}
}

func (m *LogMailer) SendVerification(ctx context.Context, msg models.VerificationEmail) error {
	m.logger.Info(ctx, "verification email", "user_id", msg.UserID, "email", msg.Email, "link", msg.Link)
	return nil
}

func (m *LogMailer) Close() error { return nil }
