package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/config"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

//go:embed templates/*.html
var templates embed.FS

var verifyTemplate = template.Must(template.ParseFS(templates, "templates/verify_email.html"))

const (
	smtpDialTimeout = 8 * time.Second
	smtpConnTimeout = 15 * time.Second
)

// SMTPMailer renders the verification template and sends it over SMTP,
// upgrading with STARTTLS when the server offers it.
type SMTPMailer struct {
	cfg    config.MailConfig
	addr   string
	logger logging.Logger

	// send delivers a fully built message.
	send func(ctx context.Context, to string, msg []byte) error
}

func NewSMTPMailer(cfg config.MailConfig, logger logging.Logger) (*SMTPMailer, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("smtp host is not configured")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail sender address is not configured")
	}
	m := &SMTPMailer{
		cfg:    cfg,
		addr:   net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		logger: logger.With("module", "mailer", "transport", TransportSMTP),
	}
	m.send = m.sendSMTP
	return m, nil
}

func (m *SMTPMailer) SendVerification(ctx context.Context, msg models.VerificationEmail) error {
	body, err := m.buildMessage(msg)
	if err != nil {
		return err
	}

	if err := m.send(ctx, msg.Email, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.Email, err)
	}

	m.logger.Info(ctx, "verification email sent", "user_id", msg.UserID, "via", m.addr)
	return nil
}

func (m *SMTPMailer) Close() error { return nil }

func (m *SMTPMailer) buildMessage(msg models.VerificationEmail) ([]byte, error) {
	var html bytes.Buffer
	if err := verifyTemplate.Execute(&html, msg); err != nil {
		return nil, fmt.Errorf("render verification template: %w", err)
	}

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.cfg.FromName), m.cfg.From)
	}

	headers := strings.Join([]string{
		"From: " + from,
		"To: " + msg.Email,
		"Subject: " + mime.QEncoding.Encode("utf-8", m.cfg.Subject),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		"",
	}, "\r\n")

	return append([]byte(headers), html.Bytes()...), nil
}

func (m *SMTPMailer) sendSMTP(ctx context.Context, to string, msg []byte) error {
	d := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(smtpConnTimeout))

	c, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.SMTPHost}); err != nil {
			return err
		}
	}
	if m.cfg.SMTPUser != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)); err != nil {
			return err
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
