package mailer

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/config"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMailer publishes verification emails as events keyed by user id.
// Delivery is left to the consumer in cmd/mailer.
type KafkaMailer struct {
	writer messageWriter
	topic  string
	logger logging.Logger
}

func NewKafkaMailer(cfg config.MailConfig, logger logging.Logger) (*KafkaMailer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	if cfg.KafkaTopic == "" {
		return nil, fmt.Errorf("kafka topic is not configured")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	if cfg.KafkaUsername != "" {
		w.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.KafkaUsername, Password: cfg.KafkaPassword},
			TLS:  &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}

	return newKafkaMailer(w, cfg.KafkaTopic, logger), nil
}

func newKafkaMailer(w messageWriter, topic string, logger logging.Logger) *KafkaMailer {
	return &KafkaMailer{
		writer: w,
		topic:  topic,
		logger: logger.With("module", "mailer", "transport", TransportKafka),
	}
}

func (m *KafkaMailer) SendVerification(ctx context.Context, msg models.VerificationEmail) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode verification event: %w", err)
	}

	err = m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(msg.UserID, 10)),
		Value: payload,
		Time:  msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("publish verification event: %w", err)
	}

	m.logger.Debug(ctx, "verification event published", "user_id", msg.UserID, "topic", m.topic)
	return nil
}

func (m *KafkaMailer) Close() error {
	return m.writer.Close()
}
