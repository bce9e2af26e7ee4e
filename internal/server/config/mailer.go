package config

import (
	"fmt"
	"os"
)

// MailerConfig configures the standalone worker that consumes verification
// events from Kafka and delivers them over SMTP.
type MailerConfig struct {
	KafkaBrokers []string   `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string     `env:"KAFKA_TOPIC"`
	KafkaGroupID string     `env:"KAFKA_GROUP_ID"`
	Mail         MailConfig `envPrefix:"MAIL_"`
	LogBackend   string     `env:"LOG_BACKEND"`
	Debug        bool       `env:"DEBUG"`
}

func (c *MailerConfig) LoadDefaults() {
	c.KafkaBrokers = []string{"127.0.0.1:9092"}
	c.KafkaTopic = "user.verify-email"
	c.KafkaGroupID = "aurora-mailer"
	c.Mail = MailConfig{
		Transport: "smtp",
		From:      "no-reply@aurora.local",
		FromName:  "Aurora Sketchpad",
		Subject:   "Verify your Aurora Sketchpad account",
		SMTPPort:  587,
	}
	c.LogBackend = "slog"
}

// LoadMailerConfig applies defaults, .env and AURORA_* environment variables.
func LoadMailerConfig() (*MailerConfig, error) {
	cfg := &MailerConfig{}
	cfg.LoadDefaults()

	loadDotEnv()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
		return nil, fmt.Errorf("mailer needs kafka brokers and a topic")
	}
	if cfg.Mail.SMTPHost == "" && os.Getenv("ENV") == "prod" {
		return nil, fmt.Errorf("mailer needs an SMTP host in prod")
	}
	return cfg, nil
}
