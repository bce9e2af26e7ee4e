// Command mailer consumes verification events from Kafka and delivers them
// over SMTP.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/config"
	"github.com/aurorasketchpad/aurora/internal/server/mailer"
)

func main() {

	cfg, err := config.LoadMailerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogBackend, cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// without an SMTP host (dev only) links are just logged
	var sender mailer.Sender
	if cfg.Mail.SMTPHost != "" {
		smtp, err := mailer.NewSMTPMailer(cfg.Mail, logger)
		if err != nil {
			logger.Error(ctx, "smtp init failed", "error", err)
			return
		}
		sender = smtp
	} else {
		sender = mailer.NewLogMailer(logger)
	}

	consumer := mailer.NewConsumer(*cfg, sender, logger)
	defer consumer.Close()

	logger.Info(ctx, "mailer started", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	if err := consumer.Run(ctx); err != nil {
		logger.Error(ctx, "consumer stopped", "error", err)
	}
}
