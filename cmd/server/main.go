package main

import (
	"context"
	"log"

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server"
	"github.com/aurorasketchpad/aurora/internal/server/config"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogBackend, cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		return
	}

	app.Run(ctx)

}
