package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment variable the binaries read.
const EnvPrefix = "AURORA_"

// loadDotEnv overlays a local .env file onto the process environment unless
// running with ENV=prod. A missing file is not an error.
func loadDotEnv() {
	if os.Getenv("ENV") == "prod" {
		return
	}
	_ = godotenv.Overload()
}

// parseEnv overlays AURORA_* variables onto target. Unset variables leave the
// current value in place.
func parseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
