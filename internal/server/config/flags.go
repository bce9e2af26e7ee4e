package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/aurorasketchpad/aurora/internal/flagx"
)

// parseFlags overlays selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g. ":3001")
//	-g string   gRPC health bind address
//	-k string   database driver: postgres | sqlite
//	-d string   database DSN
//	-s string   JWT HMAC secret
//	-t int      session lifetime, hours
//	-f string   frontend origin used in emails and OAuth redirects
//	-l string   log backend: slog | zap
//
// Args are filtered through flagx.FilterArgs first so -c and unknown flags
// do not trip the parser.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-k", "-d", "-s", "-t", "-f", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address")
	fs.StringVar(&config.HealthAddrGRPC, "g", config.HealthAddrGRPC, "gRPC health address")
	fs.StringVar(&config.DatabaseDriver, "k", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT secret")
	sessionHours := fs.Int("t", int(config.SessionTTL.Hours()), "session lifetime (in hours)")
	fs.StringVar(&config.FrontendURL, "f", config.FrontendURL, "frontend origin")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	config.SessionTTL = time.Duration(*sessionHours) * time.Hour
	return nil
}
