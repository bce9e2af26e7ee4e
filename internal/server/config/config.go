// Package config handles configuration for the API server and the mailer
// worker: defaults, .env files, AURORA_* environment variables, a JSON
// overlay and command-line flags, applied in that order.
package config

import (
	"fmt"
	"os"
	"time"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// OAuthClient holds the credentials registered with one OAuth provider.
type OAuthClient struct {
	ClientID     string `env:"CLIENT_ID"     json:"client_id"`
	ClientSecret string `env:"CLIENT_SECRET" json:"client_secret"`
}

// Enabled reports whether both halves of the credential are set.
func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// MailConfig selects how verification emails leave the server.
//
// Transport is one of "log", "smtp" or "kafka".
type MailConfig struct {
	Transport    string   `env:"TRANSPORT"`
	From         string   `env:"FROM"`
	FromName     string   `env:"FROM_NAME"`
	Subject      string   `env:"SUBJECT"`
	SMTPHost     string   `env:"SMTP_HOST"`
	SMTPPort     int      `env:"SMTP_PORT"`
	SMTPUser     string   `env:"SMTP_USER"`
	SMTPPassword string   `env:"SMTP_PASSWORD"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"`

	// KafkaUsername enables SASL/PLAIN over TLS when set.
	KafkaUsername string `env:"KAFKA_USERNAME"`
	KafkaPassword string `env:"KAFKA_PASSWORD"`
}

// PreviewConfig selects where project preview images are kept.
//
// Storage is "inline" (data URL in the project row) or "s3".
type PreviewConfig struct {
	Storage     string        `env:"STORAGE"`
	S3AccessKey string        `env:"S3_ACCESS_KEY"`
	S3SecretKey string        `env:"S3_SECRET_KEY"`
	S3Bucket    string        `env:"S3_BUCKET"`
	S3Region    string        `env:"S3_REGION"`
	S3Endpoint  string        `env:"S3_ENDPOINT"`
	PresignTTL  time.Duration `env:"PRESIGN_TTL"`
}

// Config holds runtime settings for the API server.
type Config struct {
	HTTPAddr       string `env:"HTTP_ADDR"`
	HealthAddrGRPC string `env:"GRPC_HEALTH_ADDR"`

	DatabaseDriver string `env:"DB_DRIVER"`
	DatabaseDSN    string `env:"DATABASE_DSN"`

	// JWTSecret signs session tokens (HS256). The default is for development only.
	JWTSecret      string        `env:"JWT_SECRET"`
	SessionTTL     time.Duration `env:"SESSION_TTL"`
	PasswordScheme string        `env:"PASSWORD_SCHEME"`
	BcryptCost     int           `env:"BCRYPT_COST"`

	FrontendURL   string   `env:"FRONTEND_URL"`
	PublicBaseURL string   `env:"PUBLIC_BASE_URL"`
	CORSOrigins   []string `env:"CORS_ORIGINS" envSeparator:","`

	Google          OAuthClient   `envPrefix:"GOOGLE_"`
	GitHub          OAuthClient   `envPrefix:"GITHUB_"`
	OAuthStateStore string        `env:"OAUTH_STATE_STORE"`
	OAuthStateTTL   time.Duration `env:"OAUTH_STATE_TTL"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB"`

	Mail     MailConfig    `envPrefix:"MAIL_"`
	Previews PreviewConfig `envPrefix:"PREVIEW_"`

	LogBackend string `env:"LOG_BACKEND"`
	Debug      bool   `env:"DEBUG"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret and S3 credentials must be overridden in production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":3001"
	c.HealthAddrGRPC = ":50051"
	c.DatabaseDriver = DriverSQLite
	c.DatabaseDSN = "file:aurora.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	c.JWTSecret = "aurora-dev-secret"
	c.SessionTTL = 7 * 24 * time.Hour
	c.PasswordScheme = "bcrypt"
	c.BcryptCost = 10
	c.FrontendURL = "http://localhost:5173"
	c.PublicBaseURL = "http://localhost:3001"
	c.CORSOrigins = []string{"http://localhost:5173"}
	c.OAuthStateStore = "memory"
	c.OAuthStateTTL = 10 * time.Minute
	c.RedisAddr = "127.0.0.1:6379"
	c.Mail = MailConfig{
		Transport:  "log",
		From:       "no-reply@aurora.local",
		FromName:   "Aurora Sketchpad",
		Subject:    "Verify your Aurora Sketchpad account",
		SMTPPort:   587,
		KafkaTopic: "user.verify-email",
	}
	c.Previews = PreviewConfig{
		Storage:    "inline",
		S3Bucket:   "aurora-previews",
		S3Region:   "us-east-1",
		PresignTTL: 15 * time.Minute,
	}
	c.LogBackend = "slog"
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must not be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	switch c.Mail.Transport {
	case "log", "smtp", "kafka":
	default:
		return fmt.Errorf("unsupported mail transport %q", c.Mail.Transport)
	}
	if c.Mail.Transport == "kafka" && len(c.Mail.KafkaBrokers) == 0 {
		return fmt.Errorf("kafka mail transport requires at least one broker")
	}
	switch c.Previews.Storage {
	case "inline", "s3":
	default:
		return fmt.Errorf("unsupported preview storage %q", c.Previews.Storage)
	}
	switch c.OAuthStateStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported oauth state store %q", c.OAuthStateStore)
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then .env and environment
// variables, then an optional JSON file and finally command-line flags.
func LoadConfig() (*Config, error) {
	args := os.Args[1:]

	cfg := &Config{}
	cfg.LoadDefaults()

	loadDotEnv()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
