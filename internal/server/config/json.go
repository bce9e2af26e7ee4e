package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aurorasketchpad/aurora/internal/flagx"
	"github.com/aurorasketchpad/aurora/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration file.
// Pointer and zero values mean "keep what earlier layers set".
type JsonConfig struct {
	HTTPAddr        string          `json:"http_addr"`
	HealthAddrGRPC  string          `json:"grpc_health_addr"`
	DatabaseDriver  string          `json:"database_driver"`
	DatabaseDSN     string          `json:"database_dsn"`
	JWTSecret       string          `json:"jwt_secret"`
	SessionTTL      *timex.Duration `json:"session_ttl"`
	PasswordScheme  string          `json:"password_scheme"`
	BcryptCost      int             `json:"bcrypt_cost"`
	FrontendURL     string          `json:"frontend_url"`
	PublicBaseURL   string          `json:"public_base_url"`
	CORSOrigins     []string        `json:"cors_origins"`
	Google          *OAuthClient    `json:"google"`
	GitHub          *OAuthClient    `json:"github"`
	OAuthStateStore string          `json:"oauth_state_store"`
	OAuthStateTTL   *timex.Duration `json:"oauth_state_ttl"`
	RedisAddr       string          `json:"redis_addr"`
	MailTransport   string          `json:"mail_transport"`
	MailFrom        string          `json:"mail_from"`
	SMTPHost        string          `json:"smtp_host"`
	SMTPPort        int             `json:"smtp_port"`
	SMTPUser        string          `json:"smtp_user"`
	SMTPPassword    string          `json:"smtp_password"`
	KafkaBrokers    []string        `json:"kafka_brokers"`
	KafkaTopic      string          `json:"kafka_topic"`
	PreviewStorage  string          `json:"preview_storage"`
	S3AccessKey     string          `json:"s3_access_key"`
	S3SecretKey     string          `json:"s3_secret_key"`
	S3Bucket        string          `json:"s3_bucket"`
	S3Region        string          `json:"s3_region"`
	S3Endpoint      string          `json:"s3_endpoint"`
	LogBackend      string          `json:"log_backend"`
	Debug           *bool           `json:"debug"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJson loads the file named by -c/-config in args, if any, and copies
// every value it sets onto config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.HealthAddrGRPC, c.HealthAddrGRPC)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.JWTSecret, c.JWTSecret)
	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	setString(&config.PasswordScheme, c.PasswordScheme)
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	setString(&config.FrontendURL, c.FrontendURL)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}
	if c.Google != nil {
		config.Google = *c.Google
	}
	if c.GitHub != nil {
		config.GitHub = *c.GitHub
	}
	setString(&config.OAuthStateStore, c.OAuthStateStore)
	if c.OAuthStateTTL != nil {
		config.OAuthStateTTL = c.OAuthStateTTL.Duration
	}
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.Mail.Transport, c.MailTransport)
	setString(&config.Mail.From, c.MailFrom)
	setString(&config.Mail.SMTPHost, c.SMTPHost)
	if c.SMTPPort != 0 {
		config.Mail.SMTPPort = c.SMTPPort
	}
	setString(&config.Mail.SMTPUser, c.SMTPUser)
	setString(&config.Mail.SMTPPassword, c.SMTPPassword)
	if c.KafkaBrokers != nil {
		config.Mail.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.Mail.KafkaTopic, c.KafkaTopic)
	setString(&config.Previews.Storage, c.PreviewStorage)
	setString(&config.Previews.S3AccessKey, c.S3AccessKey)
	setString(&config.Previews.S3SecretKey, c.S3SecretKey)
	setString(&config.Previews.S3Bucket, c.S3Bucket)
	setString(&config.Previews.S3Region, c.S3Region)
	setString(&config.Previews.S3Endpoint, c.S3Endpoint)
	setString(&config.LogBackend, c.LogBackend)
	if c.Debug != nil {
		config.Debug = *c.Debug
	}
	return nil
}
