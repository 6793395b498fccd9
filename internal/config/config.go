package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// Environment
	// ----------------------------
	Env string `envconfig:"APP_ENV" default:"development"`

	// ----------------------------
	// SMTP (primary email transport)
	// ----------------------------
	SMTPHost     string `envconfig:"SMTP_HOST" default:""`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"noreply@notiflow.io"`

	// ----------------------------
	// Mailgun (secondary email transport)
	// ----------------------------
	MailgunDomain string `envconfig:"MAILGUN_DOMAIN" default:""`
	MailgunAPIKey string `envconfig:"MAILGUN_API_KEY" default:""`
	MailgunSender string `envconfig:"MAILGUN_SENDER" default:"noreply@notiflow.io"`

	// ----------------------------
	// SMS gateway
	// ----------------------------
	SMSGatewayURL string `envconfig:"SMS_GATEWAY_URL" default:""`
	SMSGatewayKey string `envconfig:"SMS_GATEWAY_KEY" default:""`
	SMSFrom       string `envconfig:"SMS_FROM" default:"NotiFlow"`

	// ----------------------------
	// Templates
	// ----------------------------
	TemplatesDir string `envconfig:"TEMPLATES_DIR" default:"templates"`

	// ----------------------------
	// Queue lanes
	// ----------------------------
	EmailWorkers int `envconfig:"EMAIL_WORKERS" default:"8"`
	SMSWorkers   int `envconfig:"SMS_WORKERS" default:"4"`
	BulkWorkers  int `envconfig:"BULK_WORKERS" default:"2"`

	EmailRateLimit int `envconfig:"EMAIL_RATE_LIMIT" default:"20"`
	SMSRateLimit   int `envconfig:"SMS_RATE_LIMIT" default:"5"`
	BulkRateLimit  int `envconfig:"BULK_RATE_LIMIT" default:"2"`

	// ----------------------------
	// Retry / recovery
	// ----------------------------
	MaxAttempts   int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	BackoffBase   time.Duration `envconfig:"BACKOFF_BASE" default:"2s"`
	StallTimeout  time.Duration `envconfig:"STALL_TIMEOUT" default:"2m"`
	PollInterval  time.Duration `envconfig:"POLL_INTERVAL" default:"500ms"`
	KeepCompleted int           `envconfig:"KEEP_COMPLETED" default:"200"`
	KeepFailed    int           `envconfig:"KEEP_FAILED" default:"500"`

	// ----------------------------
	// Bulk fan-out
	// ----------------------------
	BulkChunkSize   int `envconfig:"BULK_CHUNK_SIZE" default:"50"`
	BulkConcurrency int `envconfig:"BULK_CONCURRENCY" default:"4"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Database (optional in development: jobs fall back to the
	// in-memory store, audit/preferences/templates are skipped)
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}

// Development reports whether mock transports and the in-memory job
// store are permitted.
func (c *Config) Development() bool {
	return c.Env == "development" || c.Env == "test"
}
