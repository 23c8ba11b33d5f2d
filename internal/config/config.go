package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App        App        `yaml:"app"`
	HTTP       HTTP       `yaml:"http"`
	Log        Log        `yaml:"log"`
	Postgres   Postgres   `yaml:"postgres"`
	Redis      Redis      `yaml:"redis"`
	Kafka      Kafka      `yaml:"kafka"`
	Ticket     Ticket     `yaml:"ticket"`
	Credential Credential `yaml:"credential"`
	Razorpay   Razorpay   `yaml:"razorpay"`
	SMS        SMS        `yaml:"sms"`
	Notify     Notify     `yaml:"notify"`
	Worker     Worker     `yaml:"worker"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"busticket"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port         string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	// RequestTimeout bounds every store call made on behalf of a request.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"8s"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"busticket"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env:"POSTGRES_MAX_CONNS" env-default:"10"`
	Migrate  bool   `yaml:"migrate" env:"POSTGRES_MIGRATE" env-default:"true"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"ticket-events"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"ticket-notifier"`
	// StartOffset applies only when the group has no committed offset: earliest or latest.
	StartOffset string `yaml:"start_offset" env:"KAFKA_START_OFFSET" env-default:"earliest"`
}

type Ticket struct {
	TTL      time.Duration `yaml:"ttl" env:"TICKET_TTL" env-default:"24h"`
	MaxScans int           `yaml:"max_scans" env:"TICKET_MAX_SCANS" env-default:"2"`
	Currency string        `yaml:"currency" env:"TICKET_CURRENCY" env-default:"INR"`
	// DisplayUTCOffset is the civil timezone used when rendering timestamps.
	DisplayUTCOffset time.Duration `yaml:"display_utc_offset" env:"TICKET_DISPLAY_UTC_OFFSET" env-default:"5h30m"`
	DisplayZoneName  string        `yaml:"display_zone_name" env:"TICKET_DISPLAY_ZONE_NAME" env-default:"IST"`
}

type Credential struct {
	BaseURL string `yaml:"base_url" env:"CREDENTIAL_BASE_URL" env-default:"http://localhost:8080"`
	Issuer  string `yaml:"issuer" env:"CREDENTIAL_ISSUER" env-default:"busticket"`
	Secret  string `yaml:"secret" env:"CREDENTIAL_SECRET" env-required:"true"`
}

type Razorpay struct {
	KeyID     string `yaml:"key_id" env:"RAZORPAY_KEY_ID"`
	KeySecret string `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET"`
}

type SMS struct {
	Provider string `yaml:"provider" env:"SMS_PROVIDER" env-default:"twilio"`
	// DefaultCountryCode is prefixed to bare national mobile numbers.
	DefaultCountryCode string `yaml:"default_country_code" env:"SMS_DEFAULT_COUNTRY_CODE" env-default:"+91"`
	Twilio   Twilio `yaml:"twilio"`
	AWS      AWS    `yaml:"aws"`
}

type Twilio struct {
	AccountSID string `yaml:"account_sid" env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `yaml:"auth_token" env:"TWILIO_AUTH_TOKEN"`
	FromNumber string `yaml:"from_number" env:"TWILIO_PHONE_NUMBER"`
}

type AWS struct {
	Region string `yaml:"region" env:"AWS_REGION" env-default:"ap-south-1"`
}

type Notify struct {
	DispatchTimeout time.Duration `yaml:"dispatch_timeout" env:"NOTIFY_DISPATCH_TIMEOUT" env-default:"2s"`
	MaxRetries      int           `yaml:"max_retries" env:"NOTIFY_MAX_RETRIES" env-default:"5"`
	BaseBackoff     time.Duration `yaml:"base_backoff" env:"NOTIFY_BASE_BACKOFF" env-default:"1s"`
	SendTimeout     time.Duration `yaml:"send_timeout" env:"NOTIFY_SEND_TIMEOUT" env-default:"10s"`
	MetricsPort     string        `yaml:"metrics_port" env:"NOTIFY_METRICS_PORT" env-default:"9091"`
}

type Worker struct {
	PollInterval  time.Duration `yaml:"poll_interval" env:"WORKER_POLL_INTERVAL" env-default:"2s"`
	BatchSize     int           `yaml:"batch_size" env:"WORKER_BATCH_SIZE" env-default:"10"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"WORKER_SWEEP_INTERVAL" env-default:"1m"`
	MetricsPort   string        `yaml:"metrics_port" env:"WORKER_METRICS_PORT" env-default:"9093"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config env override: %w", err)
		}
	}

	if cfg.Credential.Secret == "" {
		return nil, fmt.Errorf("config error: credential secret is required")
	}
	if cfg.Ticket.MaxScans < 1 {
		return nil, fmt.Errorf("config error: ticket max_scans must be positive, got %d", cfg.Ticket.MaxScans)
	}

	return cfg, nil
}

// SlogLevel parses Level, falling back to info.
func (l Log) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Location is the fixed zone timestamps are shown in.
func (t Ticket) Location() *time.Location {
	return time.FixedZone(t.DisplayZoneName, int(t.DisplayUTCOffset/time.Second))
}

// DSN builds a libpq-style connection string for pgxpool.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}
