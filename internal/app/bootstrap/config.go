package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for M46.
// Empty store URLs select in-process fallbacks so the service boots locally
// without infrastructure.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	MaxDBConns  int32
	RedisURL    string

	KafkaBrokers     []string
	KafkaTopicPrefix string

	StripeSecretKey        string
	StripeWebhookSecret    string
	StripeAPIURL           string
	WebhookTolerance       time.Duration
	WebhookTimeout         time.Duration
	PaymentMethodLookupTTL time.Duration

	DefaultCurrency string

	JWTSecret string
	JWTIssuer string

	EventDedupTTL time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors configs/default.yaml. Secrets are read from the
// environment only.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL      string   `yaml:"postgres_url"`
		RedisURL         string   `yaml:"redis_url"`
		KafkaBrokers     []string `yaml:"kafka_brokers"`
		KafkaTopicPrefix string   `yaml:"kafka_topic_prefix"`
	} `yaml:"dependencies"`
	Stripe struct {
		APIURL                  string `yaml:"api_url"`
		WebhookToleranceSeconds int    `yaml:"webhook_tolerance_seconds"`
	} `yaml:"stripe"`
	Invoicing struct {
		DefaultCurrency    string `yaml:"default_currency"`
		EventDedupTTLHours int    `yaml:"event_dedup_ttl_hours"`
	} `yaml:"invoicing"`
	Auth struct {
		JWTIssuer string `yaml:"jwt_issuer"`
	} `yaml:"auth"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error. Missing gateway secrets never fail boot; the
// operations that need them report a configuration error when called.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:              "M46-Invoice-Reconciliation-Service",
		HTTPPort:               8080,
		GRPCPort:               9090,
		MaxDBConns:             20,
		KafkaTopicPrefix:       "mesh.invoicing",
		WebhookTolerance:       5 * time.Minute,
		WebhookTimeout:         10 * time.Second,
		PaymentMethodLookupTTL: 2 * time.Second,
		DefaultCurrency:        "usd",
		EventDedupTTL:          7 * 24 * time.Hour,
		OutboxPollInterval:     2 * time.Second,
		OutboxBatchSize:        100,
		OutboxClaimTTL:         30 * time.Second,
		OutboxMaxRetries:       5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Dependencies.KafkaTopicPrefix != "" {
			cfg.KafkaTopicPrefix = f.Dependencies.KafkaTopicPrefix
		}
		if f.Stripe.APIURL != "" {
			cfg.StripeAPIURL = f.Stripe.APIURL
		}
		if f.Stripe.WebhookToleranceSeconds > 0 {
			cfg.WebhookTolerance = time.Duration(f.Stripe.WebhookToleranceSeconds) * time.Second
		}
		if f.Invoicing.DefaultCurrency != "" {
			cfg.DefaultCurrency = f.Invoicing.DefaultCurrency
		}
		if f.Invoicing.EventDedupTTLHours > 0 {
			cfg.EventDedupTTL = time.Duration(f.Invoicing.EventDedupTTLHours) * time.Hour
		}
		if f.Auth.JWTIssuer != "" {
			cfg.JWTIssuer = f.Auth.JWTIssuer
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopicPrefix = envOrDefault("KAFKA_TOPIC_PREFIX", cfg.KafkaTopicPrefix)
	cfg.StripeSecretKey = envOrDefault("STRIPE_SECRET_KEY", cfg.StripeSecretKey)
	cfg.StripeWebhookSecret = envOrDefault("STRIPE_WEBHOOK_SECRET", cfg.StripeWebhookSecret)
	cfg.StripeAPIURL = envOrDefault("STRIPE_API_URL", cfg.StripeAPIURL)
	cfg.DefaultCurrency = strings.ToLower(strings.TrimSpace(envOrDefault("DEFAULT_CURRENCY", cfg.DefaultCurrency)))
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.WebhookTolerance = time.Duration(envInt("WEBHOOK_TOLERANCE_SECONDS", int(cfg.WebhookTolerance.Seconds()))) * time.Second
	cfg.WebhookTimeout = time.Duration(envInt("WEBHOOK_TIMEOUT_SECONDS", int(cfg.WebhookTimeout.Seconds()))) * time.Second
	cfg.PaymentMethodLookupTTL = time.Duration(envInt("PAYMENT_METHOD_LOOKUP_TIMEOUT_MS", int(cfg.PaymentMethodLookupTTL.Milliseconds()))) * time.Millisecond
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.HTTPPort <= 0 || cfg.GRPCPort <= 0 {
		return Config{}, fmt.Errorf("invalid ports: http=%d grpc=%d", cfg.HTTPPort, cfg.GRPCPort)
	}
	if len(cfg.DefaultCurrency) != 3 {
		return Config{}, fmt.Errorf("invalid DEFAULT_CURRENCY %q", cfg.DefaultCurrency)
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
