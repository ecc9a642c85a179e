package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	Store    StoreConfig
	SeedFile string

	RateLimitPerMinute       int
	RateLimitBurst           int
	TenantRateLimitPerMinute int
	TenantRateLimitBurst     int

	SessionTTL     time.Duration
	CatalogTTL     time.Duration
	Heartbeat      time.Duration
	AlertRetention time.Duration
	AlertCleanup   time.Duration

	Payment   PaymentConfig
	AMQPURL   string
	Push      PushConfig
	Telemetry TelemetryConfig
}

type TelemetryConfig struct {
	Endpoint string
	Insecure bool
}

type StoreConfig struct {
	Driver string
	File   string
	DSN    string
}

type PaymentConfig struct {
	APIURL          string
	AccessToken     string
	WebhookSecret   string
	NotificationURL string
}

func (p PaymentConfig) Enabled() bool {
	return p.AccessToken != ""
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	MaxAttempts     int
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("STORE_FILE", "")
	v.SetDefault("SEED_FILE", "")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("RATE_LIMIT_PER_MIN", 120)
	v.SetDefault("RATE_LIMIT_BURST", 30)
	v.SetDefault("TENANT_RATE_LIMIT_PER_MIN", 600)
	v.SetDefault("TENANT_RATE_LIMIT_BURST", 120)
	v.SetDefault("SESSION_TTL_HOURS", 12)
	v.SetDefault("CATALOG_TTL_SECONDS", 60)
	v.SetDefault("HEARTBEAT_SECONDS", 25)
	v.SetDefault("ALERT_RETENTION_MINUTES", 120)
	v.SetDefault("ALERT_CLEANUP_SECONDS", 60)
	v.SetDefault("PAYMENT_API_URL", "https://api.mercadopago.com")
	v.SetDefault("PAYMENT_ACCESS_TOKEN", "")
	v.SetDefault("PAYMENT_WEBHOOK_SECRET", "")
	v.SetDefault("PAYMENT_NOTIFICATION_URL", "")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("VAPID_PUBLIC_KEY", "")
	v.SetDefault("VAPID_PRIVATE_KEY", "")
	v.SetDefault("VAPID_SUBJECT", "")
	v.SetDefault("PUSH_MAX_ATTEMPTS", 3)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
}

// Load reads defaults, then the optional config file, then the environment.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		Port: v.GetString("PORT"),
		Store: StoreConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
			File:   v.GetString("STORE_FILE"),
			DSN:    v.GetString("DB_DSN"),
		},
		SeedFile:                 v.GetString("SEED_FILE"),
		RateLimitPerMinute:       v.GetInt("RATE_LIMIT_PER_MIN"),
		RateLimitBurst:           v.GetInt("RATE_LIMIT_BURST"),
		TenantRateLimitPerMinute: v.GetInt("TENANT_RATE_LIMIT_PER_MIN"),
		TenantRateLimitBurst:     v.GetInt("TENANT_RATE_LIMIT_BURST"),
		SessionTTL:               hours(v.GetInt("SESSION_TTL_HOURS")),
		CatalogTTL:               seconds(v.GetInt("CATALOG_TTL_SECONDS")),
		Heartbeat:                seconds(v.GetInt("HEARTBEAT_SECONDS")),
		AlertRetention:           time.Duration(v.GetInt("ALERT_RETENTION_MINUTES")) * time.Minute,
		AlertCleanup:             seconds(v.GetInt("ALERT_CLEANUP_SECONDS")),
		Payment: PaymentConfig{
			APIURL:          v.GetString("PAYMENT_API_URL"),
			AccessToken:     v.GetString("PAYMENT_ACCESS_TOKEN"),
			WebhookSecret:   v.GetString("PAYMENT_WEBHOOK_SECRET"),
			NotificationURL: v.GetString("PAYMENT_NOTIFICATION_URL"),
		},
		AMQPURL: v.GetString("AMQP_URL"),
		Push: PushConfig{
			VAPIDPublicKey:  v.GetString("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: v.GetString("VAPID_PRIVATE_KEY"),
			VAPIDSubject:    v.GetString("VAPID_SUBJECT"),
			MaxAttempts:     v.GetInt("PUSH_MAX_ATTEMPTS"),
		},
		Telemetry: TelemetryConfig{
			Endpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure: v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		},
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("DB_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	return nil
}

func hours(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Hour
}

func seconds(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}
