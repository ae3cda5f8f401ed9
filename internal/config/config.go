package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime settings. Values come from the environment, optionally seeded from .env.
type Config struct {
	Env      string
	Port     string
	AppURL   string
	LogLevel string

	DatabaseURL    string
	RedisURL       string
	AMQPURL        string
	EventsExchange string

	Midtrans MidtransConfig
	Webhook  WebhookConfig
	Auth     AuthConfig
	Invoice  InvoiceConfig
	Job      JobConfig
	Waha     WahaConfig
	SMTP     SMTPConfig
}

type MidtransConfig struct {
	ServerKey    string
	IsProduction bool
}

type WebhookConfig struct {
	Secret string
	// RequireSignature rejects unsigned callbacks. Defaults to true in production.
	RequireSignature bool
}

type AuthConfig struct {
	Required                bool
	FirebaseCredentialsPath string
}

type InvoiceConfig struct {
	FontPath       string
	CurrencySymbol string
	PageSize       string
	CacheTTL       time.Duration
}

type JobConfig struct {
	BatchSize  int
	ChunkSize  int
	MaxRetries int
	Delay      time.Duration
	RRule      string
}

type WahaConfig struct {
	BaseURL     string
	APIKey      string
	CountryCode string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// IsProduction is the single switch for production-only strictness
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads .env (if any) and the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("EVENTS_EXCHANGE", "restopay.events")
	v.SetDefault("MIDTRANS_IS_PRODUCTION", false)
	v.SetDefault("INVOICE_CURRENCY_SYMBOL", "₹")
	v.SetDefault("INVOICE_PAGE_SIZE", "A4")
	v.SetDefault("INVOICE_CACHE_TTL", 24*time.Hour)
	v.SetDefault("INVOICE_JOB_BATCH_SIZE", 50)
	v.SetDefault("INVOICE_JOB_CHUNK_SIZE", 5)
	v.SetDefault("INVOICE_JOB_MAX_RETRIES", 2)
	v.SetDefault("INVOICE_JOB_DELAY", 2*time.Second)
	v.SetDefault("INVOICE_BACKFILL_RRULE", "FREQ=HOURLY")
	v.SetDefault("WAHA_BASE_URL", "http://waha:3000")
	v.SetDefault("WAHA_COUNTRY_CODE", "91")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json")
	return v
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Env:            v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		AppURL:         strings.TrimRight(v.GetString("APP_URL"), "/"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		RedisURL:       v.GetString("REDIS_URL"),
		AMQPURL:        v.GetString("AMQP_URL"),
		EventsExchange: v.GetString("EVENTS_EXCHANGE"),
		Midtrans: MidtransConfig{
			ServerKey:    v.GetString("MIDTRANS_SERVER_KEY"),
			IsProduction: v.GetBool("MIDTRANS_IS_PRODUCTION"),
		},
		Webhook: WebhookConfig{
			Secret: v.GetString("WEBHOOK_SECRET"),
		},
		Auth: AuthConfig{
			FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		},
		Invoice: InvoiceConfig{
			FontPath:       v.GetString("INVOICE_FONT_PATH"),
			CurrencySymbol: v.GetString("INVOICE_CURRENCY_SYMBOL"),
			PageSize:       v.GetString("INVOICE_PAGE_SIZE"),
			CacheTTL:       v.GetDuration("INVOICE_CACHE_TTL"),
		},
		Job: JobConfig{
			BatchSize:  v.GetInt("INVOICE_JOB_BATCH_SIZE"),
			ChunkSize:  v.GetInt("INVOICE_JOB_CHUNK_SIZE"),
			MaxRetries: v.GetInt("INVOICE_JOB_MAX_RETRIES"),
			Delay:      v.GetDuration("INVOICE_JOB_DELAY"),
			RRule:      v.GetString("INVOICE_BACKFILL_RRULE"),
		},
		Waha: WahaConfig{
			BaseURL:     v.GetString("WAHA_BASE_URL"),
			APIKey:      v.GetString("WAHA_API_KEY"),
			CountryCode: v.GetString("WAHA_COUNTRY_CODE"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			User:     v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASS"),
			From:     v.GetString("EMAIL_FROM"),
		},
	}

	// Production refuses unsigned webhooks and anonymous admin calls unless told otherwise.
	cfg.Webhook.RequireSignature = cfg.IsProduction()
	if v.IsSet("WEBHOOK_REQUIRE_SIGNATURE") {
		cfg.Webhook.RequireSignature = v.GetBool("WEBHOOK_REQUIRE_SIGNATURE")
	}
	cfg.Auth.Required = cfg.IsProduction()
	if v.IsSet("AUTH_REQUIRED") {
		cfg.Auth.Required = v.GetBool("AUTH_REQUIRED")
	}

	return cfg
}
