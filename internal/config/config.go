// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     string
	Postgres PostgresConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	Auth     AuthConfig
	Twilio   TwilioConfig
	Telegram TelegramConfig
	Limits   LimitsConfig

	// TrackingBaseURL is prefixed to the request id to build the tracking link
	// sent in notification templates.
	TrackingBaseURL string
	CatalogStrict   bool
}

type PostgresConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MongoConfig struct {
	URI      string
	Database string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type TwilioConfig struct {
	AccountSID            string
	AuthToken             string
	From                  string
	RequestCreatedContent string
	QuoteResponseContent  string
}

type TelegramConfig struct {
	BotToken  string
	ChannelID int64
}

type LimitsConfig struct {
	PerMinute int
	Burst     int
}

// Load reads configuration from environment variables. In development a .env
// file in the working directory is loaded first, if present.
func Load() (Config, error) {
	if getEnv("APP_ENV", "development") == "development" {
		_ = godotenv.Load()
	}

	cfg := Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		Postgres: PostgresConfig{
			DSN: getEnv("DATABASE_URL", "host=localhost user=user password=password dbname=prontoapp port=5432 sslmode=disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "prontoapp"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "prontoapp-auth"),
		},
		Twilio: TwilioConfig{
			AccountSID:            getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:             getEnv("TWILIO_AUTH_TOKEN", ""),
			From:                  getEnv("WHATSAPP_FROM", DefaultWhatsAppFrom),
			RequestCreatedContent: getEnv("TWILIO_TEMPLATE_REQUEST_CREATED", DefaultRequestCreatedTemplate),
			QuoteResponseContent:  getEnv("TWILIO_TEMPLATE_QUOTE_RESPONSE", DefaultQuoteResponseTemplate),
		},
		Telegram: TelegramConfig{
			BotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChannelID: getEnvInt64("TELEGRAM_CHANNEL_ID", 0),
		},
		Limits: LimitsConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", DefaultRateLimitPerMinute),
			Burst:     getEnvInt("RATE_LIMIT_BURST", DefaultRateLimitBurst),
		},
		TrackingBaseURL: getEnv("TRACKING_BASE_URL", DefaultTrackingBaseURL),
		CatalogStrict:   getEnvBool("CATALOG_STRICT", true),
	}

	if cfg.Auth.JWTSecret == "" {
		if cfg.IsProduction() {
			return Config{}, fmt.Errorf("JWT_SECRET is required")
		}
		cfg.Auth.JWTSecret = "dev-only-secret"
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != ""
}

func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != 0
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
