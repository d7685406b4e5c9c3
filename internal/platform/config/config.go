package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	AppURL      string `env:"APP_URL" default:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	MailingAPIURL string `env:"MAILING_API_URL"`
	MailingAPIKey string `env:"MAILING_API_KEY"`
	MailingListID string `env:"MAILING_LIST_ID"`

	BrevoAPIKey       string `env:"BREVO_API_KEY"`
	CouponSenderEmail string `env:"COUPON_SENDER_EMAIL"`
	CouponSenderName  string `env:"COUPON_SENDER_NAME" default:"Kiosk Rewards"`

	DemoSales bool `env:"DEMO_SALES" default:"false"`

	// KioskOrigins lists extra browser origins allowed on the WebSocket endpoint, space separated.
	KioskOrigins []string `env:"KIOSK_ORIGINS"`

	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"30m"`
	CatalogCacheTTL    time.Duration `env:"CATALOG_CACHE_TTL" default:"1m"`
	CaptureRateLimit   float64       `env:"CAPTURE_RATE_LIMIT" default:"1"`
	CaptureRateBurst   int           `env:"CAPTURE_RATE_BURST" default:"5"`
	PresenterBuffer    int           `env:"PRESENTER_BUFFER" default:"64"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MailingEnabled reports whether a real mailing list API is configured.
func (c *Config) MailingEnabled() bool { return c.MailingAPIURL != "" }

// CouponEmailEnabled reports whether coupon emails go through Brevo.
func (c *Config) CouponEmailEnabled() bool { return c.BrevoAPIKey != "" }

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	if cfg.AppEnv == "production" {
		if mode := sslMode(cfg.DatabaseURL); mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}

	if cfg.MailingAPIURL != "" {
		if _, err := url.ParseRequestURI(cfg.MailingAPIURL); err != nil {
			return fmt.Errorf("MAILING_API_URL must be an absolute URL: %w", err)
		}
		if cfg.MailingAPIKey == "" {
			return errors.New("MAILING_API_KEY is required when MAILING_API_URL is set")
		}
		if cfg.MailingListID == "" {
			return errors.New("MAILING_LIST_ID is required when MAILING_API_URL is set")
		}
	}

	if cfg.BrevoAPIKey != "" && cfg.CouponSenderEmail == "" {
		return errors.New("COUPON_SENDER_EMAIL is required when BREVO_API_KEY is set")
	}

	if cfg.SessionIdleTimeout <= 0 {
		return errors.New("SESSION_IDLE_TIMEOUT must be positive")
	}
	if cfg.CatalogCacheTTL < 0 {
		return errors.New("CATALOG_CACHE_TTL must not be negative")
	}
	if cfg.CaptureRateLimit <= 0 || cfg.CaptureRateBurst < 1 {
		return errors.New("CAPTURE_RATE_LIMIT must be positive and CAPTURE_RATE_BURST at least 1")
	}
	if cfg.PresenterBuffer < 1 {
		return errors.New("PRESENTER_BUFFER must be at least 1")
	}

	return nil
}

func sslMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Query().Get("sslmode"))
}
