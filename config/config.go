// Package config holds the environment-backed configuration for
// priceguard, in the same flat-struct LoadConfig-from-environment style
// most of this codebase's adjacent services use.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ProviderToggles gates optional outbound services the core pipeline never
// depends on: the alert engine and kline fanout run identically whether or
// not Telegram/email delivery is configured.
type ProviderToggles struct {
	TelegramEnabled bool
	EmailEnabled    bool
}

// Config is the process-wide configuration, populated once at startup and
// handed to bootstrap hooks via bootstrap.Context.
type Config struct {
	Port             int
	FrontendOrigins  []string
	JWTSecret        string
	RefreshSecret    string
	DatabasePath     string
	TelegramBotToken string
	SweepInterval    int // seconds between alert sweeps
	Providers        ProviderToggles
}

const (
	defaultPort          = 8080
	defaultSweepInterval = 7 // seconds; fast enough to catch a crossing within a couple ticks
	defaultDBPath        = "priceguard.db"
)

// Load reads configuration from the environment (and a local .env file, if
// present, via godotenv.Load). Environment variables take precedence over
// hardcoded defaults; there is no
// secondary JSON/database fallback layer in this core (that plumbing lives
// in the out-of-scope REST/admin surface).
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          defaultPort,
		SweepInterval: defaultSweepInterval,
		DatabasePath:  defaultDBPath,
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		}
	}

	if v := strings.TrimSpace(os.Getenv("FRONTEND_ORIGINS")); v != "" {
		for _, origin := range strings.Split(v, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.FrontendOrigins = append(cfg.FrontendOrigins, origin)
			}
		}
	}

	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "priceguard-dev-secret-change-in-production"
	}

	cfg.RefreshSecret = strings.TrimSpace(os.Getenv("REFRESH_SECRET"))
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.JWTSecret + "-refresh"
	}

	if v := strings.TrimSpace(os.Getenv("DATABASE_PATH")); v != "" {
		cfg.DatabasePath = v
	}

	if v := strings.TrimSpace(os.Getenv("SWEEP_INTERVAL_SECONDS")); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			cfg.SweepInterval = s
		}
	}

	cfg.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.Providers.TelegramEnabled = cfg.TelegramBotToken != ""
	cfg.Providers.EmailEnabled = strings.TrimSpace(os.Getenv("EMAIL_ENABLED")) == "true"

	return cfg
}

// IsOriginAllowed applies the CORS allow-rule: configured
// frontend origins, plus localhost, 127.0.0.1 and *.vercel.app (always
// allowed, in every environment).
func (c *Config) IsOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, o := range c.FrontendOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	if strings.Contains(origin, "://localhost") || strings.Contains(origin, "://127.0.0.1") {
		return true
	}
	return strings.HasSuffix(origin, ".vercel.app")
}
