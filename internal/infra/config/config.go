package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken         string // empty disables the bot and Telegram mirroring
	DatabaseURL           string
	HTTPAddr              string
	LogLevel              string
	Environment           string
	CronSpecReminderSweep string
	Timezone              string
	Location              *time.Location
	Currency              string
	ReminderRetryMirror   bool
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CronSpecReminderSweep = getenvDefault("CRON_SPEC_REMINDER_SWEEP", "0 9 * * *") // Default: 9 AM daily

	cfg.Timezone = getenvDefault("TIMEZONE", "Local")
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.Currency = strings.ToUpper(getenvDefault("CURRENCY", "ETB"))

	if v := os.Getenv("REMINDER_RETRY_MIRROR"); v != "" {
		cfg.ReminderRetryMirror, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REMINDER_RETRY_MIRROR: %w", err)
		}
	}

	return cfg, nil
}

// TelegramEnabled reports whether a bot token was configured.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
