package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"taskbot/db"
)

// Knobs read from the environment (a local .env file is honored too):
//
//	TG_TOKEN                  Telegram Bot API token (required)
//	DATABASE_URL              Postgres connection string (required)
//	POLL_INTERVAL_MINUTES     scheduler tick granularity, default 1
//	DEFAULT_REMINDER_OFFSETS  offsets for tasks created without any,
//	                          comma-separated minutes, default "30"
//	API_PORT                  HTTP API port, default 8080, empty to disable
//	LOG_FILE                  rotate logs into this file when set
type Config struct {
	TgToken        string
	DatabaseURL    string
	PollInterval   time.Duration
	DefaultOffsets []int
	APIPort        string
	LogFile        string
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		TgToken:     os.Getenv("TG_TOKEN"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		APIPort:     getEnv("API_PORT", "8080"),
		LogFile:     os.Getenv("LOG_FILE"),
	}

	if cfg.TgToken == "" {
		return nil, errors.New("TG_TOKEN environment variable is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	minutes, err := strconv.Atoi(getEnv("POLL_INTERVAL_MINUTES", "1"))
	if err != nil || minutes < 1 {
		return nil, errors.New("POLL_INTERVAL_MINUTES must be a positive integer")
	}
	cfg.PollInterval = time.Duration(minutes) * time.Minute

	cfg.DefaultOffsets, err = parseOffsets(getEnv("DEFAULT_REMINDER_OFFSETS", "30"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid DEFAULT_REMINDER_OFFSETS")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseOffsets(s string) ([]int, error) {
	var offsets []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Errorf("not a number: %q", part)
		}
		offsets = append(offsets, m)
	}
	return db.NormalizeOffsets(offsets)
}
