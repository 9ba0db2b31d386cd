package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	NatsURL       string
	NatsToken     string
	DatabaseURL   string
	LogLevel      string
	SlackBotToken string
	SlackChannel  string
	APIToken      string

	TopN         int
	ReplyCeiling time.Duration
	MinMessages  int
	Timezone     string
	Workers      int
	StatePath    string
}

// Load reads the configuration from the environment. Optional integrations
// (NATS, database, Slack) are disabled when their URL or token is empty.
func Load() Config {
	return Config{
		Port:          envInt("CHATSTATS_PORT", 8760),
		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_STATS_CHANNEL", ""),
		APIToken:      envStr("CHATSTATS_API_TOKEN", ""),
		TopN:          envInt("CHATSTATS_TOP_N", 10),
		ReplyCeiling:  envDuration("CHATSTATS_REPLY_CEILING", 24*time.Hour),
		MinMessages:   envInt("CHATSTATS_MIN_MESSAGES", 10),
		Timezone:      envStr("CHATSTATS_TZ", ""),
		Workers:       envInt("CHATSTATS_WORKERS", 4),
		StatePath:     envStr("CHATSTATS_STATE_PATH", "~/.chatstats/batch-state.json"),
	}
}

// LoadEnvFile exports the variables of a dotenv file. Variables already set
// in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Location resolves Timezone; empty selects the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts a Go duration ("36h") or a whole number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
