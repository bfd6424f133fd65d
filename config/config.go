package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
)

type Config struct {
	Capsync  CapsyncConfig
	Webhook  WebhookConfig
	Pushover PushoverConfig
}

type CapsyncConfig struct {
	ListenAddr            string `env:"LISTEN_ADDR"`
	DbPath                string `env:"DB_PATH"`
	LogLevel              string `env:"LOG_LEVEL"`
	BackgroundJobsEnabled bool   `env:"BACKGROUND_JOBS_ENABLED"`
	TrackRefreshMinutes   int    `env:"TRACK_REFRESH_MINUTES"`
	SessionIdleMinutes    int    `env:"SESSION_IDLE_MINUTES"`
	AllowedOrigins        string `env:"ALLOWED_ORIGINS"`
}

type WebhookConfig struct {
	// PlayerSecret signs the player adapter's event webhooks. Leaving it
	// unset disables signature validation, which is only sensible in dev.
	PlayerSecret string `env:"PLAYER_WEBHOOK_SECRET"`
}

type PushoverConfig struct {
	Recipient string `env:"PUSHOVER_RECIPIENT"`
	Token     string `env:"PUSHOVER_TOKEN"`
}

func Load() (*Config, error) {
	c := &Config{
		Capsync: CapsyncConfig{
			ListenAddr:            ":8080",
			DbPath:                "capsync.db",
			LogLevel:              "info",
			BackgroundJobsEnabled: true,
			TrackRefreshMinutes:   30,
			SessionIdleMinutes:    60,
			AllowedOrigins:        "*",
		},
	}

	loader := config.New()
	if _, err := os.Stat(".env"); err == nil {
		loader.AddFeeder(feeder.DotEnv{Path: ".env"})
	}
	loader.AddFeeder(feeder.Env{})
	loader.AddStruct(c)

	if err := loader.Feed(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) GetLogLevel() slog.Leveler {
	logLevel := strings.ToLower(c.Capsync.LogLevel)
	if logLevel == "error" {
		return slog.LevelError
	}
	if logLevel == "warning" {
		return slog.LevelWarn
	}
	if logLevel == "info" {
		return slog.LevelInfo
	}
	if logLevel == "debug" {
		return slog.LevelDebug
	}
	// default to info if unknown
	slog.With(slog.String("log_level", logLevel)).Info("Received invalid log level. Defaulting to INFO.")
	return slog.LevelInfo
}

// Origins splits the configured CORS allowlist.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.Capsync.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}
