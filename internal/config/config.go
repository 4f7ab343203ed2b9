package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	TwitchClientID     string `env:"TWITCH_CLIENT_ID"`
	BotUserAccessToken string `env:"BOT_USER_ACCESS_TOKEN"`
	BotLogin           string `env:"BOT_LOGIN"`
	BroadcasterLogins  string `env:"BROADCASTER_LOGINS"`

	EventSubURL    string `env:"EVENTSUB_URL" default:"wss://eventsub.wss.twitch.tv/ws?keepalive_timeout_seconds=30"`
	PrizeWordsPath string `env:"PRIZE_WORDS_PATH" default:"prize_words.json"`
	LightsAPIBase  string `env:"LIGHTS_API_BASE"`

	SendRateCapacity   int           `env:"SEND_RATE_CAPACITY" default:"1"`
	SendRateRefill     int           `env:"SEND_RATE_REFILL" default:"1"`
	SendRateInterval   time.Duration `env:"SEND_RATE_INTERVAL" default:"1200ms"`
	SendAcquireTimeout time.Duration `env:"SEND_ACQUIRE_TIMEOUT" default:"5s"`

	// Broadcasters is BroadcasterLogins split, trimmed and lowercased.
	// Populated by Load, not read from the environment.
	Broadcasters []string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.Broadcasters = splitLogins(cfg.BroadcasterLogins)
	cfg.BotLogin = strings.ToLower(strings.TrimSpace(cfg.BotLogin))

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func splitLogins(raw string) []string {
	var logins []string
	for _, part := range strings.Split(raw, ",") {
		login := strings.ToLower(strings.TrimSpace(part))
		if login != "" {
			logins = append(logins, login)
		}
	}
	return logins
}

func validate(cfg *Config) error {
	required := map[string]string{
		"TWITCH_CLIENT_ID":      cfg.TwitchClientID,
		"BOT_USER_ACCESS_TOKEN": cfg.BotUserAccessToken,
		"BOT_LOGIN":             cfg.BotLogin,
		"BROADCASTER_LOGINS":    cfg.BroadcasterLogins,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if len(cfg.Broadcasters) == 0 {
		return fmt.Errorf("BROADCASTER_LOGINS contains no usable logins")
	}

	if cfg.SendRateCapacity < 1 {
		return fmt.Errorf("SEND_RATE_CAPACITY must be at least 1, got %d", cfg.SendRateCapacity)
	}
	if cfg.SendRateRefill < 1 {
		return fmt.Errorf("SEND_RATE_REFILL must be at least 1, got %d", cfg.SendRateRefill)
	}
	if cfg.SendRateInterval <= 0 {
		return fmt.Errorf("SEND_RATE_INTERVAL must be positive, got %v", cfg.SendRateInterval)
	}

	return nil
}
