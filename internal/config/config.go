package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL,required"`
	GatewayBaseURL         string `env:"GATEWAY_BASE_URL,required"`
	GatewayToken           string `env:"GATEWAY_TOKEN"`
	GatewaySignatureSecret string `env:"GATEWAY_SIGNATURE_SECRET"`
	ReminderHour           int    `env:"REMINDER_HOUR" envDefault:"13"`
	ReminderMinute         int    `env:"REMINDER_MINUTE" envDefault:"0"`
	SendPaceMS             int    `env:"SEND_PACE_MS" envDefault:"100"`
	EventRateLimitPerMin   int    `env:"EVENT_RATE_LIMIT_PER_MIN" envDefault:"60"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

// SendPace is the delay inserted between consecutive outbound reminder
// sends so the gateway's throughput limits are respected.
func (c *Config) SendPace() time.Duration {
	return time.Duration(c.SendPaceMS) * time.Millisecond
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		return fmt.Errorf("REMINDER_HOUR must be between 0 and 23, got %d", c.ReminderHour)
	}
	if c.ReminderMinute < 0 || c.ReminderMinute > 59 {
		return fmt.Errorf("REMINDER_MINUTE must be between 0 and 59, got %d", c.ReminderMinute)
	}
	if c.SendPaceMS < 0 {
		return fmt.Errorf("SEND_PACE_MS must not be negative, got %d", c.SendPaceMS)
	}
	if c.EventRateLimitPerMin <= 0 {
		return fmt.Errorf("EVENT_RATE_LIMIT_PER_MIN must be positive, got %d", c.EventRateLimitPerMin)
	}

	if c.GatewaySignatureSecret == "" {
		log.Warn().Msg("GATEWAY_SIGNATURE_SECRET is empty: webhook signature verification disabled")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
