package config

import (
	"os"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/apperr"
)

type Config struct {
	// Required. The app cannot start without these.
	CoreAPIURL    string
	ChannelID     string
	ChannelSecret string

	// Optional, with defaults.
	Port           string
	DatabasePath   string
	Environment    string
	AllowedOrigins string
	LogLevel       string

	// Optional. When set (32 bytes, base64), the session store encrypts
	// values at rest.
	SessionEncryptionKey string
}

func Load() (*Config, error) {
	cfg := &Config{
		CoreAPIURL:           os.Getenv("CORE_API_URL"),
		ChannelID:            os.Getenv("LIFF_CHANNEL_ID"),
		ChannelSecret:        os.Getenv("LIFF_CHANNEL_SECRET"),
		Port:                 getEnv("PORT", "8080"),
		DatabasePath:         getEnv("DATABASE_PATH", "lowcarbon.db"),
		Environment:          getEnv("ENVIRONMENT", "production"),
		AllowedOrigins:       getEnv("ALLOWED_ORIGINS", "https://liff.line.me"),
		LogLevel:             getEnv("LOG_LEVEL", "INFO"),
		SessionEncryptionKey: os.Getenv("SESSION_ENCRYPTION_KEY"),
	}

	if cfg.CoreAPIURL == "" {
		return nil, &apperr.ConfigError{Key: "CORE_API_URL"}
	}
	if cfg.ChannelID == "" {
		return nil, &apperr.ConfigError{Key: "LIFF_CHANNEL_ID"}
	}
	if cfg.ChannelSecret == "" {
		return nil, &apperr.ConfigError{Key: "LIFF_CHANNEL_SECRET"}
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
