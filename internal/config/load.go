package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// TASKMASTER_SERVER_PORT.
const EnvPrefix = "TASKMASTER"

var defaults = map[string]any{
	"server.port":                     8080,
	"server.log_level":                "info",
	"server.shutdown_timeout_seconds": 10,
	"database.driver":                 "postgres",
	"database.url":                    "",
	"database.name":                   "taskmaster",
	"database.store_timeout_ms":       2000,
	"auth.mode":                       "email",
	"auth.jwt_secret":                 "",
	"auth.token_lifetime_minutes":     60,
	"cache.redis_addr":                "",
	"cache.redis_password":            "",
	"cache.redis_db":                  0,
	"cache.ttl_seconds":               60,
	"ordering.lock_backend":           "local",
	"ordering.lock_ttl_ms":            5000,
	"ordering.lock_wait_ms":           3000,
	"ordering.verify_reorder":         true,
}

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is loaded first if present; real
// environment variables take precedence over it, and both take precedence
// over config.yaml. Returns a populated Config or an error if loading or
// validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
