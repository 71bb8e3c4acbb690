package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Ordering OrderingConfig `mapstructure:"ordering" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=0"`
}

// ShutdownTimeout returns the graceful shutdown window.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig selects and configures the task store backend.
type DatabaseConfig struct {
	Driver         string `mapstructure:"driver" validate:"required,oneof=postgres mongo memory"`
	URL            string `mapstructure:"url" validate:"required_unless=Driver memory"`
	Name           string `mapstructure:"name" validate:"required_if=Driver mongo"`
	StoreTimeoutMS int    `mapstructure:"store_timeout_ms" validate:"gt=0"`
}

// StoreTimeout bounds every individual store call.
func (c DatabaseConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// AuthConfig contains all authentication and authorization settings.
// In "email" mode the caller's email is taken as its identity; in "jwt" mode
// it must be backed by a signed token.
type AuthConfig struct {
	Mode                 string `mapstructure:"mode" validate:"required,oneof=email jwt"`
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required_if=Mode jwt,omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// TokenLifetime returns how long issued tokens stay valid.
func (c AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetimeMinutes) * time.Minute
}

// CacheConfig configures the optional Redis task list cache. An empty
// RedisAddr disables caching.
type CacheConfig struct {
	RedisAddr     string `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
	TTLSeconds    int    `mapstructure:"ttl_seconds" validate:"gte=0"`
}

// Enabled reports whether a Redis address is configured.
func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// OrderingConfig tunes the partition lock and reorder verification.
type OrderingConfig struct {
	LockBackend   string `mapstructure:"lock_backend" validate:"required,oneof=local redis"`
	LockTTLMS     int    `mapstructure:"lock_ttl_ms" validate:"gt=0"`
	LockWaitMS    int    `mapstructure:"lock_wait_ms" validate:"gt=0"`
	VerifyReorder bool   `mapstructure:"verify_reorder"`
}

// LockTTL is how long a distributed lock survives a crashed holder.
func (c OrderingConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMS) * time.Millisecond
}

// LockWait is how long an operation waits to acquire its partition locks.
func (c OrderingConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitMS) * time.Millisecond
}
