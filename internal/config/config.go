// Package config loads runtime configuration from defaults layered with
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/filmpulse/filmpulse/internal/logging"
)

// Config captures all runtime configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Recommend RecommendConfig `koanf:"recommend"`
	Reconcile ReconcileConfig `koanf:"reconcile"`
	Log       logging.Config  `koanf:"log"`
}

// ServerConfig controls the HTTP listener and admin auth.
type ServerConfig struct {
	Port         string        `koanf:"port"`
	AuthToken    string        `koanf:"authtoken"`
	ReadTimeout  time.Duration `koanf:"readtimeout"`
	WriteTimeout time.Duration `koanf:"writetimeout"`
	IdleTimeout  time.Duration `koanf:"idletimeout"`
}

// DatabaseConfig controls the pgx connection pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"maxconns"`
	MinConns        int32         `koanf:"minconns"`
	MaxConnIdleTime time.Duration `koanf:"maxconnidletime"`
	MaxConnLifetime time.Duration `koanf:"maxconnlifetime"`
	ConnTimeout     time.Duration `koanf:"conntimeout"`
}

// CacheConfig selects and tunes the recommendation cache backend.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend       string        `koanf:"backend"`
	TTL           time.Duration `koanf:"ttl"`
	RedisAddr     string        `koanf:"redisaddr"`
	RedisPassword string        `koanf:"redispassword"`
	RedisDB       int           `koanf:"redisdb"`
}

// RecommendConfig tunes the recommendation engine.
type RecommendConfig struct {
	// MaxLimit caps the limit a caller may request; rankings are computed
	// and cached at this length and truncated per request.
	MaxLimit int `koanf:"maxlimit"`
	// DefaultLimit applies when a caller omits the limit.
	DefaultLimit int `koanf:"defaultlimit"`
	// MinCoRated is the minimum co-rated movies for a valid neighbor.
	MinCoRated int `koanf:"mincorated"`
}

// ReconcileConfig tunes the aggregate reconciliation loop.
type ReconcileConfig struct {
	Interval time.Duration `koanf:"interval"`
	// Tolerance is the relative error above which the maintained mean is
	// considered divergent from a full recomputation.
	Tolerance float64 `koanf:"tolerance"`
}

const envPrefix = "FILMPULSE_"

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        2,
			MaxConnIdleTime: 5 * time.Minute,
			MaxConnLifetime: time.Hour,
			ConnTimeout:     10 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			TTL:       10 * time.Minute,
			RedisAddr: "localhost:6379",
		},
		Recommend: RecommendConfig{
			MaxLimit:     100,
			DefaultLimit: 20,
			MinCoRated:   2,
		},
		Reconcile: ReconcileConfig{
			Interval:  10 * time.Minute,
			Tolerance: 1e-9,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load layers environment variables with the FILMPULSE_ prefix over the
// defaults and validates the result. FILMPULSE_DATABASE_URL maps to
// database.url, FILMPULSE_SERVER_AUTHTOKEN to server.authtoken, and so
// on (section then field, separated by the first underscore).
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnv), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// transformEnv maps FILMPULSE_SECTION_FIELD to section.field.
func transformEnv(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func (c Config) validate() error {
	if c.Server.AuthToken == "" {
		return fmt.Errorf("FILMPULSE_SERVER_AUTHTOKEN is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("FILMPULSE_DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database maxconns must be positive")
	}
	if c.Database.MinConns < 0 {
		return fmt.Errorf("database minconns must be non-negative")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database minconns cannot exceed maxconns")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache redisaddr is required for the redis backend")
	}
	if c.Recommend.MaxLimit <= 0 || c.Recommend.DefaultLimit <= 0 {
		return fmt.Errorf("recommend limits must be positive")
	}
	if c.Recommend.DefaultLimit > c.Recommend.MaxLimit {
		return fmt.Errorf("recommend defaultlimit cannot exceed maxlimit")
	}
	if c.Recommend.MinCoRated < 1 {
		return fmt.Errorf("recommend mincorated must be at least 1")
	}
	if c.Reconcile.Interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}
	if c.Reconcile.Tolerance <= 0 {
		return fmt.Errorf("reconcile tolerance must be positive")
	}
	return nil
}
