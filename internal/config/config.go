// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// Config is the server configuration, read from the environment after a
// .env file in the working directory has been loaded.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// Store selects the persistence backend: postgres or memory.
	Store string `env:"STORE" envDefault:"postgres"`

	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PGHost           string `env:"PG_HOST" envDefault:"localhost"`
	PGPort           string `env:"PG_PORT" envDefault:"5432"`
	PGDatabase       string `env:"PG_DATABASE"`
	ApplySchema      bool   `env:"APPLY_SCHEMA" envDefault:"false"`

	// SeedFile preloads registrations into the memory store.
	SeedFile string `env:"SEED_FILE"`

	// RedisAddr empty means in-process notifications, locks and cache.
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"arena:"`

	MessageDeleteWindow time.Duration `env:"MESSAGE_DELETE_WINDOW" envDefault:"15m"`
	LobbyCacheTTL       time.Duration `env:"LOBBY_CACHE_TTL" envDefault:"30s"`
	AllocationLockTTL   time.Duration `env:"ALLOCATION_LOCK_TTL" envDefault:"2m"`

	// TokenExpireTime is a duration, or "never".
	TokenExpireTime string `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`
	JWTPrivateKey   string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKey    string `env:"JWT_PUBLIC_KEY_PATH"`

	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE must be postgres or memory, got %q", c.Store)
	}
	if c.MessageDeleteWindow <= 0 {
		return fmt.Errorf("MESSAGE_DELETE_WINDOW must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Level is the parsed LOG_LEVEL.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// UsesRedis reports whether a Redis address was configured.
func (c Config) UsesRedis() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}
