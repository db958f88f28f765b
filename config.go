package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/busdle/internal/httpserver"
)

// Config is read from the environment (after .env is loaded) and may be
// overridden by command-line flags.
type Config struct {
	Port         int
	DBPath       string
	LogLevel     string
	StateBackend string // sqlite | memory | redis
	RedisAddr    string
	RedisTTL     time.Duration
	HTTP         httpserver.Config
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		Port:         envInt("PORT", 5175),
		DBPath:       getEnv("DB_PATH", "./data/busdle.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		StateBackend: strings.ToLower(getEnv("STATE_BACKEND", "sqlite")),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisTTL:     time.Duration(envInt("REDIS_STATE_TTL_DAYS", 30)) * 24 * time.Hour,
		HTTP: httpserver.Config{
			ClientOrigin:   getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
			JWTSecret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
			JWTExpiresDays: envInt("JWT_EXPIRES_DAYS", 14),
			CookieName:     getEnv("COOKIE_NAME", "busdle_token"),
			Production:     os.Getenv("NODE_ENV") == "production",
		},
	}

	hash, err := adminHash(os.Getenv("ADMIN_PASSWORD_HASH"), os.Getenv("ADMIN_PASSWORD"))
	if err != nil {
		return nil, err
	}
	cfg.HTTP.AdminPasswordHash = hash
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.StateBackend {
	case "sqlite", "memory", "redis":
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q (want sqlite, memory or redis)", c.StateBackend)
	}
	if c.HTTP.Production && c.HTTP.JWTSecret == "dev_secret_change_me" {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

func (c *Config) redisOptions() *redis.Options {
	return &redis.Options{Addr: c.RedisAddr}
}

// adminHash prefers a pre-computed bcrypt hash and otherwise hashes the
// plain password once at startup. Neither set disables admin login.
func adminHash(hash, plain string) ([]byte, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("ADMIN_PASSWORD_HASH: %w", err)
		}
		return []byte(hash), nil
	}
	if plain == "" {
		log.Warn().Msg("no ADMIN_PASSWORD or ADMIN_PASSWORD_HASH set; admin routes are locked")
		return nil, nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return b, nil
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer env value")
	}
	return def
}
