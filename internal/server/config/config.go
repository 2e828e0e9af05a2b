// Package config builds the server configuration from defaults, an optional
// JSON file, the environment (with optional .env file) and command-line
// flags, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds runtime settings for the server.
//
// Fields:
//   - HTTPAddr: bind address of the HTTP server.
//   - DatabaseDriver / DatabaseDSN: "postgres" (pgx) or "sqlite" (modernc).
//   - SecretKey: HMAC secret for signing tokens (HS256). Do not use the default in prod.
//   - TokenValidityDuration / SessionValidityDuration: lifetime of the two identity carriers.
//   - SessionStore: "memory" or "redis"; RedisAddr / RedisPassword for the latter.
//   - NATSURL / NATSSubjectPrefix: audit event stream; empty URL disables it.
//   - CookieSecure: set the Secure attribute on auth cookies.
//   - MirrorTokenSessions: copy valid cookie-token claims into a fresh session.
type Config struct {
	HTTPAddr                string
	DatabaseDriver          string
	DatabaseDSN             string
	SecretKey               string
	TokenValidityDuration   time.Duration
	SessionValidityDuration time.Duration
	SessionStore            string
	RedisAddr               string
	RedisPassword           string
	NATSURL                 string
	NATSSubjectPrefix       string
	CookieSecure            bool
	MirrorTokenSessions     bool
	CORSOrigins             []string
	LogLevel                string
}

// LoadDefaults populates Config with development defaults: an in-memory
// SQLite database and in-process sessions.
// NOTE: SecretKey must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":3001"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:cinecritic?mode=memory&cache=shared"
	c.SecretKey = "secretKey"
	c.TokenValidityDuration = 24 * time.Hour
	c.SessionValidityDuration = 24 * time.Hour
	c.SessionStore = SessionStoreMemory
	c.RedisAddr = "localhost:6379"
	c.NATSSubjectPrefix = "auth"
	c.MirrorTokenSessions = true
	c.CORSOrigins = []string{"http://localhost:3000"}
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.DatabaseDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.TokenValidityDuration <= 0 {
		errs = append(errs, errors.New("token validity must be positive"))
	}
	if c.SessionValidityDuration <= 0 {
		errs = append(errs, errors.New("session validity must be positive"))
	}
	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis address is required for the redis session store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported session store %q", c.SessionStore))
	}

	return errors.Join(errs...)
}
