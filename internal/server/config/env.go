package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/cinecritic/internal/flagx"
	"github.com/joho/godotenv"
)

// parseEnv loads the dotenv file named by -env (or ./.env when present)
// without overriding variables already set, then overlays recognised
// variables onto config. Malformed boolean values panic.
//
//	PORT                   shorthand for HTTPAddr ":<PORT>"
//	ADDRESS                full bind address, wins over PORT
//	DATABASE_DRIVER        postgres | sqlite
//	DATABASE_URL           DSN
//	JWT_SECRET             token signing secret
//	SESSION_STORE          memory | redis
//	REDIS_ADDR, REDIS_PASSWORD
//	NATS_URL, NATS_SUBJECT_PREFIX
//	COOKIE_SECURE          bool
//	MIRROR_TOKEN_SESSIONS  bool
//	CORS_ORIGINS           comma separated
//	LOG_LEVEL
func parseEnv(config *Config) {
	loadDotenv(flagx.EnvFileFlag(os.Args[1:]))

	if v, ok := lookup("PORT"); ok {
		config.HTTPAddr = ":" + v
	}
	envString(&config.HTTPAddr, "ADDRESS")
	envString(&config.DatabaseDriver, "DATABASE_DRIVER")
	envString(&config.DatabaseDSN, "DATABASE_URL")
	envString(&config.SecretKey, "JWT_SECRET")
	envString(&config.SessionStore, "SESSION_STORE")
	envString(&config.RedisAddr, "REDIS_ADDR")
	envString(&config.RedisPassword, "REDIS_PASSWORD")
	envString(&config.NATSURL, "NATS_URL")
	envString(&config.NATSSubjectPrefix, "NATS_SUBJECT_PREFIX")
	envString(&config.LogLevel, "LOG_LEVEL")
	envBool(&config.CookieSecure, "COOKIE_SECURE")
	envBool(&config.MirrorTokenSessions, "MIRROR_TOKEN_SESSIONS")

	if v, ok := lookup("CORS_ORIGINS"); ok {
		origins := make([]string, 0)
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		config.CORSOrigins = origins
	}
}

func loadDotenv(path string) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func envString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envBool(dst *bool, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
}
