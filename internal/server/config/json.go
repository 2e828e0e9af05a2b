package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cinecritic/internal/flagx"
	"github.com/dmitrijs2005/cinecritic/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept "24h"
// or integer nanoseconds. Pointer fields distinguish "absent" from "false".
type JsonConfig struct {
	HTTPAddr                string         `json:"http_addr"`
	DatabaseDriver          string         `json:"database_driver"`
	DatabaseDSN             string         `json:"database_dsn"`
	SecretKey               string         `json:"secret_key"`
	TokenValidityDuration   timex.Duration `json:"token_validity_duration"`
	SessionValidityDuration timex.Duration `json:"session_validity_duration"`
	SessionStore            string         `json:"session_store"`
	RedisAddr               string         `json:"redis_addr"`
	RedisPassword           string         `json:"redis_password"`
	NATSURL                 string         `json:"nats_url"`
	NATSSubjectPrefix       string         `json:"nats_subject_prefix"`
	CookieSecure            *bool          `json:"cookie_secure"`
	MirrorTokenSessions     *bool          `json:"mirror_token_sessions"`
	CORSOrigins             []string       `json:"cors_origins"`
	LogLevel                string         `json:"log_level"`
}

// parseJson overlays the JSON file named by -c/-config onto config. Only
// fields present in the file are applied. An unreadable or invalid file
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.SessionStore, c.SessionStore)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.NATSURL, c.NATSURL)
	setString(&config.NATSSubjectPrefix, c.NATSSubjectPrefix)
	setString(&config.LogLevel, c.LogLevel)

	if c.TokenValidityDuration.Duration != 0 {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.SessionValidityDuration.Duration != 0 {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.MirrorTokenSessions != nil {
		config.MirrorTokenSessions = *c.MirrorTokenSessions
	}
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
