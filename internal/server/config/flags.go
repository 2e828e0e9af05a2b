package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3001")
//	-b string   database driver (postgres | sqlite)
//	-d string   database DSN
//	-s string   token signing secret
//	-t int      token validity, minutes
//	-m int      session validity, minutes
//	-k string   session store (memory | redis)
//	-r string   Redis address
//	-n string   NATS URL
//	-l string   log level
//
// os.Args is first filtered with flagx.FilterArgs so flags owned by other
// components (-c, -env, CLI subcommand flags) are ignored.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-b", "-d", "-s", "-t", "-m", "-k", "-r", "-n", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDriver, "b", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token validity (in minutes)")
	sessionValidity := fs.Int("m", int(config.SessionValidityDuration.Minutes()), "session validity (in minutes)")

	fs.StringVar(&config.SessionStore, "k", config.SessionStore, "session store")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.NATSURL, "n", config.NATSURL, "NATS URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Minute
}
