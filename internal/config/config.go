// Package config loads application configuration from environment
// variables. Required variables are enforced by must() and missing
// values abort startup with a fatal log message.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field maps to an
// environment variable; strings for identifiers and secrets, ints and
// durations for tunables.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign access tokens
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing
	UploadDir    string // directory for attachment blobs

	// Retention thresholds for the periodic sweeper. Bulletins older
	// than BulletinMaxAge and messages older than MessageMaxAge are
	// deleted by the next sweep.
	BulletinMaxAge time.Duration
	MessageMaxAge  time.Duration
}

// Load reads configuration values from environment variables.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		UploadDir:      getenv("UPLOAD_DIR", "data/uploads"),
		BulletinMaxAge: parseDur(getenv("RETENTION_BULLETIN_MAX_AGE", "17520h")), // 2 years
		MessageMaxAge:  parseDur(getenv("RETENTION_MESSAGE_MAX_AGE", "8760h")),   // 1 year
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value to an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Hour
	}
	return d
}
