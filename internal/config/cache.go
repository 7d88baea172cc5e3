package config

import (
	"strconv"
	"time"
)

// CacheConfig tunes the response cache used on the bulletin
// permissions probe. The cache key includes the full query string, so
// entries are already scoped per user; the TTL is kept short because
// the server re-derives permissions on every mutating call anyway.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads cache settings from the environment.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      getenv("CACHE_ENABLED", "true") == "true",
		TTL:          parseDur(getenv("CACHE_TTL", "30s")),
		Prefix:       getenv("CACHE_PREFIX", "cache"),
		MaxBodyBytes: atoi(getenv("CACHE_MAX_BODY_BYTES", "1048576")),
	}
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}
