package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. Values come from the
// environment so main stays lean; the store handle is initialized once at
// startup with no dynamic reconfiguration.
type Server struct {
	Addr string

	// DatabaseURL selects the postgres store when set; otherwise SQLitePath
	// is used, and an empty SQLitePath falls back to the in-memory store.
	DatabaseURL string
	SQLitePath  string

	Redis          Redis
	FacetCacheTTL  time.Duration
	MaxPageSize    int
	RecorderBuffer int
}

// Redis captures connection tuning for the optional facet cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:           envString("GATELOG_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("GATELOG_DATABASE_URL"),
		SQLitePath:     os.Getenv("GATELOG_SQLITE_PATH"),
		FacetCacheTTL:  envDuration("GATELOG_FACET_CACHE_TTL", 30*time.Second),
		MaxPageSize:    envInt("GATELOG_MAX_PAGE_SIZE", 500),
		RecorderBuffer: envInt("GATELOG_RECORDER_BUFFER", 1024),
		Redis: Redis{
			URL:          os.Getenv("GATELOG_REDIS_URL"),
			PoolSize:     envInt("GATELOG_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("GATELOG_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("GATELOG_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("GATELOG_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("GATELOG_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
