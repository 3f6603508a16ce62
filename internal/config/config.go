// Package config reads runtime settings from the environment and the
// collection catalogue from a resource file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EventsCfg struct {
	Enabled   bool
	Brokers   string
	Topic     string
	QueueSize int
}

type Config struct {
	Addr            string
	LogLevel        string
	LogConsole      bool
	BaseURL         string
	ResourceFile    string
	DefaultLimit    int
	MaxLimit        int
	DefaultLanguage string
	CQLCacheSize    int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Events          EventsCfg
}

func FromEnv() Config {
	limit := getint("DEFAULT_LIMIT", 10)
	if limit < 1 {
		limit = 10
	}
	maxLimit := getint("MAX_LIMIT", 10000)
	if maxLimit < limit {
		maxLimit = limit
	}

	return Config{
		Addr:            getenv("ADDR", ":8080"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogConsole:      getbool("LOG_CONSOLE", false),
		BaseURL:         strings.TrimRight(getenv("BASE_URL", "http://localhost:8080"), "/"),
		ResourceFile:    getenv("RESOURCE_FILE", "resources.yml"),
		DefaultLimit:    limit,
		MaxLimit:        maxLimit,
		DefaultLanguage: getenv("DEFAULT_LANGUAGE", "en"),
		CQLCacheSize:    getint("CQL_CACHE_SIZE", 256),
		ReadTimeout:     getduration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getduration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getduration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Events: EventsCfg{
			Enabled:   getbool("EVENTS_ENABLED", false),
			Brokers:   getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:     getenv("KAFKA_TOPIC", "api-query-events"),
			QueueSize: getint("EVENTS_QUEUE", 256),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
