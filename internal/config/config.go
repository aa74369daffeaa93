package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port        string
	CORSOrigins []string

	// Database; empty keeps session state in memory.
	DatabaseURL string

	// Data document: file path or http(s) URL.
	DataSource     string
	DataMaxRetries int

	// Apply transition delay: min plus random jitter.
	ApplyDelayMin    time.Duration
	ApplyDelayJitter time.Duration

	SessionCookie string
	// SessionSecret signs session cookies; empty uses an ephemeral secret.
	SessionSecret string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8081"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DataSource:       getEnv("DATA_SOURCE", "data/applications.json"),
		DataMaxRetries:   getInt("DATA_MAX_RETRIES", 3),
		ApplyDelayMin:    time.Duration(getInt("APPLY_DELAY_MIN_MS", 300)) * time.Millisecond,
		ApplyDelayJitter: time.Duration(getInt("APPLY_DELAY_JITTER_MS", 300)) * time.Millisecond,
		SessionCookie:    getEnv("SESSION_COOKIE", "gsa_session"),
		SessionSecret:    getEnv("SESSION_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
