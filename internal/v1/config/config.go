// Package config validates the process environment into a Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultGamePort is the TCP port the game server listens on when
// neither the flag nor the environment overrides it.
const DefaultGamePort = 42069

// Config holds validated environment configuration.
type Config struct {
	// GamePort is the TCP port for the framed game protocol.
	GamePort int
	// OpsAddr is the listen address of the HTTP sidecar serving
	// /health and /metrics.
	OpsAddr string

	GoEnv           string
	LogLevel        string
	DevelopmentMode bool

	// RateLimitConnIP caps TCP accepts per source IP, in the
	// limiter's formatted notation (e.g. "60-M").
	RateLimitConnIP string

	// OtelCollectorAddr enables OTLP tracing when non-empty.
	OtelCollectorAddr string
}

// ValidateEnv validates all environment variables and returns a Config.
// Returns an error if any variable is present but invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Optional: PORT (valid port number, default DefaultGamePort)
	cfg.GamePort = DefaultGamePort
	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", raw))
		} else {
			cfg.GamePort = port
		}
	}

	// Optional: OPS_ADDR (host:port, default ":8080")
	cfg.OpsAddr = getEnvOrDefault("OPS_ADDR", ":8080")
	if !isValidListenAddr(cfg.OpsAddr) {
		errors = append(errors, fmt.Sprintf("OPS_ADDR must be in format 'host:port' or ':port' (got '%s')", cfg.OpsAddr))
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"

	// Rate Limits (M = Minute, H = Hour)
	cfg.RateLimitConnIP = getEnvOrDefault("RATE_LIMIT_CONN_IP", "60-M")

	cfg.OtelCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return cfg, nil
}

// isValidListenAddr checks a "host:port" listen address; the host part
// may be empty.
func isValidListenAddr(addr string) bool {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return false
	}
	port, err := strconv.Atoi(addr[i+1:])
	return err == nil && port >= 1 && port <= 65535
}

// getEnvOrDefault returns the value of the environment variable or a
// default value if unset or empty.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
