package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit for one endpoint. Paths ending in "/" match by prefix.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int           // requests per window; 0 means unlimited
	Window time.Duration
	Burst  int // defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// DefaultConfig returns the built-in limits.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{Enabled: false}
	}

	d := DefaultConfig()
	d.DefaultLimit = getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", d.DefaultLimit)
	d.DefaultWindow = getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", d.DefaultWindow)
	d.CleanupInterval = getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", d.CleanupInterval)
	d.Whitelist = parseIPList(os.Getenv("RATE_LIMIT_WHITELIST"))
	d.Blacklist = parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST"))
	return d
}

// DefaultEndpointConfigs returns the per-endpoint limits. Full-text register
// search is the expensive query.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/registers", Method: "GET", Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/audit", Method: "GET", Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/runs", Method: "GET", Limit: 120, Window: time.Minute, Burst: 20},
	}
}

// MatchEndpoint returns the config for path and method, or nil for the default.
// GET /health is always unlimited.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return &EndpointConfig{}
	}
	for i := range configs {
		if configs[i].Path == path && configs[i].Method == method {
			return &configs[i]
		}
	}
	for i := range configs {
		c := &configs[i]
		if c.Method == method && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			return c
		}
	}
	return nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
