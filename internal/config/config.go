// Package config provides configuration loading for the register scraper.
//
// Settings come from the environment (a .env file is loaded by main), may be
// overlaid by a JSON file passed with --config, and are finally overridden by
// CLI flags.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Search provider names.
const (
	ProviderAuto    = "auto"
	ProviderGoogle  = "google"
	ProviderSearXNG = "searxng"
	ProviderNone    = "none"
)

// Duration is a time.Duration that reads "15s" style strings from JSON.
type Duration time.Duration

// UnmarshalJSON accepts a Go duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the scraper configuration.
type Config struct {
	// PostgreSQL connection parts, used when DatabaseURL is unset.
	DBHost     string `json:"db_host,omitempty"`
	DBPort     int    `json:"db_port,omitempty" validate:"omitempty,min=1,max=65535"`
	DBName     string `json:"db_name,omitempty"`
	DBUser     string `json:"db_user,omitempty"`
	DBPassword string `json:"db_password,omitempty"`
	DBURL      string `json:"database_url,omitempty"`

	// SQLitePath selects the SQLite store instead of PostgreSQL.
	SQLitePath string `json:"sqlite_path,omitempty"`

	UseHomepageCrawl  bool `json:"use_homepage_crawl"`
	UseFallbackSearch bool `json:"use_fallback_search"`
	UseDemocracy      bool `json:"use_democracy"`
	UseBrowser        bool `json:"use_browser"`
	Rescan            bool `json:"rescan"`

	Workers        int      `json:"workers,omitempty" validate:"min=1,max=32"`
	RequestTimeout Duration `json:"request_timeout,omitempty" validate:"gt=0"`
	RequestDelay   Duration `json:"request_delay,omitempty" validate:"gte=0"`
	MaxRetries     int      `json:"max_retries,omitempty" validate:"min=0,max=10"`
	RetryBaseDelay Duration `json:"retry_base_delay,omitempty" validate:"gte=0"`
	MaxBodyBytes   int64    `json:"max_body_bytes,omitempty" validate:"min=1024"`

	CrawlDepth    int `json:"crawl_depth,omitempty" validate:"min=0,max=5"`
	CrawlPages    int `json:"crawl_pages,omitempty" validate:"min=1,max=1000"`
	SearchResults int `json:"search_results,omitempty" validate:"min=1,max=10"`

	SearchProvider string `json:"search_provider,omitempty" validate:"oneof=auto google searxng none"`
	GoogleAPIKey   string `json:"google_api_key,omitempty"`
	GoogleCSEID    string `json:"google_cse_id,omitempty"`
	SearXNGURL     string `json:"searxng_url,omitempty" validate:"omitempty,url"`

	LogLevel string `json:"log_level,omitempty" validate:"oneof=debug info warn error"`

	// keys present in a loaded JSON file; lets MergeWithDefaults honor explicit false
	set map[string]bool
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		DBHost:            "localhost",
		DBPort:            5432,
		DBName:            "reform_register",
		DBUser:            "postgres",
		DBPassword:        "postgres",
		UseHomepageCrawl:  true,
		UseFallbackSearch: true,
		Workers:           6,
		RequestTimeout:    Duration(15 * time.Second),
		RequestDelay:      Duration(time.Second),
		MaxRetries:        2,
		RetryBaseDelay:    Duration(time.Second),
		MaxBodyBytes:      20 << 20,
		CrawlDepth:        2,
		CrawlPages:        50,
		SearchResults:     5,
		SearchProvider:    ProviderAuto,
		LogLevel:          "info",
	}
}

// FromEnv builds a Config from environment variables over the defaults.
func FromEnv() *Config {
	d := Defaults()
	return &Config{
		DBHost:            getEnvString("DB_HOST", d.DBHost),
		DBPort:            getEnvInt("DB_PORT", d.DBPort),
		DBName:            getEnvString("DB_NAME", d.DBName),
		DBUser:            getEnvString("DB_USER", d.DBUser),
		DBPassword:        getEnvString("DB_PASSWORD", d.DBPassword),
		DBURL:             getEnvString("DATABASE_URL", ""),
		SQLitePath:        getEnvString("SQLITE_PATH", ""),
		UseHomepageCrawl:  getEnvBool("USE_HOMEPAGE_CRAWL", d.UseHomepageCrawl),
		UseFallbackSearch: getEnvBool("USE_FALLBACK_SEARCH", d.UseFallbackSearch),
		UseDemocracy:      getEnvBool("USE_DEMOCRACY", d.UseDemocracy),
		UseBrowser:        getEnvBool("USE_BROWSER", d.UseBrowser),
		Rescan:            getEnvBool("RESCAN", d.Rescan),
		Workers:           getEnvInt("WORKERS", d.Workers),
		RequestTimeout:    Duration(getEnvDuration("REQUEST_TIMEOUT", d.RequestTimeout.Std())),
		RequestDelay:      Duration(getEnvDuration("REQUEST_DELAY", d.RequestDelay.Std())),
		MaxRetries:        getEnvInt("MAX_RETRIES", d.MaxRetries),
		RetryBaseDelay:    Duration(getEnvDuration("RETRY_BASE_DELAY", d.RetryBaseDelay.Std())),
		MaxBodyBytes:      int64(getEnvInt("MAX_BODY_BYTES", int(d.MaxBodyBytes))),
		CrawlDepth:        getEnvInt("CRAWL_DEPTH", d.CrawlDepth),
		CrawlPages:        getEnvInt("CRAWL_PAGES", d.CrawlPages),
		SearchResults:     getEnvInt("SEARCH_RESULTS", d.SearchResults),
		SearchProvider:    strings.ToLower(getEnvString("SEARCH_PROVIDER", d.SearchProvider)),
		GoogleAPIKey:      getEnvString("GOOGLE_API_KEY", ""),
		GoogleCSEID:       getEnvString("GOOGLE_CSE_ID", ""),
		SearXNGURL:        getEnvString("SEARXNG_URL", ""),
		LogLevel:          strings.ToLower(getEnvString("LOG_LEVEL", d.LogLevel)),
	}
}

// LoadConfig reads a JSON config file from the given path.
// Relative paths are resolved from the current working directory.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	cfg.set = make(map[string]bool, len(keys))
	for k := range keys {
		cfg.set[k] = true
	}

	return &cfg, nil
}

// MergeWithDefaults returns a new Config with unset fields filled from defaults.
// Booleans are taken from defaults unless the loaded file named them.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c
	result.set = nil

	mergeString(&result.DBHost, defaults.DBHost)
	mergeString(&result.DBName, defaults.DBName)
	mergeString(&result.DBUser, defaults.DBUser)
	mergeString(&result.DBPassword, defaults.DBPassword)
	mergeString(&result.DBURL, defaults.DBURL)
	mergeString(&result.SQLitePath, defaults.SQLitePath)
	mergeString(&result.SearchProvider, defaults.SearchProvider)
	mergeString(&result.GoogleAPIKey, defaults.GoogleAPIKey)
	mergeString(&result.GoogleCSEID, defaults.GoogleCSEID)
	mergeString(&result.SearXNGURL, defaults.SearXNGURL)
	mergeString(&result.LogLevel, defaults.LogLevel)

	if result.DBPort == 0 {
		result.DBPort = defaults.DBPort
	}
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if !c.set["max_retries"] {
		result.MaxRetries = defaults.MaxRetries
	}
	if result.MaxBodyBytes == 0 {
		result.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if !c.set["crawl_depth"] {
		result.CrawlDepth = defaults.CrawlDepth
	}
	if result.CrawlPages == 0 {
		result.CrawlPages = defaults.CrawlPages
	}
	if result.SearchResults == 0 {
		result.SearchResults = defaults.SearchResults
	}
	if result.RequestTimeout == 0 {
		result.RequestTimeout = defaults.RequestTimeout
	}
	if !c.set["request_delay"] {
		result.RequestDelay = defaults.RequestDelay
	}
	if !c.set["retry_base_delay"] {
		result.RetryBaseDelay = defaults.RetryBaseDelay
	}

	mergeBool(&result.UseHomepageCrawl, defaults.UseHomepageCrawl, c.set["use_homepage_crawl"])
	mergeBool(&result.UseFallbackSearch, defaults.UseFallbackSearch, c.set["use_fallback_search"])
	mergeBool(&result.UseDemocracy, defaults.UseDemocracy, c.set["use_democracy"])
	mergeBool(&result.UseBrowser, defaults.UseBrowser, c.set["use_browser"])
	mergeBool(&result.Rescan, defaults.Rescan, c.set["rescan"])

	return result
}

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	switch c.SearchProvider {
	case ProviderGoogle:
		if c.GoogleAPIKey == "" || c.GoogleCSEID == "" {
			return fmt.Errorf("config error: search provider google requires GOOGLE_API_KEY and GOOGLE_CSE_ID")
		}
	case ProviderSearXNG:
		if c.SearXNGURL == "" {
			return fmt.Errorf("config error: search provider searxng requires SEARXNG_URL")
		}
	}

	if c.DBURL != "" {
		u, err := url.Parse(c.DBURL)
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			return fmt.Errorf("config error: DATABASE_URL must be a postgres:// URL")
		}
	}

	return nil
}

// Provider returns the search provider to build. "auto" picks Google when its
// credentials are present, then SearXNG, otherwise none.
func (c *Config) Provider() string {
	if c.SearchProvider != ProviderAuto && c.SearchProvider != "" {
		return c.SearchProvider
	}
	switch {
	case c.GoogleAPIKey != "" && c.GoogleCSEID != "":
		return ProviderGoogle
	case c.SearXNGURL != "":
		return ProviderSearXNG
	default:
		return ProviderNone
	}
}

// DatabaseURL returns DATABASE_URL when set, otherwise a postgres:// URL built
// from the DB_* parts.
func (c *Config) DatabaseURL() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func mergeString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func mergeBool(dst *bool, def, explicit bool) {
	if !explicit {
		*dst = def
	}
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an int with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a bool with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration reads a duration such as "1500ms"; a bare number is seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
