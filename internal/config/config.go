// Package config loads Spotlight server configuration from flags, environment variables, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	domainerrors "github.com/spotlightapp/spotlight-server/internal/errors"
	"github.com/spotlightapp/spotlight-server/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Emby      EmbyConfig
	Spotlight SpotlightConfig
	Video     VideoConfig
	Ratings   RatingsConfig
	Cache     CacheConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `env:"SERVER_PORT" validate:"required,numeric"`
	ReadTimeout    time.Duration // default 15s
	WriteTimeout   time.Duration // 0 disables; event streams are long-lived
	IdleTimeout    time.Duration // default 60s
	AllowedOrigins []string      // CORS origins, default "*"
	SessionIdleTTL time.Duration // idle sessions are reaped after this, default 30m
}

// EmbyConfig holds host media server connection settings.
type EmbyConfig struct {
	BaseURL  string `env:"EMBY_URL" validate:"required,http_url"`
	APIKey   string `env:"EMBY_API_KEY" validate:"required"`
	UserID   string // optional; first administrator is used otherwise
	ServerID string // optional; read from /System/Info/Public otherwise
}

// SpotlightConfig holds carousel presentation and item selection settings.
type SpotlightConfig struct {
	Limit              int           `env:"SPOTLIGHT_LIMIT" validate:"gte=1,lte=50"`
	CandidateLimit     int           `env:"SPOTLIGHT_CANDIDATE_LIMIT" validate:"gte=1,lte=500"`
	UnwatchedOnly      bool          // restrict the candidate query to unplayed items
	AutoplayInterval   time.Duration `env:"SPOTLIGHT_AUTOPLAY_INTERVAL" validate:"gte=1s"`
	TransitionDuration time.Duration `env:"SPOTLIGHT_TRANSITION_DURATION" validate:"gt=0"`
	ImageWidth         int           `env:"SPOTLIGHT_IMAGE_WIDTH" validate:"gte=320,lte=3840"`
	LogoWidth          int           `env:"SPOTLIGHT_LOGO_WIDTH" validate:"gte=100,lte=2000"`
	BackgroundColor    string        `env:"SPOTLIGHT_BACKGROUND_COLOR" validate:"csscolor"`
	HighlightColor     string        `env:"SPOTLIGHT_HIGHLIGHT_COLOR" validate:"csscolor"`
	MarginTop          string
	AllowListPath      string // newline-delimited ids; optional
	OverridesPath      string // YAML certified/verified overrides; optional
}

// VideoConfig holds trailer backdrop settings.
type VideoConfig struct {
	Enabled                bool
	Muted                  bool
	Volume                 int    `env:"VIDEO_VOLUME" validate:"gte=0,lte=100"`
	Quality                string `env:"VIDEO_QUALITY" validate:"oneof=small medium large hd720 hd1080 highres"`
	WaitForTrailerEnd      bool
	EndAdvanceDelay        time.Duration
	EndFallback            time.Duration
	AllowMobile            bool
	SponsorBlockEnabled    bool
	SponsorBlockCategories []string
}

// RatingsConfig holds per-provider enrichment settings.
type RatingsConfig struct {
	MDBList            bool
	RottenTomatoes     bool
	CertificationCheck bool
	AniList            bool
	Kinopoisk          bool
	Allocine           bool
	Awards             bool

	MDBListAPIKey   string // MDBList is skipped without a key
	KinopoiskAPIKey string
	// ProxyURL is prepended to scrape targets, e.g. "https://proxy.example/?url=".
	ProxyURL          string        `env:"RATINGS_PROXY_URL" validate:"omitempty,http_url"`
	RequestTimeout    time.Duration `env:"RATINGS_REQUEST_TIMEOUT" validate:"gt=0"`
	RequestsPerSecond float64       `env:"RATINGS_RPS" validate:"gt=0"`
}

// CacheConfig holds ratings cache settings.
type CacheConfig struct {
	Path           string
	TTLHours       int   `env:"CACHE_TTL_HOURS" validate:"gte=1"`
	QuotaBytes     int64 `env:"CACHE_QUOTA_BYTES" validate:"gte=65536"`
	SessionEntries int   `env:"CACHE_SESSION_ENTRIES" validate:"gte=100"`
}

// TTL returns the cache time-to-live.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return loadConfig(flag.CommandLine, os.Args[1:])
}

func loadConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	port := fs.String("port", "", "Server port (default: 8095)")
	embyURL := fs.String("emby-url", "", "Emby server base URL")
	embyKey := fs.String("emby-api-key", "", "Emby API key")
	embyUser := fs.String("emby-user-id", "", "Emby user whose library is shown")

	limit := fs.String("limit", "", "Number of slides (default: 10)")
	autoplay := fs.String("autoplay-interval", "", "Autoplay interval (default: 8s)")
	allowList := fs.String("allow-list", "", "Path to an item allow-list file")
	overrides := fs.String("overrides", "", "Path to a YAML badge override file")

	cachePath := fs.String("cache-path", "", "Directory for the persistent ratings cache")
	cacheTTL := fs.String("cache-ttl-hours", "", "Ratings cache TTL in hours (default: 168)")
	proxyURL := fs.String("proxy-url", "", "Proxy URL prefix for scraped rating sources")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*port, "SERVER_PORT", "8095"),
			AllowedOrigins: getListConfigValue("", "CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Emby: EmbyConfig{
			BaseURL:  strings.TrimRight(getConfigValue(*embyURL, "EMBY_URL", ""), "/"),
			APIKey:   getConfigValue(*embyKey, "EMBY_API_KEY", ""),
			UserID:   getConfigValue(*embyUser, "EMBY_USER_ID", ""),
			ServerID: getConfigValue("", "EMBY_SERVER_ID", ""),
		},
		Spotlight: SpotlightConfig{
			Limit:           getIntConfigValue(*limit, "SPOTLIGHT_LIMIT", 10),
			CandidateLimit:  getIntConfigValue("", "SPOTLIGHT_CANDIDATE_LIMIT", 50),
			UnwatchedOnly:   getBoolConfigValue("", "SPOTLIGHT_UNWATCHED_ONLY", false),
			ImageWidth:      getIntConfigValue("", "SPOTLIGHT_IMAGE_WIDTH", 1900),
			LogoWidth:       getIntConfigValue("", "SPOTLIGHT_LOGO_WIDTH", 800),
			BackgroundColor: getConfigValue("", "SPOTLIGHT_BACKGROUND_COLOR", "#000000"),
			HighlightColor: getConfigValue("", "SPOTLIGHT_HIGHLIGHT_COLOR",
				"hsl(var(--theme-primary-color-hue), var(--theme-primary-color-saturation), var(--theme-primary-color-lightness))"),
			MarginTop:     getConfigValue("", "SPOTLIGHT_MARGIN_TOP", "9rem"),
			AllowListPath: getConfigValue(*allowList, "SPOTLIGHT_ALLOW_LIST", ""),
			OverridesPath: getConfigValue(*overrides, "SPOTLIGHT_OVERRIDES", ""),
		},
		Video: VideoConfig{
			Enabled:             getBoolConfigValue("", "VIDEO_ENABLED", true),
			Muted:               getBoolConfigValue("", "VIDEO_MUTED", true),
			Volume:              getIntConfigValue("", "VIDEO_VOLUME", 40),
			Quality:             getConfigValue("", "VIDEO_QUALITY", "hd1080"),
			WaitForTrailerEnd:   getBoolConfigValue("", "VIDEO_WAIT_FOR_TRAILER_END", false),
			AllowMobile:         getBoolConfigValue("", "VIDEO_ALLOW_MOBILE", false),
			SponsorBlockEnabled: getBoolConfigValue("", "SPONSORBLOCK_ENABLED", true),
			SponsorBlockCategories: getListConfigValue("", "SPONSORBLOCK_CATEGORIES",
				[]string{"sponsor", "intro", "outro", "selfpromo", "interaction"}),
		},
		Ratings: RatingsConfig{
			MDBList:            getBoolConfigValue("", "RATINGS_MDBLIST", true),
			RottenTomatoes:     getBoolConfigValue("", "RATINGS_ROTTEN_TOMATOES", true),
			CertificationCheck: getBoolConfigValue("", "RATINGS_CERTIFICATION_CHECK", true),
			AniList:            getBoolConfigValue("", "RATINGS_ANILIST", true),
			Kinopoisk:          getBoolConfigValue("", "RATINGS_KINOPOISK", true),
			Allocine:           getBoolConfigValue("", "RATINGS_ALLOCINE", true),
			Awards:             getBoolConfigValue("", "RATINGS_AWARDS", true),
			MDBListAPIKey:      getConfigValue("", "MDBLIST_API_KEY", ""),
			KinopoiskAPIKey:    getConfigValue("", "KINOPOISK_API_KEY", ""),
			ProxyURL:           getConfigValue(*proxyURL, "RATINGS_PROXY_URL", ""),
			RequestsPerSecond:  getFloatConfigValue("", "RATINGS_RPS", 4),
		},
		Cache: CacheConfig{
			Path:           getConfigValue(*cachePath, "CACHE_PATH", ""),
			TTLHours:       getIntConfigValue(*cacheTTL, "CACHE_TTL_HOURS", 168),
			QuotaBytes:     int64(getIntConfigValue("", "CACHE_QUOTA_BYTES", 5*1024*1024)),
			SessionEntries: getIntConfigValue("", "CACHE_SESSION_ENTRIES", 10000),
		},
	}

	durations := []struct {
		target   *time.Duration
		flagVal  string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, "", "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "", "SERVER_WRITE_TIMEOUT", "0s"},
		{&cfg.Server.IdleTimeout, "", "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Server.SessionIdleTTL, "", "SESSION_IDLE_TTL", "30m"},
		{&cfg.Spotlight.AutoplayInterval, *autoplay, "SPOTLIGHT_AUTOPLAY_INTERVAL", "8s"},
		{&cfg.Spotlight.TransitionDuration, "", "SPOTLIGHT_TRANSITION_DURATION", "500ms"},
		{&cfg.Video.EndAdvanceDelay, "", "VIDEO_END_ADVANCE_DELAY", "1s"},
		{&cfg.Video.EndFallback, "", "VIDEO_END_FALLBACK", "3m"},
		{&cfg.Ratings.RequestTimeout, "", "RATINGS_REQUEST_TIMEOUT", "10s"},
	}
	for _, d := range durations {
		parsed, err := getDurationConfigValue(d.flagVal, d.envKey, d.fallback)
		if err != nil {
			return nil, err
		}
		*d.target = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Cache.Path == "" {
		return errors.New("cache path cannot be empty after expansion")
	}

	v := validation.New()
	for _, section := range []any{c.Server, c.Emby, c.Spotlight, c.Video, c.Ratings, c.Cache} {
		if err := v.Validate(section); err != nil {
			return flattenValidation(err)
		}
	}

	return nil
}

// flattenValidation renders validator field details as "FIELD message; ..." in a stable order.
func flattenValidation(err error) error {
	var domainErr *domainerrors.Error
	if !errors.As(err, &domainErr) {
		return err
	}
	details, ok := domainErr.Details.(map[string]string)
	if !ok || len(details) == 0 {
		return err
	}

	fields := make([]string, 0, len(details))
	for field := range details {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+details[field])
	}
	return errors.New(strings.Join(parts, "; "))
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Cache.Path, err = expandPath(c.Cache.Path, filepath.Join(homeDir, "Spotlight", "cache")); err != nil {
		return err
	}
	if c.Spotlight.AllowListPath, err = expandPath(c.Spotlight.AllowListPath, ""); err != nil {
		return err
	}
	if c.Spotlight.OverridesPath, err = expandPath(c.Spotlight.OverridesPath, ""); err != nil {
		return err
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// getListConfigValue splits a comma-separated value, dropping empty items.
func getListConfigValue(flagValue, envKey string, defaultValue []string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var out []string
	for item := range strings.SplitSeq(strValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Env vars already set take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
