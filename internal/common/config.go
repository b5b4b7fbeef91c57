package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Duration is a time.Duration read from TOML strings such as "30s" or "24h"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Auth        AuthConfig      `toml:"auth"`
	LinkedIn    LinkedInConfig  `toml:"linkedin"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`
	Search      SearchConfig    `toml:"search"`
	Events      EventsConfig    `toml:"events"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port          int    `toml:"port"`
	Host          string `toml:"host"`
	AllowedOrigin string `toml:"allowed_origin"` // CORS origin, "*" when empty
}

type StorageConfig struct {
	Type   string       `toml:"type"`
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05"
	FileName   string   `toml:"file_name"`
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	JWTSecret  string `toml:"jwt_secret"`
	AdminClaim string `toml:"admin_claim"` // boolean claim granting the elevated role
	Issuer     string `toml:"issuer"`      // optional expected "iss"
}

// LinkedInConfig configures both remote channels
type LinkedInConfig struct {
	EncryptionKey      string   `toml:"encryption_key"`
	BaseURL            string   `toml:"base_url"`
	Headless           bool     `toml:"headless"`
	ProfileDir         string   `toml:"profile_dir"`         // persistent browser profile
	UserAgent          string   `toml:"user_agent"`
	Locale             string   `toml:"locale"`
	Timezone           string   `toml:"timezone"`
	NavigationTimeout  Duration `toml:"navigation_timeout"`
	RequestTimeout     Duration `toml:"request_timeout"`
	RequestsPerSecond  float64  `toml:"requests_per_second"` // direct client pacing
	MaxRetries         int      `toml:"max_retries"`
	CSRFCacheTTL       Duration `toml:"csrf_cache_ttl"`
	MinCookieLength    int      `toml:"min_cookie_length"`
	MaxHTMLSearchPages int      `toml:"max_html_search_pages"`
}

// RateLimitConfig holds the caps gating remote searches
type RateLimitConfig struct {
	MaxSearchesPerHour int `toml:"max_searches_per_hour"`
	MaxSearchesPerDay  int `toml:"max_searches_per_day"`
	MaxSessionMinutes  int `toml:"max_session_minutes"`
	CooldownMinutes    int `toml:"cooldown_minutes"`
}

// SearchConfig tunes the background search sessions
type SearchConfig struct {
	CacheWindow        Duration `toml:"cache_window"`
	MinDelay           Duration `toml:"min_delay"`
	MaxDelay           Duration `toml:"max_delay"`
	LongPauseEvery     int      `toml:"long_pause_every"`
	LongPauseMin       Duration `toml:"long_pause_min"`
	LongPauseMax       Duration `toml:"long_pause_max"`
	RateLimitBackoff   Duration `toml:"rate_limit_backoff"`
	StopOnFirstMatch   bool     `toml:"stop_on_first_match"`
	DefaultLimit       int      `toml:"default_limit"`
	MaxLimit           int      `toml:"max_limit"`
	MaxEntities        int      `toml:"max_entities"`
	MaxKeywords        int      `toml:"max_keywords"`
	RetentionDays      int      `toml:"retention_days"`
	ResumeOnStartup    bool     `toml:"resume_on_startup"`
	DefaultResultsPage int      `toml:"default_results_page_size"`
	MaxResultsPageSize int      `toml:"max_results_page_size"`
	DefaultHistoryPage int      `toml:"default_history_page_size"`
	MaxHistoryPageSize int      `toml:"max_history_page_size"`
}

// EventsConfig configures session lifecycle notifications
type EventsConfig struct {
	RedisURL string `toml:"redis_url"` // empty disables publishing
	Channel  string `toml:"channel"`
}

// SchedulerConfig holds cron specs for periodic maintenance
type SchedulerConfig struct {
	Enabled            bool   `toml:"enabled"`
	RevalidateSchedule string `toml:"revalidate_schedule"`
	PruneSchedule      string `toml:"prune_schedule"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
			FileName:   "fb-leads.log",
		},
		Auth: AuthConfig{
			AdminClaim: "admin",
		},
		LinkedIn: LinkedInConfig{
			BaseURL:            "https://www.linkedin.com",
			Headless:           true,
			ProfileDir:         "./browser-profiles/linkedin",
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			Locale:             "fr-FR",
			Timezone:           "Europe/Paris",
			NavigationTimeout:  Duration{30 * time.Second},
			RequestTimeout:     Duration{30 * time.Second},
			RequestsPerSecond:  1,
			MaxRetries:         2,
			CSRFCacheTTL:       Duration{12 * time.Hour},
			MinCookieLength:    100,
			MaxHTMLSearchPages: 5,
		},
		RateLimit: RateLimitConfig{
			MaxSearchesPerHour: 25,
			MaxSearchesPerDay:  80,
			MaxSessionMinutes:  45,
			CooldownMinutes:    15,
		},
		Search: SearchConfig{
			CacheWindow:        Duration{24 * time.Hour},
			MinDelay:           Duration{3 * time.Second},
			MaxDelay:           Duration{8 * time.Second},
			LongPauseEvery:     10,
			LongPauseMin:       Duration{30 * time.Second},
			LongPauseMax:       Duration{60 * time.Second},
			RateLimitBackoff:   Duration{60 * time.Second},
			StopOnFirstMatch:   true,
			DefaultLimit:       10,
			MaxLimit:           100,
			MaxEntities:        500,
			MaxKeywords:        20,
			RetentionDays:      30,
			ResumeOnStartup:    true,
			DefaultResultsPage: 50,
			MaxResultsPageSize: 500,
			DefaultHistoryPage: 20,
			MaxHistoryPageSize: 100,
		},
		Events: EventsConfig{
			Channel: "fb-leads:search-sessions",
		},
		Scheduler: SchedulerConfig{
			Enabled:            true,
			RevalidateSchedule: "0 */6 * * *",
			PruneSchedule:      "30 3 * * *",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier ones, a .env file in the working directory feeds the environment,
// and FBLEADS_* variables override everything read from files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Missing .env is fine; existing environment variables win over it
	_ = godotenv.Load()

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FBLEADS_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	envInt("FBLEADS_SERVER_PORT", &config.Server.Port)
	envString("FBLEADS_SERVER_HOST", &config.Server.Host)
	envString("FBLEADS_ALLOWED_ORIGIN", &config.Server.AllowedOrigin)

	// Storage configuration
	envString("FBLEADS_BADGER_PATH", &config.Storage.Badger.Path)

	// Logging configuration
	envString("FBLEADS_LOG_LEVEL", &config.Logging.Level)
	if output := os.Getenv("FBLEADS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Auth configuration
	envString("FBLEADS_JWT_SECRET", &config.Auth.JWTSecret)
	envString("FBLEADS_JWT_ISSUER", &config.Auth.Issuer)

	// LinkedIn configuration
	envString("FBLEADS_ENCRYPTION_KEY", &config.LinkedIn.EncryptionKey)
	envString("FBLEADS_LINKEDIN_BASE_URL", &config.LinkedIn.BaseURL)
	envBool("FBLEADS_LINKEDIN_HEADLESS", &config.LinkedIn.Headless)
	envString("FBLEADS_LINKEDIN_PROFILE_DIR", &config.LinkedIn.ProfileDir)
	envString("FBLEADS_LINKEDIN_USER_AGENT", &config.LinkedIn.UserAgent)
	envDuration("FBLEADS_LINKEDIN_REQUEST_TIMEOUT", &config.LinkedIn.RequestTimeout)

	// Rate limit configuration
	envInt("FBLEADS_RATE_LIMIT_MAX_PER_HOUR", &config.RateLimit.MaxSearchesPerHour)
	envInt("FBLEADS_RATE_LIMIT_MAX_PER_DAY", &config.RateLimit.MaxSearchesPerDay)
	envInt("FBLEADS_RATE_LIMIT_MAX_SESSION_MINUTES", &config.RateLimit.MaxSessionMinutes)
	envInt("FBLEADS_RATE_LIMIT_COOLDOWN_MINUTES", &config.RateLimit.CooldownMinutes)

	// Search configuration
	envDuration("FBLEADS_SEARCH_CACHE_WINDOW", &config.Search.CacheWindow)
	envDuration("FBLEADS_SEARCH_MIN_DELAY", &config.Search.MinDelay)
	envDuration("FBLEADS_SEARCH_MAX_DELAY", &config.Search.MaxDelay)
	envDuration("FBLEADS_SEARCH_RATE_LIMIT_BACKOFF", &config.Search.RateLimitBackoff)
	envBool("FBLEADS_SEARCH_STOP_ON_FIRST_MATCH", &config.Search.StopOnFirstMatch)
	envInt("FBLEADS_SEARCH_RETENTION_DAYS", &config.Search.RetentionDays)

	// Events configuration
	envString("FBLEADS_REDIS_URL", &config.Events.RedisURL)
	envString("FBLEADS_EVENTS_CHANNEL", &config.Events.Channel)
}

func envString(name string, target *string) {
	if v := os.Getenv(name); v != "" {
		*target = v
	}
}

func envInt(name string, target *int) {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func envBool(name string, target *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func envDuration(name string, target *Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			target.Duration = d
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	if c.Storage.Type != "" && c.Storage.Type != "badger" {
		return fmt.Errorf("unsupported storage type: %s (only 'badger' is supported)", c.Storage.Type)
	}

	rl := c.RateLimit
	if rl.MaxSearchesPerHour <= 0 || rl.MaxSearchesPerDay <= 0 || rl.MaxSessionMinutes <= 0 || rl.CooldownMinutes < 0 {
		return fmt.Errorf("invalid rate_limit configuration: caps must be positive")
	}
	if rl.MaxSearchesPerHour > rl.MaxSearchesPerDay {
		return fmt.Errorf("invalid rate_limit configuration: hourly cap %d exceeds daily cap %d", rl.MaxSearchesPerHour, rl.MaxSearchesPerDay)
	}

	if c.Search.MinDelay.Duration > c.Search.MaxDelay.Duration {
		return fmt.Errorf("invalid search configuration: min_delay exceeds max_delay")
	}
	if c.Search.LongPauseMin.Duration > c.Search.LongPauseMax.Duration {
		return fmt.Errorf("invalid search configuration: long_pause_min exceeds long_pause_max")
	}

	if c.Scheduler.Enabled {
		for _, spec := range []string{c.Scheduler.RevalidateSchedule, c.Scheduler.PruneSchedule} {
			if spec == "" {
				continue
			}
			if err := ValidateSchedule(spec); err != nil {
				return fmt.Errorf("invalid scheduler configuration %q: %w", spec, err)
			}
		}
	}

	return nil
}

// ValidateSchedule validates a cron schedule expression and ensures minimum 5-minute interval
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	minuteField := strings.Fields(schedule)[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
