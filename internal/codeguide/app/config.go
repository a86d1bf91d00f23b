package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	OpenRouterAPIKey  string        `yaml:"openrouter_api_key"`  // Optional: server-held key, overrides client keys
	OpenRouterBaseURL string        `yaml:"openrouter_base_url"` // Upstream base URL (default: https://openrouter.ai/api/v1)
	ProviderOrder     []string      `yaml:"provider_order"`      // Provider routing order (default: Anthropic, OpenAI, Google)
	KeyPrefix         string        `yaml:"key_prefix"`          // Required client key prefix (default: sk-or-)
	AppURL            string        `yaml:"app_url"`             // Referer fallback (default: http://localhost:3000)
	UpstreamTimeout   time.Duration `yaml:"upstream_timeout"`    // Wait for upstream headers (default: 120s)

	StoreDriver    string `yaml:"store_driver"`     // sqlite, postgres or memory (default: sqlite)
	DatabaseFile   string `yaml:"database_file"`    // SQLite file (default: codeguide.db)
	DatabaseURL    string `yaml:"database_url"`     // Postgres DSN, required for the postgres driver
	PepperFile     string `yaml:"pepper_file"`      // Password pepper (default: pepper)
	SigningKeyFile string `yaml:"signing_key_file"` // Ed25519 session key, generated if absent (default: session.pem)
	Issuer         string `yaml:"issuer"`           // Session token issuer (default: codeguide)

	SessionTTL     time.Duration `yaml:"session_ttl"`     // 0 keeps sessions until logout
	RequireSession bool          `yaml:"require_session"` // Guard the proxy with the session token
	DebugRoutes    bool          `yaml:"debug_routes"`    // Mount user listing and data wipe

	Env                  string        `yaml:"env"`                   // dev, staging, prod (default: dev)
	LogLevel             string        `yaml:"log_level"`             // debug, info, warn, error (default: info)
	LogFormat            string        `yaml:"log_format"`            // json, text (default: json)
	Port                 int           `yaml:"port"`                  // HTTP port (default: 8080)
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"` // default: 10s
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"` // Session sweep, only with a TTL (default: 1m)
}

// DefaultConfig is the configuration with nothing set.
func DefaultConfig() Config {
	return Config{
		OpenRouterBaseURL:    "https://openrouter.ai/api/v1",
		ProviderOrder:        []string{"Anthropic", "OpenAI", "Google"},
		KeyPrefix:            "sk-or-",
		AppURL:               "http://localhost:3000",
		UpstreamTimeout:      120 * time.Second,
		StoreDriver:          DriverSQLite,
		DatabaseFile:         "codeguide.db",
		PepperFile:           "pepper",
		SigningKeyFile:       "session.pem",
		Issuer:               "codeguide",
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: time.Minute,
	}
}

// LoadConfig starts from DefaultConfig, applies the YAML file named by
// CODEGUIDE_CONFIG_FILE (if any) and then the environment.
func LoadConfig() (Config, error) {
	return LoadConfigFile(os.Getenv("CODEGUIDE_CONFIG_FILE"))
}

// LoadConfigFile is LoadConfig with an explicit file; "" skips the file.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := applyConfigFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.OpenRouterAPIKey = getEnvOrDefault("OPENROUTER_API_KEY", cfg.OpenRouterAPIKey)
	cfg.OpenRouterBaseURL = getEnvOrDefault("OPENROUTER_BASE_URL", cfg.OpenRouterBaseURL)
	cfg.ProviderOrder = getEnvListOrDefault("OPENROUTER_PROVIDER_ORDER", cfg.ProviderOrder)
	cfg.KeyPrefix = getEnvOrDefault("OPENROUTER_KEY_PREFIX", cfg.KeyPrefix)

	// The front-end build uses NEXT_PUBLIC_APP_URL; APP_URL wins when both are set.
	cfg.AppURL = getEnvOrDefault("NEXT_PUBLIC_APP_URL", cfg.AppURL)
	cfg.AppURL = getEnvOrDefault("APP_URL", cfg.AppURL)
	cfg.UpstreamTimeout = getEnvDurationOrDefault("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)

	cfg.StoreDriver = strings.ToLower(getEnvOrDefault("CODEGUIDE_STORE_DRIVER", cfg.StoreDriver))
	cfg.DatabaseFile = getEnvOrDefault("CODEGUIDE_DATABASE_FILE", cfg.DatabaseFile)
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.DatabaseURL = getEnvOrDefault("SUPABASE_DB_URL", cfg.DatabaseURL)
	cfg.PepperFile = getEnvOrDefault("CODEGUIDE_PEPPER_FILE", cfg.PepperFile)
	cfg.SigningKeyFile = getEnvOrDefault("CODEGUIDE_SIGNING_KEY_FILE", cfg.SigningKeyFile)
	cfg.Issuer = getEnvOrDefault("CODEGUIDE_ISSUER", cfg.Issuer)

	cfg.SessionTTL = getEnvDurationOrDefault("SESSION_TTL", cfg.SessionTTL)
	cfg.RequireSession = getEnvBoolOrDefault("CODEGUIDE_REQUIRE_SESSION", cfg.RequireSession)
	cfg.DebugRoutes = getEnvBoolOrDefault("CODEGUIDE_DEBUG_ROUTES", cfg.DebugRoutes)

	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)
}

var ErrInvalidConfig = errors.New("invalid configuration")

// Validate reports the first setting the application cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			return fmt.Errorf("%w: CODEGUIDE_DATABASE_FILE is required for the sqlite driver", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: SUPABASE_DB_URL is required for the postgres driver", ErrInvalidConfig)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("%w: SESSION_TTL must not be negative", ErrInvalidConfig)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("%w: UPSTREAM_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.OpenRouterAPIKey != "" && !strings.HasPrefix(c.OpenRouterAPIKey, c.KeyPrefix) {
		return fmt.Errorf("%w: OPENROUTER_API_KEY does not start with %q", ErrInvalidConfig, c.KeyPrefix)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma separated list, dropping blanks.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
