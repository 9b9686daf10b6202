// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Storage  StorageConfig
	Server   ServerConfig
	Realtime RealtimeConfig
	Tags     TagsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds document store and index locations.
type StorageConfig struct {
	// DataPath holds on-disk state such as the badger docstore (default: ~/MediaTags/data).
	DataPath string
	// DocstoreDSN selects the backing document store (default: badger under DataPath).
	DocstoreDSN string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port               string        // Server port (default: 8080)
	AllowedOrigins     []string      // CORS origins (default: *)
	ReadTimeout        time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout       time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout        time.Duration // HTTP idle timeout (default: 60s)
	IntentRatePerMin   int           // Intent requests per client per minute (default: 120)
	IntentRateBurst    int           // Intent burst per client (default: 20)
	DisableRateLimiter bool
}

// RealtimeConfig holds the realtime batching windows.
type RealtimeConfig struct {
	// Window is how long listener notifications are buffered (default: 2s).
	Window time.Duration
	// SortWindow is how long listener completions are buffered before a sort (default: 1s).
	SortWindow time.Duration
}

// TagsConfig holds tag lifecycle tuning.
type TagsConfig struct {
	// ReconcileInterval paces bulk reconciliation between assets (default: 10s).
	ReconcileInterval time.Duration
	// DebugThrottle delays fetches to make in-flight state observable (default: 0).
	DebugThrottle time.Duration
}

// LoadConfig loads configuration from os.Args. See Load.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("media-tags", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for on-disk state")
	docstoreDSN := fs.String("docstore-dsn", "", "Document store DSN (memory://, badger://, sqlite://, postgres://)")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	corsOrigins := fs.String("cors-allowed-origins", "", "Comma separated CORS origins (default: *)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	intentRate := fs.String("intent-rate", "", "Intent requests per client per minute (default: 120)")
	intentBurst := fs.String("intent-burst", "", "Intent burst per client (default: 20)")
	disableLimiter := fs.String("disable-rate-limiter", "", "Disable intent rate limiting (default: false)")

	// Tag flags
	realtimeWindow := fs.String("realtime-window", "", "Realtime notification window (default: 2s)")
	sortWindow := fs.String("sort-window", "", "Realtime sort window (default: 1s)")
	reconcileInterval := fs.String("reconcile-interval", "", "Pause between reconciled assets (default: 10s)")
	debugThrottle := fs.String("debug-throttle", "", "Artificial fetch delay (default: 0)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
			DocstoreDSN: getConfigValue(*docstoreDSN, "DOCSTORE_DSN", ""),
		},
		Server: ServerConfig{
			Port:               getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins:     splitList(getConfigValue(*corsOrigins, "CORS_ALLOWED_ORIGINS", "*")),
			IntentRatePerMin:   getIntConfigValue(*intentRate, "INTENT_RATE_PER_MINUTE", 120),
			IntentRateBurst:    getIntConfigValue(*intentBurst, "INTENT_RATE_BURST", 20),
			DisableRateLimiter: getBoolConfigValue(*disableLimiter, "DISABLE_RATE_LIMITER", false),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Realtime.Window, *realtimeWindow, "REALTIME_WINDOW", "2s"},
		{&cfg.Realtime.SortWindow, *sortWindow, "SORT_WINDOW", "1s"},
		{&cfg.Tags.ReconcileInterval, *reconcileInterval, "RECONCILE_INTERVAL", "10s"},
		{&cfg.Tags.DebugThrottle, *debugThrottle, "DEBUG_THROTTLE", "0s"},
	}
	for _, d := range durations {
		value := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, value, err)
		}
		*d.dst = parsed
	}

	// Expand and validate the data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// The document store defaults to a Badger directory under the data path.
	if cfg.Storage.DocstoreDSN == "" {
		cfg.Storage.DocstoreDSN = "badger://" + filepath.Join(cfg.Storage.DataPath, "docstore")
	}

	// Validate configuration.
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

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}
	if c.Storage.DocstoreDSN == "" {
		return errors.New("DOCSTORE_DSN cannot be empty")
	}

	if c.Realtime.Window <= 0 {
		return fmt.Errorf("REALTIME_WINDOW must be positive, got %s", c.Realtime.Window)
	}
	if c.Realtime.SortWindow <= 0 {
		return fmt.Errorf("SORT_WINDOW must be positive, got %s", c.Realtime.SortWindow)
	}
	// A zero interval disables pacing.
	if c.Tags.ReconcileInterval < 0 {
		return fmt.Errorf("RECONCILE_INTERVAL cannot be negative, got %s", c.Tags.ReconcileInterval)
	}
	if c.Tags.DebugThrottle < 0 {
		return fmt.Errorf("DEBUG_THROTTLE cannot be negative, got %s", c.Tags.DebugThrottle)
	}

	if !c.Server.DisableRateLimiter && (c.Server.IntentRatePerMin <= 0 || c.Server.IntentRateBurst <= 0) {
		return errors.New("intent rate and burst must be positive unless the rate limiter is disabled")
	}

	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "MediaTags", "data")

	expanded, err := expandPath(c.Storage.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
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

// splitList splits a comma separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
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

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
