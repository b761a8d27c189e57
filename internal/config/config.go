// Package config provides application configuration with support for
// command-line flags, environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/speedreader/speedreader-core/internal/domain"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Legacy  LegacyConfig
	Inbox   InboxConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds the persistent store configuration.
type StorageConfig struct {
	// DataPath is the base directory for everything the reader stores (default: ~/SpeedReader)
	DataPath string
	// DBPath is the badger directory, always {DataPath}/db
	DBPath string
	// CacheBudgetBytes caps cached book text (default: 200 MiB)
	CacheBudgetBytes int64
}

// LegacyConfig describes the optional import from the legacy flat store.
type LegacyConfig struct {
	// DBPath is a SQLite export of the legacy key/value data. Empty disables migration.
	DBPath string
	// MigrateOnStart runs the migration whenever the store is opened (default: true)
	MigrateOnStart bool
}

// InboxConfig holds drop-folder ingestion configuration.
type InboxConfig struct {
	// Path is watched for .txt and .md files. Empty disables the inbox.
	Path string
	// ImportsPerSecond throttles imports when many files land at once.
	// Zero means unlimited (default: 5)
	ImportsPerSecond float64
}

// Overrides carries values given on the command line. Empty fields fall
// through to the environment.
type Overrides struct {
	Environment      string
	LogLevel         string
	DataPath         string
	CacheBudgetBytes string
	LegacyDBPath     string
	MigrateOnStart   string
	InboxPath        string
	InboxRate        string
	EnvFile          string
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	budget, err := getInt64ConfigValue(o.CacheBudgetBytes, "CACHE_BUDGET_BYTES", domain.DefaultMaxCacheBytes)
	if err != nil {
		return nil, err
	}

	inboxRate, err := getFloatConfigValue(o.InboxRate, "INBOX_RATE", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(o.Environment, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(o.LogLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataPath:         getConfigValue(o.DataPath, "DATA_PATH", ""),
			CacheBudgetBytes: budget,
		},
		Legacy: LegacyConfig{
			DBPath:         getConfigValue(o.LegacyDBPath, "LEGACY_DB_PATH", ""),
			MigrateOnStart: getBoolConfigValue(o.MigrateOnStart, "MIGRATE_ON_START", true),
		},
		Inbox: InboxConfig{
			Path:             getConfigValue(o.InboxPath, "INBOX_PATH", ""),
			ImportsPerSecond: inboxRate,
		},
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"test":        true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, test, or production)", c.App.Environment)
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
	if c.Storage.CacheBudgetBytes <= 0 {
		return fmt.Errorf("cache budget must be positive, got %d", c.Storage.CacheBudgetBytes)
	}
	if c.Inbox.ImportsPerSecond < 0 {
		return fmt.Errorf("inbox rate cannot be negative, got %g", c.Inbox.ImportsPerSecond)
	}
	return nil
}

func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Storage.DataPath, err = expandPath(c.Storage.DataPath, filepath.Join(homeDir, "SpeedReader")); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	c.Storage.DBPath = filepath.Join(c.Storage.DataPath, "db")

	if c.Legacy.DBPath, err = expandPath(c.Legacy.DBPath, ""); err != nil {
		return fmt.Errorf("invalid legacy db path: %w", err)
	}
	if c.Inbox.Path, err = expandPath(c.Inbox.Path, ""); err != nil {
		return fmt.Errorf("invalid inbox path: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned as is.
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

// getInt64ConfigValue returns an int64 from flag, env var, or default.
// A malformed value is an error.
func getInt64ConfigValue(flagValue, envKey string, defaultValue int64) (int64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return v, nil
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return v, nil
}
