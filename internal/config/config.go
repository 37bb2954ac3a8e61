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
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Server    ServerConfig
	Fetch     FetchConfig
	LLM       LLMConfig
	Normalize NormalizeConfig
	Reconcile ReconcileConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk storage configuration.
type DataConfig struct {
	// BasePath is the directory holding the catalog database and search index.
	BasePath string
	// DatabasePath is the SQLite database file (default: {data}/catalog.db).
	DatabasePath string
	// SearchIndexPath is the bleve suggestion index (default: {data}/suggest.bleve).
	SearchIndexPath string
	// SnapshotPath is where raw fetched documents are written when snapshotting
	// is enabled (default: {data}/snapshots).
	SnapshotPath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// FetchConfig holds outbound fetch configuration.
type FetchConfig struct {
	// Timeout bounds a single document fetch (default: 30s).
	Timeout time.Duration
	// RetryMaxAttempts is the total number of tries per document (default: 5).
	RetryMaxAttempts int
	// RetryBaseDelay is the exponential backoff base (default: 2s).
	RetryBaseDelay time.Duration
	// PolitenessRPS caps requests per second against a single host (default: 0.5).
	PolitenessRPS float64
	// PolitenessBurst is the per-host token bucket burst (default: 1).
	PolitenessBurst int
	// UserAgent is sent on every outbound request.
	UserAgent string
	// BrowserEnabled allows falling back to a headless browser for pages
	// that render their listings client-side (default: true).
	BrowserEnabled bool
}

// LLMConfig holds configuration for the model-assisted extraction fallback.
type LLMConfig struct {
	// Enabled turns the fallback on. When false, documents the hardcoded
	// extractors cannot handle yield zero candidates (default: false).
	Enabled bool
	// APIKey authenticates against the OpenAI API. Read from OPENAI_API_KEY.
	APIKey string
	// Model is the chat model used for extraction (default: gpt-4o-mini).
	Model string
	// MaxDocumentChars truncates the document text sent to the model (default: 48000).
	MaxDocumentChars int
}

// NormalizeConfig holds candidate normalization policy.
type NormalizeConfig struct {
	// DefaultTimezone applies to candidates without a zone (default: America/New_York).
	DefaultTimezone string
	// VenueKeyTolerance is the venue-name edit distance within which two
	// spellings count as the same venue (default: 2, 0 disables).
	VenueKeyTolerance int
	// FreeAdmissionVenues overrides the built-in list of venues whose
	// silence about price counts as an inferred free signal. Read as a
	// comma-separated list.
	FreeAdmissionVenues []string
}

// ReconcileConfig holds catalog reconciliation policy.
type ReconcileConfig struct {
	// RetentionWindow is how long an activity may go unseen by its source
	// before it is marked expired (default: 336h, 14 days).
	RetentionWindow time.Duration
	// ConfidenceThreshold routes low-confidence candidates to needs_review
	// instead of active (default: 0.5).
	ConfidenceThreshold float64
	// StaleRunTimeout closes runs still marked running after this long,
	// treating them as crashed (default: 2h).
	StaleRunTimeout time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for catalog data")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Fetch flags
	fetchTimeout := flag.String("fetch-timeout", "", "Per-document fetch timeout (default: 30s)")
	retryAttempts := flag.String("retry-attempts", "", "Max fetch attempts per document (default: 5)")
	retryBaseDelay := flag.String("retry-base-delay", "", "Backoff base delay (default: 2s)")
	politenessRPS := flag.String("politeness-rps", "", "Per-host requests per second (default: 0.5)")
	browserEnabled := flag.String("browser-enabled", "", "Allow headless browser fallback (default: true)")

	// LLM flags
	llmEnabled := flag.String("llm-enabled", "", "Enable model-assisted extraction fallback (default: false)")
	llmModel := flag.String("llm-model", "", "Chat model for extraction (default: gpt-4o-mini)")

	// Normalize flags
	defaultTimezone := flag.String("default-timezone", "", "Zone applied to candidates without one (default: America/New_York)")
	venueTolerance := flag.String("venue-key-tolerance", "", "Venue-name edit distance treated as the same venue (default: 2)")

	// Reconcile flags
	retentionWindow := flag.String("retention-window", "", "Unseen-activity retention window (default: 336h)")
	confidenceThreshold := flag.String("confidence-threshold", "", "Minimum confidence for active status (default: 0.5)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

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
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Fetch: FetchConfig{
			RetryMaxAttempts: getIntConfigValue(*retryAttempts, "FETCH_RETRY_ATTEMPTS", 5),
			PolitenessRPS:    getFloatConfigValue(*politenessRPS, "FETCH_POLITENESS_RPS", 0.5),
			PolitenessBurst:  getIntConfigValue("", "FETCH_POLITENESS_BURST", 1),
			UserAgent:        getConfigValue("", "FETCH_USER_AGENT", "art-activity-collector/1.0"),
			BrowserEnabled:   getBoolConfigValue(*browserEnabled, "FETCH_BROWSER_ENABLED", true),
		},
		LLM: LLMConfig{
			Enabled:          getBoolConfigValue(*llmEnabled, "LLM_ENABLED", false),
			APIKey:           getConfigValue("", "OPENAI_API_KEY", ""),
			Model:            getConfigValue(*llmModel, "LLM_MODEL", "gpt-4o-mini"),
			MaxDocumentChars: getIntConfigValue("", "LLM_MAX_DOCUMENT_CHARS", 48000),
		},
		Normalize: NormalizeConfig{
			DefaultTimezone:     getConfigValue(*defaultTimezone, "DEFAULT_TIMEZONE", "America/New_York"),
			VenueKeyTolerance:   getIntConfigValue(*venueTolerance, "VENUE_KEY_TOLERANCE", 2),
			FreeAdmissionVenues: getListConfigValue("", "FREE_ADMISSION_VENUES"),
		},
		Reconcile: ReconcileConfig{
			ConfidenceThreshold: getFloatConfigValue(*confidenceThreshold, "CONFIDENCE_THRESHOLD", 0.5),
		},
	}

	// Parse server timeouts.
	var err error
	cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}

	// Parse fetch durations.
	cfg.Fetch.Timeout, err = parseDurationValue(*fetchTimeout, "FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid fetch timeout: %w", err)
	}
	cfg.Fetch.RetryBaseDelay, err = parseDurationValue(*retryBaseDelay, "FETCH_RETRY_BASE_DELAY", "2s")
	if err != nil {
		return nil, fmt.Errorf("invalid retry base delay: %w", err)
	}

	// Parse reconcile durations.
	cfg.Reconcile.RetentionWindow, err = parseDurationValue(*retentionWindow, "RETENTION_WINDOW", "336h")
	if err != nil {
		return nil, fmt.Errorf("invalid retention window: %w", err)
	}
	cfg.Reconcile.StaleRunTimeout, err = parseDurationValue("", "STALE_RUN_TIMEOUT", "2h")
	if err != nil {
		return nil, fmt.Errorf("invalid stale run timeout: %w", err)
	}

	// Expand and validate the data path, then derive dependent paths.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
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

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Fetch.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Fetch.RetryMaxAttempts)
	}

	if c.Fetch.PolitenessRPS <= 0 {
		return fmt.Errorf("politeness rps must be positive, got %v", c.Fetch.PolitenessRPS)
	}

	if c.Normalize.DefaultTimezone == "" {
		return errors.New("default timezone cannot be empty")
	}

	if c.Normalize.VenueKeyTolerance < 0 {
		return fmt.Errorf("venue key tolerance must be non-negative, got %d", c.Normalize.VenueKeyTolerance)
	}

	if c.Reconcile.ConfidenceThreshold < 0 || c.Reconcile.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %v", c.Reconcile.ConfidenceThreshold)
	}

	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required when the LLM fallback is enabled")
	}

	return nil
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

// expandDataPath expands ~ and makes the path absolute, then derives the
// database, search index, and snapshot paths under it.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "art-activities", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded

	if c.Data.DatabasePath == "" {
		c.Data.DatabasePath = filepath.Join(expanded, "catalog.db")
	}
	if c.Data.SearchIndexPath == "" {
		c.Data.SearchIndexPath = filepath.Join(expanded, "suggest.bleve")
	}
	if c.Data.SnapshotPath == "" {
		c.Data.SnapshotPath = filepath.Join(expanded, "snapshots")
	}
	return nil
}

// parseDurationValue resolves a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	str := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", str, err)
	}
	return d, nil
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

// getListConfigValue returns a comma-separated list from flag or env var.
// Empty input yields nil so callers can apply their own defaults.
func getListConfigValue(flagValue, envKey string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(strValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
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

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
