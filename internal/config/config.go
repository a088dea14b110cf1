// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases, always absolute
	LogLevel string
	Port     int
	DevMode  bool

	// Portfolio constants
	InitialCapital   float64
	MaxHoldings      int
	InceptionDate    time.Time
	BenchmarkTickers []string

	// Decision proposer
	ModelName          string
	DecisionServiceURL string

	// Accuracy retrospective
	AccuracyLookbackDays int

	// Scheduler (cron specs with seconds, UTC)
	EnableScheduler bool
	DecisionCron    string
	SnapshotCron    string
	EvaluationCron  string
	BackupCron      string

	Backup *BackupConfig
}

// BackupConfig holds Cloudflare R2 backup settings.
// Backups are disabled unless bucket and credentials are present.
type BackupConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	RetentionDays   int
}

// Enabled reports whether enough settings are present to upload backups.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != "" && b.AccessKeyID != "" && b.SecretAccessKey != "" && b.AccountID != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRACKER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	inception, err := time.Parse("2006-01-02", getEnv("INCEPTION_DATE", "2026-01-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid INCEPTION_DATE (expected YYYY-MM-DD): %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		InitialCapital:   getEnvAsFloat("INITIAL_CAPITAL", 100_000),
		MaxHoldings:      getEnvAsInt("MAX_HOLDINGS", 10),
		InceptionDate:    inception,
		BenchmarkTickers: getEnvAsList("BENCHMARK_TICKERS", []string{"SPY", "QQQ"}),

		ModelName:          getEnv("TRACKING_MODEL", "gemini-3-pro-preview"),
		DecisionServiceURL: getEnv("DECISION_SERVICE_URL", "http://localhost:9000"),

		AccuracyLookbackDays: getEnvAsInt("ACCURACY_LOOKBACK_DAYS", 5),

		EnableScheduler: getEnvAsBool("ENABLE_SCHEDULER", true),
		DecisionCron:    getEnv("DECISION_CRON", "0 0 22 * * MON-FRI"),
		SnapshotCron:    getEnv("SNAPSHOT_CRON", "0 30 22 * * MON-FRI"),
		EvaluationCron:  getEnv("EVALUATION_CRON", "0 0 6 * * *"),
		BackupCron:      getEnv("BACKUP_CRON", "0 0 3 * * *"),

		Backup: &BackupConfig{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("R2_BUCKET", ""),
			RetentionDays:   getEnvAsInt("R2_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("INITIAL_CAPITAL must be positive, got %v", c.InitialCapital)
	}
	if c.MaxHoldings <= 0 {
		return fmt.Errorf("MAX_HOLDINGS must be positive, got %d", c.MaxHoldings)
	}
	if c.AccuracyLookbackDays <= 0 {
		return fmt.Errorf("ACCURACY_LOOKBACK_DAYS must be positive, got %d", c.AccuracyLookbackDays)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT out of range: %d", c.Port)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
