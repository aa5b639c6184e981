// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/internal/modules/returns"
	"github.com/aristath/navreturns/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Cache modes for fetched NAV histories
const (
	// CacheModeRefresh always fetches and falls back to the cache when the fetch fails
	CacheModeRefresh = "refresh"
	// CacheModePrefer serves fresh cached data without fetching
	CacheModePrefer = "prefer"
)

// Config holds application configuration
type Config struct {
	DataDir  string `validate:"required"` // Base directory for databases and exports (always absolute)
	LogLevel string `validate:"omitempty,oneof=debug info warn warning error"`
	Port     int    `validate:"min=1,max=65535"`
	DevMode  bool

	// Data provider
	MFAPIBaseURL      string        `validate:"required,url"`
	FetchTimeout      time.Duration `validate:"min=1ms"`
	RequestsPerSecond float64       `validate:"gt=0"`
	MaxWorkers        int           `validate:"min=1,max=100"`
	CacheTTL          time.Duration `validate:"min=0s"`
	CacheMode         string        `validate:"oneof=refresh prefer"`

	// Engine
	SIPAmount           float64 `validate:"gt=0"`
	SIPDay              int     `validate:"min=1,max=31"`
	Methodology         string  `validate:"oneof=periodic lumpsum"`
	LumpsumShortWindows bool
	SplitFactors        []float64 `validate:"omitempty,dive,gt=1"` // Empty uses the engine defaults

	// Batch inputs and outputs (relative paths resolve against DataDir)
	SchemesFile    string `validate:"required"`
	OutputFile     string `validate:"required"`
	OutputJSONFile string

	// Scheduling
	RefreshSchedule     string `validate:"required"`
	CleanupSchedule     string `validate:"required"`
	MaintenanceSchedule string `validate:"required"`

	Publish PublishConfig
}

// PublishConfig holds S3-compatible (Cloudflare R2) publishing settings.
// Publishing is disabled when Bucket is empty.
type PublishConfig struct {
	Bucket          string
	Endpoint        string `validate:"omitempty,url"`
	AccessKeyID     string `validate:"required_with=Bucket"`
	SecretAccessKey string `validate:"required_with=Bucket"`
	Region          string
	KeyPrefix       string
}

// Enabled reports whether exported files should be uploaded
func (p PublishConfig) Enabled() bool {
	return p.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory: NAVRETURNS_DATA_DIR or ./data, always absolute
	dataDir := getEnv("NAVRETURNS_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		MFAPIBaseURL:      getEnv("MFAPI_BASE_URL", "https://api.mfapi.in/mf/"),
		FetchTimeout:      getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second),
		RequestsPerSecond: getEnvAsFloat("REQUESTS_PER_SECOND", 5),
		MaxWorkers:        getEnvAsInt("MAX_WORKERS", 10),
		CacheTTL:          getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		CacheMode:         getEnv("CACHE_MODE", CacheModeRefresh),

		SIPAmount:           getEnvAsFloat("SIP_AMOUNT", returns.DefaultContributionAmount),
		SIPDay:              getEnvAsInt("SIP_DAY", returns.DefaultContributionDay),
		Methodology:         getEnv("METHODOLOGY", string(domain.MethodologyPeriodic)),
		LumpsumShortWindows: getEnvAsBool("LUMPSUM_SHORT_WINDOWS", false),
		SplitFactors:        getEnvAsFloatList("SPLIT_FACTORS"),

		SchemesFile:    getEnv("SCHEMES_FILE", "schemeswithcodes.csv"),
		OutputFile:     getEnv("OUTPUT_FILE", "precomputed_clean.csv"),
		OutputJSONFile: getEnv("OUTPUT_JSON_FILE", ""),

		RefreshSchedule:     getEnv("REFRESH_SCHEDULE", "0 30 2 * * *"), // 02:30 daily
		CleanupSchedule:     getEnv("CLEANUP_SCHEDULE", "@daily"),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 * * * *"), // hourly

		Publish: PublishConfig{
			Bucket:          getEnv("R2_BUCKET", ""),
			Endpoint:        getEnv("R2_ENDPOINT", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Region:          getEnv("R2_REGION", "auto"),
			KeyPrefix:       getEnv("R2_KEY_PREFIX", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its validation tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// EngineConfig converts the configuration into the return engine's configuration
func (c *Config) EngineConfig() (returns.EngineConfig, error) {
	methodology, err := domain.ParseMethodology(c.Methodology)
	if err != nil {
		return returns.EngineConfig{}, err
	}

	cfg := returns.DefaultEngineConfig()
	cfg.ContributionAmount = c.SIPAmount
	cfg.ContributionDay = c.SIPDay
	cfg.Methodology = methodology
	cfg.LumpsumShortWindows = c.LumpsumShortWindows
	if len(c.SplitFactors) > 0 {
		cfg.SplitFactors = append([]float64(nil), c.SplitFactors...)
	}
	return cfg, cfg.Validate()
}

// ResolvePath makes a relative path absolute against DataDir
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsFloatList parses a comma-separated list, skipping malformed entries
func getEnvAsFloatList(key string) []float64 {
	var out []float64
	for _, item := range utils.ParseList(os.Getenv(key)) {
		if f, err := strconv.ParseFloat(item, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}
