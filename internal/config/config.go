package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Save targets.
const (
	SaveTargetFile  = "file"
	SaveTargetGCS   = "gcs"
	SaveTargetDrive = "drive"
)

type Config struct {
	CertificateAPIURL     string
	RequestTimeout        time.Duration // 0 disables the transport timeout
	RateLimitRPS          float64       // 0 disables the outbound limiter
	RateLimitBurst        int
	CacheTTL              time.Duration // 0 disables the document cache
	CacheCleanupInterval  time.Duration
	SaveTarget            string
	OutputDir             string
	GCSBucketName         string
	GCSPrefix             string
	GoogleDriveFolderID   string
	GoogleCredentialsPath string
	GoogleCredentialsJSON string // raw JSON, preferred over the path
	LedgerEnabled         bool
	FirestoreProjectID    string
	FirestoreCollection   string
	ImageMaxDimension     int
	JPEGQuality           int
	LogLevel              string
	LogFormat             string
}

// Load reads configuration from environment variables and .env file.
// It loads the .env file if present, then populates the Config struct.
// Overrides run before validation so callers can layer flags or a config
// file on top of the environment.
func Load(overrides ...func(*Config)) (*Config, error) {
	// Missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	cfg := FromEnv()
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	return &Config{
		CertificateAPIURL:     getEnv("CERTIFICATE_API_URL", "http://localhost:8000"),
		RequestTimeout:        getDurationEnv("REQUEST_TIMEOUT", 60*time.Second),
		RateLimitRPS:          getFloatEnv("RATE_LIMIT_RPS", 0),
		RateLimitBurst:        getIntEnv("RATE_LIMIT_BURST", 1),
		CacheTTL:              getDurationEnv("CACHE_TTL", 0),
		CacheCleanupInterval:  getDurationEnv("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		SaveTarget:            strings.ToLower(getEnv("SAVE_TARGET", SaveTargetFile)),
		OutputDir:             getEnv("OUTPUT_DIR", "."),
		GCSBucketName:         getEnv("GCS_BUCKET_NAME", ""),
		GCSPrefix:             getEnv("GCS_PREFIX", "certificates/"),
		GoogleDriveFolderID:   getEnv("GOOGLE_DRIVE_FOLDER_ID", ""),
		GoogleCredentialsPath: getEnv("GOOGLE_CREDENTIALS_PATH", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		LedgerEnabled:         getBoolEnv("LEDGER_ENABLED", false),
		FirestoreProjectID:    getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCollection:   getEnv("FIRESTORE_COLLECTION", "certificates"),
		ImageMaxDimension:     getIntEnv("IMAGE_MAX_DIMENSION", 2048),
		JPEGQuality:           getIntEnv("JPEG_QUALITY", 90),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
	}
}

// NeedsGoogleCredentials reports whether any configured component talks to
// Google Cloud.
func (c *Config) NeedsGoogleCredentials() bool {
	return c.SaveTarget == SaveTargetGCS || c.SaveTarget == SaveTargetDrive || c.LedgerEnabled
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.CertificateAPIURL == "" {
		return fmt.Errorf("CERTIFICATE_API_URL is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive when RATE_LIMIT_RPS is set")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative")
	}
	if c.CacheTTL > 0 && c.CacheCleanupInterval <= 0 {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be positive")
	}

	switch c.SaveTarget {
	case SaveTargetFile:
		if c.OutputDir == "" {
			return fmt.Errorf("OUTPUT_DIR is required for SAVE_TARGET=file")
		}
	case SaveTargetGCS:
		if c.GCSBucketName == "" {
			return fmt.Errorf("GCS_BUCKET_NAME is required for SAVE_TARGET=gcs")
		}
	case SaveTargetDrive:
		if c.GoogleDriveFolderID == "" {
			return fmt.Errorf("GOOGLE_DRIVE_FOLDER_ID is required for SAVE_TARGET=drive")
		}
	default:
		return fmt.Errorf("SAVE_TARGET must be one of file, gcs, drive (got %q)", c.SaveTarget)
	}

	if c.LedgerEnabled {
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required when LEDGER_ENABLED is set")
		}
		if c.FirestoreCollection == "" {
			return fmt.Errorf("FIRESTORE_COLLECTION is required when LEDGER_ENABLED is set")
		}
	}
	if c.NeedsGoogleCredentials() && c.GoogleCredentialsJSON == "" && c.GoogleCredentialsPath == "" {
		return fmt.Errorf("either GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_PATH must be set")
	}

	if c.ImageMaxDimension < 0 {
		return fmt.Errorf("IMAGE_MAX_DIMENSION must not be negative")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100")
	}
	return nil
}

// Retrieves an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// Retrieves a duration from environment variable or returns a default value.
// It supports both time.Duration format (e.g., "90s", "10m") and integer seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// Retrieves a boolean from environment variable or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
