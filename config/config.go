package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage and database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DriverS3     = "s3"
	DriverGCS    = "gcs"
	DriverDrive  = "drive"
	DriverMemory = "memory"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Polling  PollingConfig
	Worker   WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	PublicBaseURL      string // origin of absolute share links returned on create, e.g. https://capture.example.com
	MaxUploadBytes     int64  // direct upload body limit; 0 = unlimited
	TransferTimeout    time.Duration
}

// DatabaseConfig holds document store settings.
type DatabaseConfig struct {
	Driver     string // postgres or sqlite
	URL        string // if set, used as-is (e.g. postgres://localhost:5432/capture?sslmode=disable)
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	MaxConns   int32
	SQLitePath string
}

// RedisConfig holds Redis connection settings. An empty Addr disables the cleanup queue and status fan-out.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig selects and configures the holding area and the final store.
type StorageConfig struct {
	HoldingDriver string // s3, gcs or memory
	FinalDriver   string // s3, drive or memory

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Endpoint         string
	S3HoldingBucket    string
	S3FinalBucket      string
	S3PartSizeMB       int64

	GCSHoldingBucket   string
	GCSCredentialsFile string
	GCSSignerAccount   string

	DriveCredentialsFile string

	SignedURLTTL time.Duration
}

// PollingConfig is the status polling contract handed to clients.
type PollingConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// WorkerConfig holds background job settings.
type WorkerConfig struct {
	StaleUploadAfter time.Duration // 0 disables the stale upload reaper
	SweepInterval    time.Duration
	Inline           bool // run the worker inside the API server process
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 0),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
			PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 2048)) << 20,
			TransferTimeout:    time.Duration(getEnvInt("TRANSFER_TIMEOUT_MINUTES", 15)) * time.Minute,
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			URL:        getEnv("DATABASE_URL", ""),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", "postgres"),
			DBName:     getEnv("DB_NAME", "capture"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			MaxConns:   int32(getEnvInt("DB_MAX_CONNS", 20)),
			SQLitePath: getEnv("SQLITE_PATH", "capture.db"),
		},
		Redis: RedisConfig{
			Addr:     lookupEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			HoldingDriver:        strings.ToLower(getEnv("HOLDING_DRIVER", DriverS3)),
			FinalDriver:          strings.ToLower(getEnv("FINAL_DRIVER", DriverS3)),
			AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
			AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Endpoint:           getEnv("S3_ENDPOINT", ""),
			S3HoldingBucket:      getEnv("S3_HOLDING_BUCKET", "capture-holding"),
			S3FinalBucket:        getEnv("S3_FINAL_BUCKET", "capture-recordings"),
			S3PartSizeMB:         int64(getEnvInt("S3_PART_SIZE_MB", 16)),
			GCSHoldingBucket:     getEnv("GCS_HOLDING_BUCKET", ""),
			GCSCredentialsFile:   getEnv("GCS_CREDENTIALS_FILE", ""),
			GCSSignerAccount:     getEnv("GCS_SIGNER_ACCOUNT", ""),
			DriveCredentialsFile: getEnv("DRIVE_CREDENTIALS_FILE", ""),
			SignedURLTTL:         time.Duration(getEnvInt("SIGNED_URL_TTL_MINUTES", 15)) * time.Minute,
		},
		Polling: PollingConfig{
			Interval:    time.Duration(getEnvInt("POLL_INTERVAL_MS", 3000)) * time.Millisecond,
			MaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 200),
		},
		Worker: WorkerConfig{
			StaleUploadAfter: time.Duration(getEnvInt("STALE_UPLOAD_AFTER_MINUTES", 30)) * time.Minute,
			SweepInterval:    time.Duration(getEnvInt("STALE_SWEEP_INTERVAL_SEC", 60)) * time.Second,
			Inline:           getEnvBool("WORKER_INLINE", true),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and settings that would break the upload lifecycle.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q: want postgres or sqlite", c.Database.Driver))
	}
	switch c.Storage.HoldingDriver {
	case DriverS3, DriverMemory:
	case DriverGCS:
		if c.Storage.GCSHoldingBucket == "" {
			errs = append(errs, errors.New("GCS_HOLDING_BUCKET is required with HOLDING_DRIVER=gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("HOLDING_DRIVER %q: want s3, gcs or memory", c.Storage.HoldingDriver))
	}
	switch c.Storage.FinalDriver {
	case DriverS3, DriverDrive, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("FINAL_DRIVER %q: want s3, drive or memory", c.Storage.FinalDriver))
	}
	if c.Polling.Interval <= 0 || c.Polling.MaxAttempts <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL_MS and POLL_MAX_ATTEMPTS must be positive"))
	}
	if c.Server.TransferTimeout <= 0 {
		errs = append(errs, errors.New("TRANSFER_TIMEOUT_MINUTES must be positive"))
	}
	if c.Worker.StaleUploadAfter > 0 && c.Worker.StaleUploadAfter <= c.Server.TransferTimeout {
		errs = append(errs, errors.New("STALE_UPLOAD_AFTER_MINUTES must exceed TRANSFER_TIMEOUT_MINUTES"))
	}
	return errors.Join(errs...)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// lookupEnv is getEnv for settings where an explicitly empty value is meaningful.
func lookupEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
