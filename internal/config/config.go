package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	API       APIConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Extractor ExtractorConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
	Logger    LoggerConfig
	Cache     CacheConfig
	Cleanup   CleanupConfig
}

// APIConfig holds API server configuration
type APIConfig struct {
	Port           int
	Host           string
	Environment    string // development, production
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	BodyLimit      int
	AllowedOrigins string
	PublicBaseURL  string // used to build /file/download proxy links
	EnablePprof    bool
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address    string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// StorageConfig holds archive storage configuration
type StorageConfig struct {
	Type               string // s3 or local
	Endpoint           string
	Region             string
	Bucket             string
	PresignedURLExpiry time.Duration
	UsePathStyle       bool // For MinIO
	LocalPath          string
	LocalBaseURL       string
}

// ExtractorConfig holds upstream scraping configuration
type ExtractorConfig struct {
	YtdlpPath     string
	FFmpegPath    string
	MethodTimeout time.Duration // bound for each third-party HTTP call
	YtdlpTimeout  time.Duration
	FFmpegTimeout time.Duration
	ProxyTimeout  time.Duration // end-to-end bound for /file/download streaming
	TempDir       string
	Breaker       bool // wrap each upstream in a circuit breaker
}

// AuthConfig holds credential configuration
type AuthConfig struct {
	StoreDriver   string // redis or memory
	RequireAPIKey bool   // initial value of the runtime setting
	AdminKey      string // guards /admin routes
	FreeCredits   int64
}

// RateLimitConfig bounds anonymous traffic per client IP
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// WorkerConfig holds archive worker configuration
type WorkerConfig struct {
	Concurrency     int
	ShutdownTimeout time.Duration
	MaxRetries      int
	JobTimeout      time.Duration
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	FileName   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// CacheConfig holds result cache configuration
type CacheConfig struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration
}

// CleanupConfig holds temp file cleanup configuration
type CleanupConfig struct {
	Enabled  bool
	Interval time.Duration
	MaxAge   time.Duration
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			Port:           getEnvInt("PORT", 3000),
			Host:           getEnv("HOST", "0.0.0.0"),
			Environment:    getEnv("APP_ENV", "development"),
			ReadTimeout:    getEnvDuration("API_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvDuration("API_WRITE_TIMEOUT", 2*time.Minute),
			BodyLimit:      getEnvInt("API_BODY_LIMIT", 1024*1024),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
			PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
			EnablePprof:    getEnvBool("ENABLE_PPROF", false),
		},
		Redis: RedisConfig{
			Address:    getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			MaxRetries: getEnvInt("REDIS_MAX_RETRIES", 3),
			PoolSize:   getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Storage: StorageConfig{
			Type:               getEnv("STORAGE_TYPE", "local"),
			Endpoint:           getEnv("S3_ENDPOINT", ""),
			Region:             getEnv("S3_REGION", "us-east-1"),
			Bucket:             getEnv("S3_BUCKET", "grabkit-archive"),
			PresignedURLExpiry: getEnvDuration("S3_PRESIGNED_EXPIRY", 24*time.Hour),
			UsePathStyle:       getEnvBool("S3_USE_PATH_STYLE", true),
			LocalPath:          getEnv("LOCAL_STORAGE_PATH", "./archive"),
			LocalBaseURL:       getEnv("LOCAL_STORAGE_URL", "http://localhost:3000/archive/files"),
		},
		Extractor: ExtractorConfig{
			YtdlpPath:     getEnv("YTDLP_PATH", "yt-dlp"),
			FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
			MethodTimeout: getEnvDuration("EXTRACT_METHOD_TIMEOUT", 15*time.Second),
			YtdlpTimeout:  getEnvDuration("YTDLP_TIMEOUT", 30*time.Second),
			FFmpegTimeout: getEnvDuration("FFMPEG_TIMEOUT", 10*time.Minute),
			ProxyTimeout:  getEnvDuration("PROXY_TIMEOUT", 120*time.Second),
			TempDir:       getEnv("TEMP_DIR", os.TempDir()),
			Breaker:       getEnvBool("UPSTREAM_BREAKER", true),
		},
		Auth: AuthConfig{
			StoreDriver:   getEnv("STORE_DRIVER", "redis"),
			RequireAPIKey: getEnvBool("REQUIRE_API_KEY", false),
			AdminKey:      getEnv("ADMIN_KEY", ""),
			FreeCredits:   getEnvInt64("FREE_CREDITS", 25),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getEnvBool("RATE_LIMIT_ENABLED", true),
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Worker: WorkerConfig{
			Concurrency:     getEnvInt("WORKER_CONCURRENCY", 4),
			ShutdownTimeout: getEnvDuration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxRetries:      getEnvInt("JOB_MAX_RETRIES", 3),
			JobTimeout:      getEnvDuration("JOB_TIMEOUT", 15*time.Minute),
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			FileName:   getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			Prefix:  getEnv("CACHE_PREFIX", "result:"),
			TTL:     getEnvDuration("CACHE_TTL", 10*time.Minute),
		},
		Cleanup: CleanupConfig{
			Enabled:  getEnvBool("CLEANUP_ENABLED", true),
			Interval: getEnvDuration("CLEANUP_INTERVAL", time.Hour),
			MaxAge:   getEnvDuration("CLEANUP_MAX_AGE", 6*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.API.Port)
	}

	switch c.Auth.StoreDriver {
	case "redis", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be redis or memory, got %q", c.Auth.StoreDriver)
	}

	if c.Auth.StoreDriver == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("REDIS_ADDR is required when STORE_DRIVER=redis")
	}

	switch c.Storage.Type {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_TYPE=s3")
		}
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("LOCAL_STORAGE_PATH is required when STORAGE_TYPE=local")
		}
	default:
		return fmt.Errorf("STORAGE_TYPE must be s3 or local, got %q", c.Storage.Type)
	}

	if c.Extractor.MethodTimeout <= 0 {
		return fmt.Errorf("EXTRACT_METHOD_TIMEOUT must be positive")
	}

	if c.Auth.FreeCredits < 0 {
		return fmt.Errorf("FREE_CREDITS must be >= 0")
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be >= 1")
	}

	return nil
}

// IsProduction reports whether error details should be hidden from clients
func (c *Config) IsProduction() bool {
	return c.API.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
