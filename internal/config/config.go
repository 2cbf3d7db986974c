package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"spellingbee/internal/logger"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
)

type Config struct {
	AppPort    string
	AppVersion string
	JWTSecret  string
	JWTTTL     time.Duration

	// Document store
	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Asset transfer
	BlobDir           string
	BlobBaseURL       string
	UploadTimeout     time.Duration
	UploadConcurrency int

	FlushInterval time.Duration

	// Rate limits
	APIRateLimit     int
	APIRateWindow    time.Duration
	AuthRateLimit    int
	AuthRateWindow   time.Duration
	SubmitRateLimit  int
	SubmitRateWindow time.Duration

	AllowedOrigin string
	LogLevel      string
	LogJSON       bool
}

// Load reads configuration from the environment (and .env if present).
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	cfg := &Config{
		AppPort:    envString("APP_PORT", "8080"),
		AppVersion: envString("APP_VERSION", "dev"),
		JWTSecret:  jwtSecret,
		JWTTTL:     time.Duration(envInt("JWT_TTL_HOURS", 24)) * time.Hour,

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  envString("SQLITE_PATH", "spellingbee.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		BlobDir:           envString("BLOB_DIR", "data"),
		BlobBaseURL:       strings.TrimRight(envString("BLOB_BASE_URL", "/"), "/"),
		UploadTimeout:     envSeconds("UPLOAD_TIMEOUT_SECONDS", 30),
		UploadConcurrency: envInt("UPLOAD_CONCURRENCY", 5),

		FlushInterval: envSeconds("FLUSH_INTERVAL_SECONDS", 30),

		APIRateLimit:     envInt("API_RATE_LIMIT", 120),
		APIRateWindow:    envSeconds("API_RATE_WINDOW_SECONDS", 60),
		AuthRateLimit:    envInt("AUTH_RATE_LIMIT", 5),
		AuthRateWindow:   envSeconds("AUTH_RATE_WINDOW_SECONDS", 60),
		SubmitRateLimit:  envInt("SUBMIT_RATE_LIMIT", 20),
		SubmitRateWindow: envSeconds("SUBMIT_RATE_WINDOW_SECONDS", 60),

		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:      envString("LOG_LEVEL", "info"),
		LogJSON:       os.Getenv("LOG_JSON") == "true",
	}

	cfg.StoreDriver = strings.ToLower(os.Getenv("STORE_DRIVER"))
	if cfg.StoreDriver == "" {
		// postgres when a DSN is configured, otherwise everything stays in memory
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = DriverPostgres
		} else {
			cfg.StoreDriver = DriverMemory
		}
	}

	switch cfg.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			logger.Fatal("DATABASE_URL is not set", "store_driver", cfg.StoreDriver)
		}
	case DriverRedis:
		if cfg.RedisAddr == "" {
			logger.Fatal("REDIS_ADDR is not set", "store_driver", cfg.StoreDriver)
		}
	default:
		logger.Fatal("unknown STORE_DRIVER", "store_driver", cfg.StoreDriver)
	}

	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt returns a positive integer from env or the default.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}
