package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"WaveDeck/logger"

	"github.com/joho/godotenv"
)

// Backend names accepted by the *_BACKEND and probe settings.
const (
	StorageLocal = "local"
	StorageMinio = "minio"

	CatalogMemory = "memory"
	CatalogMySQL  = "mysql"

	CacheNone  = "none"
	CacheRedis = "redis"

	ProbeNone    = "none"
	ProbeBeep    = "beep"
	ProbeFFprobe = "ffprobe"
)

// Config stores the application configuration.
type Config struct {
	Port      string
	WebAppDir string // optional static UI, served when the directory exists

	UploadDir            string // local storage root
	MaxUploadBytes       int64
	MaxConcurrentUploads int

	StorageBackend string
	CatalogBackend string
	CatalogCache   string
	DurationProbe  string
	FFprobePath    string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	Log logger.Config
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	uploadBase := getEnv("UPLOAD_DIR", "uploads")

	return &Config{
		Port:                 getEnv("SERVER_PORT", "8080"),
		WebAppDir:            getEnv("WEB_APP_DIR", filepath.Join("web", "ui")),
		UploadDir:            uploadBase,
		MaxUploadBytes:       getEnvInt64("MAX_UPLOAD_BYTES", 50<<20),
		MaxConcurrentUploads: getEnvInt("MAX_CONCURRENT_UPLOADS", 5),

		StorageBackend: getEnv("STORAGE_BACKEND", StorageLocal),
		CatalogBackend: getEnv("CATALOG_BACKEND", CatalogMemory),
		CatalogCache:   getEnv("CATALOG_CACHE", CacheNone),
		DurationProbe:  getEnv("DURATION_PROBE", ProbeNone),
		FFprobePath:    getEnv("FFPROBE_PATH", "ffprobe"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for secrets
		DBName:     getEnv("DB_NAME", "wavedeck"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "wavedeck"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		Log: logger.Config{
			Level:      logger.LogLevel(getEnv("LOG_LEVEL", string(logger.InfoLevel))),
			OutputPath: getEnv("LOG_FILE", ""),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
	}
}

// Validate rejects unknown backend names and nonsensical limits.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageLocal, StorageMinio:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.CatalogBackend {
	case CatalogMemory, CatalogMySQL:
	default:
		return fmt.Errorf("unknown CATALOG_BACKEND %q", c.CatalogBackend)
	}
	switch c.CatalogCache {
	case CacheNone, CacheRedis:
	default:
		return fmt.Errorf("unknown CATALOG_CACHE %q", c.CatalogCache)
	}
	switch c.DurationProbe {
	case ProbeNone, ProbeBeep, ProbeFFprobe:
	default:
		return fmt.Errorf("unknown DURATION_PROBE %q", c.DurationProbe)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxConcurrentUploads <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_UPLOADS must be positive, got %d", c.MaxConcurrentUploads)
	}
	return nil
}

// RedisAddr returns host:port for the Redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
