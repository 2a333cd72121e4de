package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Config holds settings for any S3-compatible blob store reached through the AWS SDK
// (AWS S3, Cloudflare R2, ...). Endpoint may be empty for AWS itself.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	MaxAttempts     int
}

// StorageConfig selects the storage driver backing document files.
type StorageConfig struct {
	// Driver is one of "filesystem", "minio", "s3", "memory".
	Driver         string
	FilesystemRoot string
}

// EncryptionConfig controls transparent encryption of stored files.
type EncryptionConfig struct {
	Enabled bool
	// KeyEncryptionKeys is a comma separated list of "version:base64key" pairs.
	KeyEncryptionKeys string
}

// IngestionConfig holds document lifecycle and default plan settings.
type IngestionConfig struct {
	TrashRetentionDays       int
	ExpirySweepInterval      time.Duration
	MaxDocumentStorageBytes  int64
	MaxFileSize              int64
	SideEffectWorkers        int
	SideEffectQueueSize      int
	TaggingRuleCacheSize     int
	TaggingRuleCacheTTL      time.Duration
	BulkOperationConcurrency int
	BulkOperationPageSize    int
}

// TasksConfig selects the background job backend.
type TasksConfig struct {
	// Driver is "memory" or "redis".
	Driver  string
	Workers int
}

// RedisConfig holds the Redis connection used by the redis task driver.
type RedisConfig struct {
	URL   string
	Queue string
}

// WebhookConfig configures outgoing webhook delivery.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost     string
	Port        string
	Env         string
	LogLevel    string
	// AccessLogTZ, when set, renders HTTP access log timestamps in that IANA zone.
	AccessLogTZ string
	Repository  string
	Database    DatabaseConfig
	MinIO       MinIOConfig
	S3          S3Config
	Storage     StorageConfig
	Encryption  EncryptionConfig
	Ingestion   IngestionConfig
	Tasks       TasksConfig
	Redis       RedisConfig
	Webhook     WebhookConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:     getEnv("APP_HOST", "localhost:8080"),
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		AccessLogTZ: getEnv("ACCESS_LOG_TZ", ""),
		Repository:  getEnv("REPOSITORY_DRIVER", "postgres"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "auto"),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			ForcePathStyle:  getEnvBool("S3_FORCE_PATH_STYLE", true),
			MaxAttempts:     getEnvInt("S3_MAX_ATTEMPTS", 3),
		},
		Storage: StorageConfig{
			Driver:         getEnv("DOCUMENT_STORAGE_DRIVER", "filesystem"),
			FilesystemRoot: getEnv("DOCUMENT_STORAGE_FILESYSTEM_ROOT", "./data/documents"),
		},
		Encryption: EncryptionConfig{
			Enabled:           getEnvBool("DOCUMENT_STORAGE_ENCRYPTION_ENABLED", false),
			KeyEncryptionKeys: getEnv("DOCUMENT_STORAGE_KEY_ENCRYPTION_KEYS", ""),
		},
		Ingestion: IngestionConfig{
			TrashRetentionDays:       getEnvInt("DOCUMENTS_DELETED_RETENTION_DAYS", 30),
			ExpirySweepInterval:      getEnvDuration("DOCUMENTS_EXPIRY_SWEEP_INTERVAL", time.Hour),
			MaxDocumentStorageBytes:  getEnvInt64("PLAN_MAX_DOCUMENT_STORAGE_BYTES", 500*1024*1024),
			MaxFileSize:              getEnvInt64("PLAN_MAX_FILE_SIZE", 100*1024*1024),
			SideEffectWorkers:        getEnvInt("SIDE_EFFECT_WORKERS", 4),
			SideEffectQueueSize:      getEnvInt("SIDE_EFFECT_QUEUE_SIZE", 1024),
			TaggingRuleCacheSize:     getEnvInt("TAGGING_RULE_CACHE_SIZE", 1000),
			TaggingRuleCacheTTL:      getEnvDuration("TAGGING_RULE_CACHE_TTL", time.Minute),
			BulkOperationConcurrency: getEnvInt("BULK_OPERATION_CONCURRENCY", 10),
			BulkOperationPageSize:    getEnvInt("BULK_OPERATION_PAGE_SIZE", 100),
		},
		Tasks: TasksConfig{
			Driver:  getEnv("TASKS_DRIVER", "memory"),
			Workers: getEnvInt("TASKS_WORKERS", 2),
		},
		Redis: RedisConfig{
			URL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Queue: getEnv("TASKS_REDIS_QUEUE", "docvault:tasks"),
		},
		Webhook: WebhookConfig{
			URL:     getEnv("WEBHOOK_URL", ""),
			Timeout: getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		},
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
