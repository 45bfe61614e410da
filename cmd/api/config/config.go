package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server
	Port           int      `env:"PORT" envDefault:"3000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	JWTSecret      string   `env:"JWT_SECRET,required,notEmpty"`

	// Database
	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"docchat.db"`

	// Language model
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMAPIKey   string `env:"LLM_API_KEY,required,notEmpty"`
	LLMBaseURL  string `env:"LLM_BASE_URL"`
	LLMModel    string `env:"LLM_MODEL" envDefault:"gpt-3.5-turbo"`

	// Chat pipeline
	ModelTimeout      time.Duration `env:"MODEL_TIMEOUT" envDefault:"60s"`
	ProcessingTimeout time.Duration `env:"PROCESSING_TIMEOUT" envDefault:"60s"`
	MaxFileSize       int64         `env:"MAX_FILE_SIZE" envDefault:"10485760"`
	HistoryWindow     int           `env:"HISTORY_WINDOW" envDefault:"10"`

	// Blob storage: "local" or "gcs"
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"`
	UploadDir      string `env:"UPLOAD_DIR" envDefault:"uploads"`
	GCSBucketName  string `env:"GCS_BUCKET_NAME"`

	// Response cache, disabled without an address
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"300s"`
	CacheMaxKeys  int64         `env:"CACHE_MAX_KEYS" envDefault:"1000"`

	// Websocket keepalive
	SessionCheckInterval time.Duration `env:"SESSION_CHECK_INTERVAL" envDefault:"30s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q", c.DBDriver)
	}
	switch c.StorageBackend {
	case "local":
	case "gcs":
		if c.GCSBucketName == "" {
			return fmt.Errorf("GCS_BUCKET_NAME is required when STORAGE_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.LLMProvider {
	case "openai", "claude", "gemini":
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	return nil
}
