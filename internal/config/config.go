package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Workflow WorkflowConfig `yaml:"workflow"`
	AI       AIConfig       `yaml:"ai"`
	Storage  StorageConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string
	Environment     string
	AllowOrigins    []string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration

	// Bootstrap admin, created at startup when AdminPassword is set.
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// WorkflowConfig controls the review state machine.
type WorkflowConfig struct {
	Reviewers                []string `yaml:"reviewers"`
	AllowReturnFromSubmitted bool     `yaml:"allow_return_from_submitted"`
}

type AIConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Driver string // minio, gcs or none

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	GCSBucket          string
	GCSCredentialsPath string
}

type RedisConfig struct {
	URL string
	TTL time.Duration
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type LogConfig struct {
	File  string
	Level string
}

// Load reads .env (if present), the process environment, then an optional YAML overlay named by CONFIG_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Failed to load .env file: %v, using system environment variables\n", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			AllowOrigins: splitList(getEnv("ALLOW_ORIGINS",
				"http://localhost:5173,http://127.0.0.1:5173")),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxUploadBytes:  int64(getInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "formintake"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getDuration("TOKEN_TTL", 24*time.Hour),

			AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
			AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		Workflow: WorkflowConfig{
			Reviewers:                splitList(getEnv("WORKFLOW_REVIEWERS", "admin")),
			AllowReturnFromSubmitted: getBool("WORKFLOW_RETURN_FROM_SUBMITTED", true),
		},
		AI: AIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o"),
			Timeout: getDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Driver:             getEnv("STORAGE_DRIVER", "none"),
			MinioEndpoint:      getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
			MinioBucket:        getEnv("MINIO_BUCKET", "form-uploads"),
			MinioUseSSL:        getBool("MINIO_USE_SSL", false),
			GCSBucket:          getEnv("GCS_BUCKET_NAME", ""),
			GCSCredentialsPath: getEnv("GCS_CREDENTIALS_PATH", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
			TTL: getDuration("TEMPLATE_CACHE_TTL", 10*time.Minute),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "form.events"),
		},
		Log: LogConfig{
			File:  getEnv("LOG_FILE", ""),
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if cfg.Auth.JWTSecret == "" {
		if cfg.Server.Environment == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.Auth.JWTSecret = "default_super_secret_key"
	}

	return cfg, nil
}

// overlay merges workflow and ai sections from a YAML file over the env values.
func (c *Config) overlay(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error open config file: %w", err)
	}
	defer file.Close()

	var y struct {
		Workflow *struct {
			Reviewers                []string `yaml:"reviewers"`
			AllowReturnFromSubmitted *bool    `yaml:"allow_return_from_submitted"`
		} `yaml:"workflow"`
		AI *AIConfig `yaml:"ai"`
	}
	if err := yaml.NewDecoder(file).Decode(&y); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}

	if y.Workflow != nil {
		if len(y.Workflow.Reviewers) > 0 {
			c.Workflow.Reviewers = y.Workflow.Reviewers
		}
		if y.Workflow.AllowReturnFromSubmitted != nil {
			c.Workflow.AllowReturnFromSubmitted = *y.Workflow.AllowReturnFromSubmitted
		}
	}
	if y.AI != nil {
		if y.AI.APIKey != "" {
			c.AI.APIKey = y.AI.APIKey
		}
		if y.AI.BaseURL != "" {
			c.AI.BaseURL = y.AI.BaseURL
		}
		if y.AI.Model != "" {
			c.AI.Model = y.AI.Model
		}
		if y.AI.Timeout > 0 {
			c.AI.Timeout = y.AI.Timeout
		}
	}
	return nil
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
