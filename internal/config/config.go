package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/cors"
	"github.com/spf13/viper"
)

type R2Config struct {
	AccountID       string `mapstructure:"r2_account_id"`
	AccessKeyID     string `mapstructure:"r2_access_key_id"`
	SecretAccessKey string `mapstructure:"r2_secret_access_key"`
	BucketName      string `mapstructure:"r2_bucket_name"`
	Region          string `mapstructure:"r2_region"`
	Endpoint        string `mapstructure:"r2_endpoint"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"google_client_id"`
	ClientSecret string `mapstructure:"google_client_secret"`
	RedirectURL  string `mapstructure:"google_redirect_url"`
}

// AdminConfig is the account created on first migration.
type AdminConfig struct {
	Username string `mapstructure:"first_admin_username"`
	Password string `mapstructure:"first_admin_password"`
	Email    string `mapstructure:"first_admin_email"`
}

type LogConfig struct {
	Level  string `mapstructure:"log_level"`
	Output string `mapstructure:"log_output"`
}

type Config struct {
	Port        string `mapstructure:"port"`
	DBURL       string `mapstructure:"db_url"`
	JWTSecret   string `mapstructure:"jwt_secret"`
	Environment string `mapstructure:"env"`
	FrontendURL string `mapstructure:"frontend_url"`
	CORSOrigins string `mapstructure:"cors_origins"`

	StorageBackend string        `mapstructure:"storage_backend"`
	StoragePath    string        `mapstructure:"storage_path"`
	MaxUploadSize  int64         `mapstructure:"max_upload_size"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`

	TaskQueue   string `mapstructure:"task_queue"`
	TaskWorkers int    `mapstructure:"task_workers"`
	RedisURL    string `mapstructure:"redis_url"`

	R2     R2Config     `mapstructure:",squash"`
	Google GoogleConfig `mapstructure:",squash"`
	Admin  AdminConfig  `mapstructure:",squash"`
	Log    LogConfig    `mapstructure:",squash"`
}

const (
	devJWTSecret     = "not-so-secret-now-is-it?"
	devAdminPassword = "admin123"
)

var defaults = map[string]any{
	"port":                 "8080",
	"db_url":               "sqlite://softvault.db",
	"jwt_secret":           devJWTSecret,
	"env":                  "development",
	"frontend_url":         "http://localhost:5173",
	"cors_origins":         "http://localhost:5173",
	"storage_backend":      "local",
	"storage_path":         "storage",
	"max_upload_size":      int64(1 << 30), // 1 GB
	"fetch_timeout":        300 * time.Second,
	"task_queue":           "memory",
	"task_workers":         4,
	"redis_url":            "redis://localhost:6379/0",
	"r2_account_id":        "",
	"r2_access_key_id":     "",
	"r2_secret_access_key": "",
	"r2_bucket_name":       "",
	"r2_region":            "auto",
	"r2_endpoint":          "",
	"google_client_id":     "",
	"google_client_secret": "",
	"google_redirect_url":  "http://localhost:8080/api/v1/auth/google/callback",
	"first_admin_username": "admin",
	"first_admin_password": devAdminPassword,
	"first_admin_email":    "admin@example.com",
	"log_level":            "info",
	"log_output":           "stdout",
}

// Load reads envFile (if present) into the process environment and decodes
// the environment over the defaults.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = os.Getenv("ENV_FILE")
	}
	if envFile == "" {
		envFile = ".env"
	}
	// a missing .env is fine, the environment alone is enough
	_ = godotenv.Load(envFile)

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL cannot be empty")
	}
	switch c.StorageBackend {
	case "local":
		if c.StoragePath == "" {
			return fmt.Errorf("STORAGE_PATH cannot be empty")
		}
	case "s3":
		if c.R2.BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	switch c.TaskQueue {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown task queue %q", c.TaskQueue)
	}
	if c.TaskWorkers < 1 {
		return fmt.Errorf("TASK_WORKERS must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	if c.IsProduction() {
		if c.JWTSecret == "" || c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Admin.Username != "" && (c.Admin.Password == "" || c.Admin.Password == devAdminPassword) {
			return fmt.Errorf("FIRST_ADMIN_PASSWORD must be set in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }

func (c *Config) CorsConfig() cors.Options {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}
