package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Feedback policies for client comments on posts awaiting review
const (
	FeedbackPolicyKeepStatus      = "keep-status"
	FeedbackPolicyRequestRevision = "request-revision"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Workflow rules
	Workflow WorkflowConfig

	// Media asset storage
	Storage StorageConfig

	// Identity provider
	Auth AuthConfig

	// Notification email delivery
	Email EmailConfig

	// Idea import settings
	Import ImportConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CorsAllowedOrigins []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MigrationsPath string
}

// WorkflowConfig holds the business rules of the approval workflow
type WorkflowConfig struct {
	RevisionCap      int
	FeedbackPolicy   string
	OperationTimeout time.Duration
	// ExportTimeout bounds a whole streaming export
	ExportTimeout    time.Duration
	ConflictRetries  int
}

// StorageConfig selects where uploaded media lives.
// Bucket wins over LocalPath when both are set.
type StorageConfig struct {
	Bucket          string
	CredentialsFile string
	LocalPath       string
	PublicBaseURL   string
	MaxUploadSize   int64 // in bytes
}

// AuthConfig holds JWT verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// EmailConfig holds notification email settings
type EmailConfig struct {
	Provider       string // "brevo", "gmail" or "log"
	BrevoAPIKey    string
	FromAddress    string
	FromName       string
	BaseURL        string
	PollInterval   time.Duration
	MaxConcurrency int
	// MaxAttempts is how many failed sends a notification gets before it is dropped
	MaxAttempts    int
}

// ImportConfig holds idea import settings
type ImportConfig struct {
	MaxLines int
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from a .env file (when present) and environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:    getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			CorsAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Name:           getEnv("DB_NAME", "corex_portal"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:    getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Workflow: WorkflowConfig{
			RevisionCap:      getIntEnv("WORKFLOW_REVISION_CAP", 2),
			FeedbackPolicy:   getEnv("WORKFLOW_FEEDBACK_POLICY", FeedbackPolicyKeepStatus),
			OperationTimeout: getDurationEnv("OPERATION_TIMEOUT", 10*time.Second),
			ExportTimeout:    getDurationEnv("EXPORT_TIMEOUT", 5*time.Minute),
			ConflictRetries:  getIntEnv("WORKFLOW_CONFLICT_RETRIES", 3),
		},
		Storage: StorageConfig{
			Bucket:          getEnv("STORAGE_BUCKET", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			LocalPath:       getEnv("LOCAL_STORAGE", "./data/media"),
			PublicBaseURL:   getEnv("MEDIA_BASE_URL", ""),
			MaxUploadSize:   getInt64Env("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "corex-portal"),
			TokenTTL:  getDurationEnv("JWT_TTL", 24*time.Hour),
		},
		Email: EmailConfig{
			Provider:       getEnv("EMAIL_PROVIDER", "log"),
			BrevoAPIKey:    getEnv("BREVO_API_KEY", ""),
			FromAddress:    getEnv("EMAIL_FROM", "no-reply@corex.local"),
			FromName:       getEnv("EMAIL_FROM_NAME", "Corex Portal"),
			BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
			PollInterval:   getDurationEnv("EMAIL_POLL_INTERVAL", 5*time.Second),
			MaxConcurrency: getIntEnv("EMAIL_MAX_CONCURRENCY", 4),
			MaxAttempts:    getIntEnv("EMAIL_MAX_ATTEMPTS", 5),
		},
		Import: ImportConfig{
			MaxLines: getIntEnv("IMPORT_MAX_LINES", 500),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Workflow.RevisionCap < 0 {
		return fmt.Errorf("WORKFLOW_REVISION_CAP must not be negative")
	}
	switch c.Workflow.FeedbackPolicy {
	case FeedbackPolicyKeepStatus, FeedbackPolicyRequestRevision:
	default:
		return fmt.Errorf("WORKFLOW_FEEDBACK_POLICY must be %q or %q", FeedbackPolicyKeepStatus, FeedbackPolicyRequestRevision)
	}
	if c.Workflow.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT must be positive")
	}
	if c.Workflow.ExportTimeout <= 0 {
		return fmt.Errorf("EXPORT_TIMEOUT must be positive")
	}
	if c.Workflow.ConflictRetries < 0 {
		return fmt.Errorf("WORKFLOW_CONFLICT_RETRIES must not be negative")
	}
	if c.Email.PollInterval <= 0 {
		return fmt.Errorf("EMAIL_POLL_INTERVAL must be positive")
	}
	if c.Email.MaxAttempts <= 0 {
		return fmt.Errorf("EMAIL_MAX_ATTEMPTS must be positive")
	}
	switch c.Email.Provider {
	case "log", "gmail":
	case "brevo":
		if c.Email.BrevoAPIKey == "" {
			return fmt.Errorf("BREVO_API_KEY is required for the brevo email provider")
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be one of: brevo, gmail, log")
	}
	if c.Storage.Bucket == "" && c.Storage.LocalPath == "" {
		return fmt.Errorf("either STORAGE_BUCKET or LOCAL_STORAGE is required")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
