package internal

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string
	StoreDriver string // "postgres" or "memory"

	// Verification lifecycle
	AutoApprovalThreshold float64       // verification probability (0-100) at or above which stale reports are approved
	ReportExpiryDays      int           // review window set on every new report
	ExpiryCheckInterval   time.Duration // how often the scheduler sweeps stale reports
	SweepConcurrency      int
	SweepItemTimeout      time.Duration

	// Officer notifications
	NotificationInterval time.Duration
	ReminderAfter        time.Duration

	// Detection workflow (n8n)
	N8NWebhookURL            string // empty disables the outbound trigger
	N8NWebhookSecret         string // empty disables callback authentication
	DetectionTimeout         time.Duration
	DetectionMaxRetries      int
	DetectionRetryBaseDelay  time.Duration
	DetectionApprovalMinimum float64 // both callback scores must reach this to fast-path approve

	// Redis (optional, enables the distributed sweep lock)
	RedisURL string

	// SMTP Configuration (optional e-mail channel for officer notifications)
	SMTPEnabled  bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTimeout  time.Duration

	// Application base URL (for e-mail links)
	BaseURL string

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Rate limiting for the public submission and webhook endpoints
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),
		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),

		AutoApprovalThreshold: getEnvFloat("AUTO_APPROVAL_THRESHOLD", 50),
		ReportExpiryDays:      getEnvInt("REPORT_EXPIRY_DAYS", 7),
		ExpiryCheckInterval:   time.Duration(getEnvInt("AUTO_EXPIRY_CHECK_INTERVAL_MINUTES", 10)) * time.Minute,
		SweepConcurrency:      getEnvInt("SWEEP_CONCURRENCY", 4),
		SweepItemTimeout:      getEnvDuration("SWEEP_ITEM_TIMEOUT", 30*time.Second),

		NotificationInterval: getEnvDuration("NOTIFICATION_INTERVAL", time.Hour),
		ReminderAfter:        getEnvDuration("REMINDER_AFTER", 24*time.Hour),

		N8NWebhookURL:            getEnv("N8N_WEBHOOK_URL", ""),
		N8NWebhookSecret:         getEnv("N8N_WEBHOOK_SECRET", ""),
		DetectionTimeout:         getEnvDuration("DETECTION_TIMEOUT", 60*time.Second),
		DetectionMaxRetries:      getEnvInt("DETECTION_MAX_RETRIES", 3),
		DetectionRetryBaseDelay:  getEnvDuration("DETECTION_RETRY_BASE_DELAY", 1*time.Second),
		DetectionApprovalMinimum: getEnvFloat("DETECTION_APPROVAL_MINIMUM", 50),

		RedisURL: getEnv("REDIS_URL", ""),

		// SMTP defaults for Mailhog (development)
		SMTPEnabled:  getEnvBool("SMTP_ENABLED", false),
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@bwg.local"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "BWG Compliance"),
		SMTPTimeout:  getEnvDuration("SMTP_TIMEOUT", 30*time.Second),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Worker defaults
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 5*time.Minute),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		// Required
		if c.DatabaseUrl == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is 'postgres'")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be either 'postgres' or 'memory', got: %s", c.StoreDriver)
	}

	if c.AutoApprovalThreshold < 0 || c.AutoApprovalThreshold > 100 {
		return fmt.Errorf("AUTO_APPROVAL_THRESHOLD must be between 0 and 100, got: %v", c.AutoApprovalThreshold)
	}
	if c.DetectionApprovalMinimum < 0 || c.DetectionApprovalMinimum > 100 {
		return fmt.Errorf("DETECTION_APPROVAL_MINIMUM must be between 0 and 100, got: %v", c.DetectionApprovalMinimum)
	}
	if c.ReportExpiryDays < 1 {
		return fmt.Errorf("REPORT_EXPIRY_DAYS must be at least 1, got: %d", c.ReportExpiryDays)
	}
	if c.ExpiryCheckInterval < time.Minute {
		return fmt.Errorf("AUTO_EXPIRY_CHECK_INTERVAL_MINUTES must be at least 1")
	}
	if c.SweepConcurrency < 1 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be at least 1, got: %d", c.SweepConcurrency)
	}
	if c.NotificationInterval < time.Minute {
		return fmt.Errorf("NOTIFICATION_INTERVAL must be at least 1m, got: %v", c.NotificationInterval)
	}
	if c.RateLimitRequests < 1 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if c.DetectionTimeout <= 0 {
		return fmt.Errorf("DETECTION_TIMEOUT must be positive, got: %v", c.DetectionTimeout)
	}
	if c.DetectionMaxRetries < 0 {
		return fmt.Errorf("DETECTION_MAX_RETRIES must not be negative, got: %d", c.DetectionMaxRetries)
	}

	if c.N8NWebhookURL != "" {
		u, err := url.Parse(c.N8NWebhookURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("N8N_WEBHOOK_URL must be an absolute URL, got: %s", c.N8NWebhookURL)
		}
	}
	if c.RedisURL != "" {
		if _, err := url.Parse(c.RedisURL); err != nil {
			return fmt.Errorf("REDIS_URL is invalid: %w", err)
		}
	}

	return nil
}

// DetectionEnabled reports whether new reports are forwarded to the
// detection workflow.
func (c *Config) DetectionEnabled() bool {
	return c.N8NWebhookURL != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
