package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DukeRupert/streamtosite/internal/store"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Public base URL of the app (checkout return links, file URLs)
	BaseURL string

	// Parent domain for generated site subdomains
	SiteDomain string

	// Storage Configuration
	StorageProvider string // "local", "r2", "postgres" or "memory"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Postgres storage
	DatabaseUrl string

	// State
	StateNamespace   string // prefix for the state keys
	BrandingPolicy   store.BrandingPolicy
	DefaultUserName  string
	DefaultUserEmail string

	// Channel lookups
	ChannelProvider  string // "mock" or "youtube"
	YouTubeAPIKey    string
	MockChannelDelay time.Duration

	// AI Provider Configuration
	AIProvider       string // "anthropic" or "mock"
	AnthropicAPIKey  string
	AnthropicModel   string
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration

	// Worker Configuration
	WorkerEnabled     bool
	WorkerConcurrency int
	WorkerQueueSize   int
	WorkerMaxAttempts int
	WorkerJobTimeout  time.Duration
	SyncInterval      time.Duration // 0 disables scheduled syncs

	// Rate limiting of mutating API requests, per client IP
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// SMTP Configuration
	// Plan change emails are skipped when SMTPHost is empty.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Stripe Billing Configuration
	// Without a secret key, plan changes apply immediately.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs for Creator Pro
	StripeCreatorProMonthlyPriceID string
	StripeCreatorProYearlyPriceID  string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL:    strings.TrimSuffix(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		SiteDomain: getEnv("SITE_DOMAIN", "streamtosite.app"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		DatabaseUrl: os.Getenv("DATABASE_URL"),

		StateNamespace:   getEnv("STATE_NAMESPACE", ""),
		DefaultUserName:  getEnv("DEFAULT_USER_NAME", "Creator"),
		DefaultUserEmail: getEnv("DEFAULT_USER_EMAIL", ""),

		ChannelProvider:  getEnv("CHANNEL_PROVIDER", "mock"),
		YouTubeAPIKey:    getEnv("YOUTUBE_API_KEY", ""),
		MockChannelDelay: getEnvDuration("MOCK_CHANNEL_DELAY", 1500*time.Millisecond),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", ""),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		// Worker defaults
		WorkerEnabled:     getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerQueueSize:   getEnvInt("WORKER_QUEUE_SIZE", 100),
		WorkerMaxAttempts: getEnvInt("WORKER_MAX_ATTEMPTS", 3),
		WorkerJobTimeout:  getEnvDuration("WORKER_JOB_TIMEOUT", 2*time.Minute),
		SyncInterval:      getEnvDuration("SYNC_INTERVAL", 6*time.Hour),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		// SMTP (optional, Mailhog listens on localhost:1025)
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", ""),

		// Stripe billing (optional)
		StripeSecretKey:                getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:            getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeCreatorProMonthlyPriceID: getEnv("STRIPE_CREATOR_PRO_MONTHLY_PRICE_ID", ""),
		StripeCreatorProYearlyPriceID:  getEnv("STRIPE_CREATOR_PRO_YEARLY_PRICE_ID", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	policy, err := store.ParseBrandingPolicy(getEnv("BRANDING_POLICY", ""))
	if err != nil {
		return nil, fmt.Errorf("BRANDING_POLICY: %w", err)
	}
	cfg.BrandingPolicy = policy

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	// Validate storage configuration
	switch cfg.StorageProvider {
	case "local", "memory":
	case "r2":
		if cfg.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	case "postgres":
		if cfg.DatabaseUrl == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_PROVIDER is 'postgres'")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be one of 'local', 'r2', 'postgres' or 'memory', got: %s", cfg.StorageProvider)
	}

	// Validate channel provider configuration
	if cfg.ChannelProvider == "youtube" {
		if cfg.YouTubeAPIKey == "" {
			return fmt.Errorf("YOUTUBE_API_KEY is required when CHANNEL_PROVIDER is 'youtube'")
		}
	} else if cfg.ChannelProvider != "mock" {
		return fmt.Errorf("CHANNEL_PROVIDER must be either 'youtube' or 'mock', got: %s", cfg.ChannelProvider)
	}

	// Validate AI provider configuration
	if cfg.AIProvider == "anthropic" {
		if cfg.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	} else if cfg.AIProvider != "mock" {
		return fmt.Errorf("AI_PROVIDER must be either 'anthropic' or 'mock', got: %s", cfg.AIProvider)
	}

	// Webhooks cannot be trusted without a signing secret
	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	if cfg.SyncInterval < 0 {
		return fmt.Errorf("SYNC_INTERVAL must not be negative, got: %s", cfg.SyncInterval)
	}
	if cfg.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got: %d", cfg.RateLimitRequests)
	}
	return nil
}

// EmailEnabled reports whether an SMTP server is configured.
func (cfg *Config) EmailEnabled() bool {
	return cfg.SMTPHost != ""
}

// BillingEnabled reports whether Stripe is configured.
func (cfg *Config) BillingEnabled() bool {
	return cfg.StripeSecretKey != ""
}

// IsDevelopment reports whether the app runs in development mode.
func (cfg *Config) IsDevelopment() bool {
	return cfg.Env == "development"
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
