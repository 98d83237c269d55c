// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
	Mpesa      MpesaConfig      `json:"mpesa"`
	IntaSend   IntaSendConfig   `json:"intasend"`
	Payments   PaymentsConfig   `json:"payments"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Messaging  MessagingConfig  `json:"messaging"`
	Captcha    CaptchaConfig    `json:"captcha"`
	Admin      AdminConfig      `json:"admin"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DSN builds the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableMetrics     bool          `json:"enable_metrics"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	SignupRateLimit  int           `json:"signup_rate_limit"`  // requests per SignupRateWindow
	SignupRateWindow time.Duration `json:"signup_rate_window"` // one hour by default
	AuthRateLimit    int           `json:"auth_rate_limit"`    // requests per minute
	PollRateLimit    int           `json:"poll_rate_limit"`    // activation-status polls per minute
	GlobalRateLimit  int           `json:"global_rate_limit"`  // requests per minute
	RateLimitWindow  time.Duration `json:"rate_limit_window"`

	// Headers
	XFrameOptions       string `json:"x_frame_options"`
	XContentTypeOptions string `json:"x_content_type_options"`
	ReferrerPolicy      string `json:"referrer_policy"`

	// Password & Auth
	PasswordMinLength int  `json:"password_min_length"`
	BcryptCost        int  `json:"bcrypt_cost"`
	RequireCaptcha    bool `json:"require_captcha"`
}

type JWTConfig struct {
	SecretKey       string        `json:"secret_key"`
	PrivateKey      string        `json:"private_key"`  // RSA private key in PEM format
	PublicKey       string        `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys      bool          `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	Issuer          string        `json:"issuer"`
	Audience        string        `json:"audience"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
}

type DeploymentConfig struct {
	Domain      string `json:"domain"`
	APIDomain   string `json:"api_domain"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// MpesaConfig holds Safaricom Daraja credentials
type MpesaConfig struct {
	BaseURL         string        `json:"base_url"`
	ConsumerKey     string        `json:"consumer_key"`
	ConsumerSecret  string        `json:"consumer_secret"`
	ShortCode       string        `json:"short_code"`
	Passkey         string        `json:"passkey"`
	TransactionType string        `json:"transaction_type"`
	Timeout         time.Duration `json:"timeout"`
}

// IntaSendConfig holds IntaSend hosted checkout credentials
type IntaSendConfig struct {
	BaseURL          string        `json:"base_url"`
	PublishableKey   string        `json:"publishable_key"`
	SecretKey        string        `json:"secret_key"`
	WebhookChallenge string        `json:"webhook_challenge"`
	Timeout          time.Duration `json:"timeout"`
}

// PaymentsConfig controls checkout and the activation engine
type PaymentsConfig struct {
	PrimaryProvider    string        `json:"primary_provider"` // mpesa, intasend, stub
	CallbackBaseURL    string        `json:"callback_base_url"`
	ActivationFeeKES   uint64        `json:"activation_fee_kes"`
	PremiumPriceKES    uint64        `json:"premium_price_kes"`
	PremiumDuration    time.Duration `json:"premium_duration"`
	CheckoutTimeout    time.Duration `json:"checkout_timeout"`
	CallbackTimeout    time.Duration `json:"callback_timeout"`
	CallbackLockTTL    time.Duration `json:"callback_lock_ttl"`
	StalePendingAfter  time.Duration `json:"stale_pending_after"`
	EnableStubCallback bool          `json:"enable_stub_callback"`
}

// SchedulerConfig holds cron specs for background jobs
type SchedulerConfig struct {
	Enabled           bool   `json:"enabled"`
	ExpirePremiumSpec string `json:"expire_premium_spec"`
	StalePendingSpec  string `json:"stale_pending_spec"`
}

// MessagingConfig holds the domain-event broker settings
type MessagingConfig struct {
	AMQPURL     string        `json:"amqp_url"`
	Exchange    string        `json:"exchange"`
	DialTimeout time.Duration `json:"dial_timeout"`
}

type CaptchaConfig struct {
	TTL     time.Duration `json:"ttl"`
	Padding int           `json:"padding"` // accepted angle error in degrees
	Size    int           `json:"size"`
}

type AdminConfig struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := loadFromEnv()

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromEnv() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "anchor"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			EnableMetrics:     getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:      getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			AllowedMethods:      getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:      getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}),
			AllowCredentials:    getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:          getEnvInt("CORS_MAX_AGE", 86400),
			SignupRateLimit:     getEnvInt("SIGNUP_RATE_LIMIT", 10),
			SignupRateWindow:    getEnvDuration("SIGNUP_RATE_WINDOW", 1*time.Hour),
			AuthRateLimit:       getEnvInt("AUTH_RATE_LIMIT", 20),
			PollRateLimit:       getEnvInt("POLL_RATE_LIMIT", 30),
			GlobalRateLimit:     getEnvInt("GLOBAL_RATE_LIMIT", 1000),
			RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			XFrameOptions:       getEnvString("X_FRAME_OPTIONS", "DENY"),
			XContentTypeOptions: getEnvString("X_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:      getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PasswordMinLength:   getEnvInt("PASSWORD_MIN_LENGTH", 8),
			BcryptCost:          getEnvInt("BCRYPT_COST", 12),
			RequireCaptcha:      getEnvBool("REQUIRE_CAPTCHA", false),
		},
		JWT: JWTConfig{
			SecretKey:       getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey:      getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:       getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys:      getEnvBool("JWT_USE_RSA_KEYS", false),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TOKEN_TTL", 30*24*time.Hour),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TOKEN_TTL", 60*24*time.Hour),
			Issuer:          getEnvString("JWT_ISSUER", "anchor"),
			Audience:        getEnvString("JWT_AUDIENCE", "anchor-api"),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/anchor/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", false),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "anchor:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Deployment: DeploymentConfig{
			Domain:      getEnvString("DOMAIN", "anchor.chat"),
			APIDomain:   getEnvString("API_DOMAIN", "api.anchor.chat"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
		Mpesa: MpesaConfig{
			BaseURL:         getEnvString("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:     getEnvString("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:  getEnvString("MPESA_CONSUMER_SECRET", ""),
			ShortCode:       getEnvString("MPESA_SHORTCODE", "174379"),
			Passkey:         getEnvString("MPESA_PASSKEY", ""),
			TransactionType: getEnvString("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			Timeout:         getEnvDuration("MPESA_TIMEOUT", 15*time.Second),
		},
		IntaSend: IntaSendConfig{
			BaseURL:          getEnvString("INTASEND_BASE_URL", "https://sandbox.intasend.com"),
			PublishableKey:   getEnvString("INTASEND_PUBLISHABLE_KEY", ""),
			SecretKey:        getEnvString("INTASEND_SECRET_KEY", ""),
			WebhookChallenge: getEnvString("INTASEND_WEBHOOK_CHALLENGE", ""),
			Timeout:          getEnvDuration("INTASEND_TIMEOUT", 15*time.Second),
		},
		Payments: PaymentsConfig{
			PrimaryProvider:    strings.ToLower(getEnvString("PAYMENT_PROVIDER", "mpesa")),
			CallbackBaseURL:    strings.TrimRight(getEnvString("PAYMENT_CALLBACK_BASE_URL", "http://localhost:8080/api/v1/payments/callback"), "/"),
			ActivationFeeKES:   getEnvUint64("ACTIVATION_FEE_KES", 50),
			PremiumPriceKES:    getEnvUint64("PREMIUM_PRICE_KES", 300),
			PremiumDuration:    getEnvDuration("PREMIUM_DURATION", 30*24*time.Hour),
			CheckoutTimeout:    getEnvDuration("PAYMENT_CHECKOUT_TIMEOUT", 20*time.Second),
			CallbackTimeout:    getEnvDuration("PAYMENT_CALLBACK_TIMEOUT", 30*time.Second),
			CallbackLockTTL:    getEnvDuration("PAYMENT_CALLBACK_LOCK_TTL", 45*time.Second),
			StalePendingAfter:  getEnvDuration("PAYMENT_STALE_PENDING_AFTER", 15*time.Minute),
			EnableStubCallback: getEnvBool("PAYMENT_ENABLE_STUB_CALLBACK", false),
		},
		Scheduler: SchedulerConfig{
			Enabled:           getEnvBool("SCHEDULER_ENABLED", true),
			ExpirePremiumSpec: getEnvString("SCHEDULER_EXPIRE_PREMIUM_SPEC", "@every 10m"),
			StalePendingSpec:  getEnvString("SCHEDULER_STALE_PENDING_SPEC", "@every 5m"),
		},
		Messaging: MessagingConfig{
			AMQPURL:     getEnvString("AMQP_URL", ""),
			Exchange:    getEnvString("AMQP_EXCHANGE", "anchor.entitlements"),
			DialTimeout: getEnvDuration("AMQP_DIAL_TIMEOUT", 5*time.Second),
		},
		Captcha: CaptchaConfig{
			TTL:     getEnvDuration("CAPTCHA_TTL", 2*time.Minute),
			Padding: getEnvInt("CAPTCHA_PADDING", 8),
			Size:    getEnvInt("CAPTCHA_SIZE", 220),
		},
		Admin: AdminConfig{
			Email:    getEnvString("ADMIN_EMAIL", ""),
			Password: getEnvString("ADMIN_PASSWORD", ""),
		},
	}
}

// loadEnvFile loads environment variables from .env (or ENV_FILE) if it exists.
// Variables already present in the process environment win.
func loadEnvFile() error {
	path := getEnvString("ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate JWT configuration
	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "" {
			errors = append(errors, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.RefreshTokenTTL <= 0 {
		errors = append(errors, "JWT_REFRESH_TOKEN_TTL must be positive")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate security configuration
	if cfg.Security.PasswordMinLength < 8 {
		errors = append(errors, "PASSWORD_MIN_LENGTH must be at least 8")
	}
	if cfg.Security.BcryptCost < 10 || cfg.Security.BcryptCost > 14 {
		errors = append(errors, "BCRYPT_COST must be between 10 and 14")
	}

	// Validate payment configuration
	switch cfg.Payments.PrimaryProvider {
	case "mpesa":
		if cfg.Mpesa.ConsumerKey == "" || cfg.Mpesa.ConsumerSecret == "" {
			errors = append(errors, "MPESA_CONSUMER_KEY and MPESA_CONSUMER_SECRET are required for the mpesa provider")
		}
		if cfg.Mpesa.ShortCode == "" || cfg.Mpesa.Passkey == "" {
			errors = append(errors, "MPESA_SHORTCODE and MPESA_PASSKEY are required for the mpesa provider")
		}
	case "intasend":
		if cfg.IntaSend.SecretKey == "" {
			errors = append(errors, "INTASEND_SECRET_KEY is required for the intasend provider")
		}
	case "stub":
		if cfg.Deployment.Environment == "production" {
			errors = append(errors, "PAYMENT_PROVIDER=stub is not allowed in production")
		}
	default:
		errors = append(errors, "PAYMENT_PROVIDER must be one of: mpesa, intasend, stub")
	}
	if cfg.Payments.CallbackBaseURL == "" {
		errors = append(errors, "PAYMENT_CALLBACK_BASE_URL is required")
	}
	if cfg.Payments.ActivationFeeKES == 0 {
		errors = append(errors, "ACTIVATION_FEE_KES must be positive")
	}
	if cfg.Payments.PremiumPriceKES == 0 {
		errors = append(errors, "PREMIUM_PRICE_KES must be positive")
	}
	if cfg.Payments.PremiumDuration <= 0 {
		errors = append(errors, "PREMIUM_DURATION must be positive")
	}
	if cfg.Payments.CheckoutTimeout <= 0 {
		errors = append(errors, "PAYMENT_CHECKOUT_TIMEOUT must be positive")
	}
	if cfg.Payments.CallbackTimeout <= 0 {
		errors = append(errors, "PAYMENT_CALLBACK_TIMEOUT must be positive")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	if cfg.Logging.Output == "file" && cfg.Logging.FilePath == "" {
		errors = append(errors, "LOG_FILE_PATH is required when LOG_OUTPUT=file")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if cfg.Scheduler.Enabled && (cfg.Scheduler.ExpirePremiumSpec == "" || cfg.Scheduler.StalePendingSpec == "") {
		errors = append(errors, "SCHEDULER_*_SPEC values are required when the scheduler is enabled")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
