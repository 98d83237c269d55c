package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	cfg := loadFromEnv()
	cfg.Database.Password = "secret"
	cfg.JWT.SecretKey = strings.Repeat("k", 32)
	cfg.Mpesa.ConsumerKey = "ck"
	cfg.Mpesa.ConsumerSecret = "cs"
	cfg.Mpesa.Passkey = "pk"
	return cfg
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ProductionConfig)
		wantErr string
	}{
		{name: "defaults with secrets are valid", mutate: func(*ProductionConfig) {}},
		{
			name:    "short jwt secret",
			mutate:  func(c *ProductionConfig) { c.JWT.SecretKey = "short" },
			wantErr: "JWT_SECRET_KEY must be at least 32 characters long",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *ProductionConfig) { c.Payments.PrimaryProvider = "paypal" },
			wantErr: "PAYMENT_PROVIDER must be one of",
		},
		{
			name: "stub provider refused in production",
			mutate: func(c *ProductionConfig) {
				c.Payments.PrimaryProvider = "stub"
				c.Deployment.Environment = "production"
			},
			wantErr: "PAYMENT_PROVIDER=stub is not allowed in production",
		},
		{
			name: "stub provider allowed in development",
			mutate: func(c *ProductionConfig) {
				c.Payments.PrimaryProvider = "stub"
				c.Deployment.Environment = "development"
			},
		},
		{
			name:    "intasend needs a secret key",
			mutate:  func(c *ProductionConfig) { c.Payments.PrimaryProvider = "intasend" },
			wantErr: "INTASEND_SECRET_KEY is required",
		},
		{
			name:    "zero premium price",
			mutate:  func(c *ProductionConfig) { c.Payments.PremiumPriceKES = 0 },
			wantErr: "PREMIUM_PRICE_KES must be positive",
		},
		{
			name:    "bad log level",
			mutate:  func(c *ProductionConfig) { c.Logging.Level = "verbose" },
			wantErr: "LOG_LEVEL must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateProductionConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProductionConfig_AccumulatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = ""
	cfg.Server.Port = 0

	err := ValidateProductionConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD is required")
	assert.Contains(t, err.Error(), "SERVER_PORT must be between 1 and 65535")
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("ACTIVATION_FEE_KES", "75")
	t.Setenv("PREMIUM_DURATION", "720h")
	t.Setenv("PAYMENT_PROVIDER", "IntaSend")
	t.Setenv("PAYMENT_CALLBACK_BASE_URL", "https://api.anchor.chat/api/v1/payments/callback/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := loadFromEnv()

	assert.Equal(t, uint64(75), cfg.Payments.ActivationFeeKES)
	assert.Equal(t, uint64(300), cfg.Payments.PremiumPriceKES)
	assert.Equal(t, 720*time.Hour, cfg.Payments.PremiumDuration)
	assert.Equal(t, "intasend", cfg.Payments.PrimaryProvider)
	assert.Equal(t, "https://api.anchor.chat/api/v1/payments/callback", cfg.Payments.CallbackBaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
		assert.NoError(t, loadEnvFile())
	})

	t.Run("file values fill unset variables only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("ANCHOR_TEST_FROM_FILE=file\nANCHOR_TEST_PRESET=file\n"), 0o600))
		t.Setenv("ENV_FILE", path)
		t.Setenv("ANCHOR_TEST_PRESET", "process")
		t.Setenv("ANCHOR_TEST_FROM_FILE", "")
		os.Unsetenv("ANCHOR_TEST_FROM_FILE")

		require.NoError(t, loadEnvFile())
		assert.Equal(t, "file", os.Getenv("ANCHOR_TEST_FROM_FILE"))
		assert.Equal(t, "process", os.Getenv("ANCHOR_TEST_PRESET"))
		os.Unsetenv("ANCHOR_TEST_FROM_FILE")
	})
}
