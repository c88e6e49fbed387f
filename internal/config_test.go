package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/streamtosite/internal/store"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "local", cfg.StorageProvider)
	assert.Equal(t, "mock", cfg.ChannelProvider)
	assert.Equal(t, "mock", cfg.AIProvider)
	assert.Equal(t, store.BrandingFreeze, cfg.BrandingPolicy)
	assert.Equal(t, 6*time.Hour, cfg.SyncInterval)
	assert.False(t, cfg.BillingEnabled())
	assert.False(t, cfg.EmailEnabled())
	assert.Equal(t, 1025, cfg.SMTPPort)
	assert.True(t, cfg.IsDevelopment())
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("BASE_URL", "https://app.example.com/")
	t.Setenv("STORAGE_PROVIDER", "memory")
	t.Setenv("BRANDING_POLICY", "live")
	t.Setenv("SYNC_INTERVAL", "30m")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://app.example.com", cfg.BaseURL)
	assert.Equal(t, store.BrandingLive, cfg.BrandingPolicy)
	assert.Equal(t, 30*time.Minute, cfg.SyncInterval)
	assert.True(t, cfg.BillingEnabled())
	assert.True(t, cfg.EmailEnabled())
	assert.Equal(t, 2, cfg.WorkerConcurrency, "unparseable values fall back to the default")
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown storage", map[string]string{"STORAGE_PROVIDER": "s3"}, "STORAGE_PROVIDER"},
		{"r2 without account", map[string]string{"STORAGE_PROVIDER": "r2"}, "R2_ACCOUNT_ID"},
		{"postgres without url", map[string]string{"STORAGE_PROVIDER": "postgres"}, "DATABASE_URL"},
		{"youtube without key", map[string]string{"CHANNEL_PROVIDER": "youtube"}, "YOUTUBE_API_KEY"},
		{"unknown channel provider", map[string]string{"CHANNEL_PROVIDER": "vimeo"}, "CHANNEL_PROVIDER"},
		{"anthropic without key", map[string]string{"AI_PROVIDER": "anthropic"}, "ANTHROPIC_API_KEY"},
		{"stripe without webhook secret", map[string]string{"STRIPE_SECRET_KEY": "sk_test"}, "STRIPE_WEBHOOK_SECRET"},
		{"bad branding policy", map[string]string{"BRANDING_POLICY": "sometimes"}, "BRANDING_POLICY"},
		{"negative sync interval", map[string]string{"SYNC_INTERVAL": "-1m"}, "SYNC_INTERVAL"},
		{"zero rate limit", map[string]string{"RATE_LIMIT_REQUESTS": "0"}, "RATE_LIMIT_REQUESTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
