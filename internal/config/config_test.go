package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_NAME", "blog")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("ADMIN_EMAILS", "")

	cfg := LoadConfig()
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "s3cret", cfg.CSRFSecret) // Falls back to the JWT secret
	assert.Equal(t, "s3cret", cfg.IPHashSalt)
	assert.True(t, cfg.SecureCookies)
	assert.False(t, cfg.SMTPEnabled())
	assert.False(t, cfg.TwilioEnabled())
	assert.Nil(t, cfg.AdminEmails)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BASE_URL", "https://blog.example.com/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("RATE_LIMIT_AUTH", "3")
	t.Setenv("MODERATION_SPAM_THRESHOLD", "0.8")
	t.Setenv("OTP_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg := LoadConfig()
	assert.Equal(t, "https://blog.example.com", cfg.BaseURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.RateLimitAuth)
	assert.InDelta(t, 0.8, cfg.ModerationSpam, 1e-9)
	assert.Equal(t, 5, cfg.OTPMaxAttempts)
	assert.True(t, cfg.SMTPEnabled())
}

func TestValidate(t *testing.T) {
	cfg := &Config{DBDriver: "oracle", ModerationReview: 0.9, ModerationSpam: 0.5}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DB_NAME")
	assert.Contains(t, err.Error(), "oracle")
	assert.Contains(t, err.Error(), "MODERATION_REVIEW_THRESHOLD")
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBDriver: "mysql", DBUser: "app", DBPassword: "pw", DBHost: "db", DBName: "blog"}
	assert.Equal(t, "app:pw@tcp(db:3306)/blog?parseTime=true&charset=utf8mb4", cfg.DSN())

	cfg.DBDriver = "postgres"
	assert.Contains(t, cfg.DSN(), "port=5432")
	assert.Contains(t, cfg.DSN(), "dbname=blog")

	cfg.DBDSN = "postgres://override"
	assert.Equal(t, "postgres://override", cfg.DSN())
}
