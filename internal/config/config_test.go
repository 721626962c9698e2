package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Port:             "8480",
		Env:              "development",
		JWTAccessSecret:  "dev-access",
		JWTRefreshSecret: "dev-refresh",
		SessionHMACKey:   "dev-hmac",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  168 * time.Hour,
	}
}

func TestValidate_Development(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_RequiredFields(t *testing.T) {
	cfg := validConfig()
	cfg.Port = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.JWTAccessSecret = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.SessionHMACKey = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_TokenTTLs(t *testing.T) {
	cfg := validConfig()
	cfg.AccessTokenTTL = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.AccessTokenTTL = cfg.RefreshTokenTTL
	assert.Error(t, cfg.Validate(), "access TTL must be shorter than refresh TTL")
}

func TestValidate_ProductionHardening(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "production"
	cfg.DBPassword = "s0me-strong-db-password"

	// Short secrets are rejected in production.
	assert.Error(t, cfg.Validate())

	cfg.JWTAccessSecret = "an-access-secret-of-sufficient-length!"
	cfg.JWTRefreshSecret = "a-refresh-secret-of-sufficient-length!"
	cfg.SessionHMACKey = "a-session-hmac-key-of-sufficient-len!"
	assert.NoError(t, cfg.Validate())

	// Default dev secrets never pass in production.
	cfg.JWTAccessSecret = "dev-access-secret-change-in-production"
	assert.Error(t, cfg.Validate())
}

func TestIsProduction(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.IsProduction())
	cfg.Env = "production"
	assert.True(t, cfg.IsProduction())
	cfg.Env = "prod"
	assert.True(t, cfg.IsProduction())
}
