package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:            "production",
		Port:           "8080",
		JWTSecret:      "secure-secret-at-least-32-chars-long",
		DBPassword:     "secure-password",
		DBSSLMode:      "require",
		AllowedOrigins: "https://echoes.example.com",
		RedisURL:       "redis://localhost:6379",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with disable SSL mode", "prod", "disable", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"default jwt secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }},
		{"default db password", func(c *Config) { c.DBPassword = "password" }},
		{"wildcard origins", func(c *Config) { c.AllowedOrigins = "*" }},
		{"missing port", func(c *Config) { c.Port = "" }},
		{"weak guest password", func(c *Config) {
			c.GuestEmail = "guest@echoes.dev"
			c.GuestPassword = "123"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, validConfig().Validate())
}

func TestConfig_GuestEnabled(t *testing.T) {
	c := &Config{}
	assert.False(t, c.GuestEnabled())

	c.GuestEmail = "guest@echoes.dev"
	assert.False(t, c.GuestEnabled())

	c.GuestPassword = "guest-pass"
	assert.True(t, c.GuestEnabled())
}

func TestLoadConfig_DefaultsAndOverrides(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("GUEST_EMAIL", " Guest@Echoes.dev ")
	t.Setenv("GUEST_PASSWORD", "guest-pass")
	t.Setenv("REQUEST_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8375", cfg.Port)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, "guest@echoes.dev", cfg.GuestEmail)
	assert.Equal(t, "Guest", cfg.GuestName)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 25, cfg.DBMaxOpenConns)
	assert.Equal(t, "hybrid", cfg.DBSchemaMode)
	assert.True(t, cfg.GuestEnabled())
}

func TestLoadConfig_ProfileRequiredOutsideDevelopment(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "staging")

	_, err := LoadConfig()
	assert.Error(t, err)
}
