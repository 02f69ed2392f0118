package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validSecret carries no dictionary words and no digit runs the weak check trips on
const validSecret = "zqpmwnxbvkdhgfcrzqpmwnxbvkdhgfcr"

func envFromMap(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

func Test_Config_Defaults(t *testing.T) {
	t.Parallel()

	c := NewConfig()

	assert.Equal(t, "localhost:8000", c.ListenAddr)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 15*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenTTL)
	assert.True(t, c.CookieSecure, "cookies are secure unless explicitly relaxed")
	assert.Empty(t, c.RedisAddr, "in-process limiter by default")
	assert.Positive(t, c.LoginMaxAttempts)
	assert.Positive(t, c.RegisterMaxAttempts)
}

func Test_Config_LoadEnv(t *testing.T) {
	t.Parallel()

	t.Run("values override defaults", func(t *testing.T) {
		c := NewConfig()

		err := c.LoadEnv(envFromMap(map[string]string{
			"RUN_ADDRESS":        "0.0.0.0:9000",
			"DATABASE_URI":       "postgres://localhost/authgate",
			"SECRET_KEY":         validSecret,
			"ENVIRONMENT":        "development",
			"ACCESS_TOKEN_TTL":   "5m",
			"COOKIE_SECURE":      "false",
			"REDIS_ADDR":         "localhost:6379",
			"LOGIN_MAX_ATTEMPTS": "10",
		}))

		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:9000", c.ListenAddr)
		assert.Equal(t, "postgres://localhost/authgate", c.DatabaseDSN)
		assert.Equal(t, validSecret, c.SecretKey)
		assert.Equal(t, "development", c.Environment)
		assert.Equal(t, 5*time.Minute, c.AccessTokenTTL)
		assert.False(t, c.CookieSecure)
		assert.Equal(t, "localhost:6379", c.RedisAddr)
		assert.Equal(t, 10, c.LoginMaxAttempts)
	})

	t.Run("empty values keep defaults", func(t *testing.T) {
		c := NewConfig()

		require.NoError(t, c.LoadEnv(envFromMap(nil)))

		assert.Equal(t, NewConfig(), c)
	})

	t.Run("unparsable values are reported", func(t *testing.T) {
		c := NewConfig()

		err := c.LoadEnv(envFromMap(map[string]string{
			"ACCESS_TOKEN_TTL": "fifteen minutes",
			"COOKIE_SECURE":    "maybe",
		}))

		require.Error(t, err)
	})
}

func Test_Config_ParseFlags(t *testing.T) {
	t.Parallel()

	c := NewConfig()

	err := c.ParseFlags([]string{
		"-a", "0.0.0.0:9000",
		"-d", "postgres://localhost/authgate",
		"-s", validSecret,
		"-e", "staging",
		"-r", "localhost:6379",
	})

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", c.ListenAddr)
	assert.Equal(t, "postgres://localhost/authgate", c.DatabaseDSN)
	assert.Equal(t, validSecret, c.SecretKey)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, "localhost:6379", c.RedisAddr)
}

func Test_Config_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		c := NewConfig()
		c.DatabaseDSN = "postgres://localhost/authgate"
		c.SecretKey = validSecret
		return c
	}

	t.Run("valid config", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("unknown environment", func(t *testing.T) {
		c := valid()
		c.Environment = "qa"
		require.Error(t, c.Validate())
	})

	t.Run("missing database", func(t *testing.T) {
		c := valid()
		c.DatabaseDSN = ""
		require.Error(t, c.Validate())
	})

	t.Run("secret key rules", func(t *testing.T) {
		tests := []struct {
			name   string
			secret string
		}{
			{"missing", ""},
			{"too short", "abc"},
			{"weak pattern secret", "secretsecretsecretsecretsecretsecret"},
			{"weak pattern digits", "a123a123a123a123a123a123a123a123a123"},
			{"weak pattern changeme", "changemechangemechangemechangeme"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c := valid()
				c.SecretKey = tt.secret
				require.Error(t, c.Validate())
			})
		}
	})

	t.Run("non positive ttl", func(t *testing.T) {
		c := valid()
		c.AccessTokenTTL = 0
		require.Error(t, c.Validate())

		c = valid()
		c.RefreshTokenTTL = -time.Hour
		require.Error(t, c.Validate())
	})

	t.Run("insecure cookies outside development", func(t *testing.T) {
		c := valid()
		c.CookieSecure = false
		require.Error(t, c.Validate(), "production must not ship insecure cookies")

		c.Environment = "development"
		require.NoError(t, c.Validate())
	})

	t.Run("errors are joined", func(t *testing.T) {
		c := NewConfig()
		c.Environment = "qa"

		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "environment")
		assert.Contains(t, err.Error(), "DSN")
		assert.Contains(t, err.Error(), "SECRET_KEY")
	})
}
