package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mononest/backend/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"ENV", "PORT", "STORE_DRIVER", "MONGO_URI", "MONGO_DATABASE", "POSTGRES_URI",
	"JWT_SECRET", "STRIPE_KEY", "PAYMENT_CURRENCY", "REDIS_URI", "REDIS_PW",
	"AMQP_URI", "CORS_ORIGINS", "SENTRY_DSN",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, db.DriverMongo, cfg.StoreDriver)
	assert.Equal(t, "mononest", cfg.MongoDatabase)
	assert.Equal(t, "usd", cfg.PaymentCurrency)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.RedisURI)
	assert.Empty(t, cfg.AMQPURI)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "8080")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_URI", "postgres://localhost/mononest")
	t.Setenv("PAYMENT_CURRENCY", "EUR")
	t.Setenv("CORS_ORIGINS", "https://shop.example, https://admin.example ,")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, db.DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "eur", cfg.PaymentCurrency)
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.CORSOrigins)
}

func TestFromEnv_UnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver:     db.DriverMongo,
			MongoURI:        "mongodb://localhost",
			JWTSecret:       "0123456789abcdef",
			StripeKey:       "sk_test_123",
			PaymentCurrency: "usd",
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET must be at least"},
		{"missing stripe key", func(c *Config) { c.StripeKey = "" }, "STRIPE_KEY"},
		{"bad currency", func(c *Config) { c.PaymentCurrency = "dollars" }, "PAYMENT_CURRENCY"},
		{"mongo without uri", func(c *Config) { c.MongoURI = "" }, "MONGO_URI"},
		{"postgres without uri", func(c *Config) { c.StoreDriver = db.DriverPostgres }, "POSTGRES_URI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	c := valid()
	c.StoreDriver = db.DriverMemory
	c.MongoURI = ""
	assert.NoError(t, c.Validate())
}

func TestLoad_DotFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set
	for _, k := range []string{"JWT_SECRET", "STORE_DRIVER"} {
		require.NoError(t, os.Unsetenv(k))
	}
	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("STORE_DRIVER")
	})

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	// absent dot file is tolerated
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWTSecret)

	content := "JWT_SECRET=from-dot-file-0123456789\nSTORE_DRIVER=memory\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.development"), []byte(content), 0o600))

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dot-file-0123456789", cfg.JWTSecret)
	assert.Equal(t, db.DriverMemory, cfg.StoreDriver)
}
