package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mononest/backend/db"

	"github.com/joho/godotenv"
	extErrors "github.com/pkg/errors"
)

// Environment names the deployment the process runs in
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

const minSecretLength = 16

type Config struct {
	Env  Environment
	Port string

	// Storage
	StoreDriver   db.Driver
	MongoURI      string
	MongoDatabase string
	PostgresURI   string

	// Secrets
	JWTSecret string
	StripeKey string

	PaymentCurrency string

	// Optional backends, disabled when empty
	RedisURI      string
	RedisPassword string
	AMQPURI       string

	CORSOrigins []string
	SentryDSN   string
}

// DotFile returns the .env file for the environment named by ENV
func DotFile() string {
	if Environment(os.Getenv("ENV")) == EnvProduction {
		return ".env.production"
	}
	return ".env.development"
}

// Load reads the dot file for the current environment, if present, and then
// the process environment. Variables already set in the environment win.
func Load() (*Config, error) {
	dotFile := DotFile()
	if err := godotenv.Load(dotFile); err != nil && !os.IsNotExist(err) {
		return nil, extErrors.Wrapf(err, "Cannot load configurations from %s", dotFile)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() (*Config, error) {
	driver, err := db.ParseDriver(getEnv("STORE_DRIVER", string(db.DriverMongo)))
	if err != nil {
		return nil, err
	}

	env := EnvDevelopment
	if Environment(os.Getenv("ENV")) == EnvProduction {
		env = EnvProduction
	}

	return &Config{
		Env:  env,
		Port: getEnv("PORT", "5000"),

		StoreDriver:   driver,
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "mononest"),
		PostgresURI:   getEnv("POSTGRES_URI", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		StripeKey: getEnv("STRIPE_KEY", ""),

		PaymentCurrency: strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),

		RedisURI:      getEnv("REDIS_URI", ""),
		RedisPassword: getEnv("REDIS_PW", ""),
		AMQPURI:       getEnv("AMQP_URI", ""),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
	}, nil
}

// Validate reports every missing or malformed required setting at once
func (c *Config) Validate() error {
	var problems []string

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	} else if len(c.JWTSecret) < minSecretLength {
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.StripeKey == "" {
		problems = append(problems, "STRIPE_KEY is required")
	}
	if len(c.PaymentCurrency) != 3 {
		problems = append(problems, "PAYMENT_CURRENCY must be a three-letter ISO code")
	}

	switch c.StoreDriver {
	case db.DriverMongo:
		if c.MongoURI == "" {
			problems = append(problems, "MONGO_URI is required for the mongo store")
		}
	case db.DriverPostgres:
		if c.PostgresURI == "" {
			problems = append(problems, "POSTGRES_URI is required for the postgres store")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
