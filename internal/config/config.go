// Package config provides seeder configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"matcha/internal/validation"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Supported values for SEED_ATOMICITY.
const (
	AtomicityUser  = "user"
	AtomicityBatch = "batch"
)

// Config holds seeder configuration values loaded from file or environment variables.
type Config struct {
	Env        string `mapstructure:"APP_ENV"`
	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	DBPath     string `mapstructure:"DB_PATH"`

	SeedAtomicity    string `mapstructure:"SEED_ATOMICITY"`
	SeedTestPassword string `mapstructure:"SEED_TEST_PASSWORD"`
	SeedEmailDomain  string `mapstructure:"SEED_EMAIL_DOMAIN"`
	SeedBcryptCost   int    `mapstructure:"SEED_BCRYPT_COST"`
	SeedDryRun       bool   `mapstructure:"SEED_DRY_RUN"`

	RedisURL                string `mapstructure:"REDIS_URL"`
	CacheInvalidatePatterns string `mapstructure:"CACHE_INVALIDATE_PATTERNS"`

	MetricsPushgatewayURL string `mapstructure:"METRICS_PUSHGATEWAY_URL"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads configuration from .env, config.yml and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional; defaults cover a local docker-compose stack.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config.%s.yml: %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DB_DRIVER", DriverPostgres)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "matcha")
	viper.SetDefault("DB_PASSWORD", "matcha")
	viper.SetDefault("DB_NAME", "matcha")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_PATH", "matcha.db")
	viper.SetDefault("SEED_ATOMICITY", AtomicityUser)
	viper.SetDefault("SEED_TEST_PASSWORD", "Password123!")
	viper.SetDefault("SEED_EMAIL_DOMAIN", "matcha-test.com")
	viper.SetDefault("SEED_BCRYPT_COST", 10)
	viper.SetDefault("SEED_DRY_RUN", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("CACHE_INVALIDATE_PATTERNS", "matcha:profiles:*,matcha:nearby:*,matcha:tags")
	viper.SetDefault("METRICS_PUSHGATEWAY_URL", "")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.SeedAtomicity = strings.ToLower(strings.TrimSpace(config.SeedAtomicity))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// InvalidatePatterns returns the configured cache key patterns, skipping blanks.
func (c *Config) InvalidatePatterns() []string {
	var patterns []string
	for _, p := range strings.Split(c.CacheInvalidatePatterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// Validate ensures the configuration can produce a usable seeding run.
func (c *Config) Validate() error {
	if c.IsProduction() {
		return errors.New("refusing to seed test accounts into a production environment")
	}

	switch c.DBDriver {
	case DriverPostgres, DriverMySQL:
		if c.DBHost == "" || c.DBName == "" {
			return errors.New("DB_HOST and DB_NAME are required")
		}
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.SeedAtomicity {
	case AtomicityUser, AtomicityBatch:
	default:
		return fmt.Errorf("unsupported SEED_ATOMICITY %q (want %q or %q)", c.SeedAtomicity, AtomicityUser, AtomicityBatch)
	}

	if c.SeedBcryptCost < bcrypt.MinCost || c.SeedBcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("SEED_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if err := validation.ValidatePassword(c.SeedTestPassword); err != nil {
		return fmt.Errorf("SEED_TEST_PASSWORD: %w", err)
	}
	if err := validation.ValidateEmailDomain(c.SeedEmailDomain); err != nil {
		return fmt.Errorf("SEED_EMAIL_DOMAIN: %w", err)
	}

	if c.TracingEnabled && c.TracingExporter != "stdout" && c.TracingExporter != "otlp" {
		return fmt.Errorf("unsupported TRACING_EXPORTER %q", c.TracingExporter)
	}

	if c.SeedBcryptCost != bcrypt.DefaultCost {
		log.Printf("WARNING: SEED_BCRYPT_COST=%d differs from the backend cost %d; logins still verify but timing differs.", c.SeedBcryptCost, bcrypt.DefaultCost)
	}

	return nil
}
