package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

const defaultJWTSecret = "default_jwt_secret"

// Config holds all configuration for our application
type Config struct {
	Port                  string `env:"PORT" envDefault:"3001"`
	Origin                string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	Environment           string `env:"APP_ENV" envDefault:"development"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret             string `env:"JWT_SECRET" envDefault:"default_jwt_secret"`
	JWTExpirationMinutes  int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"60"`
	BcryptCost            int    `env:"BCRYPT_COST" envDefault:"10"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"15"`
	CancellationLeadDays  int    `env:"CANCELLATION_LEAD_DAYS" envDefault:"1"`
	// Timezone is an IANA name, or "Local" for the host zone. Appointment
	// dates and times are wall-clock values in this zone.
	Timezone string `env:"APP_TIMEZONE" envDefault:"Local"`
	Database DatabaseConfig
	Cache    CacheConfig

	loc *time.Location
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver       string `env:"DB_DRIVER" envDefault:"mysql"`
	Host         string `env:"DB_HOST" envDefault:"localhost"`
	Port         string `env:"DB_PORT" envDefault:"3306"`
	Username     string `env:"DB_USERNAME" envDefault:"root"`
	Password     string `env:"DB_PASSWORD"`
	Name         string `env:"DB_NAME" envDefault:"healthcare"`
	Path         string `env:"DB_PATH" envDefault:"healthcare.db"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DSN          string `env:"DB_DSN"`
}

// CacheConfig controls the read-through collection cache
type CacheConfig struct {
	Enabled bool `env:"CACHE_ENABLED" envDefault:"true"`
	Size    int  `env:"CACHE_SIZE" envDefault:"256"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Environment = strings.ToLower(cfg.Environment)
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = cfg.Database.BuildDSN()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BuildDSN builds the data source name for the configured driver.
func (d DatabaseConfig) BuildDSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.JWTExpirationMinutes <= 0 {
		return errors.New("JWT_EXPIRATION_MINUTES must be positive")
	}
	if c.CancellationLeadDays < 0 {
		return errors.New("CANCELLATION_LEAD_DAYS must not be negative")
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	loc, err := loadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	c.loc = loc
	return nil
}

// Location is the zone appointment dates and times are read in.
func (c *Config) Location() *time.Location {
	if c.loc != nil {
		return c.loc
	}
	loc, err := loadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RequestTimeout is the upper bound applied to every request context.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// TokenTTL is the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpirationMinutes) * time.Minute
}
