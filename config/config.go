// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrMissingDatabaseURL is returned when the postgres driver is selected without a DSN.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required when DB_DRIVER=postgres")

var validate = validator.New()

// Config holds all runtime settings of the messaging server.
type Config struct {
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8000" validate:"min=1,max=65535"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=info error"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`

	Database Database
	JWT      JWT
	Redis    Redis
	Session  Session
}

// Database selects and configures the message store backend.
type Database struct {
	Driver string `envconfig:"DB_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres"`
	Path   string `envconfig:"DB_PATH" default:"marketplace.db"`
	URL    string `envconfig:"DATABASE_URL"`
}

// JWT configures bearer token verification.
type JWT struct {
	SecretKey     string `envconfig:"SECRET_KEY" default:"defaultsecretkey" validate:"required"`
	Algorithm     string `envconfig:"ALGORITHM" default:"HS256" validate:"oneof=HS256 HS384 HS512"`
	ExpireMinutes int    `envconfig:"ACCESS_TOKEN_EXPIRE_MINUTES" default:"30" validate:"min=1"`
	Issuer        string `envconfig:"JWT_ISSUER"`
}

// Redis configures the optional inbox cache. An empty Addr disables caching.
type Redis struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	TTL      time.Duration `envconfig:"INBOX_CACHE_TTL" default:"5m"`
}

// Session tunes per-connection behavior.
type Session struct {
	PushTimeout      time.Duration `envconfig:"PUSH_TIMEOUT" default:"2s" validate:"gt=0"`
	WriteTimeout     time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s" validate:"gt=0"`
	StoreTimeout     time.Duration `envconfig:"STORE_TIMEOUT" default:"5s" validate:"gt=0"`
	SendBuffer       int           `envconfig:"SEND_BUFFER" default:"64" validate:"min=1"`
	MaxMessageLength int           `envconfig:"MAX_MESSAGE_LENGTH" default:"5000" validate:"min=1"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// A missing .env file is expected outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Database.Driver == DriverPostgres && c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// AccessTokenDuration returns the configured access token lifetime.
func (j JWT) AccessTokenDuration() time.Duration {
	return time.Duration(j.ExpireMinutes) * time.Minute
}
