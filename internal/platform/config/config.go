// Package config loads process configuration from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MinSigningKeyLength is the shortest HS256 key accepted at startup.
const MinSigningKeyLength = 32

// Config is the full server configuration.
type Config struct {
	Addr         string `env:"CAS_ADDR" envDefault:":8080"`
	SystemDomain string `env:"CAS_SYSTEM_DOMAIN" envDefault:"http://localhost:8080"`
	LogLevel     string `env:"CAS_LOG_LEVEL" envDefault:"info"`

	Cookie    CookieConfig
	Session   SessionConfig
	Ticket    TicketConfig
	OTP       OTPConfig
	Redis     RedisConfig `envPrefix:"REDIS_"`
	Database  DatabaseConfig
	Bootstrap BootstrapConfig

	APITokenHeader string `env:"CAS_API_TOKEN_HEADER" envDefault:"X-Api-Token"`
}

// CookieConfig describes the SSO session cookie.
type CookieConfig struct {
	Name   string `env:"CAS_COOKIE_NAME" envDefault:"CASTGC"`
	Path   string `env:"CAS_COOKIE_PATH" envDefault:"/"`
	Domain string `env:"CAS_COOKIE_DOMAIN"`
	MaxAge int    `env:"CAS_COOKIE_MAX_AGE" envDefault:"28800"`
	Secure bool   `env:"CAS_COOKIE_SECURE" envDefault:"true"`
}

// SessionConfig configures session token signing.
type SessionConfig struct {
	SigningKey string        `env:"CAS_SESSION_SIGNING_KEY"`
	Issuer     string        `env:"CAS_SESSION_ISSUER" envDefault:"cas"`
	TTL        time.Duration `env:"CAS_SESSION_TTL" envDefault:"8h"`
}

// TicketConfig configures service ticket lifetime and reclamation.
type TicketConfig struct {
	TTL           time.Duration `env:"CAS_TICKET_TTL" envDefault:"5m"`
	SweepInterval time.Duration `env:"CAS_TICKET_SWEEP_INTERVAL" envDefault:"1m"`
}

// OTPConfig configures the TOTP tolerance window.
type OTPConfig struct {
	Skew   uint          `env:"CAS_OTP_SKEW" envDefault:"1"`
	Period time.Duration `env:"CAS_OTP_PERIOD" envDefault:"30s"`
}

// RedisConfig enables the Redis ticket store when URL is set.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// DatabaseConfig enables the PostgreSQL identity and service stores when URL is set.
type DatabaseConfig struct {
	URL          string `env:"DATABASE_URL"`
	MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
}

// BootstrapConfig seeds an administrator when the username is not yet taken,
// and registers or updates services at startup.
type BootstrapConfig struct {
	AdminUsername string       `env:"CAS_BOOTSTRAP_ADMIN_USERNAME"`
	AdminPassword string       `env:"CAS_BOOTSTRAP_ADMIN_PASSWORD"`
	Services      ServiceSeeds `env:"CAS_BOOTSTRAP_SERVICES"`
}

// ServiceSeeds is a JSON list of service records, each a set of service
// fields plus an optional "id" naming the record to update.
//
//	[{"id":1,"name":"wiki","allowedUrls":["https://wiki.example.com/*"],"mode":"PUBLIC"}]
type ServiceSeeds []map[string]any

func parseServiceSeeds(v string) (any, error) {
	var seeds ServiceSeeds
	if strings.TrimSpace(v) == "" {
		return seeds, nil
	}
	if err := json.Unmarshal([]byte(v), &seeds); err != nil {
		return nil, fmt.Errorf("CAS_BOOTSTRAP_SERVICES must be a JSON list of objects: %w", err)
	}
	return seeds, nil
}

// Load reads an optional .env file and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return Parse(env.Options{})
}

// Parse parses configuration with explicit options. Tests pass an Environment map.
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	funcs := map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(ServiceSeeds(nil)): parseServiceSeeds,
	}
	for t, fn := range opts.FuncMap {
		funcs[t] = fn
	}
	opts.FuncMap = funcs
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.SystemDomain = strings.TrimRight(cfg.SystemDomain, "/")
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Session.SigningKey) < MinSigningKeyLength {
		errs = append(errs, fmt.Errorf("CAS_SESSION_SIGNING_KEY must be at least %d bytes", MinSigningKeyLength))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("CAS_SESSION_TTL must be positive"))
	}
	if c.Ticket.TTL <= 0 {
		errs = append(errs, errors.New("CAS_TICKET_TTL must be positive"))
	}
	if c.Ticket.SweepInterval <= 0 {
		errs = append(errs, errors.New("CAS_TICKET_SWEEP_INTERVAL must be positive"))
	}
	if c.OTP.Period < time.Second {
		errs = append(errs, errors.New("CAS_OTP_PERIOD must be at least one second"))
	}
	if c.Cookie.Name == "" {
		errs = append(errs, errors.New("CAS_COOKIE_NAME is required"))
	}
	if c.SystemDomain == "" {
		errs = append(errs, errors.New("CAS_SYSTEM_DOMAIN is required"))
	}
	if (c.Bootstrap.AdminUsername == "") != (c.Bootstrap.AdminPassword == "") {
		errs = append(errs, errors.New("bootstrap admin requires both username and password"))
	}
	return errors.Join(errs...)
}
