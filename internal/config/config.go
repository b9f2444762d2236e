package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is assembled once at process start and passed to constructors.
// Nothing reads the environment after Load returns.
type Config struct {
	Env     string `yaml:"env" toml:"env"`           // "production" turns on Secure cookies
	Port    string `yaml:"port" toml:"port"`         // HTTP listen port
	SiteDir string `yaml:"site_dir" toml:"site_dir"` // Static site served behind the gate

	Access  AccessConfig  `yaml:"access" toml:"access"`
	OTP     OTPConfig     `yaml:"otp" toml:"otp"`
	Session SessionConfig `yaml:"session" toml:"session"`
	Email   EmailConfig   `yaml:"email" toml:"email"`
	Audit   AuditConfig   `yaml:"audit" toml:"audit"`
	Log     LogConfig     `yaml:"log" toml:"log"`

	RedisURL      string  `yaml:"redis_url" toml:"redis_url"`             // Replay guard backend, empty = in-memory
	AuthRateLimit float64 `yaml:"auth_rate_limit" toml:"auth_rate_limit"` // Requests/second per IP on /api/auth, 0 = off
}

// AccessConfig holds the shared staging credentials
type AccessConfig struct {
	Enabled        bool   `yaml:"enabled" toml:"enabled"`
	Username       string `yaml:"username" toml:"username"`
	Password       string `yaml:"password" toml:"password"`
	PasswordHash   string `yaml:"password_hash" toml:"password_hash"` // bcrypt, wins over Password
	Secret         string `yaml:"secret" toml:"secret"`
	CookieSameSite string `yaml:"cookie_same_site" toml:"cookie_same_site"` // lax or strict
}

// OTPConfig controls the passcode step
type OTPConfig struct {
	StartDate     string  `yaml:"start_date" toml:"start_date"` // DD-MM-YYYY
	Timezone      string  `yaml:"timezone" toml:"timezone"`
	ExpiryMinutes float64 `yaml:"expiry_minutes" toml:"expiry_minutes"`
	SigningSecret string  `yaml:"signing_secret" toml:"signing_secret"`
	SingleUse     bool    `yaml:"single_use" toml:"single_use"`
}

// SessionConfig controls cookie lifetime and the client warning lead
type SessionConfig struct {
	TimeoutMinutes float64 `yaml:"timeout_minutes" toml:"timeout_minutes"`
	WarningMinutes float64 `yaml:"warning_minutes" toml:"warning_minutes"`
}

// EmailConfig is the outbound SMTP transport
type EmailConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
	User string `yaml:"user" toml:"user"`
	Pass string `yaml:"pass" toml:"pass"`
	From string `yaml:"from" toml:"from"`
	To   string `yaml:"to" toml:"to"` // The single address allowed to receive codes
}

// AuditConfig selects the optional audit store
type AuditConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite or postgres, empty = off
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// LogConfig mirrors logger.Config in file/env form
type LogConfig struct {
	Level   string `yaml:"level" toml:"level"`
	File    string `yaml:"file" toml:"file"`
	Console bool   `yaml:"console" toml:"console"`
}

// DefaultConfig returns built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Env:     "development",
		Port:    "3000",
		SiteDir: "public",
		Access: AccessConfig{
			CookieSameSite: "lax",
		},
		OTP: OTPConfig{
			ExpiryMinutes: 10,
			SingleUse:     true,
		},
		Session: SessionConfig{
			TimeoutMinutes: 15,
			WarningMinutes: 1,
		},
		Email: EmailConfig{
			Port: 587,
		},
		Log: LogConfig{
			Level:   "INFO",
			Console: true,
		},
	}
}

// Load builds the configuration: defaults, then the file named by
// SITEGATE_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("SITEGATE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile is Load with an explicit file path and no SITEGATE_CONFIG lookup.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Env = getEnv("APP_ENV", c.Env)
	c.Port = getEnv("PORT", c.Port)
	c.SiteDir = getEnv("SITE_DIR", c.SiteDir)

	c.Access.Enabled = getEnvBool("WEB_ACCESS_ENABLED", c.Access.Enabled)
	c.Access.Username = getEnv("WEB_ACCESS_USERNAME", c.Access.Username)
	c.Access.Password = getEnv("WEB_ACCESS_PASSWORD", c.Access.Password)
	c.Access.PasswordHash = getEnv("WEB_ACCESS_PASSWORD_HASH", c.Access.PasswordHash)
	c.Access.Secret = getEnv("WEB_ACCESS_SECRET", c.Access.Secret)
	c.Access.CookieSameSite = getEnv("COOKIE_SAMESITE", c.Access.CookieSameSite)

	c.OTP.StartDate = getEnv("OTP_START_DATE", c.OTP.StartDate)
	c.OTP.Timezone = getEnv("OTP_TIMEZONE", c.OTP.Timezone)
	c.OTP.ExpiryMinutes = getEnvFloat("OTP_EXPIRY_MINUTES", c.OTP.ExpiryMinutes)
	c.OTP.SigningSecret = getEnv("OTP_SIGNING_SECRET", c.OTP.SigningSecret)
	c.OTP.SingleUse = getEnvBool("OTP_SINGLE_USE", c.OTP.SingleUse)

	c.Session.TimeoutMinutes = getEnvFloat("SESSION_TIMEOUT_MINUTES", c.Session.TimeoutMinutes)
	c.Session.WarningMinutes = getEnvFloat("INACTIVITY_WARNING_MINUTES", c.Session.WarningMinutes)

	c.Email.Host = getEnv("EMAIL_HOST", c.Email.Host)
	c.Email.Port = getEnvInt("EMAIL_PORT", c.Email.Port)
	c.Email.User = getEnv("EMAIL_USER", c.Email.User)
	c.Email.Pass = getEnv("EMAIL_PASS", c.Email.Pass)
	c.Email.From = getEnv("EMAIL_FROM", c.Email.From)
	c.Email.To = getEnv("OTP_EMAIL_TO", c.Email.To)

	c.Audit.Driver = getEnv("AUDIT_DRIVER", c.Audit.Driver)
	c.Audit.DSN = getEnv("AUDIT_DSN", c.Audit.DSN)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
	c.Log.Console = getEnvBool("LOG_CONSOLE", c.Log.Console)

	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.AuthRateLimit = getEnvFloat("AUTH_RATE_LIMIT", c.AuthRateLimit)
}

// Validate checks invariants and fills derived defaults.
func (c *Config) Validate() error {
	if c.Access.Enabled {
		if c.Access.Username == "" {
			return errors.New("WEB_ACCESS_USERNAME is required when access control is enabled")
		}
		if c.Access.Password == "" && c.Access.PasswordHash == "" {
			return errors.New("WEB_ACCESS_PASSWORD or WEB_ACCESS_PASSWORD_HASH is required when access control is enabled")
		}
		if c.Access.Secret == "" {
			return errors.New("WEB_ACCESS_SECRET is required when access control is enabled")
		}
	}

	switch strings.ToLower(c.Access.CookieSameSite) {
	case "lax", "strict":
	default:
		return fmt.Errorf("COOKIE_SAMESITE must be lax or strict, got %q", c.Access.CookieSameSite)
	}

	if c.OTP.SigningSecret == "" {
		c.OTP.SigningSecret = c.Access.Secret
	}
	if c.OTP.ExpiryMinutes <= 0 {
		c.OTP.ExpiryMinutes = 10
	}
	if c.Session.TimeoutMinutes <= 0 {
		c.Session.TimeoutMinutes = 15
	}
	if c.Session.WarningMinutes <= 0 || c.Session.WarningMinutes >= c.Session.TimeoutMinutes {
		c.Session.WarningMinutes = c.Session.TimeoutMinutes / 2
	}

	switch c.Audit.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("AUDIT_DRIVER must be sqlite or postgres, got %q", c.Audit.Driver)
	}
	if c.AuthRateLimit < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must not be negative")
	}
	return nil
}

// IsProduction reports whether cookies should be marked Secure
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SessionTTL is the lifetime embedded in a minted session cookie
func (c *Config) SessionTTL() time.Duration {
	return minutes(c.Session.TimeoutMinutes)
}

// WarningLead is how long before expiry the client warns
func (c *Config) WarningLead() time.Duration {
	return minutes(c.Session.WarningMinutes)
}

// OTPTTL is the lifetime of an issued passcode
func (c *Config) OTPTTL() time.Duration {
	return minutes(c.OTP.ExpiryMinutes)
}

// EmailConfigured reports whether request-otp can deliver codes
func (c *Config) EmailConfigured() bool {
	return c.Email.Host != "" && c.Email.User != "" && c.Email.Pass != "" && c.Email.To != ""
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}
