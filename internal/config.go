// Package internal provides the main application initialization and
// runtime logic.
package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/casevault/internal/transform"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Archive   ArchiveConfig     `yaml:"archive"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Transform TransformConfig   `yaml:"transform"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Transform.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ArchiveConfig holds the snapshot-area base directory: one
// sub-directory per subject with the raw artifact files and the
// snapshot descriptor. Always injected, never read from ambient
// process state.
type ArchiveConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// TransformConfig holds the transformation-service settings, including
// its retry policy. Durations are whole seconds for YAML simplicity.
type TransformConfig struct {
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxAttempts     int    `yaml:"max_attempts"`
	BaseDelaySecond int    `yaml:"base_delay_seconds"`
	MaxDelaySeconds int    `yaml:"max_delay_seconds"`
}

// Validate validates the transform configuration.
func (c *TransformConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.MaxAttempts, validation.Min(1)),
		validation.Field(&c.TimeoutSeconds, validation.Min(0)),
		validation.Field(&c.BaseDelaySecond, validation.Min(0)),
		validation.Field(&c.MaxDelaySeconds, validation.Min(0)),
	)
}

// RetryPolicy builds the retry policy from the configured bounds.
func (c *TransformConfig) RetryPolicy() transform.RetryPolicy {
	p := transform.DefaultRetryPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.BaseDelaySecond > 0 {
		p.BaseDelay = time.Duration(c.BaseDelaySecond) * time.Second
	}
	if c.MaxDelaySeconds > 0 {
		p.MaxDelay = time.Duration(c.MaxDelaySeconds) * time.Second
	}
	return p
}

// Timeout returns the per-attempt request timeout.
func (c *TransformConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Archive: ArchiveConfig{
			Path: "./archive",
		},
		SQLite: SQLiteConfig{
			Path: "./casevault.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Transform: TransformConfig{
			Model:           "claude-sonnet-4-20250514",
			TimeoutSeconds:  60,
			MaxAttempts:     3,
			BaseDelaySecond: 2,
			MaxDelaySeconds: 10,
		},
	}
}
