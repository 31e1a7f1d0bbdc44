package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/robometric/robotdiff/internal/diff"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the server configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Models  ModelsConfig      `yaml:"models"`
	Compare CompareConfig     `yaml:"compare"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Models.Validate(); err != nil {
		return err
	}
	if err := c.Compare.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ModelsConfig holds the directory the server resolves model paths
// against. Requests cannot reach files outside it.
type ModelsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the models configuration.
func (c *ModelsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CompareConfig holds the default comparison options applied when a
// request does not override them.
type CompareConfig struct {
	ToleranceLinear  float64  `yaml:"tolerance_linear"`
	ToleranceAngular float64  `yaml:"tolerance_angular"`
	Relative         bool     `yaml:"relative"`
	IncludeVisual    bool     `yaml:"include_visual"`
	Fields           []string `yaml:"fields"`
}

// Validate validates the comparison configuration.
func (c *CompareConfig) Validate() error {
	if c.ToleranceLinear < 0 || c.ToleranceAngular < 0 {
		return fmt.Errorf("compare: tolerances must be non-negative")
	}
	for _, f := range c.Fields {
		if _, err := diff.ParseCategory(f); err != nil {
			return fmt.Errorf("compare: %w", err)
		}
	}
	return nil
}

// DiffOptions converts the configuration into engine options.
func (c *CompareConfig) DiffOptions() diff.Options {
	opts := diff.DefaultOptions()
	if c.ToleranceLinear > 0 {
		opts.ToleranceLinear = c.ToleranceLinear
	}
	if c.ToleranceAngular > 0 {
		opts.ToleranceAngular = c.ToleranceAngular
	}
	opts.Relative = c.Relative
	opts.IncludeVisual = c.IncludeVisual
	for _, f := range c.Fields {
		if cat, err := diff.ParseCategory(f); err == nil {
			opts.Fields = append(opts.Fields, cat)
		}
	}
	return opts
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled".
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Models: ModelsConfig{
			Path: "./models",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
