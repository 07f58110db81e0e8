package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sojourner/internal/favourites"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Schedule   ScheduleConfig    `yaml:"schedule"`
	Favourites FavouritesConfig  `yaml:"favourites"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	if err := c.Favourites.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
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

// ScheduleConfig locates the schedule document.
//
// Timezone is an IANA name used to turn the document's wall-clock times into
// instants for calendar export; "Local" uses the host zone. Cache disables
// the snapshot cache when false.
type ScheduleConfig struct {
	Path     string `yaml:"path"`
	Timezone string `yaml:"timezone"`
	Cache    bool   `yaml:"cache"`
}

// Validate validates the schedule configuration.
func (c *ScheduleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Timezone, validation.Required, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
	)
}

// Location resolves Timezone.
func (c *ScheduleConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", c.Timezone)
	}
	return loc, nil
}

// FavouritesConfig controls where favourites live and how stale ids in the
// file are treated.
//
// Path overrides the default location next to the schedule document.
// PerUser stores them under the user's config directory instead.
type FavouritesConfig struct {
	Path       string            `yaml:"path"`
	PerUser    bool              `yaml:"per_user"`
	UnknownIDs favourites.Policy `yaml:"unknown_ids"`
}

// Validate validates the favourites configuration.
func (c *FavouritesConfig) Validate() error {
	if c.UnknownIDs == "" {
		c.UnknownIDs = favourites.PolicyStrict
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.UnknownIDs, validation.In(favourites.PolicyStrict, favourites.PolicySkip)),
	); err != nil {
		return err
	}
	if c.Path != "" && c.PerUser {
		return errors.New("favourites: path and per_user are mutually exclusive")
	}
	return nil
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
		Schedule: ScheduleConfig{
			Path:     "./schedule.xml",
			Timezone: "Local",
			Cache:    true,
		},
		Favourites: FavouritesConfig{
			UnknownIDs: favourites.PolicyStrict,
		},
		SQLite: SQLiteConfig{
			Path: "./sojourner.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
