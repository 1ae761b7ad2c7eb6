package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/vanesdocs/vanesdocs/internal/auth"
	"github.com/vanesdocs/vanesdocs/internal/docstore"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	Storage StorageConfig     `yaml:"storage"`
	Auth    AuthConfig        `yaml:"auth"`
	Session SessionConfig     `yaml:"session"`
	Uploads UploadsConfig     `yaml:"uploads"`
	Inbox   InboxConfig       `yaml:"inbox"`
	Events  EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		&c.App, &c.Store, &c.Storage, &c.Auth, &c.Session, &c.Uploads, &c.Events,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
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
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

// StoreConfig selects the document repository.
//
// DSN is a file path for sqlite and a connection URL for postgres. It is
// ignored for memory.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(docstore.DriverSQLite, docstore.DriverPostgres, docstore.DriverMemory)),
		validation.Field(&c.DSN, validation.When(c.Driver != docstore.DriverMemory, validation.Required)),
	)
}

// StorageConfig holds the object store for uploaded images and files.
type StorageConfig struct {
	Root    string `yaml:"root"`
	BaseURL string `yaml:"base_url"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.BaseURL, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): every caller is the local user, suitable for local dev.
//   - "token": a static Bearer token; Token must be non-empty.
//   - "jwt": HS256 tokens signed with JWTSecret.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = auth.ModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(auth.ModeDisabled, auth.ModeToken, auth.ModeJWT)),
	); err != nil {
		return err
	}
	if c.Mode == auth.ModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", auth.ModeToken)
	}
	if c.Mode == auth.ModeJWT && len(c.JWTSecret) < 16 {
		return fmt.Errorf("auth: mode is %q but jwt_secret is shorter than 16 bytes", auth.ModeJWT)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode != auth.ModeDisabled
}

// SessionConfig holds the unlock session cookie settings.
type SessionConfig struct {
	Cookie        string        `yaml:"cookie"`
	// TTL bounds the server-side unlock state; the cookie itself ends with
	// the browser session.
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Cookie, validation.Required),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.SweepInterval, validation.Required, validation.Min(time.Second)),
	)
}

// UploadsConfig bounds uploaded files.
type UploadsConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// Validate validates the uploads configuration.
func (c *UploadsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1))),
	)
}

// InboxConfig enables the watched import directory when Path is set.
type InboxConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the inbox watcher runs.
func (c *InboxConfig) Enabled() bool {
	return c.Path != ""
}

func isOrigin(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an origin like https://host[:port]", s)
	}
	return nil
}

// EventsConfig holds the document event stream settings.
type EventsConfig struct {
	// Throttle is the minimum gap between list.updated events.
	Throttle       time.Duration `yaml:"throttle"`
	// AllowedOrigins may open /api/ws from another site.
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
		validation.Field(&c.AllowedOrigins, validation.Each(validation.By(isOrigin))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:            8080,
				ShutdownTimeout: 10 * time.Second,
			},
		},
		Store: StoreConfig{
			Driver: docstore.DriverSQLite,
			DSN:    "./vanesdocs.db",
		},
		Storage: StorageConfig{
			Root:    "./data/files",
			BaseURL: "/files/",
		},
		Auth: AuthConfig{
			Mode: auth.ModeDisabled,
		},
		Session: SessionConfig{
			Cookie:        "vd_session",
			TTL:           12 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Uploads: UploadsConfig{
			MaxBytes: 25 << 20,
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
	}
}
