package internal

import (
	"io"

	"github.com/vanesdocs/vanesdocs/internal/docstore"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	version string
	repo    docstore.Repository
	logOut  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithRepository uses repo instead of opening Config.Store.
func WithRepository(repo docstore.Repository) Option {
	return func(a *application) {
		a.repo = repo
	}
}

// WithLogOutput sets where the JSON logs go. Defaults to stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
