package internal

import "github.com/fennwick/lorevault/internal/resolve"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	lookup resolve.Lookup
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLookup installs a custom resolution hook consulted before the
// derived lookup tables.
func WithLookup(fn resolve.Lookup) Option {
	return func(a *application) {
		a.lookup = fn
	}
}
