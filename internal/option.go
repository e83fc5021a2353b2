package internal

import "github.com/starford/casevault/internal/transform"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config      *Config
	transformer transform.Transformer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithTransformer overrides the transformation client. Used by tests to
// substitute a stub for the real API client.
func WithTransformer(t transform.Transformer) Option {
	return func(a *application) {
		a.transformer = t
	}
}
