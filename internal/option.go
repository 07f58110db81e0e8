package internal

import "github.com/starford/sojourner/internal/metrics"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	metrics *metrics.Metrics
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMetrics uses m instead of a fresh metrics registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *application) {
		a.metrics = m
	}
}
