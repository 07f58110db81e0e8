package schedule

import (
	"log/slog"

	"github.com/starford/sojourner/internal/cache"
	"github.com/starford/sojourner/internal/favourites"
	"github.com/starford/sojourner/internal/metrics"
)

// Option is a functional option for Open.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	metrics        *metrics.Metrics
	favouritesPath string
	policy         favourites.Policy
	cacheOpts      []cache.Option
	onChange       ChangeFunc
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records cache and favourites metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithFavouritesPath stores favourites at path instead of next to the document.
func WithFavouritesPath(path string) Option {
	return func(o *options) { o.favouritesPath = path }
}

// WithPolicy sets how unknown favourite ids are handled (default strict).
func WithPolicy(p favourites.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithCacheVersion overrides the snapshot schema version.
func WithCacheVersion(v int) Option {
	return func(o *options) { o.cacheOpts = append(o.cacheOpts, cache.WithVersion(v)) }
}

// WithoutCache always parses the document and never writes a snapshot.
func WithoutCache() Option {
	return func(o *options) { o.cacheOpts = append(o.cacheOpts, cache.Disabled()) }
}

// WithChangeFunc registers a callback for favourite changes.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(o *options) { o.onChange = fn }
}
