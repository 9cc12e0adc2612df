package feature

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/dshills/puppetext/internal/logging"
	"github.com/dshills/puppetext/internal/telemetry"
)

// Registry builds the features once and disposes them at shutdown. It is
// a flat collection; features are held only so they can be disposed.
type Registry struct {
	constructors []Constructor
	logger       *logging.Logger
	metrics      *telemetry.Metrics

	mu       sync.Mutex
	built    bool
	features []Feature
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithConstructors replaces the catalog.
func WithConstructors(c ...Constructor) RegistryOption {
	return func(r *Registry) { r.constructors = c }
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithRegistryMetrics sets the telemetry sink.
func WithRegistryMetrics(m *telemetry.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates a registry over Catalog.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		constructors: Catalog,
		logger:       logging.Null(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("feature")
	return r
}

// Build constructs every feature. A feature that fails to construct is
// logged and skipped; the others are still built. A second call returns
// ErrAlreadyBuilt and changes nothing.
func (r *Registry) Build(deps Deps) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.built {
		return ErrAlreadyBuilt
	}
	r.built = true

	if deps.Logger == nil {
		deps.Logger = r.logger
	}
	if deps.Metrics == nil {
		deps.Metrics = r.metrics
	}

	for _, c := range r.constructors {
		f, err := c.New(deps)
		if err != nil {
			r.logger.WithField("feature", c.Name).Error("failed to start feature: %v", err)
			continue
		}
		r.features = append(r.features, f)
		r.logger.Debug("feature %s ready", c.Name)
	}
	return nil
}

// Names returns the names of the built features.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.features))
	for i, f := range r.features {
		names[i] = f.Name()
	}
	return names
}

// DisposeAll disposes every built feature exactly once, in reverse
// construction order. Disposal continues past failures; the failures are
// returned together.
func (r *Registry) DisposeAll() error {
	r.mu.Lock()
	features := r.features
	r.features = nil
	r.mu.Unlock()

	var errs error
	for i := len(features) - 1; i >= 0; i-- {
		f := features[i]
		if err := f.Dispose(); err != nil {
			r.metrics.DisposeFailure(f.Name())
			r.logger.WithField("feature", f.Name()).Warn("dispose failed: %v", err)
			errs = multierr.Append(errs, fmt.Errorf("dispose %s: %w", f.Name(), err))
		}
	}
	return errs
}
