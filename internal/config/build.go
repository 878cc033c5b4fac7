package config

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/corrlookup/internal/archive"
	"github.com/roach88/corrlookup/internal/loader"
	"github.com/roach88/corrlookup/internal/lookup"
	"github.com/roach88/corrlookup/internal/registry"
)

// BuildOption configures NewRegistry.
type BuildOption func(*buildOptions)

type buildOptions struct {
	logger  *slog.Logger
	metrics prometheus.Registerer
}

// WithLogger sets the logger for the registry and its loaders.
func WithLogger(l *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = l
	}
}

// WithMetrics registers lookup counters with reg.
func WithMetrics(reg prometheus.Registerer) BuildOption {
	return func(o *buildOptions) {
		o.metrics = reg
	}
}

// NewRegistry returns an unsealed registry holding c's weight sets.
// Archive sources are read with archive.ReadObjects. The caller finalizes.
func (c *Config) NewRegistry(opts ...BuildOption) (*registry.Registry, error) {
	o := &buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	m, err := lookup.NewMetrics(o.metrics)
	if err != nil {
		return nil, err
	}

	r := registry.New(
		registry.WithLogger(o.logger),
		registry.WithLoader(loader.NewDispatcher(
			loader.WithArchiveReader(archive.ReadObjects),
			loader.WithLogger(o.logger),
		)),
		registry.WithEngine(lookup.New(
			lookup.WithWorkers(c.Workers),
			lookup.WithMetrics(m),
			lookup.WithLogger(o.logger),
		)),
	)
	if err := r.AddWeightSets(c.Weights...); err != nil {
		return nil, err
	}
	return r, nil
}
