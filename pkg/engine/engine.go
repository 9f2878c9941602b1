// Package engine implements the orchestration core of the deployer: the
// component tree, the component and task state machines, dependency
// synthesis, the per-cluster cooperative scheduler and its event-driven
// progression.
package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/bridgecrew-perf6/k8deployer/pkg/config"
	"github.com/bridgecrew-perf6/k8deployer/pkg/telemetry"
)

// Options carries the telemetry collaborators into the engine. Zero values
// are replaced with disabled instances.
type Options struct {
	// Logger is the root logger.
	Logger zerolog.Logger

	// Metrics is the Prometheus collector.
	Metrics *telemetry.Metrics

	// Tracer exports spans for cluster executions.
	Tracer *telemetry.Tracer

	// Bus receives execution progress events.
	Bus *telemetry.EventBus
}

// Engine holds the global configuration and mode, owns the clusters and
// joins their terminal futures.
type Engine struct {
	cfg      *config.Config
	registry DriverRegistry
	log      zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	bus      *telemetry.EventBus
	clusters []*Cluster
}

// New validates the configuration, loads the definition file and builds one
// prepared cluster per cluster argument. Configuration and cycle errors
// surface here, before any HTTP request is issued.
func New(cfg *config.Config, registry DriverRegistry, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigError("invalid configuration", err)
	}

	metrics := opts.Metrics
	if metrics == nil {
		m, err := telemetry.NewMetrics(telemetry.MetricsConfig{})
		if err != nil {
			return nil, err
		}
		metrics = m
	}

	e := &Engine{
		cfg:      cfg,
		registry: registry,
		log:      opts.Logger,
		metrics:  metrics,
		tracer:   opts.Tracer,
		bus:      opts.Bus,
	}

	rawDef, err := config.LoadDefinition(cfg.DefinitionFile)
	if err != nil {
		return nil, NewConfigError("definition load failed", err)
	}

	for _, arg := range cfg.Clusters {
		cl, err := NewCluster(cfg, arg, registry, e.log, e.metrics, e.bus)
		if err != nil {
			return nil, err
		}
		if err := cl.BuildTree(rawDef); err != nil {
			return nil, err
		}
		if err := cl.Prepare(); err != nil {
			return nil, err
		}
		e.clusters = append(e.clusters, cl)
	}

	return e, nil
}

// Clusters returns the engine's clusters.
func (e *Engine) Clusters() []*Cluster { return e.clusters }

// Run executes the configured mode. Deploy and delete drive every cluster
// in parallel and join their terminal futures; show-dependencies writes one
// DOT file per root and returns.
func (e *Engine) Run(ctx context.Context) error {
	if e.cfg.Mode == config.ModeShowDependencies {
		for _, cl := range e.clusters {
			if _, err := cl.Root().DumpDependencies(); err != nil {
				return err
			}
		}
		return nil
	}

	type result struct {
		cluster *Cluster
		ch      <-chan error
		end     func(error)
	}

	results := make([]result, 0, len(e.clusters))
	for _, cl := range e.clusters {
		end := func(error) {}
		if e.tracer != nil {
			_, span := e.tracer.StartClusterSpan(ctx, cl.Name(), string(e.cfg.Mode))
			end = func(err error) {
				if err != nil {
					telemetry.RecordError(span, err)
				} else {
					telemetry.RecordSuccess(span)
				}
				span.End()
			}
		}
		results = append(results, result{cluster: cl, ch: cl.Execute(ctx), end: end})
	}

	var errs []error
	for _, r := range results {
		err := <-r.ch
		r.end(err)
		if err != nil {
			e.log.Error().Err(err).Str("cluster", r.cluster.Name()).Msg("cluster failed")
			errs = append(errs, err)
		} else {
			e.log.Info().Str("cluster", r.cluster.Name()).Msg("cluster finished")
		}
	}

	return errors.Join(errs...)
}
