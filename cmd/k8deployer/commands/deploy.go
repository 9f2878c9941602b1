package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bridgecrew-perf6/k8deployer/pkg/config"
	"github.com/bridgecrew-perf6/k8deployer/pkg/drivers"
	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
	"github.com/bridgecrew-perf6/k8deployer/pkg/telemetry"
)

func newDeployCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <definition-file>",
		Short: "Deploy a component tree",
		Long: `Deploy the component tree described by the definition file to every
configured cluster, then monitor the cluster event streams until each
component is done or failed.`,
		Example: `  # Deploy to one cluster
  k8deployer deploy app.yaml -k ~/.kube/prod.conf

  # Deploy to two clusters with per-cluster variables
  k8deployer deploy app.yaml \
    -k prod.conf:namespace=prod \
    -k staging.conf:namespace=staging`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), flags, config.ModeDeploy, args[0])
		},
	}
	return cmd
}

// runEngine builds the telemetry stack and the engine, then drives the
// configured mode to completion. Shared by deploy, delete and depgraph.
func runEngine(ctx context.Context, flags *rootFlags, mode config.Mode, definitionFile string) error {
	cfg := flags.buildConfig(mode, definitionFile)

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Logging.Level = flags.logLevel
	telemetryCfg.Logging.Format = flags.logFormat
	telemetryCfg.Metrics.ListenAddress = cfg.MetricsAddr
	telemetryCfg.Tracing.Enabled = cfg.TraceExporter != "" && cfg.TraceExporter != "none"
	telemetryCfg.Tracing.Exporter = cfg.TraceExporter
	telemetryCfg.Tracing.Endpoint = cfg.TraceEndpoint
	if err := telemetryCfg.Validate(); err != nil {
		return err
	}

	logger, err := telemetry.NewLogger(telemetryCfg.Logging)
	if err != nil {
		return err
	}

	metrics, err := telemetry.NewMetrics(telemetryCfg.Metrics)
	if err != nil {
		return err
	}
	if err := metrics.Serve(); err != nil {
		return err
	}
	defer metrics.Close()

	tracer, err := telemetry.NewTracer(telemetryCfg.Tracing, telemetryCfg.ServiceName, telemetryCfg.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	bus := telemetry.NewEventBus(telemetryCfg.Events)
	defer bus.Close()
	bus.Subscribe(progressPrinter(logger))

	eng, err := engine.New(cfg, drivers.NewRegistry(), engine.Options{
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
		Bus:     bus,
	})
	if err != nil {
		if engine.IsFatal(err) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return err
	}

	return eng.Run(ctx)
}

// progressPrinter renders execution events as log lines so a watching user
// sees components advance without raising the log level.
func progressPrinter(logger zerolog.Logger) telemetry.EventSubscriber {
	return func(event telemetry.ExecutionEvent) {
		switch event.Type {
		case telemetry.EventComponentState:
			logger.Info().
				Str("component", event.Component).
				Str("state", event.State).
				Msg("progress")
		case telemetry.EventClusterState:
			logger.Info().
				Str("cluster", event.Cluster).
				Str("state", event.State).
				Msg("cluster")
		}
	}
}
