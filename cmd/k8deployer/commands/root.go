// Package commands wires the deployer CLI: one subcommand per engine mode,
// shared flags on the root.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bridgecrew-perf6/k8deployer/pkg/config"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	clusters              []string
	namespace             string
	includeFilter         string
	excludeFilter         string
	autoMaintainNamespace bool
	dotfile               string
	taskTimeout           time.Duration
	ignoreErrors          bool
	apiServer             string
	metricsAddr           string
	traceExporter         string
	traceEndpoint         string
	logLevel              string
	logFormat             string
}

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "k8deployer",
		Short: "k8deployer - hierarchical Kubernetes workload deployment",
		Long: `k8deployer deploys, monitors and tears down hierarchical collections of
Kubernetes workloads across one or more clusters.

A declarative component tree (applications composed of deployments,
services, config maps, jobs, ...) is planned into an ordered execution,
driven against the Kubernetes API and tracked through the cluster's
event stream until every component completes or fails.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	pf := rootCmd.PersistentFlags()
	pf.StringSliceVarP(&flags.clusters, "kubeconfig", "k", nil,
		"cluster argument, '<kubeconfig>[:<k1=v1,k2=v2,...>]' (repeatable)")
	pf.StringVarP(&flags.namespace, "namespace", "n", "default", "default namespace")
	pf.StringVar(&flags.includeFilter, "include", ".*", "regex of component names to include")
	pf.StringVar(&flags.excludeFilter, "exclude", "", "regex of component names to exclude")
	pf.BoolVar(&flags.autoMaintainNamespace, "auto-maintain-namespace", false,
		"synthesize a Namespace component and order everything after it")
	pf.StringVar(&flags.dotfile, "dotfile", "dependencies.dot", "dependency dump file-name suffix")
	pf.DurationVar(&flags.taskTimeout, "task-timeout", 15*time.Minute,
		"deadline for tasks waiting on events or probes (0 disables)")
	pf.BoolVar(&flags.ignoreErrors, "ignore-errors", false,
		"keep components alive when a request fails")
	pf.StringVar(&flags.apiServer, "api-server", "",
		"API base URL; skips kubectl proxy when set")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Prometheus listen address")
	pf.StringVar(&flags.traceExporter, "trace-exporter", "none", "span exporter: none, stdout or otlp")
	pf.StringVar(&flags.traceEndpoint, "trace-endpoint", "", "OTLP collector endpoint")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "console", "log format: console or json")

	rootCmd.AddCommand(newDeployCommand(flags))
	rootCmd.AddCommand(newDeleteCommand(flags))
	rootCmd.AddCommand(newDepgraphCommand(flags))

	return rootCmd
}

// buildConfig turns the parsed flags into the engine configuration.
func (f *rootFlags) buildConfig(mode config.Mode, definitionFile string) *config.Config {
	cfg := config.Default()
	cfg.Mode = mode
	cfg.DefinitionFile = definitionFile
	cfg.Clusters = f.clusters
	cfg.Namespace = f.namespace
	cfg.IncludeFilter = f.includeFilter
	cfg.ExcludeFilter = f.excludeFilter
	cfg.AutoMaintainNamespace = f.autoMaintainNamespace
	cfg.Dotfile = f.dotfile
	cfg.TaskTimeout = f.taskTimeout
	cfg.IgnoreErrors = f.ignoreErrors
	cfg.APIServer = f.apiServer
	cfg.MetricsAddr = f.metricsAddr
	cfg.TraceExporter = f.traceExporter
	cfg.TraceEndpoint = f.traceEndpoint
	return cfg
}
