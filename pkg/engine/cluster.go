package engine

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bridgecrew-perf6/k8deployer/pkg/config"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
	"github.com/bridgecrew-perf6/k8deployer/pkg/kube"
	"github.com/bridgecrew-perf6/k8deployer/pkg/telemetry"
	"github.com/bridgecrew-perf6/k8deployer/pkg/vars"
)

// Cluster owns everything scoped to one target control plane: the variable
// environment, the single-threaded executor, the HTTP client and watch
// stream, and the root of the component tree. Clusters run in parallel and
// share no mutable state.
type Cluster struct {
	name       string
	kubeconfig string
	variables  map[string]string
	env        *vars.Environment

	state   ClusterState
	exec    *Executor
	client  *kube.Client
	portFwd *kube.PortForward
	root    *Component

	cfg      *config.Config
	registry DriverRegistry
	log      zerolog.Logger
	metrics  *telemetry.Metrics
	bus      *telemetry.EventBus

	watchCancel context.CancelFunc
}

// NewCluster parses a cluster argument string,
// "<kubeconfig>[:<k1=v1,k2=v2,...>]", and creates the cluster context.
func NewCluster(cfg *config.Config, arg string, registry DriverRegistry,
	log zerolog.Logger, metrics *telemetry.Metrics, bus *telemetry.EventBus) (*Cluster, error) {

	kubeconfig, variables := ParseClusterArg(arg)

	name := variables["name"]
	if name == "" {
		name = clusterNameFromKubeconfig(kubeconfig)
		variables["name"] = name
	}

	cl := &Cluster{
		name:       name,
		kubeconfig: kubeconfig,
		variables:  variables,
		env:        vars.NewEnvironment(variables),
		state:      ClusterInit,
		exec:       NewExecutor(),
		cfg:        cfg,
		registry:   registry,
		log:        telemetry.WithCluster(log, name),
		metrics:    metrics,
		bus:        bus,
	}

	cl.log.Trace().Interface("variables", variables).Msg("cluster variables")
	return cl, nil
}

// ParseClusterArg splits a cluster argument into its kubeconfig path and
// variable map. Everything after the first ':' is a comma-separated list of
// k=v pairs; empty pairs are ignored.
func ParseClusterArg(arg string) (string, map[string]string) {
	kubeconfig := arg
	varsPart := ""
	if pos := strings.IndexByte(arg, ':'); pos >= 0 {
		kubeconfig = arg[:pos]
		varsPart = arg[pos+1:]
	}

	variables := map[string]string{}
	for _, pair := range strings.Split(varsPart, ",") {
		if pair == "" {
			continue
		}
		k, v := pair, ""
		if pos := strings.IndexByte(pair, '='); pos >= 0 {
			k, v = pair[:pos], pair[pos+1:]
		}
		if k != "" {
			variables[k] = v
		}
	}

	return kubeconfig, variables
}

// clusterNameFromKubeconfig derives the default cluster name: the portion of
// the kubeconfig filename before the first '.', or "default".
func clusterNameFromKubeconfig(kubeconfig string) string {
	if kubeconfig == "" {
		return "default"
	}
	stem := strings.SplitN(filepath.Base(kubeconfig), ".", 2)[0]
	if stem == "" {
		return "default"
	}
	return stem
}

// Name returns the cluster name.
func (cl *Cluster) Name() string { return cl.name }

// State returns the cluster state.
func (cl *Cluster) State() ClusterState { return cl.state }

// Root returns the cluster's component tree root.
func (cl *Cluster) Root() *Component { return cl.root }

// Client returns the cluster's HTTP client. Nil until Execute connects.
func (cl *Cluster) Client() *kube.Client { return cl.client }

// Executor returns the cluster's serial executor.
func (cl *Cluster) Executor() *Executor { return cl.exec }

// IgnoreErrors reports whether failed requests should leave components
// alive.
func (cl *Cluster) IgnoreErrors() bool { return cl.cfg.IgnoreErrors }

// Variable looks up a per-cluster variable.
func (cl *Cluster) Variable(name string) (string, bool) {
	v, ok := cl.variables[name]
	return v, ok
}

// Environment returns the variable environment used for expansion.
func (cl *Cluster) Environment() *vars.Environment { return cl.env }

// BuildTree expands the raw definition document with this cluster's
// variables, parses it and populates the component tree.
func (cl *Cluster) BuildTree(rawDefinition []byte) error {
	expanded, err := vars.Expand(string(rawDefinition), cl.env)
	if err != nil {
		return NewConfigError("definition expansion failed", err)
	}

	def, err := config.ParseDefinition([]byte(expanded))
	if err != nil {
		return NewConfigError("definition rejected", err)
	}

	root, err := PopulateTree(def, cl)
	if err != nil {
		return err
	}
	if root == nil {
		return NewConfigError("root component excluded by filters", nil)
	}

	cl.root = root
	return nil
}

// Prepare builds the task graph for this cluster's tree.
func (cl *Cluster) Prepare() error {
	if cl.root == nil {
		return NewInternalError("cluster has no component tree", nil)
	}
	return cl.root.Prepare()
}

// Execute connects to the cluster, starts the executor and the event
// stream, and drives the root to a terminal state. The returned channel
// receives the terminal result exactly once.
func (cl *Cluster) Execute(ctx context.Context) <-chan error {
	out := make(chan error, 1)

	if err := cl.connect(); err != nil {
		cl.state = ClusterFailed
		out <- err
		return out
	}

	cl.state = ClusterExecuting
	cl.exec.Start()
	cl.metrics.ClusterStarted()
	cl.publishClusterEvent()

	watchCtx, cancel := context.WithCancel(ctx)
	cl.watchCancel = cancel
	go cl.runWatch(watchCtx)

	var done <-chan error
	if cl.root.Mode() == ModeRemove {
		done = cl.root.Remove()
	} else {
		done = cl.root.Deploy()
	}

	go func() {
		var err error
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}

		cancel()
		cl.exec.Stop()
		if cl.portFwd != nil {
			_ = cl.portFwd.Close()
		}
		cl.metrics.ClusterFinished()
		out <- err
	}()

	return out
}

// connect establishes the HTTP path to the API server: a configured base
// URL wins, otherwise a kubectl proxy is spawned for the kubeconfig.
func (cl *Cluster) connect() error {
	if cl.client != nil {
		return nil
	}

	baseURL := cl.cfg.APIServer
	if baseURL == "" {
		cl.portFwd = kube.NewPortForward(cl.kubeconfig, cl.log)
		if err := cl.portFwd.Start(); err != nil {
			return fmt.Errorf("cluster %s: %w", cl.name, err)
		}
		baseURL = cl.portFwd.URL()
	}

	cl.client = kube.NewClient(baseURL, &http.Client{}, cl.log)
	cl.client.SetRequestObserver(cl.metrics.HTTPRequest)
	return nil
}

// SetClient injects a pre-built client, bypassing the proxy. Used by tests.
func (cl *Cluster) SetClient(client *kube.Client) {
	cl.client = client
}

// runWatch consumes the event stream for the lifetime of the execution and
// fans every event out onto the executor. The watch ending early is logged
// but not fatal: polling still drives progress.
func (cl *Cluster) runWatch(ctx context.Context) {
	err := cl.client.WatchEvents(ctx, func(ev *k8api.Event) {
		cl.metrics.WatchEvent(cl.name)
		cl.exec.Post(func() {
			cl.root.ProcessEvent(ev)
		})
	})
	if err != nil && ctx.Err() == nil {
		cl.log.Warn().Err(err).Msg("event stream ended")
	}
}

// onRootTerminal records the cluster outcome when the root finishes. Runs
// on the executor.
func (cl *Cluster) onRootTerminal(state State) {
	if state == StateDone {
		cl.state = ClusterDone
	} else {
		cl.state = ClusterFailed
	}
	cl.publishClusterEvent()
}

func (cl *Cluster) publishClusterEvent() {
	cl.bus.Publish(telemetry.ExecutionEvent{
		Type:    telemetry.EventClusterState,
		Cluster: cl.name,
		State:   cl.state.String(),
	})
}

func (cl *Cluster) publishComponentEvent(c *Component) {
	cl.bus.Publish(telemetry.ExecutionEvent{
		Type:      telemetry.EventComponentState,
		Cluster:   cl.name,
		Component: c.FQName(),
		State:     c.state.String(),
		Elapsed:   c.elapsed,
	})
}

func (cl *Cluster) publishTaskEvent(t *Task) {
	cl.bus.Publish(telemetry.ExecutionEvent{
		Type:      telemetry.EventTaskState,
		Cluster:   cl.name,
		Component: t.component.FQName(),
		Task:      t.name,
		State:     t.state.String(),
	})
}
