package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgecrew-perf6/k8deployer/pkg/config"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
	"github.com/bridgecrew-perf6/k8deployer/pkg/telemetry"
)

// Component is one node of the runtime deployment tree. Parents own their
// children; parent links and dependency edges are plain back-references.
// Only the root owns the flat task list.
type Component struct {
	// Name is the component name from the definition.
	Name string

	// Kind selects the bound resource driver.
	Kind Kind

	// Labels are applied to generated objects.
	Labels map[string]string

	// Args configure this component.
	Args map[string]string

	// DefaultArgs are inherited by descendants.
	DefaultArgs map[string]string

	// Depends lists component names this component depends on.
	Depends []string

	// Relation orders this component's tasks against its parent's.
	Relation ParentRelation

	// Object is the Kubernetes resource body, built by the driver.
	Object k8api.Object

	parent    *Component
	children  []*Component
	dependsOn []*Component

	cluster *Cluster
	driver  ResourceDriver

	mode          Mode
	state         State
	effectiveArgs map[string]string
	prepared      bool

	tasks []*Task // root only

	execDone    chan error
	promiseDone bool

	startTime time.Time
	elapsed   time.Duration

	log zerolog.Logger
}

// PopulateTree builds the runtime component tree for one cluster from a
// definition and initializes it depth first. Nodes failing the configured
// include/exclude filters are pruned with their subtrees. Returns nil when
// the root itself is filtered out.
func PopulateTree(def *config.ComponentDefinition, cluster *Cluster) (*Component, error) {
	root, err := populate(def, cluster, nil)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}
	if err := root.Init(); err != nil {
		return nil, err
	}
	return root, nil
}

func populate(def *config.ComponentDefinition, cluster *Cluster, parent *Component) (*Component, error) {
	if !cluster.cfg.Matches(def.Name) {
		cluster.log.Info().Str("component", def.Name).Msg("excluding filtered component")
		return nil, nil
	}

	c, err := newComponent(def, cluster, parent)
	if err != nil {
		return nil, err
	}

	for i := range def.Children {
		child, err := populate(&def.Children[i], cluster, c)
		if err != nil {
			return nil, err
		}
		if child != nil {
			c.children = append(c.children, child)
		}
	}

	return c, nil
}

func newComponent(def *config.ComponentDefinition, cluster *Cluster, parent *Component) (*Component, error) {
	kind, err := ParseKind(def.Kind)
	if err != nil {
		return nil, err
	}

	relation, err := ParseParentRelation(def.ParentRelation)
	if err != nil {
		return nil, err
	}

	driver, ok := cluster.registry.Driver(kind)
	if !ok {
		return nil, NewConfigError(fmt.Sprintf("no driver for kind: %s", kind), nil)
	}

	mode := ModeCreate
	if cluster.cfg.Mode == config.ModeDelete {
		mode = ModeRemove
	}

	return &Component{
		Name:        def.Name,
		Kind:        kind,
		Labels:      copyMap(def.Labels),
		Args:        copyMap(def.Args),
		DefaultArgs: copyMap(def.DefaultArgs),
		Depends:     append([]string(nil), def.Depends...),
		Relation:    relation,
		parent:      parent,
		cluster:     cluster,
		driver:      driver,
		mode:        mode,
		state:       StateCreating,
		log:         telemetry.WithComponent(cluster.log, cluster.name, def.Kind, def.Name),
	}, nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Init runs the depth-first initialization pass: state, effective args, the
// synthesized namespace child under the root, children, then kind-specific
// validation.
func (c *Component) Init() error {
	c.state = StateCreating
	c.effectiveArgs = mergeArgs(c.Args, c.pathToRoot()[1:])

	if c.IsRoot() && c.cluster.cfg.AutoMaintainNamespace {
		ns := c.GetNamespace()
		if _, err := c.AddChild(ns+"-ns", KindNamespace, nil,
			map[string]string{"namespace.name": ns}, RelationIndependent); err != nil {
			return err
		}
	}

	for _, child := range c.children {
		if err := child.Init(); err != nil {
			return err
		}
	}

	return c.driver.Validate(c)
}

// AddChild creates, initializes and attaches a synthesized child component.
// Used by drivers that inject implicit resources during Prepare.
func (c *Component) AddChild(name string, kind Kind, labels, args map[string]string, relation ParentRelation) (*Component, error) {
	def := config.ComponentDefinition{
		Name:   name,
		Kind:   string(kind),
		Labels: labels,
		Args:   args,
	}
	child, err := newComponent(&def, c.cluster, c)
	if err != nil {
		return nil, err
	}
	child.Relation = relation

	if err := child.Init(); err != nil {
		return nil, err
	}

	c.children = append(c.children, child)
	return child, nil
}

// Parent returns the parent component, nil for the root.
func (c *Component) Parent() *Component { return c.parent }

// Children returns the owned children in definition order.
func (c *Component) Children() []*Component { return c.children }

// Cluster returns the owning cluster.
func (c *Component) Cluster() *Cluster { return c.cluster }

// Mode returns the component's operating mode.
func (c *Component) Mode() Mode { return c.mode }

// State returns the current component state.
func (c *Component) State() State { return c.state }

// DependsOn returns the resolved component-level dependencies.
func (c *Component) DependsOn() []*Component { return c.dependsOn }

// Tasks returns the root-owned flat task list.
func (c *Component) Tasks() []*Task { return c.Root().tasks }

// EffectiveArgs returns the merged argument map visible to this component.
func (c *Component) EffectiveArgs() map[string]string { return c.effectiveArgs }

// Logger returns the component-scoped logger.
func (c *Component) Logger() zerolog.Logger { return c.log }

// IsRoot reports whether this component is the tree root.
func (c *Component) IsRoot() bool { return c.parent == nil }

// Root walks the parent chain to the tree root.
func (c *Component) Root() *Component {
	root := c
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// FQName returns the cluster/Kind/name triple that identifies the component
// in logs and dependency dumps.
func (c *Component) FQName() string {
	return c.cluster.name + "/" + string(c.Kind) + "/" + c.Name
}

// GetNamespace resolves the target namespace: the cluster's namespace
// variable wins, then the parent chain, then the engine default.
func (c *Component) GetNamespace() string {
	if ns, ok := c.cluster.Variable("namespace"); ok && ns != "" {
		return ns
	}
	if c.parent != nil {
		return c.parent.GetNamespace()
	}
	return c.cluster.cfg.Namespace
}

// NamespaceObjectName returns the namespace name a Namespace component
// manages.
func (c *Component) NamespaceObjectName() string {
	if c.Object != nil {
		if name := c.Object.GetObjectMeta().Name; name != "" {
			return name
		}
	}
	if name, ok := c.GetArg("namespace.name"); ok {
		return name
	}
	return strings.TrimSuffix(c.Name, "-ns")
}

// Selector returns the label selector pair for generated objects: the "app"
// label when present, else the component name.
func (c *Component) Selector() (string, string) {
	if v, ok := c.Labels["app"]; ok {
		return "app", v
	}
	return "app", c.Name
}

// HasKindAsChild reports whether any direct child has the given kind.
func (c *Component) HasKindAsChild(kind Kind) bool {
	for _, child := range c.children {
		if child.Kind == kind {
			return true
		}
	}
	return false
}

// FirstChildOfKind returns the first direct child of the given kind.
func (c *Component) FirstChildOfKind(kind Kind) *Component {
	for _, child := range c.children {
		if child.Kind == kind {
			return child
		}
	}
	return nil
}

// ForAllComponents applies fn to every component in the tree, parents before
// children.
func (c *Component) ForAllComponents(fn func(*Component)) {
	c.Root().walk(fn)
}

func (c *Component) walk(fn func(*Component)) {
	fn(c)
	for _, child := range c.children {
		child.walk(fn)
	}
}

func (c *Component) pathToRoot() []*Component {
	var path []*Component
	for p := c; p != nil; p = p.parent {
		path = append(path, p)
	}
	return path
}

// NewTask creates a task bound to this component and appends it to the root
// task list.
func (c *Component) NewTask(name string, fn TaskFn) *Task {
	t := newTask(c, name, fn)
	root := c.Root()
	root.tasks = append(root.tasks, t)
	return t
}

// Prepare builds the task graph for the whole tree. Root only. The order is
// fixed: resource bodies and implicit children first, then tasks, then
// parent-relation task edges, then component dependency synthesis.
func (c *Component) Prepare() error {
	if !c.IsRoot() {
		return NewInternalError("prepare called on non-root component", nil)
	}

	c.tasks = []*Task{}

	switch c.cluster.cfg.Mode {
	case config.ModeDeploy, config.ModeShowDependencies:
		if err := c.prepareDeploy(); err != nil {
			return err
		}
		if err := c.addTasks(false); err != nil {
			return err
		}
		if err := c.prepareTasks(false); err != nil {
			return err
		}
	case config.ModeDelete:
		if err := c.prepareDeploy(); err != nil {
			return err
		}
		if err := c.addTasks(true); err != nil {
			return err
		}
		if err := c.prepareTasks(true); err != nil {
			return err
		}
	default:
		return NewConfigError(fmt.Sprintf("unhandled mode: %s", c.cluster.cfg.Mode), nil)
	}

	return c.ScanDependencies()
}

// EnsurePrepared runs the driver's Prepare exactly once. Drivers call this
// on synthesized children whose body they need fully built before their own
// Prepare returns.
func (c *Component) EnsurePrepared() error {
	if c.prepared {
		return nil
	}
	c.prepared = true
	return c.driver.Prepare(c)
}

// prepareDeploy builds resource bodies depth first. Children synthesized by
// a driver's Prepare are picked up because the loop re-reads the slice.
func (c *Component) prepareDeploy() error {
	if err := c.EnsurePrepared(); err != nil {
		return err
	}

	for i := 0; i < len(c.children); i++ {
		if err := c.children[i].prepareDeploy(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Component) addTasks(remove bool) error {
	var err error
	if remove {
		err = c.driver.AddRemovementTasks(c)
	} else {
		err = c.driver.AddDeploymentTasks(c)
	}
	if err != nil {
		return err
	}

	for _, child := range c.children {
		if err := child.addTasks(remove); err != nil {
			return err
		}
	}
	return nil
}

// Deploy posts the first task loop onto the executor and returns a channel
// that receives the terminal result exactly once. Root only.
func (c *Component) Deploy() <-chan error {
	return c.execute()
}

// Remove is the teardown counterpart of Deploy.
func (c *Component) Remove() <-chan error {
	return c.execute()
}

func (c *Component) execute() <-chan error {
	c.execDone = make(chan error, 1)
	c.cluster.exec.Post(func() {
		c.RunTasks()
		// Components without any tasks (bare App groups) only resolve
		// through evaluation, so sweep the tree once at startup.
		c.evaluateTree()
	})
	return c.execDone
}

func (c *Component) evaluateTree() {
	for _, child := range c.children {
		child.evaluateTree()
	}
	c.Evaluate()
}

// RunTasks is the cooperative scheduler loop: evaluate every task, execute
// the ready ones, repeat until nothing changes. Runs on the executor.
func (c *Component) RunTasks() {
	root := c.Root()
	if root.tasks == nil || c.cluster.State() != ClusterExecuting {
		c.log.Trace().Stringer("cluster_state", c.cluster.State()).Msg("skipping task loop")
		return
	}

	for c.cluster.State() == ClusterExecuting && root.state != StateDone {
		progress := false
		pending := 0

		for _, task := range root.tasks {
			if task.Evaluate() {
				progress = true
			}
			if task.state == TaskReady {
				task.Execute()
				progress = true
			}
			if !task.state.IsTerminal() {
				pending++
			}
		}

		c.cluster.metrics.SetPendingTasks(pending)

		if !progress {
			return
		}
	}
}

// scheduleRunTasks re-evaluates this component and posts a root task loop,
// unless the cluster already left the executing state.
func (c *Component) scheduleRunTasks() {
	if c.cluster.State() != ClusterExecuting {
		c.log.Trace().Stringer("cluster_state", c.cluster.State()).Msg("skipping schedule")
		return
	}

	c.Evaluate()
	root := c.Root()
	c.cluster.exec.Post(root.RunTasks)
}

// IsBlockedOnDependency reports whether a component-level dependency keeps
// this component from progressing. The edges are inserted reversed under
// remove mode, so the same check orders both build-up and teardown.
func (c *Component) IsBlockedOnDependency() bool {
	for _, dep := range c.dependsOn {
		if dep.state != StateDone {
			c.log.Trace().Str("blocked_on", dep.FQName()).Msg("blocked on dependency")
			return true
		}
	}
	return false
}

// HasFailedDependency reports whether any component-level dependency sank
// to FAILED. Downstream tasks use it to give up instead of blocking forever.
func (c *Component) HasFailedDependency() bool {
	for _, dep := range c.dependsOn {
		if dep.state == StateFailed {
			return true
		}
	}
	return false
}

// Evaluate recomputes this component's state from its tasks, children and
// dependencies. Called whenever a task or child changes state.
func (c *Component) Evaluate() {
	root := c.Root()
	if root.tasks == nil {
		return
	}

	newState := StateCreating
	allDone := true
	numTasks := 0

	for _, task := range root.tasks {
		if task.component != c {
			continue
		}
		numTasks++

		if task.state >= TaskBlocked && c.state == StateCreating {
			newState = StateRunning
		}

		if task.state != TaskDone {
			allDone = false
		}

		if task.state > TaskDone {
			if c.state < StateFailed {
				c.setState(StateFailed)
			}
			break
		}
	}

	if c.state == StateFailed {
		return
	}

	if c.HasFailedDependency() {
		c.setState(StateFailed)
		return
	}

	if allDone {
		blockedOnChild := false
		var failedChild *Component
		for _, child := range c.children {
			if child.state != StateDone {
				if child.state > StateDone {
					failedChild = child
					continue
				}
				blockedOnChild = true
			}
		}

		// A failed child fails this component once no other child is
		// still in progress.
		if failedChild != nil && !blockedOnChild {
			c.log.Debug().Str("child", failedChild.FQName()).Msg("failed because of child")
			c.setState(StateFailed)
			return
		}

		if c.IsBlockedOnDependency() {
			return
		}

		if !blockedOnChild {
			c.setState(StateDone)
			return
		}
	}

	// A component does not become RUNNING while a component-level
	// dependency still gates it; namespaces finish strictly before their
	// occupants start.
	if numTasks > 0 && newState > c.state && !c.IsBlockedOnDependency() {
		c.setState(newState)
	}
}

// setState commits a component state transition and runs its side effects:
// elapsed accounting, promise fulfillment, parent notification. FAILED is
// sticky.
func (c *Component) setState(state State) {
	if state == c.state || c.state == StateFailed {
		return
	}

	c.state = state

	switch state {
	case StateDone:
		c.calculateElapsed()
		c.log.Info().Dur("elapsed", c.elapsed).Msg("done")
		c.cluster.metrics.ComponentCompleted(string(c.Kind), state.String(), c.elapsed)
		c.fulfill(nil)
	case StateFailed:
		c.calculateElapsed()
		c.log.Warn().Dur("elapsed", c.elapsed).Msg("failed")
		c.cluster.metrics.ComponentCompleted(string(c.Kind), state.String(), c.elapsed)
		c.fulfill(NewInternalError("component failed", nil).WithComponent(c.FQName()))
	}

	c.cluster.publishComponentEvent(c)

	if state >= StateRunning {
		if c.parent != nil {
			c.parent.Evaluate()
			c.scheduleRunTasks()
		} else if state.IsTerminal() {
			c.cluster.onRootTerminal(state)
		}
	}
}

// fulfill completes the execution promise exactly once.
func (c *Component) fulfill(err error) {
	if c.execDone == nil || c.promiseDone {
		return
	}
	c.promiseDone = true
	c.execDone <- err
}

// ProcessEvent feeds one cluster event to every task in the root list and
// re-schedules the task loop when anything changed. Runs on the executor.
func (c *Component) ProcessEvent(ev *k8api.Event) {
	root := c.Root()
	if root.tasks == nil {
		return
	}

	changed := false
	for _, task := range root.tasks {
		if task.OnEvent(ev) {
			changed = true
			c.log.Trace().Str("task", task.name).Msg("task changed state on event")
		}
	}

	if changed {
		c.cluster.exec.Post(root.RunTasks)
	}
}

// Probe asks the driver to inspect the live object. Returns false when the
// driver does not support probing.
func (c *Component) Probe(fn func(ObjectState)) bool {
	return c.driver.Probe(c, fn)
}

func (c *Component) startElapsedTimer() {
	if c.startTime.IsZero() {
		c.startTime = time.Now()
	}
}

func (c *Component) calculateElapsed() {
	if !c.startTime.IsZero() {
		c.elapsed = time.Since(c.startTime)
	}
}

// Elapsed returns the measured duration from first execution to the
// terminal state.
func (c *Component) Elapsed() time.Duration { return c.elapsed }
