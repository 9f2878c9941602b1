package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgecrew-perf6/k8deployer/pkg/config"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
	"github.com/bridgecrew-perf6/k8deployer/pkg/telemetry"
)

// stubDriver completes its single task instantly when executed and records
// the completion order.
type stubDriver struct {
	kind  Kind
	order *[]string
}

func (d *stubDriver) Kind() Kind { return d.kind }

func (d *stubDriver) Prepare(c *Component) error {
	if d.kind == KindNamespace {
		ns := &k8api.Namespace{}
		ns.Metadata.Name = c.GetArgOr("namespace.name", c.Name)
		c.Object = ns
	}
	return nil
}

func (d *stubDriver) AddDeploymentTasks(c *Component) error {
	if d.kind == KindApp {
		return nil
	}
	c.NewTask(c.Name, func(t *Task, _ *k8api.Event) {
		if t.State() == TaskReady {
			t.SetState(TaskExecuting, false)
			if d.order != nil {
				*d.order = append(*d.order, c.Name)
			}
			t.SetState(TaskDone, false)
			c.Evaluate()
		}
		t.Evaluate()
	})
	return nil
}

func (d *stubDriver) AddRemovementTasks(c *Component) error {
	return d.AddDeploymentTasks(c)
}

func (d *stubDriver) Probe(c *Component, fn func(ObjectState)) bool { return false }

func (d *stubDriver) Validate(c *Component) error { return nil }

func stubRegistry(order *[]string) DriverRegistry {
	registry := DriverRegistry{}
	for _, kind := range allKinds {
		registry[kind] = &stubDriver{kind: kind, order: order}
	}
	return registry
}

func stubCluster(t *testing.T, mode config.Mode, order *[]string) *Cluster {
	t.Helper()

	cfg := config.Default()
	cfg.Mode = mode
	cfg.DefinitionFile = "unused.yaml"
	cfg.Clusters = []string{"test.conf"}
	cfg.APIServer = "http://unused"
	cfg.TaskTimeout = time.Minute
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{})
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	cl, err := NewCluster(cfg, "test.conf", stubRegistry(order), zerolog.Nop(), metrics, nil)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	return cl
}

func mustBuild(t *testing.T, cl *Cluster, definition string) *Component {
	t.Helper()
	if err := cl.BuildTree([]byte(definition)); err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if err := cl.Prepare(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return cl.Root()
}

func runCluster(t *testing.T, cl *Cluster) error {
	t.Helper()
	select {
	case err := <-cl.Execute(context.Background()):
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("cluster did not terminate")
		return nil
	}
}

func TestAddDependency_RejectsSelf(t *testing.T) {
	cl := stubCluster(t, config.ModeDeploy, nil)
	root := mustBuild(t, cl, `{"name":"a","kind":"Service"}`)

	if err := root.AddDependency(root); !IsCycle(err) {
		t.Errorf("Expected cycle error for self edge, got: %v", err)
	}
}

func TestAddDependency_RejectsTransitiveCycle(t *testing.T) {
	cl := stubCluster(t, config.ModeDeploy, nil)
	root := mustBuild(t, cl, `{
		"name":"root","kind":"App",
		"children":[
			{"name":"a","kind":"Service"},
			{"name":"b","kind":"Service"},
			{"name":"c","kind":"Service"}
		]
	}`)

	children := root.Children()
	a, b, c := children[0], children[1], children[2]

	if err := a.AddDependency(b); err != nil {
		t.Fatalf("a->b: %v", err)
	}
	if err := b.AddDependency(c); err != nil {
		t.Fatalf("b->c: %v", err)
	}
	if err := c.AddDependency(a); !IsCycle(err) {
		t.Errorf("Expected cycle error for c->a, got: %v", err)
	}
}

func TestAddDependency_IgnoresDuplicates(t *testing.T) {
	cl := stubCluster(t, config.ModeDeploy, nil)
	root := mustBuild(t, cl, `{
		"name":"root","kind":"App",
		"children":[
			{"name":"a","kind":"Service"},
			{"name":"b","kind":"Service"}
		]
	}`)

	a, b := root.Children()[0], root.Children()[1]
	if err := a.AddDependency(b); err != nil {
		t.Fatalf("first edge: %v", err)
	}
	if err := a.AddDependency(b); err != nil {
		t.Fatalf("duplicate edge: %v", err)
	}
	if len(a.DependsOn()) != 1 {
		t.Errorf("Expected a single edge, got %d", len(a.DependsOn()))
	}
}

func TestPrepareTasks_BeforeRelation(t *testing.T) {
	cl := stubCluster(t, config.ModeDeploy, nil)
	root := mustBuild(t, cl, `{
		"name":"root","kind":"App",
		"children":[{
			"name":"parent-dep","kind":"Deployment",
			"children":[{"name":"child-cm","kind":"ConfigMap","parentRelation":"before"}]
		}]
	}`)

	var parentTask, childTask *Task
	for _, task := range root.Tasks() {
		switch task.Component().Name {
		case "parent-dep":
			parentTask = task
		case "child-cm":
			childTask = task
		}
	}
	if parentTask == nil || childTask == nil {
		t.Fatal("Missing tasks")
	}

	var wired bool
	for _, dep := range parentTask.Dependencies() {
		if dep == childTask {
			wired = true
		}
	}
	if !wired {
		t.Error("BEFORE relation should make the parent task wait on the child task")
	}
	if len(childTask.Dependencies()) != 0 {
		t.Error("Child task should have no dependencies")
	}
}

func TestPrepareTasks_RelationEdgesSuppressedUnderDelete(t *testing.T) {
	cl := stubCluster(t, config.ModeDelete, nil)
	root := mustBuild(t, cl, `{
		"name":"root","kind":"App",
		"children":[{
			"name":"parent-dep","kind":"Deployment",
			"children":[{"name":"child-cm","kind":"ConfigMap","parentRelation":"after"}]
		}]
	}`)

	for _, task := range root.Tasks() {
		if len(task.Dependencies()) != 0 {
			t.Errorf("Task %s has relation edges under delete", task.Name())
		}
	}
}

func TestExecution_DeclaredDependencyOrder(t *testing.T) {
	var order []string
	cl := stubCluster(t, config.ModeDeploy, &order)
	root := mustBuild(t, cl, `{
		"name":"root","kind":"App",
		"children":[
			{"name":"frontend","kind":"Service","depends":["backend"]},
			{"name":"backend","kind":"Service"}
		]
	}`)

	if err := runCluster(t, cl); err != nil {
		t.Fatalf("Expected clean run, got: %v", err)
	}
	if root.State() != StateDone {
		t.Fatalf("Expected root done, got %s", root.State())
	}

	if len(order) != 2 || order[0] != "backend" || order[1] != "frontend" {
		t.Errorf("Expected backend before frontend, got %v", order)
	}
}

func TestExecution_NamespaceFirstThenReversedOnDelete(t *testing.T) {
	var order []string
	cl := stubCluster(t, config.ModeDeploy, &order)
	cfgTree := `{
		"name":"root","kind":"App",
		"children":[
			{"name":"prod-ns","kind":"Namespace","args":{"namespace.name":"prod"}},
			{"name":"web","kind":"Deployment"}
		]
	}`
	cl.cfg.Namespace = "prod"
	root := mustBuild(t, cl, cfgTree)

	if err := runCluster(t, cl); err != nil {
		t.Fatalf("Expected clean run, got: %v", err)
	}
	if root.State() != StateDone {
		t.Fatalf("Expected root done, got %s", root.State())
	}
	if len(order) != 2 || order[0] != "prod-ns" || order[1] != "web" {
		t.Errorf("Expected namespace first, got %v", order)
	}

	var deleteOrder []string
	cl2 := stubCluster(t, config.ModeDelete, &deleteOrder)
	cl2.cfg.Namespace = "prod"
	root2 := mustBuild(t, cl2, cfgTree)

	if err := runCluster(t, cl2); err != nil {
		t.Fatalf("Expected clean delete, got: %v", err)
	}
	if root2.State() != StateDone {
		t.Fatalf("Expected root done, got %s", root2.State())
	}
	if len(deleteOrder) != 2 || deleteOrder[0] != "web" || deleteOrder[1] != "prod-ns" {
		t.Errorf("Expected namespace last on delete, got %v", deleteOrder)
	}
}

func TestExecution_DependencyFailurePropagates(t *testing.T) {
	cl := stubCluster(t, config.ModeDeploy, nil)

	// Swap in a driver that fails the backend task.
	cl.registry[KindSecret] = &failingDriver{}

	root := mustBuild(t, cl, `{
		"name":"root","kind":"App",
		"children":[
			{"name":"frontend","kind":"Service","depends":["backend"]},
			{"name":"backend","kind":"Secret"}
		]
	}`)

	if err := runCluster(t, cl); err == nil {
		t.Fatal("Expected failure to surface through the root future")
	}
	if root.State() != StateFailed {
		t.Errorf("Expected root failed, got %s", root.State())
	}

	frontend := root.Children()[0]
	if frontend.State() != StateFailed {
		t.Errorf("Expected dependent component failed, got %s", frontend.State())
	}
}

// failingDriver sinks its task immediately.
type failingDriver struct{}

func (d *failingDriver) Kind() Kind { return KindSecret }

func (d *failingDriver) Prepare(c *Component) error { return nil }

func (d *failingDriver) AddDeploymentTasks(c *Component) error {
	c.NewTask(c.Name, func(t *Task, _ *k8api.Event) {
		if t.State() == TaskReady {
			t.SetState(TaskExecuting, false)
			t.SetState(TaskFailed, false)
			c.Evaluate()
		}
		t.Evaluate()
	})
	return nil
}

func (d *failingDriver) AddRemovementTasks(c *Component) error {
	return d.AddDeploymentTasks(c)
}

func (d *failingDriver) Probe(c *Component, fn func(ObjectState)) bool { return false }

func (d *failingDriver) Validate(c *Component) error { return nil }
