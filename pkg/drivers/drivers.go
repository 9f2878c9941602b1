// Package drivers implements the per-kind resource drivers the engine
// dispatches on. Each driver builds one Kubernetes resource body, posts it,
// deletes it and probes it; orchestration stays in the engine.
package drivers

import (
	"context"
	"errors"
	"fmt"

	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
	"github.com/bridgecrew-perf6/k8deployer/pkg/kube"
)

// NewRegistry builds the driver registry with every supported kind bound.
func NewRegistry() engine.DriverRegistry {
	registry := engine.DriverRegistry{}

	all := []engine.ResourceDriver{
		&appDriver{},
		newDeploymentDriver(),
		newStatefulSetDriver(),
		newDaemonSetDriver(),
		newServiceDriver(),
		newConfigMapDriver(),
		newSecretDriver(),
		newNamespaceDriver(),
		newJobDriver(),
		newIngressDriver(),
		newPersistentVolumeDriver(),
		newRoleDriver(),
		newClusterRoleDriver(),
		newRoleBindingDriver(),
		newClusterRoleBindingDriver(),
		newServiceAccountDriver(),
	}
	for _, d := range all {
		registry[d.Kind()] = d
	}

	return registry
}

// apiPath locates one resource collection in the API surface.
type apiPath struct {
	// prefix is the group/version prefix, e.g. "/apis/apps/v1".
	prefix string

	// resource is the plural resource name, e.g. "deployments".
	resource string

	// namespaced is false for cluster-scoped resources.
	namespaced bool
}

// collection returns the collection path for POST requests.
func (p apiPath) collection(namespace string) string {
	if p.namespaced {
		return fmt.Sprintf("%s/namespaces/%s/%s", p.prefix, namespace, p.resource)
	}
	return p.prefix + "/" + p.resource
}

// object returns the path of a single object.
func (p apiPath) object(namespace, name string) string {
	return p.collection(namespace) + "/" + name
}

// base carries the shared plumbing of every driver: the kind, the API path
// and the POST/DELETE task bodies.
type base struct {
	kind engine.Kind
	api  apiPath
}

func (b *base) Kind() engine.Kind { return b.kind }

// Prepare is a no-op by default; kinds with bodies override it.
func (b *base) Prepare(c *engine.Component) error { return nil }

// Validate is a no-op by default.
func (b *base) Validate(c *engine.Component) error { return nil }

// namespaceOf resolves the namespace for a component's object.
func (b *base) namespaceOf(c *engine.Component) string {
	if c.Object != nil {
		if ns := c.Object.GetObjectMeta().Namespace; ns != "" {
			return ns
		}
	}
	return c.GetNamespace()
}

// objectName resolves the object name for a component.
func (b *base) objectName(c *engine.Component) string {
	if c.Object != nil {
		if name := c.Object.GetObjectMeta().Name; name != "" {
			return name
		}
	}
	return c.Name
}

// doDeploy posts the component's body and delivers the outcome back onto
// the executor through done.
func (b *base) doDeploy(c *engine.Component, done func(error)) {
	path := b.api.collection(b.namespaceOf(c))
	client := c.Cluster().Client()
	exec := c.Cluster().Executor()

	log1 := c.Logger()
	log1.Debug().Str("path", path).Msg("sending resource")

	go func() {
		_, err := client.Post(context.Background(), path, c.Object)
		exec.Post(func() { done(err) })
	}()
}

// doRemove deletes the component's object. A 404 is success: removing an
// absent resource is idempotent teardown.
func (b *base) doRemove(c *engine.Component, done func(error)) {
	path := b.api.object(b.namespaceOf(c), b.objectName(c))
	client := c.Cluster().Client()
	exec := c.Cluster().Executor()

	log2 := c.Logger()
	log2.Debug().Str("path", path).Msg("deleting resource")

	go func() {
		err := client.Delete(context.Background(), path)
		if errors.Is(err, kube.ErrNotFound) {
			log3 := c.Logger()
			log3.Debug().Str("path", path).Msg("resource already absent")
			err = nil
		}
		exec.Post(func() { done(err) })
	}()
}

// failTask sinks a task after a transport error, failing the component
// unless errors are configured to be ignored.
func failTask(t *engine.Task, err error) {
	c := t.Component()
	log4 := c.Logger()
	log4.Warn().Err(err).Str("task", t.Name()).Msg("request failed")

	if c.Cluster().IgnoreErrors() {
		t.SetState(engine.TaskDone, false)
	} else {
		t.SetState(engine.TaskFailed, false)
	}
	c.Evaluate()
	t.Component().Cluster().Executor().Post(c.Root().RunTasks)
}

// AddDeploymentTasks appends the default POST-then-done deploy task. Kinds
// whose readiness needs events or probes build their own tasks instead.
func (b *base) AddDeploymentTasks(c *engine.Component) error {
	b.newDeployTask(c, nil)
	return nil
}

// newDeployTask creates the standard deploy task. When afterPost is nil the
// task completes on HTTP success; otherwise afterPost takes over (arming a
// poll, switching to event monitoring).
func (b *base) newDeployTask(c *engine.Component, afterPost func(t *engine.Task)) *engine.Task {
	return c.NewTask(c.Name, func(t *engine.Task, _ *k8api.Event) {
		if t.State() == engine.TaskReady {
			t.SetState(engine.TaskExecuting, false)
			b.doDeploy(c, func(err error) {
				if err != nil {
					failTask(t, err)
					return
				}
				if afterPost != nil {
					afterPost(t)
				} else {
					t.SetState(engine.TaskDone, false)
				}
				c.Evaluate()
				c.Cluster().Executor().Post(c.Root().RunTasks)
			})
			t.SetState(engine.TaskWaiting, false)
		}

		t.Evaluate()
	})
}

// AddRemovementTasks appends the standard teardown task.
func (b *base) AddRemovementTasks(c *engine.Component) error {
	c.NewTask(c.Name, func(t *engine.Task, _ *k8api.Event) {
		if t.State() == engine.TaskReady {
			t.SetState(engine.TaskExecuting, false)
			b.doRemove(c, func(err error) {
				if err != nil {
					failTask(t, err)
					return
				}
				t.SetState(engine.TaskDone, false)
				c.Evaluate()
				c.Cluster().Executor().Post(c.Root().RunTasks)
			})
			t.SetState(engine.TaskWaiting, false)
		}

		t.Evaluate()
	})
	return nil
}

// Probe checks bare existence of the object: present reports ready, absent
// reports missing. Kinds with real status surfaces override this.
func (b *base) Probe(c *engine.Component, fn func(engine.ObjectState)) bool {
	path := b.api.object(b.namespaceOf(c), b.objectName(c))
	client := c.Cluster().Client()
	exec := c.Cluster().Executor()

	go func() {
		err := client.Get(context.Background(), path, nil)
		exec.Post(func() {
			switch {
			case errors.Is(err, kube.ErrNotFound):
				fn(engine.ObjectDontExist)
			case err != nil:
				fn(engine.ObjectInit)
			default:
				fn(engine.ObjectReady)
			}
		})
	}()
	return true
}
