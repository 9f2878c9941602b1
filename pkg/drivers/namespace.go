package drivers

import (
	"context"
	"errors"
	"strings"

	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
	"github.com/bridgecrew-perf6/k8deployer/pkg/kube"
)

// namespaceDriver manages core/v1 Namespaces. Namespaces emit no readiness
// events, so the deploy task arms the poll fallback after posting.
type namespaceDriver struct {
	base
}

func newNamespaceDriver() *namespaceDriver {
	return &namespaceDriver{base{
		kind: engine.KindNamespace,
		api:  apiPath{prefix: "/api/v1", resource: "namespaces", namespaced: false},
	}}
}

func (d *namespaceDriver) Prepare(c *engine.Component) error {
	ns := &k8api.Namespace{
		TypeMeta: k8api.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
	}
	c.Object = ns

	name := c.GetArgOr("namespace.name", strings.TrimSuffix(c.Name, "-ns"))
	ns.Metadata.Name = name

	return nil
}

func (d *namespaceDriver) AddDeploymentTasks(c *engine.Component) error {
	d.newDeployTask(c, func(t *engine.Task) {
		t.SchedulePoll()
	})
	return nil
}

// Probe reports ready once the namespace phase is Active, and done once it
// is gone in remove mode.
func (d *namespaceDriver) Probe(c *engine.Component, fn func(engine.ObjectState)) bool {
	path := d.api.object("", d.objectName(c))
	client := c.Cluster().Client()
	exec := c.Cluster().Executor()

	go func() {
		var live k8api.Namespace
		err := client.Get(context.Background(), path, &live)
		exec.Post(func() {
			switch {
			case errors.Is(err, kube.ErrNotFound):
				fn(engine.ObjectDontExist)
			case err != nil:
				fn(engine.ObjectInit)
			case live.Status.Phase == "Active" || live.Status.Phase == "":
				fn(engine.ObjectReady)
			case live.Status.Phase == "Terminating":
				fn(engine.ObjectInit)
			default:
				fn(engine.ObjectInit)
			}
		})
	}()
	return true
}
