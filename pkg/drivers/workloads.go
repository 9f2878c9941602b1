package drivers

import (
	"context"
	"errors"
	"strings"

	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
	"github.com/bridgecrew-perf6/k8deployer/pkg/kube"
)

// statefulSetDriver manages apps/v1 StatefulSets, with the same pod-created
// event counting as deployments.
type statefulSetDriver struct {
	base
}

func newStatefulSetDriver() *statefulSetDriver {
	return &statefulSetDriver{base{
		kind: engine.KindStatefulSet,
		api:  apiPath{prefix: "/apis/apps/v1", resource: "statefulsets", namespaced: true},
	}}
}

func (d *statefulSetDriver) Prepare(c *engine.Component) error {
	sts := &k8api.StatefulSet{
		TypeMeta: k8api.TypeMeta{APIVersion: "apps/v1", Kind: "StatefulSet"},
	}
	c.Object = sts

	sts.Metadata.Name = c.Name
	sts.Metadata.Namespace = c.GetNamespace()

	selKey, selValue := c.Selector()
	ensureLabel(&sts.Metadata.Labels, selKey, selValue)
	if sts.Spec.Selector.MatchLabels == nil {
		sts.Spec.Selector.MatchLabels = map[string]string{}
	}
	sts.Spec.Selector.MatchLabels[selKey] = selValue

	replicas, err := c.GetIntArg("replicas", 1)
	if err != nil {
		return err
	}
	sts.Spec.Replicas = replicas
	sts.Spec.ServiceName = c.GetArgOr("serviceName", c.Name)

	sts.Spec.Template.Metadata.Name = c.Name
	ensureLabel(&sts.Spec.Template.Metadata.Labels, selKey, selValue)

	container, err := buildMainContainer(c)
	if err != nil {
		return err
	}
	sts.Spec.Template.Spec.Containers = []k8api.Container{container}

	return nil
}

func (d *statefulSetDriver) AddDeploymentTasks(c *engine.Component) error {
	sts, ok := c.Object.(*k8api.StatefulSet)
	if !ok {
		return engine.NewInternalError("statefulset component has no body", nil).WithComponent(c.FQName())
	}

	podsStarted := 0
	namePrefix := c.Name + "-"

	c.NewTask(c.Name, func(t *engine.Task, ev *k8api.Event) {
		if t.State() == engine.TaskReady {
			t.SetState(engine.TaskExecuting, false)
			d.doDeploy(c, func(err error) {
				if err != nil {
					failTask(t, err)
					return
				}
				c.Evaluate()
				c.Cluster().Executor().Post(c.Root().RunTasks)
			})
			t.SetState(engine.TaskWaiting, false)
		}

		monitoring := t.State() == engine.TaskExecuting || t.State() == engine.TaskWaiting
		if monitoring && ev != nil {
			if ev.InvolvedObject.Kind == "Pod" &&
				strings.HasPrefix(ev.InvolvedObject.Name, namePrefix) &&
				ev.Metadata.Namespace == sts.Metadata.Namespace &&
				ev.Reason == "Created" {

				podsStarted++
				if podsStarted >= sts.Spec.Replicas {
					t.SetState(engine.TaskDone, true)
				}
			}
		}

		t.Evaluate()
	})

	return nil
}

// Probe reports ready once every replica is ready.
func (d *statefulSetDriver) Probe(c *engine.Component, fn func(engine.ObjectState)) bool {
	sts, ok := c.Object.(*k8api.StatefulSet)
	if !ok {
		return false
	}

	path := d.api.object(sts.Metadata.Namespace, sts.Metadata.Name)
	client := c.Cluster().Client()
	exec := c.Cluster().Executor()

	go func() {
		var live k8api.StatefulSet
		err := client.Get(context.Background(), path, &live)
		exec.Post(func() {
			switch {
			case errors.Is(err, kube.ErrNotFound):
				fn(engine.ObjectDontExist)
			case err != nil:
				fn(engine.ObjectInit)
			case live.Status.ReadyReplicas >= sts.Spec.Replicas:
				fn(engine.ObjectReady)
			default:
				fn(engine.ObjectInit)
			}
		})
	}()
	return true
}

// daemonSetDriver manages apps/v1 DaemonSets. The scheduled pod count is
// node dependent, so readiness relies on the poll fallback.
type daemonSetDriver struct {
	base
}

func newDaemonSetDriver() *daemonSetDriver {
	return &daemonSetDriver{base{
		kind: engine.KindDaemonSet,
		api:  apiPath{prefix: "/apis/apps/v1", resource: "daemonsets", namespaced: true},
	}}
}

func (d *daemonSetDriver) Prepare(c *engine.Component) error {
	ds := &k8api.DaemonSet{
		TypeMeta: k8api.TypeMeta{APIVersion: "apps/v1", Kind: "DaemonSet"},
	}
	c.Object = ds

	ds.Metadata.Name = c.Name
	ds.Metadata.Namespace = c.GetNamespace()

	selKey, selValue := c.Selector()
	ensureLabel(&ds.Metadata.Labels, selKey, selValue)
	if ds.Spec.Selector.MatchLabels == nil {
		ds.Spec.Selector.MatchLabels = map[string]string{}
	}
	ds.Spec.Selector.MatchLabels[selKey] = selValue

	ds.Spec.Template.Metadata.Name = c.Name
	ensureLabel(&ds.Spec.Template.Metadata.Labels, selKey, selValue)

	container, err := buildMainContainer(c)
	if err != nil {
		return err
	}
	ds.Spec.Template.Spec.Containers = []k8api.Container{container}

	return nil
}

func (d *daemonSetDriver) AddDeploymentTasks(c *engine.Component) error {
	d.newDeployTask(c, func(t *engine.Task) {
		t.SchedulePoll()
	})
	return nil
}

// Probe reports ready once every desired node runs a ready pod.
func (d *daemonSetDriver) Probe(c *engine.Component, fn func(engine.ObjectState)) bool {
	ds, ok := c.Object.(*k8api.DaemonSet)
	if !ok {
		return false
	}

	path := d.api.object(ds.Metadata.Namespace, ds.Metadata.Name)
	client := c.Cluster().Client()
	exec := c.Cluster().Executor()

	go func() {
		var live k8api.DaemonSet
		err := client.Get(context.Background(), path, &live)
		exec.Post(func() {
			switch {
			case errors.Is(err, kube.ErrNotFound):
				fn(engine.ObjectDontExist)
			case err != nil:
				fn(engine.ObjectInit)
			case live.Status.NumberReady >= live.Status.DesiredNumberScheduled && live.Status.DesiredNumberScheduled > 0:
				fn(engine.ObjectReady)
			default:
				fn(engine.ObjectInit)
			}
		})
	}()
	return true
}
