package drivers

import (
	"context"
	"errors"

	"github.com/bridgecrew-perf6/k8deployer/pkg/engine"
	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
	"github.com/bridgecrew-perf6/k8deployer/pkg/kube"
)

// jobDriver manages batch/v1 Jobs. Completion is event-driven with a poll
// fallback over status.succeeded.
type jobDriver struct {
	base
}

func newJobDriver() *jobDriver {
	return &jobDriver{base{
		kind: engine.KindJob,
		api:  apiPath{prefix: "/apis/batch/v1", resource: "jobs", namespaced: true},
	}}
}

func (d *jobDriver) Prepare(c *engine.Component) error {
	job := &k8api.Job{
		TypeMeta: k8api.TypeMeta{APIVersion: "batch/v1", Kind: "Job"},
	}
	c.Object = job

	job.Metadata.Name = c.Name
	job.Metadata.Namespace = c.GetNamespace()

	selKey, selValue := c.Selector()
	ensureLabel(&job.Metadata.Labels, selKey, selValue)

	container, err := buildMainContainer(c)
	if err != nil {
		return err
	}
	job.Spec.Template.Metadata.Name = c.Name
	ensureLabel(&job.Spec.Template.Metadata.Labels, selKey, selValue)
	job.Spec.Template.Spec.Containers = []k8api.Container{container}
	job.Spec.Template.Spec.RestartPolicy = "Never"

	backoff, err := c.GetIntArg("job.backoffLimit", 0)
	if err != nil {
		return err
	}
	job.Spec.BackoffLimit = backoff

	return nil
}

func (d *jobDriver) AddDeploymentTasks(c *engine.Component) error {
	job, ok := c.Object.(*k8api.Job)
	if !ok {
		return engine.NewInternalError("job component has no body", nil).WithComponent(c.FQName())
	}

	c.NewTask(c.Name, func(t *engine.Task, ev *k8api.Event) {
		if t.State() == engine.TaskReady {
			t.SetState(engine.TaskExecuting, false)
			d.doDeploy(c, func(err error) {
				if err != nil {
					failTask(t, err)
					return
				}
				t.SchedulePoll()
				c.Evaluate()
				c.Cluster().Executor().Post(c.Root().RunTasks)
			})
			t.SetState(engine.TaskWaiting, false)
		}

		monitoring := t.State() == engine.TaskExecuting || t.State() == engine.TaskWaiting
		if monitoring && ev != nil {
			if ev.InvolvedObject.Kind == "Job" &&
				ev.InvolvedObject.Name == job.Metadata.Name &&
				ev.Metadata.Namespace == job.Metadata.Namespace {

				switch ev.Reason {
				case "Completed":
					t.SetState(engine.TaskDone, true)
				case "BackoffLimitExceeded", "DeadlineExceeded":
					t.SetState(engine.TaskFailed, true)
				}
			}
		}

		t.Evaluate()
	})

	return nil
}

// Probe maps job status onto object state: any success is done, exhausted
// retries are failed.
func (d *jobDriver) Probe(c *engine.Component, fn func(engine.ObjectState)) bool {
	job, ok := c.Object.(*k8api.Job)
	if !ok {
		return false
	}

	path := d.api.object(job.Metadata.Namespace, job.Metadata.Name)
	client := c.Cluster().Client()
	exec := c.Cluster().Executor()

	go func() {
		var live k8api.Job
		err := client.Get(context.Background(), path, &live)
		exec.Post(func() {
			switch {
			case errors.Is(err, kube.ErrNotFound):
				fn(engine.ObjectDontExist)
			case err != nil:
				fn(engine.ObjectInit)
			case live.Status.Succeeded > 0:
				fn(engine.ObjectDone)
			case live.Status.Failed > 0 && live.Status.Failed > live.Spec.BackoffLimit:
				fn(engine.ObjectFailed)
			default:
				fn(engine.ObjectInit)
			}
		})
	}()
	return true
}
